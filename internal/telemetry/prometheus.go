package telemetry

import (
	"context"
	"net/http"
	"strconv"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moisturectl"

// Prometheus exposes sampling outcomes on its own registry.
type Prometheus struct {
	registry     *prometheus.Registry
	readingValue prometheus.Gauge
	alertActive  prometheus.Gauge
	samples      prometheus.Counter
	sensorErrors prometheus.Counter
	alerts       *prometheus.CounterVec
}

func NewPrometheus() (*Prometheus, error) {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		readingValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_value",
			Help:      "Last successful raw moisture reading",
		}),
		alertActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_active",
			Help:      "1 while the dry alert is latched",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Sampling iterations executed",
		}),
		sensorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_errors_total",
			Help:      "Sampling iterations whose sensor read failed",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Dry alerts fired, by delivery outcome",
		}, []string{"delivered"}),
	}

	for _, c := range []prometheus.Collector{
		p.readingValue,
		p.alertActive,
		p.samples,
		p.sensorErrors,
		p.alerts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := p.registry.Register(c); err != nil {
			return nil, errors.New().Wrap(ErrRegisterFailed, err)
		}
	}

	return p, nil
}

func (p *Prometheus) Record(_ context.Context, snapshot *metrics.Snapshot) error {
	if snapshot == nil {
		return errors.New().New(ErrInvalidSnapshot)
	}

	p.samples.Inc()
	if snapshot.ReadOK {
		p.readingValue.Set(float64(snapshot.Value))
	} else {
		p.sensorErrors.Inc()
	}

	if snapshot.AlertActive {
		p.alertActive.Set(1)
	} else {
		p.alertActive.Set(0)
	}

	if snapshot.AlertFired {
		p.alerts.WithLabelValues(strconv.FormatBool(snapshot.AlertDelivered)).Inc()
	}

	return nil
}

func (*Prometheus) Close() error {
	return nil
}

// Handler serves the registry in the Prometheus exposition format
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

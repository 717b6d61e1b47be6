package monitor

import (
	"fmt"
	"sync/atomic"
)

// AlertPolicy latches a dry alert on the first sample above the threshold
// and re-arms once a sample drops below it. A sample equal to the threshold
// leaves the latch untouched.
type AlertPolicy struct {
	threshold int
	active    atomic.Bool
}

func NewAlertPolicy(threshold int) *AlertPolicy {
	return &AlertPolicy{threshold: threshold}
}

// Evaluate applies one successful sample and reports whether an alert
// must be sent for it. The latch is set before the caller sends.
func (p *AlertPolicy) Evaluate(v int) bool {
	switch {
	case v > p.threshold:
		return p.active.CompareAndSwap(false, true)
	case v < p.threshold:
		// Clearing is silent
		p.active.Store(false)
	}
	return false
}

func (p *AlertPolicy) Active() bool {
	return p.active.Load()
}

func (p *AlertPolicy) Threshold() int {
	return p.threshold
}

// AlertText is the message sent when the soil gets too dry.
func AlertText(v int) string {
	return fmt.Sprintf("Your plant is thirsty! Level: %d", v)
}

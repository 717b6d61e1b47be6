package api

import (
	"net/http"

	"codeberg.org/mutker/moisturectl/internal/metrics"
	"codeberg.org/mutker/moisturectl/internal/monitor"
	"github.com/heptiolabs/healthcheck"
)

// Controller is the part of the monitor the control surface drives
type Controller interface {
	Start() error
	Stop()
	SetIntervalMinutes(n int) error
	Status() monitor.Status
}

type Deps struct {
	Controller Controller
	// Readiness gates /healthz; nil means always ready
	Readiness healthcheck.Check
	History   metrics.History
	// Metrics serves /metrics when set
	Metrics http.Handler
	Hub     *Hub
}

type statusResponse struct {
	Running   bool `json:"running"`
	LastValue int  `json:"last_value"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type intervalRequest struct {
	Minutes *int `json:"minutes"`
}

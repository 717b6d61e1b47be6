package metrics

import (
	"context"
	"time"
)

// Collector receives one Snapshot per sampling iteration
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// History exposes recently recorded snapshots, newest first
type History interface {
	Recent(ctx context.Context, limit int) ([]Snapshot, error)
}

// Repository defines the interface for snapshot storage
type Repository interface {
	Record(snapshot *Snapshot) error
	Recent(limit int) ([]Snapshot, error)
	Close() error
}

// Snapshot is the outcome of a single sampling iteration
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Sensor    string    `json:"sensor"`
	// Value is only meaningful when ReadOK is set
	Value          int  `json:"value"`
	ReadOK         bool `json:"read_ok"`
	AlertActive    bool `json:"alert_active"`
	AlertFired     bool `json:"alert_fired"`
	AlertDelivered bool `json:"alert_delivered"`
}

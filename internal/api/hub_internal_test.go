package api

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/moisturectl/internal/logger"
	"codeberg.org/mutker/moisturectl/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDropsClientWithFullQueue(t *testing.T) {
	hub := NewHub(logger.Component("api"))

	stuck := &client{send: make(chan *metrics.Snapshot, clientBuffer)}
	healthy := &client{send: make(chan *metrics.Snapshot, clientBuffer)}
	hub.clients[stuck] = struct{}{}
	hub.clients[healthy] = struct{}{}

	for i := 0; i < clientBuffer; i++ {
		stuck.send <- &metrics.Snapshot{}
	}

	start := time.Now()
	require.NoError(t, hub.Record(context.Background(), &metrics.Snapshot{Value: 2500, ReadOK: true}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	assert.Equal(t, 1, hub.Clients())

	got := <-healthy.send
	assert.Equal(t, 2500, got.Value)

	// The dropped client's queue is closed so its writer ends
	for range stuck.send {
	}
}

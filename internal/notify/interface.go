package notify

import "context"

// Notifier delivers a text alert. Implementations must return once ctx ends.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Nop discards alerts. It is used when no destination is configured.
type Nop struct{}

func (Nop) Send(_ context.Context, _ string) error { return nil }

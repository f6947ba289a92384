package sink

import (
	"context"

	"codeberg.org/veldt/trainwatch/internal/training"
)

// No-op implementation, used when no sink is configured.
type nopSink struct{}

func Nop() Sink {
	return nopSink{}
}

func (nopSink) Log(_ context.Context, _ map[string]any, _ int64) error { return nil }

func (nopSink) Watch(_ context.Context, _ training.Model) error { return nil }

func (nopSink) Close() error { return nil }

// Package sink sends structured, step-indexed metric records to a
// remote experiment-tracking service.
package sink

import (
	"context"

	"codeberg.org/veldt/trainwatch/internal/training"
)

// Sink is the remote tracking contract. Log writes one key/value
// record tagged with a step index; Watch registers a model for passive
// instrumentation. Both block until the write is accepted; there is no
// retry.
type Sink interface {
	Log(ctx context.Context, fields map[string]any, step int64) error
	Watch(ctx context.Context, model training.Model) error
	Close() error
}

// Config is passed at client construction; nothing is read from the
// process environment.
type Config struct {
	Project string
	// RunName identifies this run within the project; generated when
	// empty.
	RunName string
	URL     string
	Token   string
	Org     string
	Bucket  string
	// WatchGradients requests parameter/gradient instrumentation from
	// the service for watched models.
	WatchGradients bool
}

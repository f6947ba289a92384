package sink

import (
	"context"
	"time"

	"codeberg.org/veldt/trainwatch/internal/errors"
	"codeberg.org/veldt/trainwatch/internal/logger"
	"codeberg.org/veldt/trainwatch/internal/training"
	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

type influxSink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	cfg    Config
}

// New connects a tracking sink backed by InfluxDB. Each Log call
// becomes one point: measurement = project, tagged with the run name,
// one field per key plus the step index.
func New(cfg Config) (Sink, error) {
	errFactory := errors.New()

	if cfg.URL == "" {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "sink URL must not be empty")
	}
	if cfg.Project == "" {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "project must not be empty")
	}
	if cfg.RunName == "" {
		cfg.RunName = uuid.NewString()
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	logger.Info().
		Str("project", cfg.Project).
		Str("run", cfg.RunName).
		Str("url", cfg.URL).
		Msg("Tracking sink connected")

	return &influxSink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		cfg:    cfg,
	}, nil
}

func (s *influxSink) Log(ctx context.Context, fields map[string]any, step int64) error {
	errFactory := errors.New()

	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		values[k] = v
	}
	values["step"] = step

	point := influxdb2.NewPoint(
		s.cfg.Project,
		map[string]string{"run": s.cfg.RunName},
		values,
		time.Now(),
	)

	if err := s.write.WritePoint(ctx, point); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	return nil
}

func (s *influxSink) Watch(ctx context.Context, model training.Model) error {
	errFactory := errors.New()

	point := influxdb2.NewPoint(
		s.cfg.Project+"_watch",
		map[string]string{"run": s.cfg.RunName, "model": model.Name()},
		map[string]any{
			"num_parameters": model.NumParameters(),
			"gradients":      s.cfg.WatchGradients,
		},
		time.Now(),
	)

	if err := s.write.WritePoint(ctx, point); err != nil {
		return errFactory.Wrap(ErrWatchFailed, err)
	}

	logger.Debug().Str("model", model.Name()).Msg("Watching model")

	return nil
}

func (s *influxSink) Close() error {
	s.client.Close()
	return nil
}

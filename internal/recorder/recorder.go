// Package recorder translates training lifecycle notifications into
// telemetry side effects: records to the remote tracking sink and a
// local JSON snapshot mirror.
package recorder

import (
	"context"
	"math"

	"codeberg.org/veldt/trainwatch/internal/energy"
	"codeberg.org/veldt/trainwatch/internal/history"
	"codeberg.org/veldt/trainwatch/internal/logger"
	"codeberg.org/veldt/trainwatch/internal/sink"
	"codeberg.org/veldt/trainwatch/internal/snapshot"
	"codeberg.org/veldt/trainwatch/internal/training"
)

type Config struct {
	Project string
	// RunName tags history records; defaults to Project.
	RunName string
	// EnergyLog is the recorder-owned energy log, read at every epoch
	// end and mirrored into the snapshot.
	EnergyLog string
	// SnapshotPath is where the JSON mirror lives.
	SnapshotPath string
	// Sink receives every step-indexed record; nil uses a no-op sink.
	Sink sink.Sink
	// History, when set, keeps a local sqlite trace of every record.
	History *history.Repository
}

// Recorder is a lifecycle observer for a training run. It embeds the
// delegate-only BaseCallback and overrides only the hooks that carry
// telemetry behavior. Handlers are invoked sequentially by the
// external loop; the recorder holds no locks of its own.
type Recorder struct {
	training.BaseCallback

	cfg   Config
	sink  sink.Sink
	store *snapshot.Store
}

// New wires a recorder and performs the first full snapshot write, so
// the file exists from construction on. A malformed snapshot path
// fails construction.
func New(cfg Config) (*Recorder, error) {
	if cfg.Sink == nil {
		cfg.Sink = sink.Nop()
	}
	if cfg.RunName == "" {
		cfg.RunName = cfg.Project
	}

	store, err := snapshot.New(cfg.SnapshotPath)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("project", cfg.Project).
		Str("snapshot", cfg.SnapshotPath).
		Str("energy_log", cfg.EnergyLog).
		Msg("Telemetry recorder initialized")

	return &Recorder{
		cfg:   cfg,
		sink:  cfg.Sink,
		store: store,
	}, nil
}

// OnEpochEnd derives two energy readings: one from the run-provided
// directory keyed by the epoch counter, one from the recorder-owned
// log keyed by the global step and mirrored into the snapshot. A
// measurement-unavailable failure skips that reading; I/O failures
// propagate.
func (r *Recorder) OnEpochEnd(ctx context.Context, ev *training.Event) error {
	if err := r.BaseCallback.OnEpochEnd(ctx, ev); err != nil {
		return err
	}

	if ev.Params != nil && ev.Params.EnergyDir != "" {
		reading, err := energy.ReadFrom(ev.Params.EnergyDir)
		switch {
		case err == nil:
			if err := r.emit(ctx, energyFields(reading), int64(ev.State.Epoch)); err != nil {
				return err
			}
		case energy.IsNoMetric(err):
			logger.Debug().Str("path", ev.Params.EnergyDir).Msg("No energy metric for epoch reading, skipping")
		default:
			return err
		}
	}

	reading, err := energy.ReadFrom(r.cfg.EnergyLog)
	if err != nil {
		if energy.IsNoMetric(err) {
			logger.Debug().Str("path", r.cfg.EnergyLog).Msg("No energy metric for step reading, skipping")
			return nil
		}
		return err
	}

	if err := r.emit(ctx, energyFields(reading), ev.State.GlobalStep); err != nil {
		return err
	}

	r.store.AppendEnergy(snapshot.EnergyMetrics{
		CarbonKg:                reading.KgCarbon,
		TotalPower:              reading.TotalPower,
		PowerUsageEffectiveness: reading.PUE,
		ExpLenHrs:               reading.ExpLenHours,
	})

	return r.store.Write()
}

// OnStepEnd emits the global step counter and appends it to the
// snapshot.
func (r *Recorder) OnStepEnd(ctx context.Context, ev *training.Event) error {
	step := ev.State.GlobalStep

	if err := r.emit(ctx, map[string]any{"info/global_step": step}, step); err != nil {
		return err
	}

	r.store.AppendStep(step)

	return r.store.Write()
}

// OnTrainBegin registers the model for watching and records its
// parameter counts remotely and in the snapshot.
func (r *Recorder) OnTrainBegin(ctx context.Context, ev *training.Event) error {
	if err := r.BaseCallback.OnTrainBegin(ctx, ev); err != nil {
		return err
	}

	if ev.Model == nil {
		logger.Warn().Msg("Train begin without a model, skipping model info")
		return nil
	}

	if err := r.sink.Watch(ctx, ev.Model); err != nil {
		return err
	}

	numParameters := ev.Model.NumParameters()
	trainableParameters := ev.Model.NumTrainableParameters()

	fields := map[string]any{
		"model-info/num_parameters":       numParameters,
		"model-info/trainable_parameters": trainableParameters,
	}
	if err := r.emit(ctx, fields, ev.State.GlobalStep); err != nil {
		return err
	}

	r.store.SetModelInfo(numParameters, trainableParameters)

	return r.store.Write()
}

// OnLog inserts perplexity next to a loss value, then forwards the
// payload to the sink keyed by the global step.
func (r *Recorder) OnLog(ctx context.Context, ev *training.Event) error {
	if loss, ok := ev.Logs["loss"]; ok {
		ev.Logs["perplexity"] = math.Exp(loss)
	}

	if err := r.BaseCallback.OnLog(ctx, ev); err != nil {
		return err
	}

	if len(ev.Logs) == 0 {
		return nil
	}

	fields := make(map[string]any, len(ev.Logs))
	for k, v := range ev.Logs {
		fields[k] = v
	}

	return r.emit(ctx, fields, ev.State.GlobalStep)
}

// Snapshot exposes the underlying store, mainly for the final state
// check after a run.
func (r *Recorder) Snapshot() *snapshot.Store {
	return r.store
}

func (r *Recorder) emit(ctx context.Context, fields map[string]any, step int64) error {
	if err := r.sink.Log(ctx, fields, step); err != nil {
		return err
	}

	if r.cfg.History != nil {
		if err := r.cfg.History.Append(ctx, r.cfg.RunName, fields, step); err != nil {
			return err
		}
	}

	return nil
}

func energyFields(reading energy.Reading) map[string]any {
	return map[string]any{
		"energy/carbon_kg":                 reading.KgCarbon,
		"energy/total_power":               reading.TotalPower,
		"energy/power_usage_effectiveness": reading.PUE,
		"energy/exp_len_hrs":               reading.ExpLenHours,
	}
}

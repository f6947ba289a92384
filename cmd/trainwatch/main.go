package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/veldt/trainwatch/internal/config"
	"codeberg.org/veldt/trainwatch/internal/energy"
	"codeberg.org/veldt/trainwatch/internal/errors"
	"codeberg.org/veldt/trainwatch/internal/history"
	"codeberg.org/veldt/trainwatch/internal/logger"
	"codeberg.org/veldt/trainwatch/internal/recorder"
	"codeberg.org/veldt/trainwatch/internal/sink"
	"codeberg.org/veldt/trainwatch/internal/training"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	switch {
	case cfg.Monitor:
		if err := runMonitor(ctx); err != nil {
			logger.Error().Err(err).Msg("error in monitor loop")
			os.Exit(1)
		}
	case cfg.Replay != "":
		if err := runReplay(ctx); err != nil {
			logger.Error().Err(err).Msg("error replaying run events")
			os.Exit(1)
		}
	default:
		logger.Error().Msg("nothing to do: pass --monitor or --replay <events.jsonl>")
		os.Exit(1)
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func runMonitor(ctx context.Context) error {
	sampler, err := energy.NewSampler(energy.SamplerConfig{
		LogPath:  cfg.EnergyLog,
		Interval: time.Duration(cfg.Interval) * time.Second,
	})
	if err != nil {
		return err
	}
	defer sampler.Close()

	return sampler.Run(ctx)
}

func buildSink() (sink.Sink, error) {
	if cfg.SinkURL == "" {
		logger.Info().Msg("No sink URL configured, using no-op sink")
		return sink.Nop(), nil
	}

	return sink.New(sink.Config{
		Project: cfg.Project,
		URL:     cfg.SinkURL,
		Token:   cfg.SinkToken,
		Org:     cfg.SinkOrg,
		Bucket:  cfg.SinkBucket,
	})
}

// replayEvent is one line of a recorded run-events file, the local
// stand-in for the external training loop.
type replayEvent struct {
	Event               string             `json:"event"`
	Epoch               float64            `json:"epoch"`
	Step                int64              `json:"step"`
	Logs                map[string]float64 `json:"logs,omitempty"`
	Metrics             map[string]float64 `json:"metrics,omitempty"`
	ModelName           string             `json:"model_name,omitempty"`
	NumParameters       int64              `json:"num_parameters,omitempty"`
	TrainableParameters int64              `json:"trainable_parameters,omitempty"`
}

type replayModel struct {
	name      string
	total     int64
	trainable int64
}

func (m replayModel) Name() string                  { return m.name }
func (m replayModel) NumParameters() int64          { return m.total }
func (m replayModel) NumTrainableParameters() int64 { return m.trainable }

func runReplay(ctx context.Context) error {
	errFactory := errors.New()

	remote, err := buildSink()
	if err != nil {
		return err
	}
	defer remote.Close()

	var hist *history.Repository
	if cfg.History != "" {
		hist, err = history.NewRepository(cfg.History)
		if err != nil {
			return err
		}
		defer hist.Close()
	}

	rec, err := recorder.New(recorder.Config{
		Project:      cfg.Project,
		EnergyLog:    cfg.EnergyLog,
		SnapshotPath: cfg.Snapshot,
		Sink:         remote,
		History:      hist,
	})
	if err != nil {
		return err
	}

	file, err := os.Open(cfg.Replay)
	if err != nil {
		return errFactory.Wrap(errors.ErrReplayRun, err)
	}
	defer file.Close()

	callbacks := training.Callbacks{rec}
	params := &training.RunParams{
		RunName:   cfg.Project,
		EnergyDir: cfg.EnergyDir,
	}
	state := &training.RunState{}
	control := &training.Control{}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var re replayEvent
		if err := json.Unmarshal(line, &re); err != nil {
			return errFactory.Wrap(errors.ErrReplayRun, err)
		}

		state.Epoch = re.Epoch
		state.GlobalStep = re.Step

		ev := &training.Event{
			Params:  params,
			State:   state,
			Control: control,
			Logs:    re.Logs,
			Metrics: re.Metrics,
		}
		if re.Event == "train_begin" {
			ev.Model = replayModel{
				name:      re.ModelName,
				total:     re.NumParameters,
				trainable: re.TrainableParameters,
			}
		}

		if err := dispatch(ctx, callbacks, re.Event, ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errFactory.Wrap(errors.ErrReplayRun, err)
	}

	logger.Info().Str("snapshot", cfg.Snapshot).Msg("Replay finished")

	return nil
}

func dispatch(ctx context.Context, callbacks training.Callbacks, event string, ev *training.Event) error {
	switch event {
	case "init_end":
		return callbacks.OnInitEnd(ctx, ev)
	case "epoch_begin":
		return callbacks.OnEpochBegin(ctx, ev)
	case "epoch_end":
		return callbacks.OnEpochEnd(ctx, ev)
	case "step_begin":
		return callbacks.OnStepBegin(ctx, ev)
	case "step_end":
		return callbacks.OnStepEnd(ctx, ev)
	case "evaluate":
		return callbacks.OnEvaluate(ctx, ev)
	case "save":
		return callbacks.OnSave(ctx, ev)
	case "prediction_step":
		return callbacks.OnPredictionStep(ctx, ev)
	case "train_begin":
		return callbacks.OnTrainBegin(ctx, ev)
	case "train_end":
		return callbacks.OnTrainEnd(ctx, ev)
	case "log":
		return callbacks.OnLog(ctx, ev)
	default:
		return errors.New().WithData(errors.ErrReplayRun, "unknown event: "+event)
	}
}

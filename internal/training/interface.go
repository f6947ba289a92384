package training

import "context"

// Callback is the lifecycle-observer contract driven by an external
// training loop. The loop invokes hooks strictly sequentially; a hook
// returning an error aborts the run.
type Callback interface {
	OnInitEnd(ctx context.Context, ev *Event) error
	OnEpochBegin(ctx context.Context, ev *Event) error
	OnEpochEnd(ctx context.Context, ev *Event) error
	OnStepBegin(ctx context.Context, ev *Event) error
	OnStepEnd(ctx context.Context, ev *Event) error
	OnEvaluate(ctx context.Context, ev *Event) error
	OnSave(ctx context.Context, ev *Event) error
	OnPredictionStep(ctx context.Context, ev *Event) error
	OnTrainBegin(ctx context.Context, ev *Event) error
	OnTrainEnd(ctx context.Context, ev *Event) error
	OnLog(ctx context.Context, ev *Event) error
}

// Model exposes the parameter accounting of the model under training.
type Model interface {
	Name() string
	NumParameters() int64
	NumTrainableParameters() int64
}

// RunParams is the run configuration handed to every hook.
type RunParams struct {
	RunName   string
	OutputDir string
	EnergyDir string
	NumEpochs int
}

// RunState is the mutable progress state of the run.
type RunState struct {
	Epoch      float64
	GlobalStep int64
	MaxSteps   int64
}

// Control carries the flags an observer may set to influence the loop.
type Control struct {
	ShouldStop     bool
	ShouldSave     bool
	ShouldEvaluate bool
}

// Event is the typed payload delivered to a hook. Logs is only set for
// OnLog and Metrics only for OnEvaluate; Model may be nil for hooks
// where the loop does not pass one.
type Event struct {
	Params  *RunParams
	State   *RunState
	Control *Control
	Model   Model
	Logs    map[string]float64
	Metrics map[string]float64
}

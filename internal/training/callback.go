package training

import "context"

// BaseCallback is the delegate-only Callback implementation. Concrete
// callbacks embed it and override the hooks they add behavior to,
// calling through to the embedded method first so the default
// instrumentation still occurs.
type BaseCallback struct{}

var _ Callback = BaseCallback{}

func (BaseCallback) OnInitEnd(context.Context, *Event) error        { return nil }
func (BaseCallback) OnEpochBegin(context.Context, *Event) error     { return nil }
func (BaseCallback) OnEpochEnd(context.Context, *Event) error       { return nil }
func (BaseCallback) OnStepBegin(context.Context, *Event) error      { return nil }
func (BaseCallback) OnStepEnd(context.Context, *Event) error        { return nil }
func (BaseCallback) OnEvaluate(context.Context, *Event) error       { return nil }
func (BaseCallback) OnSave(context.Context, *Event) error           { return nil }
func (BaseCallback) OnPredictionStep(context.Context, *Event) error { return nil }
func (BaseCallback) OnTrainBegin(context.Context, *Event) error     { return nil }
func (BaseCallback) OnTrainEnd(context.Context, *Event) error       { return nil }
func (BaseCallback) OnLog(context.Context, *Event) error            { return nil }

// Callbacks dispatches one event to an ordered list of callbacks, the
// way the external trainer drives its observers. Dispatch stops at the
// first error.
type Callbacks []Callback

var _ Callback = Callbacks{}

func (cs Callbacks) each(fn func(Callback) error) error {
	for _, c := range cs {
		if err := fn(c); err != nil {
			return err
		}
	}

	return nil
}

func (cs Callbacks) OnInitEnd(ctx context.Context, ev *Event) error {
	return cs.each(func(c Callback) error { return c.OnInitEnd(ctx, ev) })
}

func (cs Callbacks) OnEpochBegin(ctx context.Context, ev *Event) error {
	return cs.each(func(c Callback) error { return c.OnEpochBegin(ctx, ev) })
}

func (cs Callbacks) OnEpochEnd(ctx context.Context, ev *Event) error {
	return cs.each(func(c Callback) error { return c.OnEpochEnd(ctx, ev) })
}

func (cs Callbacks) OnStepBegin(ctx context.Context, ev *Event) error {
	return cs.each(func(c Callback) error { return c.OnStepBegin(ctx, ev) })
}

func (cs Callbacks) OnStepEnd(ctx context.Context, ev *Event) error {
	return cs.each(func(c Callback) error { return c.OnStepEnd(ctx, ev) })
}

func (cs Callbacks) OnEvaluate(ctx context.Context, ev *Event) error {
	return cs.each(func(c Callback) error { return c.OnEvaluate(ctx, ev) })
}

func (cs Callbacks) OnSave(ctx context.Context, ev *Event) error {
	return cs.each(func(c Callback) error { return c.OnSave(ctx, ev) })
}

func (cs Callbacks) OnPredictionStep(ctx context.Context, ev *Event) error {
	return cs.each(func(c Callback) error { return c.OnPredictionStep(ctx, ev) })
}

func (cs Callbacks) OnTrainBegin(ctx context.Context, ev *Event) error {
	return cs.each(func(c Callback) error { return c.OnTrainBegin(ctx, ev) })
}

func (cs Callbacks) OnTrainEnd(ctx context.Context, ev *Event) error {
	return cs.each(func(c Callback) error { return c.OnTrainEnd(ctx, ev) })
}

func (cs Callbacks) OnLog(ctx context.Context, ev *Event) error {
	return cs.each(func(c Callback) error { return c.OnLog(ctx, ev) })
}

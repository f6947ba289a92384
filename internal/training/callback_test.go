package training_test

import (
	"context"
	"testing"

	"codeberg.org/veldt/trainwatch/internal/errors"
	"codeberg.org/veldt/trainwatch/internal/training"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCallback struct {
	training.BaseCallback
	name   string
	trace  *[]string
	failOn string
}

func (c *recordingCallback) OnStepEnd(_ context.Context, _ *training.Event) error {
	*c.trace = append(*c.trace, c.name)
	if c.failOn == "step_end" {
		return errors.New().New(errors.ErrOperationFailed)
	}
	return nil
}

func (c *recordingCallback) OnTrainBegin(_ context.Context, _ *training.Event) error {
	*c.trace = append(*c.trace, c.name+":train_begin")
	return nil
}

func TestCallbacksDispatchOrder(t *testing.T) {
	var trace []string
	cs := training.Callbacks{
		&recordingCallback{name: "first", trace: &trace},
		&recordingCallback{name: "second", trace: &trace},
	}

	ev := &training.Event{State: &training.RunState{GlobalStep: 1}}
	require.NoError(t, cs.OnStepEnd(context.Background(), ev))
	assert.Equal(t, []string{"first", "second"}, trace)
}

func TestCallbacksStopOnError(t *testing.T) {
	var trace []string
	cs := training.Callbacks{
		&recordingCallback{name: "first", trace: &trace, failOn: "step_end"},
		&recordingCallback{name: "second", trace: &trace},
	}

	err := cs.OnStepEnd(context.Background(), &training.Event{})
	require.Error(t, err)
	assert.Equal(t, []string{"first"}, trace, "second callback must not run after an error")
}

func TestBaseCallbackIsNoOp(t *testing.T) {
	var base training.BaseCallback
	ctx := context.Background()
	ev := &training.Event{}

	require.NoError(t, base.OnInitEnd(ctx, ev))
	require.NoError(t, base.OnEpochBegin(ctx, ev))
	require.NoError(t, base.OnEpochEnd(ctx, ev))
	require.NoError(t, base.OnStepBegin(ctx, ev))
	require.NoError(t, base.OnStepEnd(ctx, ev))
	require.NoError(t, base.OnEvaluate(ctx, ev))
	require.NoError(t, base.OnSave(ctx, ev))
	require.NoError(t, base.OnPredictionStep(ctx, ev))
	require.NoError(t, base.OnTrainBegin(ctx, ev))
	require.NoError(t, base.OnTrainEnd(ctx, ev))
	require.NoError(t, base.OnLog(ctx, ev))
}

package stage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/boardflow/core"
)

type fakeStage struct {
	name    string
	result  *core.StageResult
	err     error
	delay   time.Duration
	blockOn chan struct{}
}

func (f *fakeStage) Name() string { return f.name }

func (f *fakeStage) Analyze(ctx context.Context, _ *core.StageContext) (*core.StageResult, error) {
	if f.blockOn != nil {
		select {
		case <-f.blockOn:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func TestExecuteStampsHandoff(t *testing.T) {
	exec := NewExecutor()
	s := &fakeStage{
		name: "CFO",
		result: &core.StageResult{
			KPIs:    []core.KPI{{Name: "Gross Margin %", Value: 21}},
			Handoff: &core.Handoff{Reason: "test"},
		},
	}
	sc := &core.StageContext{SessionID: "s-1", Successors: []string{"CMO"}}

	res, err := exec.Execute(context.Background(), s, sc)
	require.NoError(t, err)
	require.NotNil(t, res.Handoff)
	assert.Equal(t, "CFO", res.Handoff.From)
	assert.Equal(t, "CMO", res.Handoff.To)
	assert.False(t, res.Handoff.Timestamp.IsZero())
	assert.Equal(t, res.KPIs, res.Handoff.KPISummary)
}

func TestExecuteWrapsStageError(t *testing.T) {
	exec := NewExecutor()
	cause := errors.New("views unreachable")
	s := &fakeStage{name: "CIO", err: cause}

	_, err := exec.Execute(context.Background(), s, &core.StageContext{})
	require.Error(t, err)

	var stageErr *core.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "CIO", stageErr.Stage)
	assert.False(t, stageErr.Timeout)
	assert.True(t, errors.Is(err, cause))
}

func TestExecuteTimeout(t *testing.T) {
	exec := NewExecutor(func(o *ExecutorOptions) { o.Timeout = 20 * time.Millisecond })
	s := &fakeStage{name: "CMO", blockOn: make(chan struct{})}

	start := time.Now()
	_, err := exec.Execute(context.Background(), s, &core.StageContext{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var stageErr *core.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.True(t, stageErr.Timeout)
	assert.Equal(t, "CMO", stageErr.Stage)
}

func TestExecuteNilResultIsError(t *testing.T) {
	exec := NewExecutor()
	s := &fakeStage{name: "CEO"}

	_, err := exec.Execute(context.Background(), s, &core.StageContext{})
	var stageErr *core.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.False(t, stageErr.Timeout)
}

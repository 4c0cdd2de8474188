package stage

import (
	"context"
	"errors"
	"time"

	"github.com/retailops/boardflow/core"
	"github.com/retailops/boardflow/logging"
)

// DefaultTimeout bounds a single stage invocation.
const DefaultTimeout = 30 * time.Second

// ExecutorOptions configures the executor.
type ExecutorOptions struct {
	Timeout time.Duration
	Logger  logging.Logger
}

// Executor runs one stage invocation under a deadline and normalizes every
// failure into a *core.StageError. It is safe for concurrent use.
type Executor struct {
	timeout time.Duration
	logger  logging.Logger
}

// NewExecutor creates an executor with the default timeout.
func NewExecutor(optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		Timeout: DefaultTimeout,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{timeout: opts.Timeout, logger: opts.Logger}
}

type stageOutcome struct {
	result *core.StageResult
	err    error
}

// Execute runs the stage with the configured timeout. On success the result's
// handoff carries the executor-stamped From, To and Timestamp fields. On any
// failure the returned error is a *core.StageError; Timeout is set when the
// deadline expired before the stage returned.
func (e *Executor) Execute(ctx context.Context, s core.Stage, sc *core.StageContext) (*core.StageResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan stageOutcome, 1)
	go func() {
		res, err := s.Analyze(runCtx, sc)
		done <- stageOutcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			timeout := errors.Is(out.err, context.DeadlineExceeded)
			e.logger.Warn("stage failed", "stage", s.Name(), "error", out.err, "timeout", timeout)
			return nil, &core.StageError{Stage: s.Name(), Err: out.err, Timeout: timeout}
		}
		if out.result == nil {
			return nil, &core.StageError{Stage: s.Name(), Err: errors.New("stage returned no result")}
		}
		e.stampHandoff(s.Name(), out.result, sc)
		return out.result, nil
	case <-runCtx.Done():
		err := runCtx.Err()
		timeout := errors.Is(err, context.DeadlineExceeded)
		e.logger.Warn("stage deadline", "stage", s.Name(), "timeout", timeout)
		return nil, &core.StageError{Stage: s.Name(), Err: err, Timeout: timeout}
	}
}

// stampHandoff fills the routing fields the stage itself cannot know.
func (e *Executor) stampHandoff(name string, res *core.StageResult, sc *core.StageContext) {
	if res.Handoff == nil {
		res.Handoff = &core.Handoff{}
	}
	h := res.Handoff
	h.From = name
	if h.To == "" && len(sc.Successors) > 0 {
		h.To = sc.Successors[0]
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now().UTC()
	}
	if len(h.KPISummary) == 0 {
		h.KPISummary = res.KPIs
	}
	if len(h.Evidence) == 0 {
		h.Evidence = res.Evidence
	}
}

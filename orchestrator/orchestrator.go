// Package orchestrator drives a session through its flow graph: the
// confidence gate first, then DAG-ordered stage execution with incremental
// constraint checking, and finally conflict detection plus evaluation at the
// join node. A single goroutine owns all session mutation and event emission,
// so the published stream is causally ordered without further locking.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/retailops/boardflow/confidence"
	"github.com/retailops/boardflow/conflict"
	"github.com/retailops/boardflow/constraint"
	"github.com/retailops/boardflow/core"
	"github.com/retailops/boardflow/evaluate"
	"github.com/retailops/boardflow/flowspec"
	"github.com/retailops/boardflow/logging"
	"github.com/retailops/boardflow/stage"
	"github.com/retailops/boardflow/stream"
)

// ErrMalformedFlow marks an orchestration fault caused by a flow spec that
// failed validation. It aborts the session; domain-level stage failures never
// surface through it.
var ErrMalformedFlow = errors.New("malformed flow spec")

// Options configures an orchestrator.
type Options struct {
	Executor  *stage.Executor
	Evaluator *evaluate.Evaluator
	Store     core.SessionStore
	Logger    logging.Logger
	BusBuffer int

	// OnEventDropped observes events lost to lagging subscribers.
	OnEventDropped func(ev core.Event)
}

// Orchestrator runs sessions. It is safe for concurrent use; every session
// gets its own event bus and run goroutine.
type Orchestrator struct {
	registry *flowspec.Registry
	stages   map[string]core.Stage
	gate     *confidence.Gate

	executor  *stage.Executor
	engine    *constraint.Engine
	detector  *conflict.Detector
	evaluator *evaluate.Evaluator
	store     core.SessionStore
	logger    logging.Logger
	busBuffer int
	onDrop    func(ev core.Event)
}

// New constructs an orchestrator over a flow registry, a stage set keyed by
// node name, and a confidence gate.
func New(registry *flowspec.Registry, stages map[string]core.Stage, gate *confidence.Gate, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Logger:    logging.NoOpLogger{},
		BusBuffer: stream.DefaultBuffer,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Executor == nil {
		opts.Executor = stage.NewExecutor()
	}
	if opts.Evaluator == nil {
		opts.Evaluator = evaluate.New()
	}

	return &Orchestrator{
		registry:  registry,
		stages:    stages,
		gate:      gate,
		executor:  opts.Executor,
		engine:    constraint.NewEngine(),
		detector:  conflict.NewDetector(),
		evaluator: opts.Evaluator,
		store:     opts.Store,
		logger:    opts.Logger,
		busBuffer: opts.BusBuffer,
		onDrop:    opts.OnEventDropped,
	}
}

// RunParams identifies what to run and over which period.
type RunParams struct {
	FlowID      string
	Mode        string
	PeriodStart string
	PeriodEnd   string
}

// Run is the handle to one in-flight session.
type Run struct {
	Session *core.Session

	bus  *stream.Bus
	done chan struct{}
}

// Events subscribes to the session's live event stream. The channel closes
// when the session reaches its terminal event; cancel detaches early.
func (r *Run) Events() (<-chan core.Event, func()) { return r.bus.Subscribe() }

// Done is closed once the session is terminal.
func (r *Run) Done() <-chan struct{} { return r.done }

// Start creates a session for the flow and runs it asynchronously. The
// returned handle outlives any individual subscriber; a disconnecting
// observer never interrupts the session.
func (o *Orchestrator) Start(ctx context.Context, params RunParams) (*Run, error) {
	spec, err := o.registry.Resolve(params.FlowID)
	if err != nil {
		return nil, err
	}
	for _, node := range spec.StageNodes() {
		if _, ok := o.stages[node]; !ok {
			return nil, fmt.Errorf("%w: no stage registered for node %s", ErrMalformedFlow, node)
		}
	}

	sess := core.NewSession(spec.ID, params.Mode, spec.Nodes)
	sess.PeriodStart = params.PeriodStart
	sess.PeriodEnd = params.PeriodEnd
	if o.store != nil {
		if err := o.store.Save(sess); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}

	run := &Run{
		Session: sess,
		bus: stream.NewBus(func(bo *stream.Options) {
			bo.Buffer = o.busBuffer
			bo.OnDrop = o.onDrop
		}),
		done: make(chan struct{}),
	}

	go o.run(ctx, run, spec)
	return run, nil
}

// RunSync runs the flow to completion and returns the terminal session state.
func (o *Orchestrator) RunSync(ctx context.Context, params RunParams) (*core.Session, error) {
	run, err := o.Start(ctx, params)
	if err != nil {
		return nil, err
	}
	<-run.Done()
	return run.Session.Clone(), nil
}

// runState is the single-writer loop's working memory for one session.
type runState struct {
	spec  *flowspec.FlowSpec
	preds map[string][]string
	succs map[string][]string

	started  map[string]bool
	terminal map[string]bool
	failed   []string

	metrics *core.MetricSet
	checks  map[string]core.ConstraintCheck
	ids     *core.ConflictIDGen

	results chan nodeResult
	running int
}

type nodeResult struct {
	node   string
	result *core.StageResult
	err    error
}

func (o *Orchestrator) run(ctx context.Context, r *Run, spec *flowspec.FlowSpec) {
	defer close(r.done)
	defer r.bus.Close()

	sess := r.Session
	logger := logging.WithSession(o.logger, sess.ID, sess.FlowID)

	o.emit(r, core.NewEvent(sess.ID, core.EventSessionStart, core.SessionStartPayload{
		SessionID: sess.ID,
		FlowID:    spec.ID,
		Flow:      spec.Nodes,
	}))

	sess.SetStatus(core.SessionConfidenceCheck)
	report := o.gate.Assess(ctx, sess.PeriodStart, sess.PeriodEnd)
	sess.SetConfidence(report)
	o.emit(r, core.NewEvent(sess.ID, core.EventConfidence, report))

	if !report.CanProceed {
		logger.Warn("session blocked by confidence gate", "score", report.Score, "level", report.Level)
		o.finish(r, core.SessionBlocked)
		return
	}

	sess.SetStatus(core.SessionRunning)
	logger.Info("session running", "nodes", len(spec.Nodes))

	st := &runState{
		spec:     spec,
		preds:    spec.Predecessors(),
		succs:    spec.Successors(),
		started:  map[string]bool{},
		terminal: map[string]bool{},
		metrics:  core.NewMetricSet(),
		checks:   map[string]core.ConstraintCheck{},
		ids:      &core.ConflictIDGen{},
		results:  make(chan nodeResult, len(spec.Nodes)),
	}

	for {
		if o.launchReady(ctx, r, st) {
			o.finish(r, core.SessionCompleted)
			return
		}
		if st.running == 0 {
			// No node running and the join is not ready: the graph cannot
			// make progress, which validation should have precluded.
			logger.Error("orchestration fault: no runnable node", "flow", spec.ID)
			o.finish(r, core.SessionAborted)
			return
		}

		select {
		case out := <-st.results:
			st.running--
			st.terminal[out.node] = true
			if out.err != nil {
				o.nodeFailed(r, st, out.node, out.err)
			} else {
				o.nodeCompleted(r, st, out.node, out.result)
			}
		case <-ctx.Done():
			logger.Warn("session canceled", "error", ctx.Err())
			o.failInFlight(r, st, ctx.Err())
			o.finish(r, core.SessionAborted)
			return
		}
	}
}

// launchReady activates every node whose predecessors are all terminal.
// Nodes behind a failed predecessor are activated and immediately failed so
// the stream accounts for the whole graph. Returns true once the join has
// run, which is the session's successful end.
func (o *Orchestrator) launchReady(ctx context.Context, r *Run, st *runState) bool {
	for {
		progressed := false
		for _, node := range st.spec.Nodes {
			if st.started[node] || !o.ready(node, st) {
				continue
			}
			st.started[node] = true
			progressed = true

			if node == st.spec.Join {
				o.runJoin(r, st)
				return true
			}
			if failed := o.failedPred(node, st); failed != "" {
				o.skipNode(r, st, node, failed)
				continue
			}
			o.launchNode(ctx, r, st, node)
		}
		if !progressed {
			return false
		}
	}
}

func (o *Orchestrator) ready(node string, st *runState) bool {
	for _, p := range st.preds[node] {
		if !st.terminal[p] {
			return false
		}
	}
	return true
}

func (o *Orchestrator) failedPred(node string, st *runState) string {
	for _, p := range st.preds[node] {
		for _, f := range st.failed {
			if f == p {
				return p
			}
		}
	}
	return ""
}

// launchNode starts one stage invocation in its own goroutine. Only the
// emission of agent_start happens here; everything else is reported back to
// the single-writer loop through the results channel.
func (o *Orchestrator) launchNode(ctx context.Context, r *Run, st *runState, node string) {
	sess := r.Session
	startedAt := sess.MarkNodeActive(node)
	o.emit(r, core.NewEvent(sess.ID, core.EventAgentStart, core.AgentStartPayload{
		Agent:     node,
		StartedAt: startedAt,
	}))

	sc := o.stageContext(sess, st, node)
	impl := o.stages[node]
	st.running++

	go func() {
		res, err := o.executor.Execute(ctx, impl, sc)
		st.results <- nodeResult{node: node, result: res, err: err}
	}()
}

// skipNode gives a node behind a failed predecessor its full lifecycle
// without invoking the stage.
func (o *Orchestrator) skipNode(r *Run, st *runState, node, failedPred string) {
	sess := r.Session
	startedAt := sess.MarkNodeActive(node)
	o.emit(r, core.NewEvent(sess.ID, core.EventAgentStart, core.AgentStartPayload{
		Agent:     node,
		StartedAt: startedAt,
	}))

	err := fmt.Errorf("%w: %s", core.ErrUpstreamFailed, failedPred)
	st.terminal[node] = true
	st.failed = append(st.failed, node)
	sess.MarkNodeDone(node, core.NodeFailed, err.Error())
	o.emit(r, core.NewEvent(sess.ID, core.EventAgentError, core.AgentErrorPayload{
		Agent: node,
		Error: err.Error(),
	}))
}

func (o *Orchestrator) stageContext(sess *core.Session, st *runState, node string) *core.StageContext {
	clone := sess.Clone()
	var addressed []*core.Handoff
	for _, h := range clone.Handoffs {
		if h.To == node || h.To == "" {
			addressed = append(addressed, h)
		}
	}
	return &core.StageContext{
		SessionID:    sess.ID,
		FlowID:       sess.FlowID,
		PeriodStart:  sess.PeriodStart,
		PeriodEnd:    sess.PeriodEnd,
		Handoffs:     addressed,
		UpstreamKPIs: clone.StageKPIs,
		Successors:   st.succs[node],
	}
}

func (o *Orchestrator) nodeCompleted(r *Run, st *runState, node string, res *core.StageResult) {
	sess := r.Session
	endedAt := sess.MarkNodeDone(node, core.NodeCompleted, "")
	sess.AddStageKPIs(node, res.KPIs)
	sess.AddStageRecommendations(node, res.Recommendations)

	o.emit(r, core.NewEvent(sess.ID, core.EventAgentComplete, core.AgentCompletePayload{
		Agent:    node,
		EndedAt:  endedAt,
		KPIs:     res.KPIs,
		Insights: res.Insights,
	}))

	if res.Handoff != nil {
		sess.AddHandoff(res.Handoff)
		o.emit(r, core.NewEvent(sess.ID, core.EventHandoff, res.Handoff))
		st.metrics.AbsorbFlags(res.Handoff.Flags)
	}
	st.metrics.Absorb(res.KPIs)

	// Incremental constraint pass over everything accumulated so far.
	result := o.engine.Evaluate(st.metrics, sess.ConstraintsSnapshot(), sess.ConflictsSnapshot(), st.ids)
	for name, check := range result.Checks {
		st.checks[name] = check
		sess.SetConstraintStatus(name, check.Status)
	}
	if len(result.Conflicts) > 0 {
		sess.AddConflicts(result.Conflicts...)
	}
}

func (o *Orchestrator) nodeFailed(r *Run, st *runState, node string, err error) {
	sess := r.Session
	st.failed = append(st.failed, node)
	sess.MarkNodeDone(node, core.NodeFailed, err.Error())

	payload := core.AgentErrorPayload{Agent: node, Error: err.Error()}
	var stageErr *core.StageError
	if errors.As(err, &stageErr) {
		payload.Timeout = stageErr.Timeout
	}
	o.emit(r, core.NewEvent(sess.ID, core.EventAgentError, payload))
}

// runJoin executes the evaluator node: soft-conflict detection over all
// accumulated outputs, then the weighted evaluation. The join always
// completes; with failed predecessors it scores the partial data.
func (o *Orchestrator) runJoin(r *Run, st *runState) {
	sess := r.Session
	join := st.spec.Join

	startedAt := sess.MarkNodeActive(join)
	o.emit(r, core.NewEvent(sess.ID, core.EventAgentStart, core.AgentStartPayload{
		Agent:     join,
		StartedAt: startedAt,
	}))

	clone := sess.Clone()
	soft := o.detector.Detect(clone.Handoffs, clone.StageKPIs, st.ids)
	if len(soft) > 0 {
		sess.AddConflicts(soft...)
	}

	eval := o.evaluator.Evaluate(evaluate.Input{
		SessionID:            sess.ID,
		StageKPIs:            clone.StageKPIs,
		Handoffs:             clone.Handoffs,
		StageRecommendations: clone.StageRecommendations,
		ConstraintChecks:     st.checks,
		Conflicts:            sess.ConflictsSnapshot(),
		Confidence:           clone.Confidence,
		FailedStages:         append([]string(nil), st.failed...),
	})
	sess.SetEvaluation(eval)

	o.emit(r, core.NewEvent(sess.ID, core.EventEvaluation, eval))

	endedAt := sess.MarkNodeDone(join, core.NodeCompleted, "")
	o.emit(r, core.NewEvent(sess.ID, core.EventAgentComplete, core.AgentCompletePayload{
		Agent:    join,
		EndedAt:  endedAt,
		Insights: eval.Reasons,
	}))
}

// failInFlight gives every started but unfinished node a terminal transition
// and agent_error on cancellation. No node may be left active once the
// session's terminal event is out.
func (o *Orchestrator) failInFlight(r *Run, st *runState, cause error) {
	sess := r.Session
	for _, node := range st.spec.Nodes {
		if !st.started[node] || st.terminal[node] {
			continue
		}
		st.terminal[node] = true
		st.failed = append(st.failed, node)
		sess.MarkNodeDone(node, core.NodeFailed, cause.Error())
		o.emit(r, core.NewEvent(sess.ID, core.EventAgentError, core.AgentErrorPayload{
			Agent: node,
			Error: cause.Error(),
		}))
	}
}

// finish stamps the terminal status and emits the terminal event. Every
// session path ends here; the stream never ends silently.
func (o *Orchestrator) finish(r *Run, status core.SessionStatus) {
	sess := r.Session
	endedAt := sess.End(status)
	o.emit(r, core.NewEvent(sess.ID, core.EventSessionComplete, core.SessionCompletePayload{
		SessionID:         sess.ID,
		EndedAt:           endedAt,
		Status:            status,
		ConstraintsStatus: sess.ConstraintsSnapshot(),
	}))
}

// emit records the event on the session history and publishes it to
// subscribers. Called only from the session's run goroutine.
func (o *Orchestrator) emit(r *Run, ev core.Event) {
	r.Session.AddEvent(ev)
	r.bus.Publish(ev)
}

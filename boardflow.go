// Package boardflow provides a high-level façade over the flow registry,
// confidence gate and orchestrator, enabling rapid construction of boardroom
// analysis pipelines. Most applications interact with this package by:
//  1. Creating a Boardflow via New() with a metrics source and data check
//  2. Optionally registering extra flows or replacing individual stages
//  3. Running flows asynchronously (Run) or synchronously (RunSync)
//
// The façade delegates execution to orchestrator.Orchestrator while keeping
// setup ergonomics concise. All defaults are safe for local development;
// production deployments typically supply a durable session store and a
// structured logger.
package boardflow

import (
	"context"
	"time"

	"github.com/retailops/boardflow/confidence"
	"github.com/retailops/boardflow/core"
	"github.com/retailops/boardflow/evaluate"
	"github.com/retailops/boardflow/flowspec"
	"github.com/retailops/boardflow/logging"
	"github.com/retailops/boardflow/orchestrator"
	"github.com/retailops/boardflow/session"
	"github.com/retailops/boardflow/stage"
)

// Version is the module version, overridable at build time via -ldflags.
var Version = "dev"

// Options configures a Boardflow instance.
type Options struct {
	// Registry holds the flow catalog (defaults to the built-in flows).
	Registry *flowspec.Registry

	// Stages maps node names to implementations (defaults to the rule-based
	// role stages over Source).
	Stages map[string]core.Stage

	// Source backs the default role stages.
	Source stage.MetricsSource

	// Check backs the confidence gate.
	Check confidence.DataCheck

	// StageTimeout bounds each stage invocation.
	StageTimeout time.Duration

	// PenalizeFailures lowers the data-confidence dimension per failed stage.
	PenalizeFailures bool

	// Store persists sessions (defaults to in-memory).
	Store core.SessionStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// OnEventDropped observes events lost to lagging stream subscribers.
	OnEventDropped func(ev core.Event)
}

// Boardflow is the high-level façade aggregating registry, gate and
// orchestrator.
type Boardflow struct {
	registry *flowspec.Registry
	gate     *confidence.Gate
	orch     *orchestrator.Orchestrator
	store    core.SessionStore
}

// New creates a Boardflow instance with optional overrides. Unset services
// are initialized with in-memory defaults.
func New(optFns ...func(o *Options)) *Boardflow {
	opts := Options{
		Registry:         flowspec.NewRegistry(),
		Source:           &stage.StaticSource{Data: &stage.Snapshot{}},
		Check:            confidence.StaticCheck{},
		StageTimeout:     stage.DefaultTimeout,
		PenalizeFailures: true,
		Store:            session.NewInMemoryStore(),
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Stages == nil {
		opts.Stages = stage.RoleStages(opts.Source)
	}

	gate := confidence.NewGate(opts.Check, func(o *confidence.Options) {
		o.Logger = opts.Logger
	})
	orch := orchestrator.New(opts.Registry, opts.Stages, gate, func(o *orchestrator.Options) {
		o.Executor = stage.NewExecutor(func(eo *stage.ExecutorOptions) {
			eo.Timeout = opts.StageTimeout
			eo.Logger = opts.Logger
		})
		o.Evaluator = evaluate.New(func(eo *evaluate.Options) {
			eo.PenalizeFailures = opts.PenalizeFailures
		})
		o.Store = opts.Store
		o.Logger = opts.Logger
		o.OnEventDropped = opts.OnEventDropped
	})

	return &Boardflow{
		registry: opts.Registry,
		gate:     gate,
		orch:     orch,
		store:    opts.Store,
	}
}

// Registry returns the flow catalog.
func (b *Boardflow) Registry() *flowspec.Registry { return b.registry }

// Gate returns the confidence gate.
func (b *Boardflow) Gate() *confidence.Gate { return b.gate }

// Orchestrator returns the underlying orchestrator.
func (b *Boardflow) Orchestrator() *orchestrator.Orchestrator { return b.orch }

// Store returns the session store.
func (b *Boardflow) Store() core.SessionStore { return b.store }

// Run starts a session asynchronously and returns its handle.
func (b *Boardflow) Run(ctx context.Context, params orchestrator.RunParams) (*orchestrator.Run, error) {
	return b.orch.Start(ctx, params)
}

// RunSync runs a flow to completion and returns the terminal session state.
func (b *Boardflow) RunSync(ctx context.Context, params orchestrator.RunParams) (*core.Session, error) {
	return b.orch.RunSync(ctx, params)
}

// Package server exposes the flow engine over HTTP: a flow catalog, an SSE
// stream of live session events, a synchronous run endpoint, the confidence
// gate, and health plus prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/retailops/boardflow/confidence"
	"github.com/retailops/boardflow/core"
	"github.com/retailops/boardflow/flowspec"
	"github.com/retailops/boardflow/logging"
	"github.com/retailops/boardflow/orchestrator"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// Options configures the server.
type Options struct {
	Addr   string
	Logger logging.Logger

	// ShutdownTimeout bounds graceful shutdown on context cancellation.
	ShutdownTimeout time.Duration
}

// Server wires the orchestrator, registry and gate into an echo application.
type Server struct {
	echo     *echo.Echo
	orch     *orchestrator.Orchestrator
	registry *flowspec.Registry
	gate     *confidence.Gate
	store    core.SessionStore
	logger   logging.Logger

	addr            string
	shutdownTimeout time.Duration
}

// New creates a server.
func New(orch *orchestrator.Orchestrator, registry *flowspec.Registry, gate *confidence.Gate, store core.SessionStore, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:            DefaultAddr,
		Logger:          logging.NoOpLogger{},
		ShutdownTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		echo:            e,
		orch:            orch,
		registry:        registry,
		gate:            gate,
		store:           store,
		logger:          opts.Logger,
		addr:            opts.Addr,
		shutdownTimeout: opts.ShutdownTimeout,
	}
	s.registerRoutes()
	return s
}

// Echo exposes the underlying echo instance for extra routes and tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.GET("/flows", s.handleListFlows)
	api.GET("/flows/stream/:flow_id", s.handleStream)
	api.POST("/flows/run", s.handleRun)
	api.GET("/confidence", s.handleConfidence)
	api.GET("/sessions/:session_id", s.handleGetSession)
}

// Start runs the server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("http server listening", "addr", s.addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// FlowSummary is one catalog entry in GET /api/flows.
type FlowSummary struct {
	FlowID      string   `json:"flow_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Stages      []string `json:"stages"`
	Join        string   `json:"join"`
}

func (s *Server) handleListFlows(c echo.Context) error {
	specs := s.registry.List()
	out := make([]FlowSummary, 0, len(specs))
	for _, spec := range specs {
		out = append(out, FlowSummary{
			FlowID:      spec.ID,
			Name:        spec.Name,
			Description: spec.Description,
			Stages:      spec.Nodes,
			Join:        spec.Join,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"flows": out})
}

// handleStream starts a session and streams its events as SSE frames. The
// session is detached from the request context: a disconnecting client stops
// the stream, never the session.
func (s *Server) handleStream(c echo.Context) error {
	flowID := c.Param("flow_id")
	run, err := s.orch.Start(context.Background(), orchestrator.RunParams{
		FlowID:      flowID,
		Mode:        c.QueryParam("mode"),
		PeriodStart: c.QueryParam("period_start"),
		PeriodEnd:   c.QueryParam("period_end"),
	})
	if err != nil {
		if errors.Is(err, flowspec.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	events, cancel := run.Events()
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			observeEvent(ev)
			if err := writeSSE(res, ev); err != nil {
				s.logger.Debug("sse client gone", "session_id", ev.SessionID, "error", err)
				return nil
			}
		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// writeSSE frames one event as `event: <type>` + `data: <json>`.
func writeSSE(res *echo.Response, ev core.Event) error {
	data, err := ev.PayloadJSON()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}

// RunRequest is the request body for POST /api/flows/run.
type RunRequest struct {
	FlowID      string `json:"flow_id"`
	Mode        string `json:"mode,omitempty"`
	PeriodStart string `json:"period_start,omitempty"`
	PeriodEnd   string `json:"period_end,omitempty"`
}

// RunResponse is the response body for POST /api/flows/run.
type RunResponse struct {
	Session    *core.Session    `json:"session"`
	Evaluation *core.Evaluation `json:"evaluation,omitempty"`
}

func (s *Server) handleRun(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.FlowID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "flow_id is required")
	}

	sess, err := s.orch.RunSync(c.Request().Context(), orchestrator.RunParams{
		FlowID:      req.FlowID,
		Mode:        req.Mode,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
	})
	if err != nil {
		if errors.Is(err, flowspec.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, ev := range sess.Events {
		observeEvent(ev)
	}

	return c.JSON(http.StatusOK, RunResponse{Session: sess, Evaluation: sess.Evaluation})
}

func (s *Server) handleConfidence(c echo.Context) error {
	report := s.gate.Assess(c.Request().Context(), c.QueryParam("period_start"), c.QueryParam("period_end"))
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleGetSession(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session store not configured")
	}
	sess, err := s.store.Get(c.Param("session_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/boardflow/confidence"
	"github.com/retailops/boardflow/core"
	"github.com/retailops/boardflow/flowspec"
	"github.com/retailops/boardflow/orchestrator"
	"github.com/retailops/boardflow/session"
)

type fixedStage struct{ name string }

func (s fixedStage) Name() string { return s.name }

func (s fixedStage) Analyze(context.Context, *core.StageContext) (*core.StageResult, error) {
	return &core.StageResult{
		KPIs:       []core.KPI{{Name: s.name + " Index", Value: 1, Unit: "pts"}},
		Confidence: core.ConfidenceHigh,
		Handoff:    &core.Handoff{Reason: s.name + " done", Priority: core.SeverityMedium},
	}, nil
}

func newTestServer() *Server {
	registry := flowspec.NewRegistry()
	gate := confidence.NewGate(confidence.StaticCheck{Factors: confidence.Factors{
		Freshness: 95, HealthChecks: 95, DataQuality: 95, Coverage: 95, Integrity: 95,
	}})
	store := session.NewInMemoryStore()
	stages := map[string]core.Stage{
		flowspec.NodeCEO: fixedStage{flowspec.NodeCEO},
		flowspec.NodeCFO: fixedStage{flowspec.NodeCFO},
		flowspec.NodeCMO: fixedStage{flowspec.NodeCMO},
		flowspec.NodeCIO: fixedStage{flowspec.NodeCIO},
	}
	orch := orchestrator.New(registry, stages, gate, func(o *orchestrator.Options) {
		o.Store = store
	})
	return New(orch, registry, gate, store)
}

func doRequest(s *Server, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(newTestServer(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListFlows(t *testing.T) {
	rec := doRequest(newTestServer(), http.MethodGet, "/api/flows", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Flows []FlowSummary `json:"flows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	var ids []string
	for _, f := range body.Flows {
		ids = append(ids, f.FlowID)
	}
	assert.Equal(t, []string{"kpi_review", "root_cause", "scenario", "trade_off"}, ids)
	assert.Equal(t, flowspec.NodeEvaluator, body.Flows[0].Join)
}

func TestRunFlow(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(srv, http.MethodPost, "/api/flows/run",
		`{"flow_id":"scenario","period_start":"2025-01-01","period_end":"2025-03-31"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Session)
	assert.Equal(t, core.SessionCompleted, body.Session.Status)
	require.NotNil(t, body.Evaluation)
	assert.False(t, body.Evaluation.HasBlockingConflicts)

	// The finished session is retrievable by ID.
	rec = doRequest(srv, http.MethodGet, "/api/sessions/"+body.Session.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunFlowValidation(t *testing.T) {
	srv := newTestServer()

	rec := doRequest(srv, http.MethodPost, "/api/flows/run", `{"flow_id":"board_retreat"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/flows/run", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamFramesEvents(t *testing.T) {
	rec := doRequest(newTestServer(), http.MethodGet, "/api/flows/stream/scenario", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: session_start\n")
	assert.Contains(t, body, "event: confidence\n")
	assert.Contains(t, body, "event: evaluation\n")
	assert.Contains(t, body, "event: session_complete\n")
}

func TestStreamUnknownFlow(t *testing.T) {
	rec := doRequest(newTestServer(), http.MethodGet, "/api/flows/stream/board_retreat", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfidenceEndpoint(t *testing.T) {
	rec := doRequest(newTestServer(), http.MethodGet, "/api/confidence", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report core.ConfidenceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.CanProceed)
	assert.Equal(t, core.ConfidenceLevelHigh, report.Level)
}

func TestGetSessionUnknown(t *testing.T) {
	rec := doRequest(newTestServer(), http.MethodGet, "/api/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

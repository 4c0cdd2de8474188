package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/boardflow/core"
	"github.com/retailops/boardflow/model"
)

const validReply = `{
  "kpis": [{"name": "Gross Margin %", "value": 21.5, "unit": "%", "trend": "DOWN", "window": "Q1"}],
  "insights": ["Margin compressing under promo load"],
  "recommendations": [{"action": "Tighten promo depth", "priority": "High"}],
  "confidence": "Medium",
  "handoff": {"reason": "margin watch", "priority": "High"}
}`

func TestModelStageParsesReply(t *testing.T) {
	m := &model.MockModel{Responses: []string{validReply}}
	s := NewModelStage("CFO", "You are the CFO.", m)

	res, err := s.Analyze(context.Background(), &core.StageContext{PeriodStart: "2025-01-01", PeriodEnd: "2025-03-31"})
	require.NoError(t, err)

	require.Len(t, res.KPIs, 1)
	assert.Equal(t, "Gross Margin %", res.KPIs[0].Name)
	assert.Equal(t, core.TrendDown, res.KPIs[0].Trend)
	assert.Equal(t, core.ConfidenceMedium, res.Confidence)
	require.NotNil(t, res.Handoff)
	assert.Equal(t, core.SeverityHigh, res.Handoff.Priority)
}

func TestModelStageStripsCodeFences(t *testing.T) {
	m := &model.MockModel{Responses: []string{"```json\n" + validReply + "\n```"}}
	s := NewModelStage("CFO", "You are the CFO.", m)

	res, err := s.Analyze(context.Background(), &core.StageContext{})
	require.NoError(t, err)
	assert.Len(t, res.KPIs, 1)
}

func TestModelStagePromptCarriesUpstreamContext(t *testing.T) {
	m := &model.MockModel{Responses: []string{validReply}}
	s := NewModelStage("CMO", "You are the CMO.", m)

	sc := &core.StageContext{
		Handoffs: []*core.Handoff{{From: "CFO", To: "CMO", Reason: "margin watch"}},
		UpstreamKPIs: map[string][]core.KPI{
			"CFO": {{Name: "Gross Margin %", Value: 19.5}},
		},
	}
	_, err := s.Analyze(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, m.Requests, 1)
	assert.Contains(t, m.Requests[0].Prompt, "margin watch")
	assert.Contains(t, m.Requests[0].Prompt, "Gross Margin %")
	assert.Contains(t, m.Requests[0].System, "You are the CMO.")
}

func TestModelStageRejectsMalformedReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose", "The margin looks fine to me."},
		{"empty kpis", `{"kpis": [], "insights": ["x"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &model.MockModel{Responses: []string{tt.reply}}
			s := NewModelStage("CFO", "persona", m)

			_, err := s.Analyze(context.Background(), &core.StageContext{})
			assert.ErrorContains(t, err, "malformed stage output")
		})
	}
}

func TestModelStagePropagatesModelError(t *testing.T) {
	m := &model.MockModel{Errs: []error{errors.New("rate limited")}}
	s := NewModelStage("CFO", "persona", m)

	_, err := s.Analyze(context.Background(), &core.StageContext{})
	assert.ErrorContains(t, err, "rate limited")
}

package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/retailops/boardflow/core"
	"github.com/retailops/boardflow/model"
)

// ModelStageOptions configures a model-backed stage.
type ModelStageOptions struct {
	Temperature float64
	MaxTokens   int64
}

// ModelStage delegates analysis to a chat completion model. The model must
// answer with a single JSON object matching the stage output contract; any
// other reply fails the stage.
type ModelStage struct {
	name        string
	persona     string
	m           model.Model
	temperature float64
	maxTokens   int64
}

var _ core.Stage = (*ModelStage)(nil)

// NewModelStage creates a model-backed stage running under the given node
// name with the given persona as system prompt.
func NewModelStage(name, persona string, m model.Model, optFns ...func(o *ModelStageOptions)) *ModelStage {
	opts := ModelStageOptions{Temperature: 0.2, MaxTokens: 2048}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelStage{
		name:        name,
		persona:     persona,
		m:           m,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

// Name implements core.Stage.
func (s *ModelStage) Name() string { return s.name }

// Analyze implements core.Stage.
func (s *ModelStage) Analyze(ctx context.Context, sc *core.StageContext) (*core.StageResult, error) {
	resp, err := s.m.Complete(ctx, model.Request{
		System:      s.persona + "\n\n" + outputContract,
		Prompt:      s.buildPrompt(sc),
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("model completion: %w", err)
	}
	return parseResult(resp.Text)
}

const outputContract = `Respond with exactly one JSON object and nothing else:
{
  "kpis": [{"name": "", "value": 0, "unit": "", "trend": "UP|DOWN|FLAT", "window": ""}],
  "insights": [""],
  "risks": [""],
  "recommendations": [{"action": "", "impact": "", "priority": "High|Medium|Low"}],
  "confidence": "High|Medium|Low",
  "handoff": {"reason": "", "priority": "Low|Medium|High|Critical", "flags": [], "signals": [{"metric": "", "value": 0, "direction": "UP|DOWN|FLAT"}]}
}`

func (s *ModelStage) buildPrompt(sc *core.StageContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis period: %s to %s.\n", sc.PeriodStart, sc.PeriodEnd)

	if len(sc.Handoffs) > 0 {
		b.WriteString("\nUpstream handoffs:\n")
		for _, h := range sc.Handoffs {
			data, err := json.Marshal(h)
			if err != nil {
				continue
			}
			b.WriteString(string(data))
			b.WriteByte('\n')
		}
	}
	if len(sc.UpstreamKPIs) > 0 {
		b.WriteString("\nUpstream KPIs:\n")
		for _, stage := range sortedStageNames(sc.UpstreamKPIs) {
			data, err := json.Marshal(sc.UpstreamKPIs[stage])
			if err != nil {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", stage, data)
		}
	}
	b.WriteString("\nProduce your analysis for this period.")
	return b.String()
}

// parseResult decodes the model reply, tolerating markdown code fences
// around the JSON object.
func parseResult(text string) (*core.StageResult, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if i := strings.LastIndex(trimmed, "```"); i >= 0 {
			trimmed = trimmed[:i]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	var res core.StageResult
	if err := json.Unmarshal([]byte(trimmed), &res); err != nil {
		return nil, fmt.Errorf("malformed stage output: %w", err)
	}
	if len(res.KPIs) == 0 {
		return nil, fmt.Errorf("malformed stage output: no kpis")
	}
	return &res, nil
}

func sortedStageNames(m map[string][]core.KPI) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package anthropic adapts the Anthropic Messages API to the model interface.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/retailops/boardflow/model"
)

// Options configures the adapter.
type Options struct {
	APIKey    string
	MaxTokens int64
}

// Model calls the Anthropic Messages API.
type Model struct {
	client    anthropic.Client
	modelID   string
	maxTokens int64
}

var _ model.Model = (*Model)(nil)

// New creates an Anthropic-backed model. The API key falls back to the
// ANTHROPIC_API_KEY environment variable when unset.
func New(modelID string, optFns ...func(o *Options)) *Model {
	opts := Options{MaxTokens: 2048}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	return &Model{
		client:    anthropic.NewClient(clientOpts...),
		modelID:   modelID,
		maxTokens: opts.MaxTokens,
	}
}

// Complete implements model.Model.
func (m *Model) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = m.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelID),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if t := block.AsText(); t.Text != "" {
			text += t.Text
		}
	}

	return &model.Response{
		Text:         text,
		Model:        string(msg.Model),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Provider: "anthropic", Model: m.modelID}
}

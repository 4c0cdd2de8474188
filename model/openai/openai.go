// Package openai adapts the OpenAI Chat Completions API to the model
// interface.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/retailops/boardflow/model"
)

// Options configures the adapter.
type Options struct {
	APIKey    string
	MaxTokens int64
}

// Model calls the OpenAI Chat Completions API.
type Model struct {
	client    openai.Client
	modelID   string
	maxTokens int64
}

var _ model.Model = (*Model)(nil)

// New creates an OpenAI-backed model. The API key falls back to the
// OPENAI_API_KEY environment variable when unset.
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
		client:    openai.NewClient(clientOpts...),
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

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(m.modelID),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai completion: empty choices")
	}

	return &model.Response{
		Text:         completion.Choices[0].Message.Content,
		Model:        completion.Model,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Provider: "openai", Model: m.modelID}
}

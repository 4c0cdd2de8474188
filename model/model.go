// Package model abstracts chat completion providers behind a minimal
// single-shot interface. Stages that consult a model depend only on this
// package; provider SDKs live in subpackages.
package model

import (
	"context"
	"sync"
)

// Request is one completion request. System carries the stage persona,
// Prompt the assembled analysis brief.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

// Response is the provider's reply.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Info describes a provider/model pair.
type Info struct {
	Provider string
	Model    string
}

// Model is a chat completion provider.
type Model interface {
	// Complete performs a single completion. It honors ctx cancellation.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns provider metadata.
	Info() Info
}

// MockModel is a configurable test double.
type MockModel struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	Requests  []Request

	calls int
}

// Complete returns the next canned response or error, recording the request.
func (m *MockModel) Complete(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	i := m.calls
	m.calls++
	if i < len(m.Errs) && m.Errs[i] != nil {
		return nil, m.Errs[i]
	}
	text := ""
	if i < len(m.Responses) {
		text = m.Responses[i]
	} else if len(m.Responses) > 0 {
		text = m.Responses[len(m.Responses)-1]
	}
	return &Response{Text: text, Model: "mock"}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return Info{Provider: "mock", Model: "mock"} }

// Calls returns how many completions were requested.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

package adapter

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter returns deterministic responses for local runs and tests.
// Responses and errors are keyed by model so fallback behavior can be
// scripted per backend.
type MockAdapter struct {
	mu              sync.Mutex
	responses       map[string]string
	errs            map[string]error
	defaultResponse string
	calls           []MockCall
}

// MockCall records one Generate invocation.
type MockCall struct {
	Model  string
	Prompt string
	Opts   Options
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		errs:            make(map[string]error),
		defaultResponse: "mock response:",
	}
}

// SetResponse scripts the response text for a model.
func (a *MockAdapter) SetResponse(model, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responses[model] = text
}

// SetError scripts a failure for a model.
func (a *MockAdapter) SetError(model string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs[model] = err
}

// Calls returns the recorded invocations.
func (a *MockAdapter) Calls() []MockCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]MockCall, len(a.calls))
	copy(out, a.calls)
	return out
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Generate returns the scripted response or error for the model.
func (a *MockAdapter) Generate(_ context.Context, model string, prompt string, opts Options) (*Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if model == "" {
		model = "mock-1"
	}
	a.calls = append(a.calls, MockCall{Model: model, Prompt: prompt, Opts: opts})

	if err, ok := a.errs[model]; ok {
		return nil, err
	}
	if response, ok := a.responses[model]; ok {
		return &Response{Text: response}, nil
	}
	return &Response{Text: fmt.Sprintf("%s\n%s", a.defaultResponse, prompt)}, nil
}

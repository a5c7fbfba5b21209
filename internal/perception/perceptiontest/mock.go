// Package perceptiontest provides a scripted completion client for tests.
package perceptiontest

import (
	"context"
	"fmt"
	"sync"

	"uiforge/internal/perception"
	"uiforge/internal/types"
)

// MockCall records one call made to a MockClient.
type MockCall struct {
	Stage        types.StageKind
	SystemPrompt string
	UserPrompt   string
	Structured   bool
	Schema       map[string]interface{}
}

// MockClient implements perception.Client. Responses are scripted per stage
// (taken from the call context) and consumed in order; the last scripted
// response for a stage repeats. A RespondFunc, when set, takes precedence.
type MockClient struct {
	mu sync.Mutex

	Model       string
	RespondFunc func(ctx context.Context, call MockCall) (string, error)

	scripts map[types.StageKind][]mockReply
	calls   []MockCall
}

var _ perception.Client = (*MockClient)(nil)

type mockReply struct {
	text string
	err  error
}

// NewMockClient creates a mock with model "mock-model".
func NewMockClient() *MockClient {
	return &MockClient{
		Model:   "mock-model",
		scripts: make(map[types.StageKind][]mockReply),
	}
}

// Respond queues a successful response for stage.
func (m *MockClient) Respond(stage types.StageKind, text string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[stage] = append(m.scripts[stage], mockReply{text: text})
	return m
}

// Fail queues a failure for stage.
func (m *MockClient) Fail(stage types.StageKind, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[stage] = append(m.scripts[stage], mockReply{err: err})
	return m
}

// GetModel returns the mock model name.
func (m *MockClient) GetModel() string {
	return m.Model
}

// CompleteWithSystem implements perception.Client.
func (m *MockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.next(ctx, MockCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
}

// CompleteStructured implements perception.Client.
func (m *MockClient) CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error) {
	return m.next(ctx, MockCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt, Structured: true, Schema: schema})
}

func (m *MockClient) next(ctx context.Context, call MockCall) (string, error) {
	call.Stage, _ = perception.StageFrom(ctx)

	m.mu.Lock()
	m.calls = append(m.calls, call)
	respond := m.RespondFunc
	var reply mockReply
	var scripted bool
	if queue := m.scripts[call.Stage]; len(queue) > 0 {
		reply, scripted = queue[0], true
		if len(queue) > 1 {
			m.scripts[call.Stage] = queue[1:]
		}
	}
	m.mu.Unlock()

	if respond != nil {
		return respond(ctx, call)
	}
	if !scripted {
		return "", fmt.Errorf("mock: no response scripted for stage %q", call.Stage)
	}
	return reply.text, reply.err
}

// Calls returns a copy of all recorded calls.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how many calls were made for stage.
func (m *MockClient) CallCount(stage types.StageKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Stage == stage {
			n++
		}
	}
	return n
}

// Reset clears recorded calls and scripts.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.scripts = make(map[types.StageKind][]mockReply)
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockStep is one scripted provider turn.
type MockStep struct {
	Response *Response
	Err      error
}

// MockCall records what the provider was asked.
type MockCall struct {
	Messages []Message
	Tools    []string
}

// MockProvider replays a script of responses. Once the script runs out,
// every further call fails with ErrProviderDown.
type MockProvider struct {
	mu    sync.Mutex
	steps []MockStep
	calls []MockCall
	// Handler, when set, answers instead of the script.
	Handler func(call int, messages []Message, tools []Tool) (*Response, error)
}

// NewMockProvider creates a provider scripted with steps.
func NewMockProvider(steps ...MockStep) *MockProvider {
	return &MockProvider{steps: steps}
}

// Text is a step answering with plain content.
func Text(content string) MockStep {
	return MockStep{Response: &Response{Content: content, FinishReason: FinishStop}}
}

// Calls is a step requesting one or more tool calls. args are JSON objects
// paired with names: Calls("analyze_stock", `{"symbol":"TCS"}`).
func Calls(nameArgs ...string) MockStep {
	resp := &Response{FinishReason: FinishToolCalls}
	for i := 0; i+1 < len(nameArgs); i += 2 {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("call_%d", i/2+1),
			Name:      nameArgs[i],
			Arguments: json.RawMessage(nameArgs[i+1]),
		})
	}
	return MockStep{Response: resp}
}

// Fail is a step returning err.
func Fail(err error) MockStep {
	return MockStep{Err: err}
}

func (m *MockProvider) Name() string { return ProviderMock }
func (m *MockProvider) Ping(ctx context.Context) error { return nil }

// Chat returns the next scripted step.
func (m *MockProvider) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	m.mu.Lock()
	n := len(m.calls)
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	m.calls = append(m.calls, MockCall{Messages: append([]Message(nil), messages...), Tools: names})
	handler := m.Handler
	var step MockStep
	exhausted := n >= len(m.steps)
	if !exhausted {
		step = m.steps[n]
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if handler != nil {
		return handler(n, messages, tools)
	}
	if exhausted {
		return nil, fmt.Errorf("%w: mock script exhausted after %d calls", ErrProviderDown, n)
	}
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	resp.Provider = ProviderMock
	return &resp, nil
}

// Recorded returns the calls made so far.
func (m *MockProvider) Recorded() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of Chat calls made so far.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

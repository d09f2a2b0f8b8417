package llm

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type mockStep struct {
	msg Message
	err error
}

// MockModel is a lightweight in-memory Model useful for tests & examples. It
// replays a scripted queue of replies and errors in order and records every
// request it receives. Safe for concurrent use so spawned sub agents can
// share one instance.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	script   []mockStep
	requests []*Request
	fallback string
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      "mock",
			SupportsTools: true,
		},
		fallback: "done",
	}
}

// EnqueueReply appends a canned assistant reply to the script.
func (m *MockModel) EnqueueReply(msg Message) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	m.script = append(m.script, mockStep{msg: msg})
	return m
}

// EnqueueError appends a failure to the script. The next Generate call
// returns it instead of a reply.
func (m *MockModel) EnqueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockStep{err: err})
	return m
}

// SetFallback changes the reply returned once the script is exhausted.
func (m *MockModel) SetFallback(content string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = content
	return m
}

func (m *MockModel) next(req *Request) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.script) == 0 {
		return Message{Role: RoleAssistant, Content: m.fallback, ID: uuid.NewString()}, nil
	}
	step := m.script[0]
	m.script = m.script[1:]
	if step.err != nil {
		return Message{}, step.err
	}
	return step.msg, nil
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req *Request) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg, err := m.next(req)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GenerateStream implements Model; the scripted reply is emitted as partial
// fragments (content first, then one fragment per tool call) so fold logic
// can be exercised against it.
func (m *MockModel) GenerateStream(ctx context.Context, req *Request) (<-chan Message, <-chan error) {
	out := make(chan Message, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		msg, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}
		if msg.Content != "" {
			half := len(msg.Content) / 2
			out <- Message{Role: RoleAssistant, Content: msg.Content[:half], Partial: true}
			out <- Message{Role: RoleAssistant, Content: msg.Content[half:], ID: msg.ID, Partial: true}
		}
		for _, tc := range msg.ToolCalls {
			out <- Message{Role: RoleAssistant, ToolCalls: []ToolCall{tc}, ID: msg.ID, Partial: true}
		}
	}()
	return out, errCh
}

// CallCount returns how many generation requests the mock has served.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of all recorded requests.
func (m *MockModel) Requests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Info returns metadata describing the mock.
func (m *MockModel) Info() Info {
	return m.info
}

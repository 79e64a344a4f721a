package model

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockClient is a lightweight in-memory Client useful for tests & examples.
// Responses are scripted with EnqueueResponse / EnqueueError /
// EnqueueStream and consumed in order; every received request is recorded.
type MockClient struct {
	mu        sync.Mutex
	responses []*CallResponse
	errors    []error
	streams   [][]StreamEvent
	requests  []CallRequest
	spans     []SpanOptions
	updates   map[string][]SpanUpdate
}

// NewMockClient creates an empty scripted client.
func NewMockClient() *MockClient {
	return &MockClient{updates: make(map[string][]SpanUpdate)}
}

// EnqueueResponse scripts the next successful buffered response.
func (m *MockClient) EnqueueResponse(resp *CallResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	m.errors = append(m.errors, nil)
	return m
}

// EnqueueError scripts the next buffered call to fail.
func (m *MockClient) EnqueueError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	m.errors = append(m.errors, err)
	return m
}

// EnqueueStream scripts the event sequence of the next streaming call.
func (m *MockClient) EnqueueStream(events ...StreamEvent) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = append(m.streams, events)
	return m
}

// Requests returns every CallRequest received so far, buffered and streamed.
func (m *MockClient) Requests() []CallRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many calls (buffered or streamed) were made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// SpanUpdates returns the updates recorded for a span id.
func (m *MockClient) SpanUpdates(id string) []SpanUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates[id]
}

// Call implements Client by dequeuing the next scripted response or error.
func (m *MockClient) Call(_ context.Context, req CallRequest) (*CallResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if len(m.responses) == 0 {
		return &CallResponse{
			Message: "mock response",
			SpanID:  uuid.NewString(),
			Usage:   TokenUsage{InputTokens: 1, OutputTokens: 1},
		}, nil
	}
	resp, err := m.responses[0], m.errors[0]
	m.responses = m.responses[1:]
	m.errors = m.errors[1:]
	if err != nil {
		return nil, err
	}
	if resp.SpanID == "" {
		resp.SpanID = uuid.NewString()
	}
	return resp, nil
}

// Stream implements Client by replaying the next scripted event sequence.
// A scripted event with a nil Delta and a non-nil Usage only reports usage;
// an event whose ChunkKind is "error" fails the stream with its Delta as the
// message.
func (m *MockClient) Stream(ctx context.Context, req CallRequest) (<-chan StreamEvent, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var events []StreamEvent
	if len(m.streams) > 0 {
		events = m.streams[0]
		m.streams = m.streams[1:]
	}
	m.mu.Unlock()

	out := make(chan StreamEvent, len(events)+1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)
		for _, ev := range events {
			if ev.ChunkKind == "error" {
				errCh <- NetworkError("mock", errStream(ev))
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return out, errCh
}

type streamFault struct{ msg string }

func (e streamFault) Error() string { return e.msg }

func errStream(ev StreamEvent) error {
	if s, ok := ev.Delta.(string); ok && s != "" {
		return streamFault{msg: s}
	}
	return streamFault{msg: "stream failed"}
}

// CreateSpan implements Client with locally generated span ids.
func (m *MockClient) CreateSpan(_ context.Context, opts SpanOptions) (*Span, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = append(m.spans, opts)
	return &Span{ID: uuid.NewString()}, nil
}

// UpdateSpan implements Client by recording the update.
func (m *MockClient) UpdateSpan(_ context.Context, id string, update SpanUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[id] = append(m.updates[id], update)
	return nil
}

package provider

import (
	"context"

	"github.com/an0mium/aragora/internal/aragoraerr"
)

// MockClient is a scripted Client for tests: it replays a fixed response
// (or error) for every call, independent of the prompt.
type MockClient struct {
	NameValue string
	Chunks    []string
	FailWith  error
}

func (m *MockClient) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

func (m *MockClient) Stream(ctx context.Context, prompt string, opts Options) (Stream, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	return &mockStream{chunks: append([]string(nil), m.Chunks...)}, nil
}

type mockStream struct {
	chunks  []string
	idx     int
	current Delta
}

func (s *mockStream) Next() bool {
	if s.idx >= len(s.chunks) {
		return false
	}
	s.current = Delta{Text: s.chunks[s.idx]}
	s.idx++
	return true
}

func (s *mockStream) Delta() Delta { return s.current }
func (s *mockStream) Err() error   { return nil }
func (s *mockStream) Usage() Usage { return Usage{OutputTokens: len(s.chunks)} }
func (s *mockStream) Close() error { return nil }

// Registry resolves a Client by provider name, grounded on the teacher's
// provider-registration pattern but narrowed to the streaming Client
// interface this spec names.
type Registry struct {
	clients map[string]Client
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds or replaces a named Client.
func (r *Registry) Register(c Client) {
	r.clients[c.Name()] = c
}

// Get resolves a Client by name.
func (r *Registry) Get(name string) (Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, aragoraerr.New(aragoraerr.CodeInput, "unknown provider: "+name)
	}
	return c, nil
}

// Names returns every registered provider name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	return names
}

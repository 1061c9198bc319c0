// Package provider implements the Provider Client of spec §4.1: one
// streaming call to one LLM vendor, with a uniform request/response
// shape over many vendor APIs.
package provider

import (
	"context"
)

// Options configures one streaming call.
type Options struct {
	Model             string
	Temperature       float64
	MaxTokens         int
	StopSequences     []string
	Timeout           float64 // seconds; provider-specific inactivity window
	SystemPrompt      string
	CancellationToken context.Context
}

// Delta is one incremental piece of generated text.
type Delta struct {
	Text string
}

// Usage summarizes token accounting for a finished call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Stream is the finite, non-restartable sequence of text deltas
// returned by Client.Stream. Consumers must materialize what they
// need; calling Next again after it returns false is undefined.
type Stream interface {
	// Next advances to the next delta. It returns false when the stream
	// is exhausted (check Err for failure) or finished successfully.
	Next() bool
	// Delta returns the delta most recently advanced to by Next.
	Delta() Delta
	// Err returns the error that ended the stream, if any. Callers
	// should check Err after Next returns false.
	Err() error
	// Usage returns the final usage summary; only valid once Next has
	// returned false with a nil Err.
	Usage() Usage
	// Close releases any underlying connection. Safe to call multiple
	// times and after the stream is exhausted.
	Close() error
}

// Client is a single streaming LLM provider. Implementations must not
// log request/response bodies or API keys (spec §4.1).
type Client interface {
	// Stream issues one streaming completion call.
	Stream(ctx context.Context, prompt string, opts Options) (Stream, error)
	// Name identifies the provider for logging/metrics labels.
	Name() string
}

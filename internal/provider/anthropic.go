package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/an0mium/aragora/internal/aragoraerr"
)

const (
	anthropicAPIURL       = "https://api.anthropic.com/v1/messages"
	anthropicVersion      = "2023-06-01"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
)

// AnthropicClient implements Client against the Anthropic Messages API,
// streaming via server-sent events.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	retry      RetryConfig
}

// NewAnthropicClient constructs a Client for Anthropic. apiKey must be
// non-empty for real calls; it is never logged (spec §4.1).
func NewAnthropicClient(apiKey, baseURL, model string) *AnthropicClient {
	if baseURL == "" {
		baseURL = anthropicAPIURL
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 300 * time.Second},
		retry:      DefaultRetryConfig(),
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	MaxTokens     int                `json:"max_tokens"`
	System        string             `json:"system,omitempty"`
	Temperature   float64            `json:"temperature,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream"`
}

type anthropicStreamDelta struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

type anthropicStreamUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicStreamEvent struct {
	Type  string                `json:"type"`
	Delta *anthropicStreamDelta `json:"delta,omitempty"`
	Usage *anthropicStreamUsage `json:"usage,omitempty"`
}

// Stream issues one streaming completion call and returns a lazy
// sequence of text deltas terminated by a final usage summary.
func (c *AnthropicClient) Stream(ctx context.Context, prompt string, opts Options) (Stream, error) {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	reqBody := anthropicRequest{
		Model: model,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicContent{{Type: "text", Text: prompt}}},
		},
		MaxTokens:     maxTokens,
		System:        opts.SystemPrompt,
		Temperature:   opts.Temperature,
		StopSequences: opts.StopSequences,
		Stream:        true,
	}

	resp, err := c.doWithRetry(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	s := &sseStream{body: resp.Body, deltas: make(chan Delta, 16), done: make(chan struct{})}
	go s.pump()
	return s, nil
}

func (c *AnthropicClient) doWithRetry(ctx context.Context, body anthropicRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, aragoraerr.Wrap(aragoraerr.CodePermanent, "marshal request", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := Sleep(ctx, CalculateBackoff(attempt, c.retry)); err != nil {
				return nil, aragoraerr.Wrap(aragoraerr.CodeCanceled, "canceled during backoff", err)
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, aragoraerr.Wrap(aragoraerr.CodePermanent, "build request", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, aragoraerr.Wrap(aragoraerr.CodeCanceled, "canceled", ctx.Err())
			}
			lastErr = aragoraerr.Wrap(aragoraerr.CodeTransient, "request failed", err)
			continue
		}

		code := ClassifyHTTPStatus(resp.StatusCode)
		if code == "" {
			return resp, nil
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = aragoraerr.Wrap(code, fmt.Sprintf("anthropic status %d", resp.StatusCode), newBodyError(string(body)))
		if code != aragoraerr.CodeTransient {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// bodyError carries a provider's raw error-response body as the Cause of
// an aragoraerr.Error without promoting it into the user-visible Message.
type bodyError struct{ body string }

func newBodyError(body string) error { return &bodyError{body} }

func (e *bodyError) Error() string { return e.body }

// sseStream implements Stream over an Anthropic SSE response body.
type sseStream struct {
	body      io.ReadCloser
	deltas    chan Delta
	done      chan struct{}
	current   Delta
	err       error
	usage     Usage
	closeOnce bool
}

func (s *sseStream) pump() {
	defer close(s.deltas)
	defer s.body.Close()

	reader := bufio.NewReader(s.body)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				s.err = aragoraerr.Wrap(aragoraerr.CodeTransient, "stream read failed", err)
			}
			return
		}
		line = bytes.TrimSpace(line)
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = bytes.TrimPrefix(line, []byte("data: "))

		var evt anthropicStreamEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			continue
		}
		switch evt.Type {
		case "content_block_delta":
			if evt.Delta != nil && evt.Delta.Text != "" {
				select {
				case s.deltas <- Delta{Text: evt.Delta.Text}:
				case <-s.done:
					return
				}
			}
		case "message_delta":
			if evt.Usage != nil {
				s.usage.OutputTokens = evt.Usage.OutputTokens
			}
		case "message_stop":
			return
		}
	}
}

func (s *sseStream) Next() bool {
	d, ok := <-s.deltas
	if !ok {
		return false
	}
	s.current = d
	return true
}

func (s *sseStream) Delta() Delta { return s.current }
func (s *sseStream) Err() error   { return s.err }
func (s *sseStream) Usage() Usage { return s.usage }

func (s *sseStream) Close() error {
	if s.closeOnce {
		return nil
	}
	s.closeOnce = true
	close(s.done)
	return s.body.Close()
}

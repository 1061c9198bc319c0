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

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAICompatibleClient implements Client against the OpenAI chat
// completions wire format, which is shared verbatim by many other
// vendors (local runtimes, OpenRouter, etc.) — grounded on the pack's
// repeated "OpenAI-compatible" provider convention (e.g. the CLI agent
// registry entries surveyed in the teacher's internal/agents/registry.go).
type OpenAICompatibleClient struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	retry      RetryConfig
}

// NewOpenAICompatibleClient constructs a Client for any OpenAI-wire-format
// vendor. name labels the provider for logs/metrics (e.g. "openai", "gemini").
func NewOpenAICompatibleClient(name, apiKey, baseURL, model string) *OpenAICompatibleClient {
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	return &OpenAICompatibleClient{
		name:       name,
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 300 * time.Second},
		retry:      DefaultRetryConfig(),
	}
}

func (c *OpenAICompatibleClient) Name() string { return c.name }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIStreamDelta struct {
	Content string `json:"content,omitempty"`
}

type openAIStreamChoice struct {
	Delta        openAIStreamDelta `json:"delta"`
	FinishReason string            `json:"finish_reason,omitempty"`
}

type openAIStreamChunk struct {
	Choices []openAIStreamChoice  `json:"choices"`
	Usage   *anthropicStreamUsage `json:"usage,omitempty"`
}

func (c *OpenAICompatibleClient) Stream(ctx context.Context, prompt string, opts Options) (Stream, error) {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	messages := []openAIMessage{}
	if opts.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: prompt})

	body := openAIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.StopSequences,
		Stream:      true,
	}

	resp, err := c.doWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}
	s := &openAISSEStream{body: resp.Body, deltas: make(chan Delta, 16), done: make(chan struct{})}
	go s.pump()
	return s, nil
}

func (c *OpenAICompatibleClient) doWithRetry(ctx context.Context, body openAIRequest) (*http.Response, error) {
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
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = aragoraerr.Wrap(code, fmt.Sprintf("%s status %d", c.name, resp.StatusCode), newBodyError(string(b)))
		if code != aragoraerr.CodeTransient {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

type openAISSEStream struct {
	body      io.ReadCloser
	deltas    chan Delta
	done      chan struct{}
	current   Delta
	err       error
	usage     Usage
	closeOnce bool
}

func (s *openAISSEStream) pump() {
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
		if bytes.Equal(line, []byte("[DONE]")) {
			return
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			s.usage.InputTokens = chunk.Usage.InputTokens
			s.usage.OutputTokens = chunk.Usage.OutputTokens
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			select {
			case s.deltas <- Delta{Text: choice.Delta.Content}:
			case <-s.done:
				return
			}
		}
	}
}

func (s *openAISSEStream) Next() bool {
	d, ok := <-s.deltas
	if !ok {
		return false
	}
	s.current = d
	return true
}

func (s *openAISSEStream) Delta() Delta { return s.current }
func (s *openAISSEStream) Err() error   { return s.err }
func (s *openAISSEStream) Usage() Usage { return s.usage }

func (s *openAISSEStream) Close() error {
	if s.closeOnce {
		return nil
	}
	s.closeOnce = true
	close(s.done)
	return s.body.Close()
}

// Package invoker implements the Agent Invoker of spec §4.2: it wraps a
// Provider Client for one agent turn, applying retry/timeout/cancellation
// policy, token accounting, and emitting token_* events to the Event Bus
// in real time. The Orchestrator (not the Invoker) emits the authoritative
// agent_message event once the turn's DebateMessage is durable.
package invoker

import (
	"context"
	"strings"
	"time"

	"github.com/an0mium/aragora/internal/aragoraerr"
	"github.com/an0mium/aragora/internal/events"
	"github.com/an0mium/aragora/internal/models"
	"github.com/an0mium/aragora/internal/provider"
)

// Context-truncation bounds, grounded on original_source/aragora's
// CritiqueMixin (_build_context_prompt): older messages are dropped
// rather than allowed to silently overflow the provider's window.
const (
	maxContextChars  = 120_000
	maxMessageChars  = 20_000
	keepLastN        = 10
	truncationMarker = "...[truncated]..."
)

// Input is one agent turn's inputs (spec §4.2).
type Input struct {
	DebateID      string
	AgentID       string
	Provider      string
	Model         string
	MessagesSoFar []models.DebateMessage
	Role          string
	CognitiveRole string
	Round         int
	Deadline      time.Time
	SystemPrompt  string
	TokenBudget   int // 0 = use default
}

// Invoker wraps a provider.Registry with the retry/timeout/accounting
// policy of spec §4.2.
type Invoker struct {
	clients     *provider.Registry
	bus         *events.Bus
	retry       provider.RetryConfig
	tokenBudget int
}

// Option configures an Invoker at construction.
type Option func(*Invoker)

// WithRetryConfig overrides the default retry policy.
func WithRetryConfig(cfg provider.RetryConfig) Option {
	return func(i *Invoker) { i.retry = cfg }
}

// WithTokenBudget overrides the default per-call hard token budget.
func WithTokenBudget(n int) Option {
	return func(i *Invoker) { i.tokenBudget = n }
}

// New constructs an Invoker.
func New(clients *provider.Registry, bus *events.Bus, opts ...Option) *Invoker {
	inv := &Invoker{
		clients:     clients,
		bus:         bus,
		retry:       provider.DefaultRetryConfig(),
		tokenBudget: 4096,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// approxTokens estimates token count from character length, the same
// coarse heuristic the spec calls for ("count approximate tokens from
// deltas") without committing to a specific tokenizer dependency.
func approxTokens(s string) int {
	return (len(s) + 3) / 4
}

// buildPrompt assembles messagesSoFar into one prompt string. It keeps
// only the last keepLastN messages, writing truncationMarker first when
// older ones are dropped; cuts each message at maxMessageChars with the
// marker; and stops adding messages once maxContextChars would be
// exceeded, so the later messages are then omitted without a marker.
func buildPrompt(messages []models.DebateMessage, role string) string {
	var b strings.Builder
	start := 0
	if len(messages) > keepLastN {
		start = len(messages) - keepLastN
		b.WriteString(truncationMarker)
		b.WriteString("\n")
	}

	total := 0
	for _, m := range messages[start:] {
		content := m.Content
		if len(content) > maxMessageChars {
			content = content[:maxMessageChars] + truncationMarker
		}
		line := m.Agent + " (" + m.Role + "): " + content + "\n"
		if total+len(line) > maxContextChars {
			break
		}
		b.WriteString(line)
		total += len(line)
	}
	b.WriteString("\nYour role: ")
	b.WriteString(role)
	return b.String()
}

// Invoke performs one agent turn: it streams a completion, emitting
// token_start/token_delta/token_end (or error) events to the bus, and
// returns the fully materialized DebateMessage.
func (inv *Invoker) Invoke(ctx context.Context, in Input) (*models.DebateMessage, error) {
	client, err := inv.clients.Get(in.Provider)
	if err != nil {
		return nil, err
	}

	if !in.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, in.Deadline)
		defer cancel()
	}

	budget := inv.tokenBudget
	if in.TokenBudget > 0 {
		budget = in.TokenBudget
	}

	prompt := buildPrompt(in.MessagesSoFar, in.Role)

	for attempt := 0; ; attempt++ {
		content, partialTokens, truncated, streamErr := inv.runOneStream(ctx, client, prompt, in, budget)
		if streamErr == nil {
			msg := &models.DebateMessage{
				DebateID:      in.DebateID,
				Round:         in.Round,
				Agent:         in.AgentID,
				Role:          in.Role,
				Content:       content,
				CognitiveRole: in.CognitiveRole,
				CreatedAt:     time.Now(),
			}
			if truncated {
				msg.Content += " " + truncationMarker
			}
			return msg, nil
		}

		if ctx.Err() != nil {
			inv.emitTokenEnd(ctx, in, true, streamErr)
			return nil, aragoraerr.Wrap(aragoraerr.CodeCanceled, "invocation canceled", ctx.Err())
		}
		if !provider.ShouldRetry(streamErr, attempt, inv.retry.MaxRetries, partialTokens, budget/4) {
			inv.publish(ctx, in, models.EventError, map[string]interface{}{"error": streamErr.Error()})
			return nil, streamErr
		}
		if err := provider.Sleep(ctx, provider.CalculateBackoff(attempt, inv.retry)); err != nil {
			inv.emitTokenEnd(ctx, in, true, err)
			return nil, aragoraerr.Wrap(aragoraerr.CodeCanceled, "canceled during retry backoff", err)
		}
	}
}

// runOneStream drives exactly one streaming attempt, emitting
// token_start, zero or more token_delta, and on success a token_end
// event. On failure it returns the error without emitting token_end;
// the caller decides whether that failure is retried.
func (inv *Invoker) runOneStream(ctx context.Context, client provider.Client, prompt string, in Input, budget int) (content string, tokens int, truncated bool, err error) {
	stream, err := client.Stream(ctx, prompt, provider.Options{
		Model:        in.Model,
		MaxTokens:    budget,
		SystemPrompt: in.SystemPrompt,
	})
	if err != nil {
		return "", 0, false, err
	}
	defer stream.Close()

	inv.publish(ctx, in, models.EventTokenStart, nil)

	var b strings.Builder
	for stream.Next() {
		d := stream.Delta()
		b.WriteString(d.Text)
		tokens += approxTokens(d.Text)
		inv.publish(ctx, in, models.EventTokenDelta, map[string]interface{}{"text": d.Text})

		if tokens >= budget {
			truncated = true
			break
		}
		if ctx.Err() != nil {
			return b.String(), tokens, truncated, ctx.Err()
		}
	}
	if streamErr := stream.Err(); streamErr != nil && !truncated {
		return b.String(), tokens, truncated, streamErr
	}

	inv.publish(ctx, in, models.EventTokenEnd, map[string]interface{}{"truncated": truncated})
	return b.String(), tokens, truncated, nil
}

func (inv *Invoker) emitTokenEnd(ctx context.Context, in Input, partial bool, cause error) {
	data := map[string]interface{}{"partial": partial}
	if cause != nil {
		data["error"] = cause.Error()
	}
	inv.publish(ctx, in, models.EventTokenEnd, data)
}

func (inv *Invoker) publish(ctx context.Context, in Input, t models.EventType, data map[string]interface{}) {
	if inv.bus == nil {
		return
	}
	_ = inv.bus.Publish(ctx, &models.Event{
		Type:     t,
		DebateID: in.DebateID,
		Round:    in.Round,
		Agent:    in.AgentID,
		Data:     data,
	})
}

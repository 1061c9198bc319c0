package invoker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/an0mium/aragora/internal/aragoraerr"
	"github.com/an0mium/aragora/internal/events"
	"github.com/an0mium/aragora/internal/models"
	"github.com/an0mium/aragora/internal/provider"
)

type nopAppender struct{ seq uint64 }

func (a *nopAppender) AppendEvent(context.Context, *models.Event) (uint64, error) {
	a.seq++
	return a.seq, nil
}

func TestInvoke_Success(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&provider.MockClient{NameValue: "mock", Chunks: []string{"hello ", "world"}})

	bus := events.New(&nopAppender{}, events.DefaultConfig())
	defer bus.Close()
	sub := bus.Subscribe(events.Filter{}, events.PolicyBlock)

	inv := New(reg, bus)
	msg, err := inv.Invoke(context.Background(), Input{
		DebateID: "d1", AgentID: "a1", Provider: "mock", Role: "proposer", Round: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", msg.Content)

	var sawStart, sawEnd bool
	for i := 0; i < 4; i++ {
		select {
		case e := <-sub.Events():
			if e.Type == models.EventTokenStart {
				sawStart = true
			}
			if e.Type == models.EventTokenEnd {
				sawEnd = true
			}
		default:
		}
	}
	assert.True(t, sawStart)
	assert.True(t, sawEnd)
}

func TestInvoke_PermanentErrorNoRetry(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&provider.MockClient{
		NameValue: "mock",
		FailWith:  aragoraerr.New(aragoraerr.CodePermanent, "bad request"),
	})

	bus := events.New(&nopAppender{}, events.DefaultConfig())
	defer bus.Close()

	inv := New(reg, bus)
	_, err := inv.Invoke(context.Background(), Input{
		DebateID: "d1", AgentID: "a1", Provider: "mock", Role: "proposer", Round: 1,
	})
	require.Error(t, err)
}

func TestBuildPrompt_TruncatesLongHistory(t *testing.T) {
	msgs := make([]models.DebateMessage, 0, 20)
	for i := 0; i < 20; i++ {
		msgs = append(msgs, models.DebateMessage{Agent: "a", Role: "proposer", Content: "msg"})
	}
	prompt := buildPrompt(msgs, "critic")
	assert.Contains(t, prompt, truncationMarker)
}

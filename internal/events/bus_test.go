package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/an0mium/aragora/internal/models"
)

type fakeAppender struct {
	seq map[string]uint64
}

func newFakeAppender() *fakeAppender { return &fakeAppender{seq: map[string]uint64{}} }

func (f *fakeAppender) AppendEvent(_ context.Context, e *models.Event) (uint64, error) {
	f.seq[e.DebateID]++
	return f.seq[e.DebateID], nil
}

func TestBus_PerDebateOrdering(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/an0mium/aragora/internal/events.(*Bus).cleanupLoop"))

	b := New(newFakeAppender(), Config{BufferSize: 16, CleanupInterval: time.Hour})
	defer b.Close()

	sub := b.Subscribe(Filter{DebateID: "d1"}, PolicyBlock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(ctx, &models.Event{DebateID: "d1", Type: models.EventRoundStart}))
	}

	var last uint64
	for i := 0; i < 5; i++ {
		select {
		case e := <-sub.Events():
			assert.Greater(t, e.Seq, last)
			last = e.Seq
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBus_FilterExcludesOtherDebates(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/an0mium/aragora/internal/events.(*Bus).cleanupLoop"))

	b := New(newFakeAppender(), Config{BufferSize: 4, CleanupInterval: time.Hour})
	defer b.Close()

	sub := b.Subscribe(Filter{DebateID: "d1"}, PolicyBlock)
	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, &models.Event{DebateID: "d2", Type: models.EventRoundStart}))

	select {
	case <-sub.Events():
		t.Fatal("should not have received event for a different debate")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_DropPolicyDoesNotBlockPublisher(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/an0mium/aragora/internal/events.(*Bus).cleanupLoop"))

	b := New(newFakeAppender(), Config{BufferSize: 1, CleanupInterval: time.Hour})
	defer b.Close()

	sub := b.Subscribe(Filter{DebateID: "d1"}, PolicyDrop)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Publish(ctx, &models.Event{DebateID: "d1", Type: models.EventTokenDelta}))
	}

	m := b.Snapshot()
	assert.Equal(t, int64(10), m.Published)
	assert.Greater(t, m.Dropped, int64(0))
	_ = sub
}

func TestBus_DurabilityFailureSuppressesBroadcast(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/an0mium/aragora/internal/events.(*Bus).cleanupLoop"))

	b := New(failingAppender{}, Config{BufferSize: 4, CleanupInterval: time.Hour})
	defer b.Close()

	sub := b.Subscribe(Filter{}, PolicyBlock)
	err := b.Publish(context.Background(), &models.Event{DebateID: "d1", Type: models.EventRoundStart})
	require.Error(t, err)

	select {
	case <-sub.Events():
		t.Fatal("event must not be broadcast when durable append fails")
	case <-time.After(50 * time.Millisecond):
	}
}

type failingAppender struct{}

func (failingAppender) AppendEvent(context.Context, *models.Event) (uint64, error) {
	return 0, assertErr
}

var assertErr = &testError{"append failed"}

type testError struct{ s string }

func (e *testError) Error() string { return e.s }

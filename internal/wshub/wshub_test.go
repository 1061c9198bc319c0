package wshub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/an0mium/aragora/internal/events"
	"github.com/an0mium/aragora/internal/models"
)

type fakeAppender struct{ seq uint64 }

func (f *fakeAppender) AppendEvent(_ context.Context, e *models.Event) (uint64, error) {
	f.seq++
	return f.seq, nil
}

func newTestServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Serve(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, debateID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.WriteJSON(subscribeFrame{DebateID: debateID}))
	return conn
}

func TestHub_DeliversMatchingDebateEvents(t *testing.T) {
	bus := events.New(&fakeAppender{}, events.Config{BufferSize: 16, CleanupInterval: time.Hour})
	defer bus.Close()

	h := New(bus, DefaultConfig(), nil, nil)
	srv := newTestServer(t, h)
	conn := dial(t, srv, "debate-1")

	time.Sleep(50 * time.Millisecond) // let Serve register the subscriber
	require.NoError(t, bus.Publish(context.Background(), &models.Event{
		DebateID: "debate-1", Type: models.EventRoundStart,
	}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Event
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, models.EventRoundStart, got.Type)
}

func TestHub_IgnoresOtherDebates(t *testing.T) {
	bus := events.New(&fakeAppender{}, events.Config{BufferSize: 16, CleanupInterval: time.Hour})
	defer bus.Close()

	h := New(bus, DefaultConfig(), nil, nil)
	srv := newTestServer(t, h)
	conn := dial(t, srv, "debate-1")

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, bus.Publish(context.Background(), &models.Event{
		DebateID: "debate-2", Type: models.EventRoundStart,
	}))
	require.NoError(t, bus.Publish(context.Background(), &models.Event{
		DebateID: "debate-1", Type: models.EventCritique,
	}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Event
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, "debate-1", got.DebateID)
	require.Equal(t, models.EventCritique, got.Type)
}

func TestHub_ActiveConnectionsTracksLifecycle(t *testing.T) {
	bus := events.New(&fakeAppender{}, events.Config{BufferSize: 16, CleanupInterval: time.Hour})
	defer bus.Close()

	h := New(bus, DefaultConfig(), nil, nil)
	srv := newTestServer(t, h)
	conn := dial(t, srv, "")

	require.Eventually(t, func() bool { return h.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	_ = conn.Close()
	require.Eventually(t, func() bool { return h.ActiveConnections() == 0 }, time.Second, 10*time.Millisecond)
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/an0mium/aragora/internal/events"
	"github.com/an0mium/aragora/internal/invoker"
	"github.com/an0mium/aragora/internal/orchestrator"
	"github.com/an0mium/aragora/internal/provider"
	"github.com/an0mium/aragora/internal/ranking"
	"github.com/an0mium/aragora/internal/storage"
	"github.com/an0mium/aragora/internal/wshub"
)

func newTestRouter(t *testing.T) (http.Handler, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, store.MigrateAll(context.Background()))
	t.Cleanup(func() { store.Close() })

	bus := events.New(store, events.DefaultConfig())
	t.Cleanup(func() { bus.Close() })

	reg := provider.NewRegistry()
	reg.Register(&provider.MockClient{NameValue: "mock"})
	inv := invoker.New(reg, bus)
	flips := ranking.New(nil)
	orch := orchestrator.New(store, bus, inv, flips, nil)
	hub := wshub.New(bus, wshub.DefaultConfig(), nil, nil)

	deps := &Deps{
		Store:        store,
		Bus:          bus,
		Orchestrator: orch,
		Hub:          hub,
		Log:          logrus.New(),
		AuthOn:       false,
		Origins:      []string{"*"},
	}
	return NewRouter(deps), store
}

func doRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doRequest(r, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ListDebatesEmpty(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doRequest(r, http.MethodGet, "/api/debates?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_GetDebateNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doRequest(r, http.MethodGet, "/api/debates/nonexistent", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_StartDebateAccepted(t *testing.T) {
	r, _ := newTestRouter(t)
	body := startDebateRequest{
		Slug: "test-debate",
		Task: "pick a plan",
		Agents: []orchestrator.AgentSpec{
			{ID: "agent-1", Provider: "mock", Model: "m"},
		},
	}
	w := doRequest(r, http.MethodPost, "/api/debates", body)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestRouter_AuthRejectsMissingToken(t *testing.T) {
	store, err := storage.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, store.MigrateAll(context.Background()))
	defer store.Close()

	bus := events.New(store, events.DefaultConfig())
	defer bus.Close()

	reg := provider.NewRegistry()
	inv := invoker.New(reg, bus)
	flips := ranking.New(nil)
	orch := orchestrator.New(store, bus, inv, flips, nil)
	hub := wshub.New(bus, wshub.DefaultConfig(), nil, nil)

	deps := &Deps{
		Store: store, Bus: bus, Orchestrator: orch, Hub: hub,
		Log: logrus.New(), AuthOn: true, HMACKey: []byte("secret"),
	}
	r := NewRouter(deps)
	w := doRequest(r, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

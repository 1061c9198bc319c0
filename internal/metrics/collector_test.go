package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector_RegistersEveryMetricWithoutPanic(t *testing.T) {
	require.NotPanics(t, func() {
		_, _ = NewCollector()
	})
}

func TestNewCollector_IsolatedAcrossInstances(t *testing.T) {
	_, reg1 := NewCollector()
	_, reg2 := NewCollector()
	assert.NotSame(t, reg1, reg2)
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	c, reg := NewCollector()
	c.EventsPublished.Inc()

	h := Handler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "aragora_events_published_total")
}

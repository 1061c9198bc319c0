package provider

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/an0mium/aragora/internal/aragoraerr"
)

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		want   aragoraerr.Code
	}{
		{http.StatusTooManyRequests, aragoraerr.CodeTransient},
		{http.StatusInternalServerError, aragoraerr.CodeTransient},
		{http.StatusBadRequest, aragoraerr.CodePermanent},
		{http.StatusOK, ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyHTTPStatus(c.status))
	}
}

func TestShouldRetry(t *testing.T) {
	transient := aragoraerr.New(aragoraerr.CodeTransient, "x")
	permanent := aragoraerr.New(aragoraerr.CodePermanent, "x")
	canceled := aragoraerr.New(aragoraerr.CodeCanceled, "x")
	timeout := aragoraerr.New(aragoraerr.CodeTimeout, "x")

	assert.True(t, ShouldRetry(transient, 0, 3, 0, 100))
	assert.False(t, ShouldRetry(transient, 3, 3, 0, 100))
	assert.False(t, ShouldRetry(permanent, 0, 3, 0, 100))
	assert.False(t, ShouldRetry(canceled, 0, 3, 0, 100))
	assert.True(t, ShouldRetry(timeout, 0, 3, 10, 100))
	assert.False(t, ShouldRetry(timeout, 0, 3, 200, 100))
}

func TestCalculateBackoffMonotonicity(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second, Multiplier: 2, JitterFactor: 0}
	d0 := CalculateBackoff(0, cfg)
	d1 := CalculateBackoff(1, cfg)
	d2 := CalculateBackoff(2, cfg)
	assert.Less(t, d0, d1)
	assert.Less(t, d1, d2)
	assert.LessOrEqual(t, d2, cfg.MaxDelay)
}

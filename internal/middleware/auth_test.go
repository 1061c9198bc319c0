package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(hmacKey []byte, enabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Auth(hmacKey, enabled), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"identity": IdentityOf(c)})
	})
	return r
}

func TestAuth_DisabledSkipsVerification(t *testing.T) {
	r := newAuthRouter([]byte("secret"), false)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_MissingTokenRejected(t *testing.T) {
	r := newAuthRouter([]byte("secret"), true)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_ValidBearerHeaderAccepted(t *testing.T) {
	key := []byte("secret")
	tok, err := IssueToken(key, "agent-7", time.Hour)
	require.NoError(t, err)

	r := newAuthRouter(key, true)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "agent-7")
}

func TestAuth_ValidTokenQueryParamAccepted(t *testing.T) {
	key := []byte("secret")
	tok, err := IssueToken(key, "agent-8", time.Hour)
	require.NoError(t, err)

	r := newAuthRouter(key, true)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected?token="+tok, nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_ExpiredTokenRejected(t *testing.T) {
	key := []byte("secret")
	tok, err := IssueToken(key, "agent-9", -time.Minute)
	require.NoError(t, err)

	r := newAuthRouter(key, true)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_WrongKeyRejected(t *testing.T) {
	tok, err := IssueToken([]byte("secret"), "agent-1", time.Hour)
	require.NoError(t, err)

	r := newAuthRouter([]byte("other"), true)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

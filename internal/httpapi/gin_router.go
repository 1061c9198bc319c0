// Package httpapi wires the stateless HTTP projection of spec §4.9 and
// §6 on top of gin, following the teacher's internal/router/gin_router.go
// shape: one *gin.Engine, injected dependencies, logrus request logging,
// and a central error-translation helper.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/an0mium/aragora/internal/aragoraerr"
	"github.com/an0mium/aragora/internal/events"
	"github.com/an0mium/aragora/internal/metrics"
	"github.com/an0mium/aragora/internal/middleware"
	"github.com/an0mium/aragora/internal/orchestrator"
	"github.com/an0mium/aragora/internal/storage"
	"github.com/an0mium/aragora/internal/wshub"
)

const version = "0.1.0"

// Deps are every collaborator the router needs, assembled once at
// startup by cmd/aragorad and never constructed internally.
type Deps struct {
	Store        storage.Adapter
	Bus          *events.Bus
	Orchestrator *orchestrator.Orchestrator
	Hub          *wshub.Hub
	RateLimiter  *middleware.RateLimiter
	Metrics      *metrics.Collector
	Registry     *prometheus.Registry
	Log          *logrus.Logger
	HMACKey      []byte
	AuthOn       bool
	Origins      []string
}

// NewRouter builds the gin engine with every route of spec §6's HTTP
// table plus the narrow write side of §4.9.
func NewRouter(d *Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = logrus.New()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(d.Log))
	r.Use(corsMiddleware(d.Origins))
	if d.Metrics != nil {
		r.Use(metricsMiddleware(d.Metrics))
	}

	h := &handlers{deps: d}

	api := r.Group("/api")
	api.Use(middleware.Auth(d.HMACKey, d.AuthOn))
	if d.RateLimiter != nil {
		api.Use(d.RateLimiter.Middleware())
	}

	api.GET("/health", h.health)
	api.GET("/debates", h.listDebates)
	api.GET("/debates/:slug", h.getDebate)
	api.POST("/debates", h.startDebate)
	api.GET("/leaderboard", h.leaderboard)
	api.GET("/matches/recent", h.recentMatches)
	api.GET("/flips/recent", h.recentFlips)
	api.GET("/agent/:name/consistency", h.agentConsistency)
	api.POST("/debates/:slug/suggestions", h.postSuggestion)
	api.POST("/debates/:slug/broadcast", h.postBroadcast)

	r.GET("/ws", func(c *gin.Context) { _ = d.Hub.Serve(c.Writer, c.Request) })

	if d.Registry != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(d.Registry)))
	}
	return r
}

// requestLogger mirrors the teacher's requestCounterMiddleware: method,
// path, status, latency at Info; 5xx at Error.
func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if c.Writer.Status() >= 500 {
			log.WithFields(fields).Error("request failed")
		} else {
			log.WithFields(fields).Info("request")
		}
	}
}

// metricsMiddleware records RequestDuration/RequestCount per
// method/path/status (spec §4.9 /metrics).
func metricsMiddleware(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.RequestDuration.WithLabelValues(c.Request.Method, c.FullPath(), status).Observe(time.Since(start).Seconds())
		m.RequestCount.WithLabelValues(c.Request.Method, c.FullPath(), status).Inc()
	}
}

// corsMiddleware enforces an explicit allow-list (spec §6 "CORS uses an
// explicit allow-list"); an empty list allows no cross-origin requests.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allow := make(map[string]bool, len(allowed))
	wildcard := false
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		allow[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (wildcard || allow[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// writeError translates an aragoraerr.Error (or any error) to the
// documented status code, never leaking internal detail (spec §7).
func writeError(c *gin.Context, err error) {
	if ae, ok := err.(*aragoraerr.Error); ok {
		if ae.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(ae.RetryAfter))
		}
		c.JSON(ae.HTTPStatus, gin.H{"error": ae.Message, "code": ae.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/an0mium/aragora/internal/aragoraerr"
	"github.com/an0mium/aragora/internal/models"
	"github.com/an0mium/aragora/internal/orchestrator"
	"github.com/an0mium/aragora/internal/storage"
)

type handlers struct {
	deps *Deps
}

func boundedLimit(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// health reports component liveness and semver (spec §6).
func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": version,
		"components": gin.H{
			"storage": h.deps.Store != nil,
			"bus":     h.deps.Bus != nil,
			"ws":      h.deps.Hub != nil,
		},
	})
}

// listDebates serves GET /api/debates?limit=N&cursor=… newest-first.
// Cursor is accepted for API symmetry with spec §4.9's pagination
// requirement; ReadRecent's time-DESC ordering plus limit already
// bounds the list, so cursor is currently advisory only.
func (h *handlers) listDebates(c *gin.Context) {
	limit := boundedLimit(c, 20, 200)
	rows, err := h.deps.Store.ReadRecent(c.Request.Context(), storage.RecentDebates, limit, storage.RecentFilter{})
	if err != nil {
		writeError(c, aragoraerr.Wrap(aragoraerr.CodeTransient, "list debates", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"debates": rows})
}

func (h *handlers) getDebate(c *gin.Context) {
	slug := c.Param("slug")
	debate, messages, err := h.deps.Store.GetDebate(c.Request.Context(), slug)
	if err != nil {
		writeError(c, err)
		return
	}
	if debate == nil {
		writeError(c, aragoraerr.New(aragoraerr.CodeInput, "debate not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"debate": debate, "messages": messages})
}

type startDebateRequest struct {
	Slug   string                   `json:"slug" binding:"required"`
	Task   string                   `json:"task" binding:"required"`
	Domain string                   `json:"domain"`
	Agents []orchestrator.AgentSpec `json:"agents" binding:"required"`
	Config *models.DebateConfig     `json:"config"`
}

// startDebate launches a new debate asynchronously: the Orchestrator's
// Run blocks until the debate is sealed, which can take minutes, so the
// handler hands the debate ID back immediately and progress is observed
// over the WebSocket Hub (spec §4.9 "write side... starting a new
// debate").
func (h *handlers) startDebate(c *gin.Context) {
	var req startDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, aragoraerr.Wrap(aragoraerr.CodeInput, "invalid request body", err))
		return
	}
	cfg := models.DefaultDebateConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	debateID := uuid.New().String()
	in := orchestrator.RunInput{
		DebateID: debateID,
		Slug:     req.Slug,
		Task:     req.Task,
		Domain:   req.Domain,
		Agents:   req.Agents,
		Config:   cfg,
	}

	go func() {
		ctx := context.Background()
		if _, err := h.deps.Orchestrator.Run(ctx, in); err != nil {
			h.deps.Log.WithError(err).WithField("debate_id", debateID).Error("debate run failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"debate_id": debateID, "slug": req.Slug})
}

func (h *handlers) leaderboard(c *gin.Context) {
	domain := c.Query("domain")
	limit := boundedLimit(c, 50, 500)
	rows, err := h.deps.Store.Leaderboard(c.Request.Context(), domain, limit)
	if err != nil {
		writeError(c, aragoraerr.Wrap(aragoraerr.CodeTransient, "leaderboard", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": rows})
}

func (h *handlers) recentMatches(c *gin.Context) {
	limit := boundedLimit(c, 20, 200)
	rows, err := h.deps.Store.ReadRecent(c.Request.Context(), storage.RecentMatches, limit, storage.RecentFilter{})
	if err != nil {
		writeError(c, aragoraerr.Wrap(aragoraerr.CodeTransient, "recent matches", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": rows})
}

func (h *handlers) recentFlips(c *gin.Context) {
	limit := boundedLimit(c, 20, 200)
	rows, err := h.deps.Store.ReadRecent(c.Request.Context(), storage.RecentFlips, limit, storage.RecentFilter{})
	if err != nil {
		writeError(c, aragoraerr.Wrap(aragoraerr.CodeTransient, "recent flips", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"flips": rows})
}

func (h *handlers) agentConsistency(c *gin.Context) {
	name := c.Param("name")
	domain := c.Query("domain")
	rating, err := h.deps.Store.AgentConsistency(c.Request.Context(), name, domain)
	if err != nil {
		writeError(c, aragoraerr.Wrap(aragoraerr.CodeTransient, "agent consistency", err))
		return
	}
	if rating == nil {
		writeError(c, aragoraerr.New(aragoraerr.CodeInput, "agent not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"rating": rating})
}

type suggestionRequest struct {
	Author string `json:"author" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

// postSuggestion lets an external collaborator cast an audience
// suggestion into a running debate's event stream (spec §4.9's narrow
// write side). It is advisory: the suggestion is published as an event
// only, and the Orchestrator does not read suggestions.
func (h *handlers) postSuggestion(c *gin.Context) {
	slug := c.Param("slug")
	var req suggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, aragoraerr.Wrap(aragoraerr.CodeInput, "invalid request body", err))
		return
	}
	debate, _, err := h.deps.Store.GetDebate(c.Request.Context(), slug)
	if err != nil || debate == nil {
		writeError(c, aragoraerr.New(aragoraerr.CodeInput, "debate not found"))
		return
	}
	err = h.deps.Bus.Publish(c.Request.Context(), &models.Event{
		DebateID: debate.DebateID,
		Type:     models.EventSync,
		Agent:    req.Author,
		Data: map[string]interface{}{
			"kind": "audience_suggestion",
			"text": req.Text,
		},
	})
	if err != nil {
		writeError(c, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "publish suggestion", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

type broadcastRequest struct {
	Message string `json:"message" binding:"required"`
}

// postBroadcast lets an external collaborator push an out-of-band
// announcement onto a debate's event stream, visible to every attached
// WebSocket client (spec §4.9 "generating a broadcast (external)").
func (h *handlers) postBroadcast(c *gin.Context) {
	slug := c.Param("slug")
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, aragoraerr.Wrap(aragoraerr.CodeInput, "invalid request body", err))
		return
	}
	debate, _, err := h.deps.Store.GetDebate(c.Request.Context(), slug)
	if err != nil || debate == nil {
		writeError(c, aragoraerr.New(aragoraerr.CodeInput, "debate not found"))
		return
	}
	err = h.deps.Bus.Publish(c.Request.Context(), &models.Event{
		DebateID: debate.DebateID,
		Type:     models.EventSync,
		Data: map[string]interface{}{
			"kind":    "broadcast",
			"message": req.Message,
		},
	})
	if err != nil {
		writeError(c, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "publish broadcast", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

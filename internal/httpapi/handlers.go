package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"whatsapp-gateway/internal/auth"
	"whatsapp-gateway/internal/config"
	"whatsapp-gateway/internal/stats"
	"whatsapp-gateway/internal/store"
	"whatsapp-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups the ops/read API handlers for dependency injection.
// Keep these thin: parse/validate input, call the repositories, return JSON.
type Handlers struct {
	Auth *auth.Manager
	Ops  config.OpsConfig

	Messages store.MessageRepo
	Calls    store.CallRepo
	Statuses store.StatusRepo
	Outgoing store.OutgoingRepo
	Stats    *stats.Recorder

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges the shared ops credential for a JWT token pair.
// When no ops credential is configured, login is disabled entirely.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.Ops.Username == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "login disabled"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.Ops.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.Ops.Password)) == 1
	if !userOK || !passOK {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	pair, err := h.Auth.IssuePair(h.now(), req.Username, auth.RoleOps)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Read endpoints ---

func (h Handlers) ListMessages(c *gin.Context) {
	f := store.MessageFilter{
		WaID:        c.Query("wa_id"),
		MessageType: c.Query("message_type"),
		Limit:       limitParam(c),
	}
	if v := c.Query("processed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "processed must be a boolean"})
			return
		}
		f.Processed = &b
	}

	msgs, err := h.Messages.List(c.Request.Context(), f)
	if err != nil {
		logger.FromGin(c).Error("message list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(msgs), "messages": msgs})
}

func (h Handlers) ListCalls(c *gin.Context) {
	calls, err := h.Calls.List(c.Request.Context(), limitParam(c))
	if err != nil {
		logger.FromGin(c).Error("call list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(calls), "calls": calls})
}

func (h Handlers) ListStatuses(c *gin.Context) {
	sts, err := h.Statuses.List(c.Request.Context(), limitParam(c))
	if err != nil {
		logger.FromGin(c).Error("status list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(sts), "statuses": sts})
}

func (h Handlers) ListOutgoing(c *gin.Context) {
	out, err := h.Outgoing.List(c.Request.Context(), limitParam(c))
	if err != nil {
		logger.FromGin(c).Error("outgoing list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "outgoing": out})
}

// MarkProcessed flips the processed flag on one inbound message.
func (h Handlers) MarkProcessed(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	err := h.Messages.MarkProcessed(c.Request.Context(), id, h.now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("mark processed failed", "id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "id": id, "processed": true})
}

// GetStats returns the Redis ingest counters.
func (h Handlers) GetStats(c *gin.Context) {
	snap, err := h.Stats.Snapshot(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("stats snapshot failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages_received": snap[stats.KeyMessagesReceived],
		"calls_received":    snap[stats.KeyCallsReceived],
		"statuses_received": snap[stats.KeyStatusesReceived],
		"messages_sent":     snap[stats.KeyMessagesSent],
		"send_failures":     snap[stats.KeySendFailures],
	})
}

func limitParam(c *gin.Context) int {
	v := c.Query("limit")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

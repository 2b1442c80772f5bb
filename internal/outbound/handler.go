package outbound

import (
	"net/http"
	"time"

	"whatsapp-gateway/internal/stats"
	"whatsapp-gateway/internal/store"
	"whatsapp-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SendHandler is the synchronous send endpoint.
//
// Ordering invariant: the pending OutgoingMessage row is written before the
// network call, so a crash mid-send still leaves an auditable record. Both
// outcome branches mutate the row; a finished attempt is never left pending.
type SendHandler struct {
	Client   *Client
	Outgoing store.OutgoingRepo
	Stats    *stats.Recorder

	Now func() time.Time
}

func (h SendHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (h SendHandler) Send(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: to, message"})
		return
	}
	if req.To == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: to, message"})
		return
	}
	if !allDigits(req.To) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid phone number format. Should contain only digits with country code."})
		return
	}

	now := h.now().UTC()
	rec := &store.OutgoingMessage{
		ID:          uuid.NewString(),
		ToNumber:    req.To,
		MessageType: "text",
		MessageText: req.Message,
		Status:      store.OutgoingStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Outgoing.Create(ctx, rec); err != nil {
		log.Error("outgoing record create failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to record send attempt"})
		return
	}

	result := h.Client.SendText(ctx, req.To, req.Message)

	if result.Success {
		sentAt := h.now().UTC()
		if err := h.Outgoing.MarkSent(ctx, rec.ID, result.MessageID, result.Response, sentAt); err != nil {
			log.Error("outgoing record update failed", "id", rec.ID, "err", err)
		}
		h.Stats.Incr(ctx, stats.KeyMessagesSent)
		log.Info("message sent", "to", req.To, "message_id", result.MessageID)

		c.JSON(http.StatusOK, gin.H{
			"success":             true,
			"message_id":          result.MessageID,
			"outgoing_message_id": rec.ID,
			"status":              "sent",
		})
		return
	}

	if err := h.Outgoing.MarkFailed(ctx, rec.ID, result.Error, result.Response, h.now().UTC()); err != nil {
		log.Error("outgoing record update failed", "id", rec.ID, "err", err)
	}
	h.Stats.Incr(ctx, stats.KeySendFailures)
	log.Error("message send failed", "to", req.To, "err", result.Error)

	c.JSON(http.StatusInternalServerError, gin.H{
		"success":             false,
		"error":               result.Error,
		"outgoing_message_id": rec.ID,
		"status":              "failed",
	})
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

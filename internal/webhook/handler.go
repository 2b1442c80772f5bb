package webhook

import (
	"encoding/json"
	"net/http"
	"time"

	"whatsapp-gateway/internal/payload"
	"whatsapp-gateway/internal/stats"
	"whatsapp-gateway/internal/store"
	"whatsapp-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Expected top-level object value on every ingestion payload.
const webhookObject = "whatsapp_business_account"

// Handler receives Meta webhook callbacks.
//
// Two entry points: Verify answers the subscribe handshake (GET), Receive
// ingests event payloads (POST). Per-record failures are logged and skipped;
// the batch response is still 200 so Meta does not redeliver the whole batch
// because of one bad record.
type Handler struct {
	VerifyToken string

	Messages store.MessageRepo
	Calls    store.CallRepo
	Statuses store.StatusRepo
	Stats    *stats.Recorder

	Now func() time.Time
}

func (h Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Verify answers Meta's webhook verification handshake.
// The challenge must be echoed bit-exact, as plain text.
func (h Handler) Verify(c *gin.Context) {
	log := logger.FromGin(c)

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.VerifyToken && h.VerifyToken != "" {
		log.Info("webhook verified")
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(challenge))
		return
	}

	log.Warn("webhook verification failed", "mode", mode, "token_match", token == h.VerifyToken)
	c.Data(http.StatusForbidden, "text/plain; charset=utf-8", []byte("Verification failed"))
}

// Receive ingests one webhook POST. A single request may carry many
// entries/changes; all of them are attempted before responding.
func (h Handler) Receive(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid JSON"})
		return
	}

	var body payload.Object
	if err := json.Unmarshal(raw, &body); err != nil {
		log.Warn("webhook body is not valid json", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid JSON"})
		return
	}

	if obj := body.String("object"); obj != webhookObject {
		log.Warn("unexpected webhook object", "object", obj)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid webhook object"})
		return
	}

	var messageIDs, callIDs, statusIDs []string

	for _, entry := range body.List("entry") {
		for _, change := range entry.List("changes") {
			value := change.Object("value")
			field := change.String("field")

			switch field {
			case "messages":
				meta := metadataFrom(value)
				contacts := contactMapFrom(value)

				// The "messages" field carries inbound messages AND delivery
				// statuses, sometimes in the same callback. Both lists are
				// processed.
				for _, msg := range value.List("messages") {
					rec, err := h.processMessage(ctx, msg, contacts, meta)
					if err != nil {
						log.Error("message processing failed", "err", err)
						continue
					}
					messageIDs = append(messageIDs, rec.MessageID)
					h.Stats.Incr(ctx, stats.KeyMessagesReceived)
				}
				for _, st := range value.List("statuses") {
					rec, err := h.processStatus(ctx, st, meta)
					if err != nil {
						log.Error("status processing failed", "err", err)
						continue
					}
					statusIDs = append(statusIDs, rec.MessageID)
					h.Stats.Incr(ctx, stats.KeyStatusesReceived)
				}

			case "calls":
				meta := metadataFrom(value)
				contacts := contactMapFrom(value)

				for _, call := range value.List("calls") {
					rec, err := h.processCall(ctx, call, contacts, meta)
					if err != nil {
						log.Error("call processing failed", "err", err)
						continue
					}
					callIDs = append(callIDs, rec.CallID)
					h.Stats.Incr(ctx, stats.KeyCallsReceived)
				}

			default:
				// Unknown fields are tolerated for forward compatibility.
				log.Debug("ignoring webhook field", "field", field)
			}
		}
	}

	resp := gin.H{
		"status":             "success",
		"messages_processed": len(messageIDs),
		"calls_processed":    len(callIDs),
		"statuses_processed": len(statusIDs),
	}
	if len(messageIDs) > 0 {
		resp["message_ids"] = messageIDs
	}
	if len(callIDs) > 0 {
		resp["call_ids"] = callIDs
	}
	if len(statusIDs) > 0 {
		resp["status_ids"] = statusIDs
	}
	c.JSON(http.StatusOK, resp)
}

// metadata is the per-change routing context from value.metadata.
type metadata struct {
	PhoneNumberID      string
	DisplayPhoneNumber string
}

func metadataFrom(value payload.Object) metadata {
	m := value.Object("metadata")
	return metadata{
		PhoneNumberID:      m.String("phone_number_id"),
		DisplayPhoneNumber: m.String("display_phone_number"),
	}
}

// contactMapFrom indexes the change's contacts by wa_id.
// Last write wins when the same wa_id appears twice in one batch.
func contactMapFrom(value payload.Object) map[string]payload.Object {
	out := map[string]payload.Object{}
	for _, contact := range value.List("contacts") {
		out[contact.String("wa_id")] = contact
	}
	return out
}

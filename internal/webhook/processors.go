package webhook

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-gateway/internal/payload"
	"whatsapp-gateway/internal/store"

	"github.com/google/uuid"
)

var errMissingID = errors.New("webhook: record has no id")

// processMessage normalizes one inbound message and upserts it keyed on the
// provider message id. Redelivered events overwrite the stored row.
func (h Handler) processMessage(ctx context.Context, msg payload.Object, contacts map[string]payload.Object, meta metadata) (*store.InboundMessage, error) {
	messageID := msg.String("id")
	if messageID == "" {
		return nil, errMissingID
	}
	from := msg.String("from")
	messageType := msg.String("type")

	contact := contacts[from]
	contactName := contact.Object("profile").String("name")
	waID := contact.String("wa_id")
	if waID == "" {
		waID = from
	}

	content := payload.ExtractContent(messageType, msg)

	now := h.now().UTC()
	rec := &store.InboundMessage{
		ID:        uuid.NewString(),
		MessageID: messageID,

		WaID:        waID,
		FromNumber:  from,
		ContactName: contactName,

		MessageType: messageType,
		MessageText: content.Text,

		AudioID:       content.AudioID,
		AudioURL:      content.AudioURL,
		AudioMimeType: content.AudioMimeType,
		IsVoice:       content.IsVoice,

		ImageID:       content.ImageID,
		ImageURL:      content.ImageURL,
		ImageMimeType: content.ImageMimeType,
		ImageCaption:  content.ImageCaption,

		VideoID:       content.VideoID,
		VideoURL:      content.VideoURL,
		VideoMimeType: content.VideoMimeType,
		VideoCaption:  content.VideoCaption,

		DocumentID:       content.DocumentID,
		DocumentURL:      content.DocumentURL,
		DocumentFilename: content.DocumentFilename,
		DocumentMimeType: content.DocumentMimeType,

		Latitude:  content.Latitude,
		Longitude: content.Longitude,

		StickerID:       content.StickerID,
		StickerURL:      content.StickerURL,
		StickerMimeType: content.StickerMimeType,
		IsAnimated:      content.IsAnimated,

		ContactsData: content.ContactsData,

		Timestamp:          msg.String("timestamp"),
		PhoneNumberID:      meta.PhoneNumberID,
		DisplayPhoneNumber: meta.DisplayPhoneNumber,

		RawPayload: msg.Marshal(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := h.Messages.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("upsert message %s: %w", messageID, err)
	}
	return rec, nil
}

// processStatus stores one delivery-status transition. Always an insert:
// one message legitimately accumulates several status rows.
func (h Handler) processStatus(ctx context.Context, st payload.Object, meta metadata) (*store.StatusEvent, error) {
	messageID := st.String("id")
	if messageID == "" {
		return nil, errMissingID
	}

	conversation := st.Object("conversation")
	pricing := st.Object("pricing")

	rec := &store.StatusEvent{
		ID:        uuid.NewString(),
		MessageID: messageID,

		Status:      store.DeliveryStatus(st.String("status")),
		RecipientID: st.String("recipient_id"),

		ConversationID:         conversation.String("id"),
		ConversationExpiration: conversation.String("expiration_timestamp"),
		ConversationOriginType: conversation.Object("origin").String("type"),

		IsBillable:      pricing.Bool("billable"),
		PricingModel:    pricing.String("pricing_model"),
		PricingCategory: pricing.String("category"),
		PricingType:     pricing.String("type"),

		Timestamp:          st.String("timestamp"),
		PhoneNumberID:      meta.PhoneNumberID,
		DisplayPhoneNumber: meta.DisplayPhoneNumber,

		RawPayload: st.Marshal(),
		CreatedAt:  h.now().UTC(),
	}

	if err := h.Statuses.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append status for %s: %w", messageID, err)
	}
	return rec, nil
}

// processCall stores one call signaling event. Always an insert: the same
// call id appears on its connect row and again on its terminate row.
func (h Handler) processCall(ctx context.Context, call payload.Object, contacts map[string]payload.Object, meta metadata) (*store.CallEvent, error) {
	callID := call.String("id")
	if callID == "" {
		return nil, errMissingID
	}
	from := call.String("from")

	contact := contacts[from]
	contactName := contact.Object("profile").String("name")
	waID := contact.String("wa_id")
	if waID == "" {
		waID = from
	}

	session := call.Object("session")

	rec := &store.CallEvent{
		ID:     uuid.NewString(),
		CallID: callID,

		FromNumber:  from,
		ToNumber:    call.String("to"),
		WaID:        waID,
		ContactName: contactName,

		Event:     store.CallEventType(call.String("event")),
		Direction: store.CallDirection(call.String("direction")),
		Status:    store.CallStatus(call.String("status")),

		Timestamp: call.String("timestamp"),
		StartTime: call.String("start_time"),
		EndTime:   call.String("end_time"),

		SessionSDP:     session.String("sdp"),
		SessionSDPType: session.String("sdp_type"),

		PhoneNumberID:      meta.PhoneNumberID,
		DisplayPhoneNumber: meta.DisplayPhoneNumber,

		RawPayload: call.Marshal(),
		CreatedAt:  h.now().UTC(),
	}
	if d, ok := call.Int("duration"); ok {
		rec.DurationSeconds = &d
	}

	if err := h.Calls.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append call event %s: %w", callID, err)
	}
	return rec, nil
}

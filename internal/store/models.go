package store

import (
	"encoding/json"
	"time"
)

// InboundMessage is one received WhatsApp message.
//
// Invariants:
// - At most one row per provider MessageID. Webhook redelivery of the same
//   message must update the existing row, never duplicate it.
// - The typed content columns are a lossy projection; RawPayload keeps the
//   full message object for replay and audit.

type InboundMessage struct {
	ID        string `json:"id" db:"id"`
	MessageID string `json:"message_id" db:"message_id"`

	WaID        string `json:"wa_id" db:"wa_id"`
	FromNumber  string `json:"from_number" db:"from_number"`
	ContactName string `json:"contact_name,omitempty" db:"contact_name"`

	MessageType string `json:"message_type" db:"message_type"`
	MessageText string `json:"message_text,omitempty" db:"message_text"`

	AudioID       string `json:"audio_id,omitempty" db:"audio_id"`
	AudioURL      string `json:"audio_url,omitempty" db:"audio_url"`
	AudioMimeType string `json:"audio_mime_type,omitempty" db:"audio_mime_type"`
	IsVoice       bool   `json:"is_voice" db:"is_voice"`

	ImageID       string `json:"image_id,omitempty" db:"image_id"`
	ImageURL      string `json:"image_url,omitempty" db:"image_url"`
	ImageMimeType string `json:"image_mime_type,omitempty" db:"image_mime_type"`
	ImageCaption  string `json:"image_caption,omitempty" db:"image_caption"`

	VideoID       string `json:"video_id,omitempty" db:"video_id"`
	VideoURL      string `json:"video_url,omitempty" db:"video_url"`
	VideoMimeType string `json:"video_mime_type,omitempty" db:"video_mime_type"`
	VideoCaption  string `json:"video_caption,omitempty" db:"video_caption"`

	DocumentID       string `json:"document_id,omitempty" db:"document_id"`
	DocumentURL      string `json:"document_url,omitempty" db:"document_url"`
	DocumentFilename string `json:"document_filename,omitempty" db:"document_filename"`
	DocumentMimeType string `json:"document_mime_type,omitempty" db:"document_mime_type"`

	Latitude  *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" db:"longitude"`

	StickerID       string `json:"sticker_id,omitempty" db:"sticker_id"`
	StickerURL      string `json:"sticker_url,omitempty" db:"sticker_url"`
	StickerMimeType string `json:"sticker_mime_type,omitempty" db:"sticker_mime_type"`
	IsAnimated      bool   `json:"is_animated" db:"is_animated"`

	ContactsData json.RawMessage `json:"contacts_data,omitempty" db:"contacts_data"`

	// Timestamp is the provider-supplied event timestamp, stored verbatim.
	// It is not guaranteed to be parseable; ordering uses CreatedAt.
	Timestamp          string `json:"timestamp" db:"timestamp"`
	PhoneNumberID      string `json:"phone_number_id" db:"phone_number_id"`
	DisplayPhoneNumber string `json:"display_phone_number" db:"display_phone_number"`

	RawPayload json.RawMessage `json:"raw_payload" db:"raw_payload"`

	Processed bool      `json:"processed" db:"processed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CallEvent is one call signaling event. A single call produces one row per
// event (connect, then terminate), so CallID is intentionally not unique.
type CallEvent struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`

	FromNumber  string `json:"from_number" db:"from_number"`
	ToNumber    string `json:"to_number" db:"to_number"`
	WaID        string `json:"wa_id" db:"wa_id"`
	ContactName string `json:"contact_name,omitempty" db:"contact_name"`

	Event     CallEventType `json:"event" db:"event"`
	Direction CallDirection `json:"direction" db:"direction"`
	// Status is only present on terminate events.
	Status CallStatus `json:"status,omitempty" db:"status"`

	Timestamp string `json:"timestamp" db:"timestamp"`
	StartTime string `json:"start_time,omitempty" db:"start_time"`
	EndTime   string `json:"end_time,omitempty" db:"end_time"`
	// DurationSeconds is only present on terminate events.
	DurationSeconds *int `json:"duration,omitempty" db:"duration"`

	// WebRTC session description, present on connect events.
	SessionSDP     string `json:"session_sdp,omitempty" db:"session_sdp"`
	SessionSDPType string `json:"session_sdp_type,omitempty" db:"session_sdp_type"`

	PhoneNumberID      string `json:"phone_number_id" db:"phone_number_id"`
	DisplayPhoneNumber string `json:"display_phone_number" db:"display_phone_number"`

	RawPayload json.RawMessage `json:"raw_payload" db:"raw_payload"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

type CallEventType string

const (
	CallEventConnect   CallEventType = "connect"
	CallEventTerminate CallEventType = "terminate"
)

type CallDirection string

const (
	CallDirectionUserInitiated     CallDirection = "USER_INITIATED"
	CallDirectionBusinessInitiated CallDirection = "BUSINESS_INITIATED"
)

type CallStatus string

const (
	CallStatusCompleted CallStatus = "COMPLETED"
	CallStatusMissed    CallStatus = "MISSED"
	CallStatusDeclined  CallStatus = "DECLINED"
	CallStatusFailed    CallStatus = "FAILED"
	CallStatusBusy      CallStatus = "BUSY"
	CallStatusNoAnswer  CallStatus = "NO_ANSWER"
)

// StatusEvent is one delivery-status transition for an outbound message.
// The same MessageID accumulates sent -> delivered -> read (or failed) rows,
// so MessageID is intentionally not unique.
type StatusEvent struct {
	ID        string `json:"id" db:"id"`
	MessageID string `json:"message_id" db:"message_id"`

	Status      DeliveryStatus `json:"status" db:"status"`
	RecipientID string         `json:"recipient_id" db:"recipient_id"`

	ConversationID         string `json:"conversation_id,omitempty" db:"conversation_id"`
	ConversationExpiration string `json:"conversation_expiration_timestamp,omitempty" db:"conversation_expiration_timestamp"`
	ConversationOriginType string `json:"conversation_origin_type,omitempty" db:"conversation_origin_type"`

	IsBillable      bool   `json:"is_billable" db:"is_billable"`
	PricingModel    string `json:"pricing_model,omitempty" db:"pricing_model"`
	PricingCategory string `json:"pricing_category,omitempty" db:"pricing_category"`
	PricingType     string `json:"pricing_type,omitempty" db:"pricing_type"`

	Timestamp          string `json:"timestamp" db:"timestamp"`
	PhoneNumberID      string `json:"phone_number_id" db:"phone_number_id"`
	DisplayPhoneNumber string `json:"display_phone_number" db:"display_phone_number"`

	RawPayload json.RawMessage `json:"raw_payload" db:"raw_payload"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

type DeliveryStatus string

const (
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// OutgoingMessage is one send attempt through the Cloud API.
//
// Lifecycle: created as pending before the network call, then moved to sent
// or failed exactly once. This is the only mutable record kind; a send
// attempt must never remain pending after the attempt finishes.
type OutgoingMessage struct {
	ID string `json:"id" db:"id"`

	// MessageID is assigned by the provider on acknowledgment; empty until
	// then. Unique when present.
	MessageID string `json:"message_id,omitempty" db:"message_id"`

	ToNumber    string `json:"to_number" db:"to_number"`
	MessageType string `json:"message_type" db:"message_type"`
	MessageText string `json:"message_text" db:"message_text"`

	Status       OutgoingStatus  `json:"status" db:"status"`
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`
	APIResponse  json.RawMessage `json:"api_response,omitempty" db:"api_response"`

	SentAt    *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type OutgoingStatus string

const (
	OutgoingStatusPending OutgoingStatus = "pending"
	OutgoingStatusSent    OutgoingStatus = "sent"
	OutgoingStatusFailed  OutgoingStatus = "failed"
)

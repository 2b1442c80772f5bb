package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// MessageRepo persists inbound messages.
//
// Upsert is keyed on MessageID: redelivered webhook events overwrite the
// existing row. This is the only record kind with update-on-conflict
// semantics.
type MessageRepo interface {
	// Upsert stores m keyed on m.MessageID and reports whether a new row was
	// created (false means an existing row was updated).
	Upsert(ctx context.Context, m *InboundMessage) (created bool, err error)
	List(ctx context.Context, f MessageFilter) ([]InboundMessage, error)
	// MarkProcessed flips the processed flag for the row with the given
	// internal id. Returns ErrNotFound for unknown ids.
	MarkProcessed(ctx context.Context, id string, at time.Time) error
}

// MessageFilter narrows List results. Zero values mean "no filter".
type MessageFilter struct {
	WaID        string
	MessageType string
	// Processed filters on the processed flag when non-nil.
	Processed *bool
	Limit     int
}

// CallRepo persists call events.
//
// It MUST be append-only: the same call id legitimately appears on both its
// connect and terminate rows. No Update/Delete methods are provided.
type CallRepo interface {
	Append(ctx context.Context, e *CallEvent) error
	List(ctx context.Context, limit int) ([]CallEvent, error)
}

// StatusRepo persists delivery-status events.
//
// It MUST be append-only: one outbound message accumulates multiple status
// rows over its lifetime.
type StatusRepo interface {
	Append(ctx context.Context, e *StatusEvent) error
	List(ctx context.Context, limit int) ([]StatusEvent, error)
}

// OutgoingRepo persists outbound send attempts.
type OutgoingRepo interface {
	Create(ctx context.Context, m *OutgoingMessage) error
	// MarkSent moves a pending record to sent with the provider message id,
	// the raw API response and the send timestamp.
	MarkSent(ctx context.Context, id, messageID string, response json.RawMessage, at time.Time) error
	// MarkFailed moves a pending record to failed with the error text and
	// whatever raw response was available.
	MarkFailed(ctx context.Context, id, errorMessage string, response json.RawMessage, at time.Time) error
	List(ctx context.Context, limit int) ([]OutgoingMessage, error)
}

const defaultListLimit = 100

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultListLimit
	}
	return limit
}

package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// In-memory repositories for tests and early development.
// Not intended for production use.

type MemoryMessageRepo struct {
	mu       sync.Mutex
	byMsgID  map[string]*InboundMessage
	ordered  []string // message ids in first-insert order
	failNext error
}

func NewMemoryMessageRepo() *MemoryMessageRepo {
	return &MemoryMessageRepo{byMsgID: map[string]*InboundMessage{}}
}

// FailNext makes the next write return err. Used to exercise per-record
// failure isolation in handler tests.
func (r *MemoryMessageRepo) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

func (r *MemoryMessageRepo) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *MemoryMessageRepo) Upsert(ctx context.Context, m *InboundMessage) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return false, err
	}

	if existing, ok := r.byMsgID[m.MessageID]; ok {
		// Keep the original identity and creation time; everything else is
		// overwritten by the redelivered event.
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		cp := *m
		r.byMsgID[m.MessageID] = &cp
		return false, nil
	}
	cp := *m
	r.byMsgID[m.MessageID] = &cp
	r.ordered = append(r.ordered, m.MessageID)
	return true, nil
}

func (r *MemoryMessageRepo) List(ctx context.Context, f MessageFilter) ([]InboundMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []InboundMessage
	for _, id := range r.ordered {
		m := r.byMsgID[id]
		if f.WaID != "" && m.WaID != f.WaID {
			continue
		}
		if f.MessageType != "" && m.MessageType != f.MessageType {
			continue
		}
		if f.Processed != nil && m.Processed != *f.Processed {
			continue
		}
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit := clampLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryMessageRepo) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byMsgID {
		if m.ID == id {
			m.Processed = true
			m.UpdatedAt = at
			return nil
		}
	}
	return ErrNotFound
}

type MemoryCallRepo struct {
	mu       sync.Mutex
	events   []CallEvent
	failNext error
}

func NewMemoryCallRepo() *MemoryCallRepo { return &MemoryCallRepo{} }

func (r *MemoryCallRepo) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

func (r *MemoryCallRepo) Append(ctx context.Context, e *CallEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failNext; err != nil {
		r.failNext = nil
		return err
	}
	r.events = append(r.events, *e)
	return nil
}

func (r *MemoryCallRepo) List(ctx context.Context, limit int) ([]CallEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallEvent, len(r.events))
	copy(out, r.events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if l := clampLimit(limit); len(out) > l {
		out = out[:l]
	}
	return out, nil
}

type MemoryStatusRepo struct {
	mu       sync.Mutex
	events   []StatusEvent
	failNext error
}

func NewMemoryStatusRepo() *MemoryStatusRepo { return &MemoryStatusRepo{} }

func (r *MemoryStatusRepo) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

func (r *MemoryStatusRepo) Append(ctx context.Context, e *StatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failNext; err != nil {
		r.failNext = nil
		return err
	}
	r.events = append(r.events, *e)
	return nil
}

func (r *MemoryStatusRepo) List(ctx context.Context, limit int) ([]StatusEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StatusEvent, len(r.events))
	copy(out, r.events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if l := clampLimit(limit); len(out) > l {
		out = out[:l]
	}
	return out, nil
}

type MemoryOutgoingRepo struct {
	mu       sync.Mutex
	byID     map[string]*OutgoingMessage
	ordered  []string
	failNext error
}

func NewMemoryOutgoingRepo() *MemoryOutgoingRepo {
	return &MemoryOutgoingRepo{byID: map[string]*OutgoingMessage{}}
}

func (r *MemoryOutgoingRepo) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

func (r *MemoryOutgoingRepo) Create(ctx context.Context, m *OutgoingMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failNext; err != nil {
		r.failNext = nil
		return err
	}
	cp := *m
	r.byID[m.ID] = &cp
	r.ordered = append(r.ordered, m.ID)
	return nil
}

func (r *MemoryOutgoingRepo) MarkSent(ctx context.Context, id, messageID string, response json.RawMessage, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	m.MessageID = messageID
	m.Status = OutgoingStatusSent
	m.APIResponse = response
	t := at
	m.SentAt = &t
	m.UpdatedAt = at
	return nil
}

func (r *MemoryOutgoingRepo) MarkFailed(ctx context.Context, id, errorMessage string, response json.RawMessage, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	m.Status = OutgoingStatusFailed
	m.ErrorMessage = errorMessage
	m.APIResponse = response
	m.UpdatedAt = at
	return nil
}

// Get returns a copy of one record, for test assertions.
func (r *MemoryOutgoingRepo) Get(id string) (OutgoingMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return OutgoingMessage{}, false
	}
	return *m, true
}

func (r *MemoryOutgoingRepo) List(ctx context.Context, limit int) ([]OutgoingMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []OutgoingMessage
	for _, id := range r.ordered {
		out = append(out, *r.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if l := clampLimit(limit); len(out) > l {
		out = out[:l]
	}
	return out, nil
}

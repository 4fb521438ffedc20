package shared

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event emitted by the core. Listeners (notifications,
// audit trails, reconciliation triggers) subscribe through the Bus; the core
// only emits.
type Event interface {
	EventName() string
}

// DocumentPosted signals that ledger lines were written for a document.
type DocumentPosted struct {
	Module    string
	Ref       uuid.UUID
	PostingID int64
	PostedBy  int64
	At        time.Time
}

// EventName implements Event.
func (DocumentPosted) EventName() string { return "document.posted" }

// DocumentStatusChanged signals a successful status transition.
type DocumentStatusChanged struct {
	Module  string
	Ref     uuid.UUID
	From    string
	To      string
	ActorID int64
	At      time.Time
}

// EventName implements Event.
func (DocumentStatusChanged) EventName() string { return "document.status_changed" }

// Handler consumes events. Handler errors are logged, never propagated: a
// failing listener must not roll back a committed posting.
type Handler func(ctx context.Context, evt Event)

// Bus is a synchronous in-process event dispatcher.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *slog.Logger
}

// NewBus constructs a Bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a handler for all events.
func (b *Bus) Subscribe(h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish dispatches the event to all handlers. Safe on a nil bus.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil && b.logger != nil {
					b.logger.Error("event handler panic",
						slog.String("event", evt.EventName()),
						slog.Any("panic", r))
				}
			}()
			h(ctx, evt)
		}()
	}
}

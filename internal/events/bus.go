package events

import (
	"context"
	"log/slog"
	"sync"
)

// Handler consumes a published envelope. Handlers must not block; slow work
// belongs in the handler's own goroutine or queue.
type Handler func(ctx context.Context, envelope Envelope)

// Bus is the publish side of the event contract.
type Bus interface {
	Publish(ctx context.Context, envelope Envelope) error
}

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// InMemoryBus is a synchronous in-process bus. It backs single-node
// deployments and tests; multi-node deployments use the Kafka bus.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	logger      *slog.Logger
}

func NewInMemoryBus(logger *slog.Logger) *InMemoryBus {
	return &InMemoryBus{
		subscribers: make(map[string][]Handler),
		logger:      logger,
	}
}

// Subscribe registers a handler for an event type, or for all events via the
// wildcard.
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish validates the envelope and delivers it to exact-type subscribers
// first, then wildcard subscribers.
func (b *InMemoryBus) Publish(ctx context.Context, envelope Envelope) error {
	if err := ValidatePayload(envelope.EventType, envelope.Payload); err != nil {
		return err
	}

	b.mu.RLock()
	exact := append([]Handler(nil), b.subscribers[envelope.EventType]...)
	wildcard := append([]Handler(nil), b.subscribers[Wildcard]...)
	b.mu.RUnlock()

	for _, handler := range exact {
		handler(ctx, envelope)
	}
	for _, handler := range wildcard {
		handler(ctx, envelope)
	}

	if b.logger != nil {
		b.logger.DebugContext(ctx, "event published",
			"event_type", envelope.EventType,
			"tenant_id", envelope.TenantID,
			"document_id", envelope.DocumentID,
		)
	}
	return nil
}

// Package notify turns lifecycle events into citizen-facing messages. It
// listens on the event bus, fans each triggering event out to the channels
// the tenant has enabled, and records every message for audit.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"govdociq/internal/domain"
	"govdociq/internal/events"
	"govdociq/internal/notify/metrics"
)

// Store is the slice of persistence the notifier needs.
type Store interface {
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	GetTenantPolicy(ctx context.Context, tenantID string) (domain.TenantPolicy, error)
	CreateNotification(ctx context.Context, n domain.Notification) error
	ListNotifications(ctx context.Context, documentID string) ([]domain.Notification, error)
}

// triggerable lists the events that reach citizens. Everything else on the
// bus is internal plumbing.
var triggerable = map[string]struct{}{
	events.DocumentReceived:         {},
	events.DocumentFlaggedForReview: {},
	events.ReviewStarted:            {},
	events.DocumentApproved:         {},
	events.DocumentRejected:         {},
	events.DocumentDisputed:         {},
	events.ReviewCompleted:          {},
	events.OfflineConflictDetected:  {},
}

type Service struct {
	store   Store
	bus     events.Bus
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, bus events.Bus, opts ...Option) *Service {
	s := &Service{store: store, bus: bus, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register subscribes the notifier to every event on the bus.
func (s *Service) Register(bus *events.InMemoryBus) {
	bus.Subscribe(events.Wildcard, func(ctx context.Context, env events.Envelope) {
		if _, err := s.HandleEvent(ctx, env); err != nil {
			s.logger.WarnContext(ctx, "notification failed",
				"event_type", env.EventType, "document_id", env.DocumentID, "error", err)
		}
	})
}

// Delivery reports what was sent for one event.
type Delivery struct {
	CitizenID string
	Channels  []string
	Message   string
}

// HandleEvent records a notification per enabled channel for a triggering
// event. Non-triggering events and unknown documents are skipped silently.
func (s *Service) HandleEvent(ctx context.Context, env events.Envelope) (*Delivery, error) {
	if _, ok := triggerable[env.EventType]; !ok {
		return nil, nil
	}

	doc, err := s.store.GetDocument(ctx, env.DocumentID)
	if err != nil {
		return nil, nil
	}

	policy, err := s.store.GetTenantPolicy(ctx, env.TenantID)
	if err != nil {
		policy = domain.DefaultTenantPolicy(env.TenantID)
	}
	channels := enabledChannels(policy)
	message := buildMessage(env, doc)

	for _, channel := range channels {
		n := domain.Notification{
			ID:         uuid.NewString(),
			TenantID:   env.TenantID,
			DocumentID: env.DocumentID,
			CitizenID:  doc.CitizenID,
			Channel:    channel,
			EventType:  env.EventType,
			Message:    message,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.store.CreateNotification(ctx, n); err != nil {
			return nil, fmt.Errorf("record %s notification: %w", channel, err)
		}
		s.metrics.IncrementSent(channel)
	}

	s.publishSent(ctx, env, channels, message)
	return &Delivery{CitizenID: doc.CitizenID, Channels: channels, Message: message}, nil
}

// History returns the recorded notifications for a document.
func (s *Service) History(ctx context.Context, documentID string) ([]domain.Notification, error) {
	return s.store.ListNotifications(ctx, documentID)
}

func (s *Service) publishSent(ctx context.Context, cause events.Envelope, channels []string, message string) {
	if s.bus == nil {
		return
	}
	env, err := events.NewEnvelope(events.NotificationSent, cause.TenantID, cause.DocumentID, "SYSTEM", "", map[string]any{
		"channels": channels,
		"message":  message,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "event rejected by contract", "event_type", events.NotificationSent, "error", err)
		return
	}
	env.CausationID = cause.CorrelationID
	if err := s.bus.Publish(ctx, env); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "event_type", events.NotificationSent, "error", err)
	}
}

func enabledChannels(policy domain.TenantPolicy) []string {
	var channels []string
	if policy.SMSEnabled {
		channels = append(channels, "SMS")
	}
	if policy.EmailEnabled {
		channels = append(channels, "EMAIL")
	}
	if policy.PortalEnabled {
		channels = append(channels, "PORTAL")
	}
	if policy.WhatsAppEnabled {
		channels = append(channels, "WHATSAPP")
	}
	return channels
}

func buildMessage(env events.Envelope, doc *domain.Document) string {
	switch env.EventType {
	case events.DocumentReceived:
		return "Document received and queued for processing."
	case events.DocumentFlaggedForReview:
		return "Document requires officer review."
	case events.ReviewStarted:
		return "Your document is now under officer review."
	case events.DocumentApproved:
		return "Your document has been approved."
	case events.DocumentRejected:
		reasonText := "Further verification failed"
		if reasons := payloadStrings(env.Payload, "reason_codes"); len(reasons) > 0 {
			reasonText = strings.Join(reasons, ", ")
		}
		return fmt.Sprintf("Your document was rejected. Reason: %s.", reasonText)
	case events.DocumentDisputed:
		return "Your dispute has been accepted and moved to senior review."
	case events.ReviewCompleted:
		decision := string(doc.Decision)
		if decision == "" {
			decision = "PENDING"
		}
		return fmt.Sprintf("Review completed. Final decision: %s.", decision)
	case events.OfflineConflictDetected:
		return "Provisional offline result has been revised after centralized verification. Please re-upload or visit a center."
	}
	return fmt.Sprintf("Document status changed: %s.", env.EventType)
}

func payloadStrings(payload map[string]any, key string) []string {
	raw, ok := payload[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

type BusSuite struct {
	suite.Suite
	bus *InMemoryBus
	ctx context.Context
}

func (s *BusSuite) SetupTest() {
	s.bus = NewInMemoryBus(nil)
	s.ctx = context.Background()
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}

func (s *BusSuite) envelope(eventType string, payload map[string]any) Envelope {
	env, err := NewEnvelope(eventType, "tenant-a", "doc-1", "SYSTEM", "", payload)
	s.Require().NoError(err)
	return env
}

func (s *BusSuite) TestPublish() {
	s.Run("delivers to exact subscribers", func() {
		var got []string
		s.bus.Subscribe(DocumentReceived, func(_ context.Context, env Envelope) {
			got = append(got, env.EventType)
		})

		env := s.envelope(DocumentReceived, map[string]any{"file_name": "pan.pdf"})
		s.Require().NoError(s.bus.Publish(s.ctx, env))
		s.Equal([]string{DocumentReceived}, got)
	})

	s.Run("wildcard sees every event after exact subscribers", func() {
		var order []string
		s.bus.Subscribe(DocumentFailed, func(_ context.Context, _ Envelope) {
			order = append(order, "exact")
		})
		s.bus.Subscribe(Wildcard, func(_ context.Context, _ Envelope) {
			order = append(order, "wildcard")
		})

		env := s.envelope(DocumentFailed, map[string]any{"error": "node exploded"})
		s.Require().NoError(s.bus.Publish(s.ctx, env))
		s.Equal([]string{"exact", "wildcard"}, order)
	})

	s.Run("rejects envelope that skips validation", func() {
		err := s.bus.Publish(s.ctx, Envelope{EventType: DocumentReceived, Payload: map[string]any{}})
		s.Require().Error(err)
	})

	s.Run("no subscribers is not an error", func() {
		env := s.envelope(OCRCompleted, map[string]any{"ocr_confidence": 0.91})
		s.Require().NoError(s.bus.Publish(s.ctx, env))
	})
}

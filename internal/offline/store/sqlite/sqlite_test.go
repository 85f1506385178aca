package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"govdociq/internal/domain"
	"govdociq/internal/offline/store/sqlite"
	"govdociq/pkg/sentinel"
)

type SqliteSuite struct {
	suite.Suite
	ctx   context.Context
	store *sqlite.Store
}

func (s *SqliteSuite) SetupTest() {
	s.ctx = context.Background()
	store, err := sqlite.Open(":memory:")
	s.Require().NoError(err)
	s.Require().NoError(store.EnsureSchema(s.ctx))
	s.store = store
}

func (s *SqliteSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

// SetupSubTest reopens a fresh database per subtest so captures from one
// subtest never appear in another's listings.
func (s *SqliteSuite) SetupSubTest() {
	s.Require().NoError(s.store.Close())
	s.SetupTest()
}

func TestSqliteSuite(t *testing.T) {
	suite.Run(t, new(SqliteSuite))
}

func (s *SqliteSuite) capture(capturedAt time.Time) *sqlite.Capture {
	return &sqlite.Capture{
		ID:                  uuid.NewString(),
		TenantID:            "tenant-a",
		CitizenID:           "citizen-1",
		FileName:            fmt.Sprintf("scan_%d.pdf", capturedAt.UnixNano()),
		RawText:             "field capture",
		NodeID:              "node-7",
		OfficerID:           "officer-1",
		ProvisionalDecision: domain.DecisionReview,
		ModelVersions:       map[string]string{"ocr": "edge-1.2"},
		Metadata:            map[string]any{"camp": "district-9"},
		CapturedAt:          capturedAt,
	}
}

func (s *SqliteSuite) TestOutbox() {
	s.Run("round-trips a capture", func() {
		c := s.capture(time.Now())
		s.Require().NoError(s.store.Enqueue(s.ctx, c))

		found, err := s.store.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(c.TenantID, found.TenantID)
		s.Equal(domain.DecisionReview, found.ProvisionalDecision)
		s.Equal("edge-1.2", found.ModelVersions["ocr"])
		s.Equal("district-9", found.Metadata["camp"])
		s.False(found.Shipped)
	})

	s.Run("lists unshipped oldest first with a cap", func() {
		base := time.Now()
		for i := 0; i < 4; i++ {
			s.Require().NoError(s.store.Enqueue(s.ctx, s.capture(base.Add(time.Duration(i)*time.Second))))
		}

		batch, err := s.store.ListUnshipped(s.ctx, 2)
		s.Require().NoError(err)
		s.Require().Len(batch, 2)
		s.True(batch[0].CapturedAt.Before(batch[1].CapturedAt))
	})

	s.Run("marks shipped exactly once", func() {
		c := s.capture(time.Now())
		s.Require().NoError(s.store.Enqueue(s.ctx, c))
		s.Require().NoError(s.store.MarkShipped(s.ctx, c.ID, time.Now()))

		found, err := s.store.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.True(found.Shipped)
		s.NotNil(found.ShippedAt)

		err = s.store.MarkShipped(s.ctx, c.ID, time.Now())
		s.True(errors.Is(err, sentinel.ErrConflict))

		unshipped, err := s.store.ListUnshipped(s.ctx, 0)
		s.Require().NoError(err)
		s.Empty(unshipped)
	})

	s.Run("missing capture is not found", func() {
		err := s.store.MarkShipped(s.ctx, "missing", time.Now())
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Run("purges shipped captures past the cutoff", func() {
		c := s.capture(time.Now().Add(-48 * time.Hour))
		s.Require().NoError(s.store.Enqueue(s.ctx, c))
		s.Require().NoError(s.store.MarkShipped(s.ctx, c.ID, time.Now().Add(-47*time.Hour)))

		purged, err := s.store.PurgeShipped(s.ctx, time.Now().Add(-24*time.Hour))
		s.Require().NoError(err)
		s.Equal(1, purged)

		_, err = s.store.Get(s.ctx, c.ID)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

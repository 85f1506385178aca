package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"govdociq/internal/domain"
	"govdociq/internal/pipeline/modules"
	"govdociq/pkg/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newDocument(tenantID string) *domain.Document {
	return domain.NewDocument(tenantID, "citizen-1", "scan.pdf", "raw text", nil)
}

func (s *MemoryStoreSuite) TestDocumentLifecycle() {
	s.Run("creates and reads back", func() {
		doc := s.newDocument("tenant-a")
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

		found, err := s.store.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(doc.FileName, found.FileName)
		s.Equal(domain.StateReceived, found.State)
	})

	s.Run("duplicate create conflicts", func() {
		doc := s.newDocument("tenant-a")
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))
		s.ErrorIs(s.store.CreateDocument(s.ctx, doc), sentinel.ErrConflict)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.GetDocument(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("reads are isolated from caller mutation", func() {
		doc := s.newDocument("tenant-a")
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

		found, err := s.store.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		found.State = domain.StateFailed

		again, err := s.store.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(domain.StateReceived, again.State)
	})
}

func (s *MemoryStoreSuite) TestDedupCounts() {
	s.Run("tenant scope excludes the probing document and other tenants", func() {
		a := s.newDocument("tenant-a")
		a.DedupHash = "h1"
		b := s.newDocument("tenant-a")
		b.DedupHash = "h1"
		other := s.newDocument("tenant-b")
		other.DedupHash = "h1"
		for _, doc := range []*domain.Document{a, b, other} {
			s.Require().NoError(s.store.CreateDocument(s.ctx, doc))
		}

		count, err := s.store.CountByHash(s.ctx, "tenant-a", "h1", a.ID)
		s.Require().NoError(err)
		s.Equal(1, count)

		global, err := s.store.CountByHashGlobal(s.ctx, "h1", a.ID)
		s.Require().NoError(err)
		s.Equal(2, global)
	})

	s.Run("empty hash never matches", func() {
		doc := s.newDocument("tenant-a")
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))
		count, err := s.store.CountByHash(s.ctx, "tenant-a", "", "other")
		s.Require().NoError(err)
		s.Zero(count)
	})
}

func (s *MemoryStoreSuite) TestSyncStatus() {
	s.Run("compare and set transitions pending documents", func() {
		doc := s.newDocument("tenant-a")
		doc.Offline = &domain.OfflineSyncRecord{ProcessedOffline: true, SyncStatus: domain.SyncPending}
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

		s.Require().NoError(s.store.SetSyncStatus(s.ctx, doc.ID, domain.SyncPending, domain.SyncSynced))

		found, err := s.store.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(domain.SyncSynced, found.Offline.SyncStatus)
		s.False(found.Offline.SyncedToCentralAt.IsZero())
	})

	s.Run("stale expectation conflicts", func() {
		doc := s.newDocument("tenant-a")
		doc.Offline = &domain.OfflineSyncRecord{ProcessedOffline: true, SyncStatus: domain.SyncQueueOverflow}
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))

		err := s.store.SetSyncStatus(s.ctx, doc.ID, domain.SyncPending, domain.SyncSynced)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("pending list is scoped and ordered", func() {
		first := s.newDocument("tenant-a")
		first.Offline = &domain.OfflineSyncRecord{ProcessedOffline: true, SyncStatus: domain.SyncPending}
		online := s.newDocument("tenant-a")
		s.Require().NoError(s.store.CreateDocument(s.ctx, first))
		s.Require().NoError(s.store.CreateDocument(s.ctx, online))

		pending, err := s.store.ListPendingOffline(s.ctx, "tenant-a")
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(first.ID, pending[0].ID)
	})
}

func (s *MemoryStoreSuite) TestRuleSets() {
	s.Run("round trips tenant scoped rules", func() {
		rules := modules.RuleSet{Name: "rule_pan", MinApprovalConfidence: 0.8, RegistryRequired: true}
		s.Require().NoError(s.store.PutRuleSet(s.ctx, "tenant-a", "pan", rules))

		got, ok, err := s.store.GetRuleSet(s.ctx, "tenant-a", "PAN")
		s.Require().NoError(err)
		s.True(ok)
		s.Equal("rule_pan", got.Name)
	})

	s.Run("missing rules report absent", func() {
		_, ok, err := s.store.GetRuleSet(s.ctx, "tenant-a", "VOTER_ID")
		s.Require().NoError(err)
		s.False(ok)
	})
}

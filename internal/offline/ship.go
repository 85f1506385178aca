package offline

import (
	"context"
	"time"

	"govdociq/internal/offline/store/sqlite"
	dErrors "govdociq/pkg/domain-errors"
)

// Outbox is the field-node capture queue drained once connectivity returns.
type Outbox interface {
	ListUnshipped(ctx context.Context, limit int) ([]*sqlite.Capture, error)
	MarkShipped(ctx context.Context, id string, shippedAt time.Time) error
}

// ShipReport summarizes one outbox drain.
type ShipReport struct {
	Shipped int
	Failed  int
}

// ShipCaptures registers unshipped field captures as provisional documents
// pending central reconciliation. A capture is marked shipped only after the
// central intake accepted it; a failed capture stays queued for the next
// pass. A non-positive limit falls back to the configured fetch limit.
func (s *Service) ShipCaptures(ctx context.Context, outbox Outbox, limit int) (ShipReport, error) {
	if limit <= 0 {
		limit = s.fetchLimit
	}
	captures, err := outbox.ListUnshipped(ctx, limit)
	if err != nil {
		return ShipReport{}, dErrors.Wrap(dErrors.CodeInternal, "list unshipped captures", err)
	}

	var report ShipReport
	for _, c := range captures {
		_, err := s.CreateProvisional(ctx, ProvisionalInput{
			TenantID:            c.TenantID,
			CitizenID:           c.CitizenID,
			FileName:            c.FileName,
			RawText:             c.RawText,
			OfficerID:           c.OfficerID,
			NodeID:              c.NodeID,
			ModelVersions:       c.ModelVersions,
			ProvisionalDecision: c.ProvisionalDecision,
			Metadata:            c.Metadata,
		})
		if err != nil {
			report.Failed++
			s.logger.WarnContext(ctx, "capture ship failed", "capture_id", c.ID, "error", err)
			continue
		}
		if err := outbox.MarkShipped(ctx, c.ID, time.Now().UTC()); err != nil {
			s.logger.WarnContext(ctx, "capture shipped but not marked", "capture_id", c.ID, "error", err)
		}
		report.Shipped++
	}
	return report, nil
}

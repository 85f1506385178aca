package httptransport

import (
	"time"

	"govdociq/internal/domain"
)

type documentResponse struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	CitizenID  string         `json:"citizen_id"`
	FileName   string         `json:"file_name"`
	State      string         `json:"state"`
	Decision   string         `json:"decision,omitempty"`
	Confidence float64        `json:"confidence"`
	RiskScore  float64        `json:"risk_score"`
	DedupHash  string         `json:"dedup_hash,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Offline    *offlineRecord `json:"offline,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type offlineRecord struct {
	NodeID              string    `json:"node_id"`
	ProvisionalDecision string    `json:"provisional_decision,omitempty"`
	SyncStatus          string    `json:"sync_status"`
	ProcessedOfflineAt  time.Time `json:"processed_offline_at"`
}

func toDocumentResponse(doc *domain.Document) documentResponse {
	resp := documentResponse{
		ID:         doc.ID,
		TenantID:   doc.TenantID,
		CitizenID:  doc.CitizenID,
		FileName:   doc.FileName,
		State:      string(doc.State),
		Decision:   string(doc.Decision),
		Confidence: doc.Confidence,
		RiskScore:  doc.RiskScore,
		DedupHash:  doc.DedupHash,
		Metadata:   doc.Metadata,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if doc.Offline != nil {
		resp.Offline = &offlineRecord{
			NodeID:              doc.Offline.OfflineNodeID,
			ProvisionalDecision: string(doc.Offline.ProvisionalDecision),
			SyncStatus:          string(doc.Offline.SyncStatus),
			ProcessedOfflineAt:  doc.Offline.ProcessedOfflineAt,
		}
	}
	return resp
}

func toDocumentResponses(docs []*domain.Document) []documentResponse {
	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	return out
}

type transitionResponse struct {
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	At        time.Time `json:"at"`
	By        string    `json:"by,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

func toTransitionResponses(transitions []domain.StateTransition) []transitionResponse {
	out := make([]transitionResponse, 0, len(transitions))
	for _, tr := range transitions {
		out = append(out, transitionResponse{
			FromState: string(tr.FromState),
			ToState:   string(tr.ToState),
			At:        tr.At,
			By:        tr.By,
			Reason:    tr.Reason,
		})
	}
	return out
}

type disputeResponse struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	Reason       string    `json:"reason"`
	EvidenceNote string    `json:"evidence_note,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type notificationResponse struct {
	Channel   string    `json:"channel"`
	EventType string    `json:"event_type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

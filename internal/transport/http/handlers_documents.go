package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"govdociq/internal/document"
	"govdociq/internal/domain"
	"govdociq/internal/notify"
	dErrors "govdociq/pkg/domain-errors"
	"govdociq/pkg/platform/httputil"
)

// DocumentHandler exposes the document lifecycle over HTTP.
type DocumentHandler struct {
	documents *document.Service
	notifier  *notify.Service
	logger    *slog.Logger
}

func NewDocumentHandler(documents *document.Service, notifier *notify.Service, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{documents: documents, notifier: notifier, logger: logger}
}

func (h *DocumentHandler) Register(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Route("/{documentID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/process", h.handleProcess)
			r.Get("/history", h.handleHistory)
			r.Get("/notifications", h.handleNotifications)
			r.Post("/review/start", h.handleStartReview)
			r.Post("/review/decision", h.handleManualDecision)
			r.Post("/dispute", h.handleDispute)
			r.Post("/archive", h.handleArchive)
		})
	})
	r.Post("/officers", h.handleRegisterOfficer)
	r.Route("/tenants/{tenantID}/policy", func(r chi.Router) {
		r.Get("/", h.handleGetPolicy)
		r.Put("/", h.handlePutPolicy)
	})
}

type createDocumentRequest struct {
	TenantID    string            `json:"tenant_id"`
	CitizenID   string            `json:"citizen_id"`
	FileName    string            `json:"file_name"`
	RawText     string            `json:"raw_text"`
	DocTypeHint string            `json:"doc_type_hint,omitempty"`
	Prefilled   map[string]string `json:"prefilled,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

func (h *DocumentHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[createDocumentRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	doc, err := h.documents.Create(ctx, document.CreateInput{
		TenantID:    req.TenantID,
		CitizenID:   req.CitizenID,
		FileName:    req.FileName,
		RawText:     req.RawText,
		DocTypeHint: req.DocTypeHint,
		Prefilled:   req.Prefilled,
		Metadata:    req.Metadata,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *DocumentHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.Process(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *DocumentHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.Get(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *DocumentHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "tenant_id query parameter is required"))
		return
	}
	docs, err := h.documents.List(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": toDocumentResponses(docs)})
}

func (h *DocumentHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	transitions, err := h.documents.History(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transitions": toTransitionResponses(transitions)})
}

func (h *DocumentHandler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	recorded, err := h.notifier.History(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]notificationResponse, 0, len(recorded))
	for _, n := range recorded {
		out = append(out, notificationResponse{
			Channel:   n.Channel,
			EventType: n.EventType,
			Message:   n.Message,
			CreatedAt: n.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

type reviewRequest struct {
	OfficerID string `json:"officer_id"`
	Decision  string `json:"decision,omitempty"`
}

func (h *DocumentHandler) handleStartReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[reviewRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	doc, err := h.documents.StartReview(ctx, chi.URLParam(r, "documentID"), req.OfficerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *DocumentHandler) handleManualDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[reviewRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	doc, err := h.documents.ManualDecision(ctx, chi.URLParam(r, "documentID"), req.OfficerID, domain.Decision(req.Decision))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

type disputeRequest struct {
	Reason       string `json:"reason"`
	EvidenceNote string `json:"evidence_note,omitempty"`
}

func (h *DocumentHandler) handleDispute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[disputeRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	dispute, err := h.documents.OpenDispute(ctx, chi.URLParam(r, "documentID"), req.Reason, req.EvidenceNote)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, disputeResponse{
		ID:           dispute.ID,
		DocumentID:   dispute.DocumentID,
		Reason:       dispute.Reason,
		EvidenceNote: dispute.EvidenceNote,
		Status:       dispute.Status,
		CreatedAt:    dispute.CreatedAt,
	})
}

type archiveRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *DocumentHandler) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[archiveRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	doc, err := h.documents.Archive(ctx, chi.URLParam(r, "documentID"), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

type registerOfficerRequest struct {
	OfficerID string `json:"officer_id"`
	TenantID  string `json:"tenant_id"`
	Role      string `json:"role,omitempty"`
}

func (h *DocumentHandler) handleRegisterOfficer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[registerOfficerRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	if req.OfficerID == "" || req.TenantID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "officer_id and tenant_id are required"))
		return
	}

	officer, err := h.documents.RegisterOfficer(ctx, req.OfficerID, req.TenantID, req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"officer_id": officer.OfficerID,
		"tenant_id":  officer.TenantID,
		"role":       officer.Role,
		"status":     officer.Status,
	})
}

type tenantPolicyRequest struct {
	CrossTenantFraudEnabled bool `json:"cross_tenant_fraud_enabled"`
	SMSEnabled              bool `json:"sms_enabled"`
	EmailEnabled            bool `json:"email_enabled"`
	PortalEnabled           bool `json:"portal_enabled"`
	WhatsAppEnabled         bool `json:"whatsapp_enabled"`
	ReviewSLADays           int  `json:"review_sla_days"`
	SyncCapacityPerMinute   int  `json:"sync_capacity_per_minute"`
}

func (h *DocumentHandler) handlePutPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[tenantPolicyRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	policy := domain.TenantPolicy{
		TenantID:                chi.URLParam(r, "tenantID"),
		CrossTenantFraudEnabled: req.CrossTenantFraudEnabled,
		SMSEnabled:              req.SMSEnabled,
		EmailEnabled:            req.EmailEnabled,
		PortalEnabled:           req.PortalEnabled,
		WhatsAppEnabled:         req.WhatsAppEnabled,
		ReviewSLADays:           req.ReviewSLADays,
		SyncCapacityPerMinute:   req.SyncCapacityPerMinute,
	}
	if err := h.documents.SetTenantPolicy(ctx, policy); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policyBody(policy))
}

func (h *DocumentHandler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policy := h.documents.TenantPolicy(r.Context(), chi.URLParam(r, "tenantID"))
	httputil.WriteJSON(w, http.StatusOK, policyBody(policy))
}

func policyBody(policy domain.TenantPolicy) map[string]any {
	return map[string]any{
		"tenant_id":                  policy.TenantID,
		"cross_tenant_fraud_enabled": policy.CrossTenantFraudEnabled,
		"sms_enabled":                policy.SMSEnabled,
		"email_enabled":              policy.EmailEnabled,
		"portal_enabled":             policy.PortalEnabled,
		"whatsapp_enabled":           policy.WhatsAppEnabled,
		"review_sla_days":            policy.ReviewSLADays,
		"sync_capacity_per_minute":   policy.SyncCapacityPerMinute,
	}
}

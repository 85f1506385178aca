package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"govdociq/internal/domain"
	"govdociq/internal/offline"
	dErrors "govdociq/pkg/domain-errors"
	"govdociq/pkg/platform/httputil"
)

// OfflineHandler exposes provisional intake and reconciliation controls.
type OfflineHandler struct {
	offline *offline.Service
	logger  *slog.Logger
}

func NewOfflineHandler(service *offline.Service, logger *slog.Logger) *OfflineHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OfflineHandler{offline: service, logger: logger}
}

func (h *OfflineHandler) Register(r chi.Router) {
	r.Route("/offline", func(r chi.Router) {
		r.Post("/documents", h.handleCreateProvisional)
		r.Post("/documents/{documentID}/sync", h.handleSync)
		r.Post("/backpressure", h.handleBackpressure)
		r.Post("/release", h.handleRelease)
	})
}

type provisionalRequest struct {
	TenantID            string            `json:"tenant_id"`
	CitizenID           string            `json:"citizen_id"`
	FileName            string            `json:"file_name"`
	RawText             string            `json:"raw_text"`
	OfficerID           string            `json:"officer_id,omitempty"`
	NodeID              string            `json:"node_id"`
	ModelVersions       map[string]string `json:"model_versions,omitempty"`
	ProvisionalDecision string            `json:"provisional_decision"`
	Metadata            map[string]any    `json:"metadata,omitempty"`
}

func (h *OfflineHandler) handleCreateProvisional(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[provisionalRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}

	doc, err := h.offline.CreateProvisional(ctx, offline.ProvisionalInput{
		TenantID:            req.TenantID,
		CitizenID:           req.CitizenID,
		FileName:            req.FileName,
		RawText:             req.RawText,
		OfficerID:           req.OfficerID,
		NodeID:              req.NodeID,
		ModelVersions:       req.ModelVersions,
		ProvisionalDecision: domain.Decision(req.ProvisionalDecision),
		Metadata:            req.Metadata,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *OfflineHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	doc, err := h.offline.Sync(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

type tenantRequest struct {
	TenantID string `json:"tenant_id"`
}

func (h *OfflineHandler) handleBackpressure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[tenantRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	if req.TenantID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "tenant_id is required"))
		return
	}

	report, err := h.offline.ApplyBackpressure(ctx, req.TenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"queue_overflow":           report.QueueOverflow,
		"backlog_size":             report.BacklogSize,
		"sync_capacity_per_minute": report.Capacity,
	})
}

func (h *OfflineHandler) handleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[tenantRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	if req.TenantID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "tenant_id is required"))
		return
	}

	released, err := h.offline.ReleaseOverflow(ctx, req.TenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"released": released})
}

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPIssuerRegistry calls an external issuing-authority verification API.
// Failures are swallowed: an unreachable registry yields a nil result and
// the pipeline degrades to its heuristic fallback rather than crashing.
type HTTPIssuerRegistry struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPIssuerRegistry builds a registry client. Returns nil when no base
// URL is configured, which callers treat as "registry not available".
func NewHTTPIssuerRegistry(baseURL, token string, logger *slog.Logger) *HTTPIssuerRegistry {
	if strings.TrimSpace(baseURL) == "" {
		return nil
	}
	return &HTTPIssuerRegistry{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type registryRequest struct {
	TenantID string            `json:"tenant_id"`
	DocType  string            `json:"doc_type"`
	Fields   map[string]string `json:"fields"`
}

type registryResponse struct {
	Status             string  `json:"status"`
	Confidence         float64 `json:"confidence"`
	VerificationMethod string  `json:"verification_method"`
	IssuerReferenceID  string  `json:"issuer_reference_id"`
}

func (r *HTTPIssuerRegistry) Verify(ctx context.Context, tenantID, docType string, fields map[string]string) *RegistryVerification {
	body, err := json.Marshal(registryRequest{TenantID: tenantID, DocType: docType, Fields: fields})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/verify", bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if r.logger != nil {
			r.logger.WarnContext(ctx, "issuer registry unreachable", "doc_type", docType, "error", err)
		}
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if r.logger != nil {
			r.logger.WarnContext(ctx, "issuer registry error", "status", resp.StatusCode)
		}
		return nil
	}

	var out registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil
	}

	method := out.VerificationMethod
	if method == "" {
		method = "REGISTRY_API"
	}
	return &RegistryVerification{
		Status:            strings.ToUpper(out.Status),
		Confidence:        out.Confidence,
		Method:            method,
		IssuerReferenceID: out.IssuerReferenceID,
	}
}

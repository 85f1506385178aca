// Package decision fuses the pipeline branch outputs into confidence and
// risk scores and renders the final APPROVE/REJECT/REVIEW verdict with its
// reason codes. The rules live here, centralized and testable, so the
// pipeline nodes stay thin.
package decision

import (
	"fmt"
	"strconv"

	"govdociq/internal/decision/metrics"
	"govdociq/internal/pipeline/modules"
)

// hardRejectRisk is the fused risk above which no document is approved or
// queued for review, regardless of validation outcome.
const hardRejectRisk = 0.78

// Fusion is the merged view of the branch outputs.
type Fusion struct {
	Confidence   float64
	RiskScore    float64
	RiskLevel    string
	Validation   modules.Validation
	Fraud        modules.FraudScore
	Registry     modules.RegistryResult
	Authenticity modules.Authenticity
	Tamper       modules.Forensics
}

// Outcome is the final verdict plus the explainability trail.
type Outcome struct {
	Decision    string
	Confidence  float64
	RiskScore   float64
	RiskLevel   string
	ReasonCodes []string
}

// Engine computes fused scores and verdicts.
type Engine struct {
	metrics *metrics.Metrics
}

func NewEngine(m *metrics.Metrics) *Engine {
	return &Engine{metrics: m}
}

// Fuse blends the branch outputs. Confidence weighs extraction, authenticity
// and registry 0.4/0.3/0.3; risk weighs fraud and tamper 0.7/0.3.
func (e *Engine) Fuse(validation modules.Validation, fraud modules.FraudScore, registry modules.RegistryResult, auth modules.Authenticity, tamper modules.Forensics) Fusion {
	confidence := modules.Round3(
		validation.ExtractConfidence*0.4 +
			auth.Score*0.3 +
			registry.Confidence*0.3)
	risk := modules.Round3(modules.Clamp01(fraud.Score*0.7 + tamper.TamperRisk*0.3))

	riskLevel := fraud.RiskLevel
	if riskLevel == "" {
		riskLevel = "MEDIUM"
	}
	e.metrics.ObserveRiskScore(risk)
	return Fusion{
		Confidence:   confidence,
		RiskScore:    risk,
		RiskLevel:    riskLevel,
		Validation:   validation,
		Fraud:        fraud,
		Registry:     registry,
		Authenticity: auth,
		Tamper:       tamper,
	}
}

// Decide applies the policy ladder: risk at or above the hard-reject line
// rejects outright; a valid document that clears both tenant thresholds is
// approved; everything else goes to human review.
func (e *Engine) Decide(fusion Fusion) Outcome {
	minApproval := fusion.Validation.MinApprovalConfidence
	if minApproval == 0 {
		minApproval = 0.72
	}
	maxRisk := fusion.Validation.MaxApprovalRisk
	if maxRisk == 0 {
		maxRisk = 0.35
	}

	var verdict string
	switch {
	case fusion.RiskScore >= hardRejectRisk:
		verdict = "REJECT"
	case fusion.Validation.IsValid && fusion.Confidence >= minApproval && fusion.RiskScore <= maxRisk:
		verdict = "APPROVE"
	default:
		verdict = "REVIEW"
	}

	registryStatus := fusion.Registry.Status
	if registryStatus == "" {
		registryStatus = "UNKNOWN"
	}
	reasons := []string{
		fmt.Sprintf("VALID=%t", fusion.Validation.IsValid),
		"REGISTRY=" + registryStatus,
		"FRAUD=" + formatScore(fusion.Fraud.Score),
		"TAMPER=" + formatScore(fusion.Tamper.TamperRisk),
		"RISK_LEVEL=" + fusion.RiskLevel,
	}

	e.metrics.IncrementVerdict(verdict, fusion.RiskLevel)
	return Outcome{
		Decision:    verdict,
		Confidence:  modules.Round3(fusion.Confidence),
		RiskScore:   modules.Round3(fusion.RiskScore),
		RiskLevel:   fusion.RiskLevel,
		ReasonCodes: reasons,
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

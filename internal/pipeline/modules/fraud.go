package modules

import "fmt"

// Calibrator blends the weighted fraud components into an aggregate score.
// The production implementation lives in internal/decision and supports
// per-deployment weight overrides.
type Calibrator interface {
	Score(imageScore, behavioralScore, issuerScore float64) float64
}

// FraudEngine aggregates the image-forensics, behavioral and issuer-mismatch
// components into a calibrated fraud risk score.
type FraudEngine struct {
	calibrator Calibrator
}

func NewFraudEngine(calibrator Calibrator) *FraudEngine {
	return &FraudEngine{calibrator: calibrator}
}

// Score fuses the upstream signals. Duplicate resubmissions and poor scan
// quality drive the behavioral component; tamper risk drives the image
// component; the registry outcome drives the issuer-mismatch component.
func (f *FraudEngine) Score(dedup DedupResult, forensics Forensics, features ImageFeatures, registry RegistryResult) FraudScore {
	dup := dedup.DuplicateCount
	lowQuality := features.QualityScore < 0.35

	behavioral := 0.2 + min(0.4, float64(dup)*0.2)
	if lowQuality {
		behavioral += 0.2
	}
	behavioral = Round3(min(1, behavioral))
	image := Round3(min(1, forensics.TamperRisk))

	registryStatus := registry.Status
	if registryStatus == "" {
		registryStatus = "NOT_AVAILABLE"
	}
	var issuer float64
	issuerSignals := []string{}
	switch registryStatus {
	case "MATCHED", "CONFIRMED":
		issuer = 0.05
	case "UNVERIFIED", "NOT_AVAILABLE", "NOT_FOUND":
		issuer = 0.45
		issuerSignals = append(issuerSignals, "REGISTRY_"+registryStatus)
	default:
		issuer = 0.9
		issuerSignals = append(issuerSignals, "REGISTRY_"+registryStatus)
	}

	aggregate := f.calibrator.Score(image, behavioral, issuer)

	behavioralSignals := []string{fmt.Sprintf("DUPLICATE_COUNT_%d", dup)}
	if lowQuality {
		behavioralSignals = append(behavioralSignals, "LOW_IMAGE_QUALITY")
	}
	imageSignals := forensics.Indicators
	if imageSignals == nil {
		imageSignals = []string{}
	}

	scope := dedup.Scope
	if scope == "" {
		scope = "TENANT"
	}
	return FraudScore{
		Score:          aggregate,
		RiskLevel:      RiskLevel(aggregate),
		DuplicateCount: dup,
		LowQuality:     lowQuality,
		DedupScope:     scope,
		Image:          FraudComponent{Score: image, Signals: imageSignals},
		Behavioral:     FraudComponent{Score: behavioral, Signals: behavioralSignals},
		IssuerMismatch: FraudComponent{Score: issuer, Signals: issuerSignals},
		Model:          ModelMetadata{ModelID: "fraud-calibrated-aggregator", ModelVersion: "1.0.0"},
	}
}

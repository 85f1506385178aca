package modules

import (
	"context"

	"govdociq/internal/adapters"
)

// VisualAuthenticity scores stamp/seal presence and tamper forensics.
type VisualAuthenticity struct {
	adapter adapters.Authenticity
}

func NewVisualAuthenticity(adapter adapters.Authenticity) *VisualAuthenticity {
	return &VisualAuthenticity{adapter: adapter}
}

// DetectMarkers scores the stamp/seal/signature presence heuristic. The
// baseline 0.35 reflects that absence of markers is suspicious but not
// disqualifying on its own.
func (a *VisualAuthenticity) DetectMarkers(ctx context.Context, text string) Authenticity {
	inferred := a.adapter.InferMarkers(ctx, text)

	score := 0.35 + inferred.Confidence*0.2
	if inferred.StampPresent {
		score += 0.25
	}
	if inferred.SignaturePresent {
		score += 0.2
	}

	return Authenticity{
		StampPresent:     inferred.StampPresent,
		SignaturePresent: inferred.SignaturePresent,
		Score:            Round3(Clamp01(score)),
		Model:            ModelMetadata{ModelID: "auth-" + inferred.Backend, ModelVersion: "1.0.0"},
	}
}

// Forensics collects tamper indicators and the derived risk score.
func (a *VisualAuthenticity) Forensics(ctx context.Context, text string) Forensics {
	inferred := a.adapter.InferForensics(ctx, text)

	risk := Round3(inferred.Risk)
	global := inferred.GlobalImageScore
	if global == 0 {
		global = 1 - risk
		if global < 0 {
			global = 0
		}
	}

	indicators := inferred.Signals
	if indicators == nil {
		indicators = []string{}
	}
	return Forensics{
		Indicators:       indicators,
		TamperRisk:       risk,
		GlobalImageScore: Round3(global),
		Model:            ModelMetadata{ModelID: "forensics-" + inferred.Backend, ModelVersion: "1.0.0"},
	}
}

// DeriveImageFeatures combines tamper risk and scan quality into texture
// signals for the fraud engine.
func DeriveImageFeatures(forensics Forensics, pre PreprocessResult) ImageFeatures {
	texture := 1 - forensics.TamperRisk
	if texture < 0 {
		texture = 0
	}
	return ImageFeatures{
		TextureConsistency: Round3(texture),
		QualityScore:       pre.QualityScore,
	}
}

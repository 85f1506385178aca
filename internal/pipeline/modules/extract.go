package modules

import (
	"context"

	"govdociq/internal/adapters"
)

// Extractor wraps the extraction adapter with the unstructured fallback and
// low-confidence warnings.
type Extractor struct {
	adapter adapters.Extractor
}

func NewExtractor(adapter adapters.Extractor) *Extractor {
	return &Extractor{adapter: adapter}
}

// Extract pulls fields for the resolved document type. UNSTRUCTURED
// documents skip extraction and route to manual transcription.
func (e *Extractor) Extract(ctx context.Context, ocr OCRResult, template TemplateBundle) Extraction {
	if template.DocumentType == "UNSTRUCTURED" {
		return Extraction{
			Fields:          map[string]string{},
			RequiredMissing: []string{"MANUAL_TRANSCRIPTION_REQUIRED"},
			Confidence:      0,
			Route:           "HUMAN_REVIEW_MANUAL_TRANSCRIPTION",
			Warnings:        []string{"UNSTRUCTURED_HANDWRITTEN"},
		}
	}

	out := e.adapter.Extract(ctx, template.DocumentType, ocr.Text)
	result := Extraction{
		Fields:          out.Fields,
		RequiredMissing: out.RequiredMissing,
		Confidence:      Round3(out.Confidence),
	}
	if result.Fields == nil {
		result.Fields = map[string]string{}
	}
	if result.RequiredMissing == nil {
		result.RequiredMissing = []string{}
	}
	if result.Confidence < 0.55 {
		result.Warnings = append(result.Warnings, "LOW_EXTRACTION_CONFIDENCE")
	}
	return result
}

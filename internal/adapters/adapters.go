// Package adapters defines the pluggable model-adapter contracts the
// pipeline consumes and ships fail-soft heuristic implementations of each.
// An adapter must never take the pipeline down: on any backend failure it
// returns a degraded low-confidence result instead of an error, so the
// fusion engine can still produce a (likely REVIEW) decision.
package adapters

import "context"

// OCRRecognition is the raw recognizer output before normalization.
type OCRRecognition struct {
	Text       string
	Backend    string
	Confidence float64
}

// OCR recognizes text from a scanned document, falling back to the raw
// submitted text when no recognizer backend is available.
type OCR interface {
	Recognize(ctx context.Context, textFallback string) OCRRecognition
}

// ClassifyOutput is the classification adapter contract result.
type ClassifyOutput struct {
	DocType    string
	Confidence float64
	Reasons    []string
}

// Classifier assigns a document type from OCR text and the file name.
type Classifier interface {
	Classify(ctx context.Context, text, fileName string) ClassifyOutput
}

// ExtractOutput is the field-extraction adapter contract result.
type ExtractOutput struct {
	Fields          map[string]string
	RequiredMissing []string
	Confidence      float64
}

// Extractor pulls typed fields out of OCR text for a known document type.
type Extractor interface {
	Extract(ctx context.Context, docType, text string) ExtractOutput
}

// Markers reports visual authenticity markers detected on the document.
type Markers struct {
	StampPresent     bool
	SignaturePresent bool
	Confidence       float64
	Backend          string
}

// ForensicSignals reports tamper evidence detected on the document.
type ForensicSignals struct {
	Signals          []string
	Risk             float64
	GlobalImageScore float64
	Backend          string
}

// Authenticity infers stamp/seal markers and tamper forensics.
type Authenticity interface {
	InferMarkers(ctx context.Context, text string) Markers
	InferForensics(ctx context.Context, text string) ForensicSignals
}

// RegistryVerification is an issuing-authority lookup result. A nil result
// from Verify means the registry could not be consulted; the caller applies
// its own heuristic fallback.
type RegistryVerification struct {
	Status            string
	Confidence        float64
	Method            string
	IssuerReferenceID string
}

// IssuerRegistry verifies extracted fields against the issuing authority.
type IssuerRegistry interface {
	Verify(ctx context.Context, tenantID, docType string, fields map[string]string) *RegistryVerification
}

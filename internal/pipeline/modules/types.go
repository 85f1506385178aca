// Package modules holds the analysis modules the pipeline executes. Each
// module is a pure transform over typed inputs; everything nondeterministic
// (model inference, registry I/O) lives behind the adapter contracts in
// internal/adapters and fails soft.
package modules

import "time"

// ModelMetadata identifies the model that produced a module output, for the
// explainability audit trail.
type ModelMetadata struct {
	ModelID      string
	ModelVersion string
}

// PreprocessResult is the OCR-preprocessing/hashing output.
type PreprocessResult struct {
	NormalizedText         string
	DedupHash              string
	QualityScore           float64
	StepsApplied           []string
	OCRBackend             string
	OCRConfidence          float64
	HandwritingProbability float64
	HandwritingHeavy       bool
}

// OCRResult is the multi-script OCR pass output.
type OCRResult struct {
	Text                    string
	Confidence              float64
	Script                  string
	UnstructuredHandwriting bool
	Model                   ModelMetadata
}

// DedupResult is the cross-submission duplicate check output.
type DedupResult struct {
	DedupHash          string
	DuplicateCount     int
	SuspectedDuplicate bool
	Scope              string // TENANT or GLOBAL
}

// Classification is the document-type classification output.
type Classification struct {
	DocumentType  string
	DocSubtype    string
	Confidence    float64
	LowConfidence bool
	Reasons       []string
	Model         ModelMetadata
}

// RuleSet is the compiled per-tenant/per-type validation rule bundle.
type RuleSet struct {
	Name                  string
	SetID                 string
	Version               int
	MinExtractConfidence  float64
	MinApprovalConfidence float64
	MaxApprovalRisk       float64
	RegistryRequired      bool
	FieldPatterns         map[string]string
}

// TemplateBundle is the template/policy-rule resolution output.
type TemplateBundle struct {
	TemplateID      string
	TemplateVersion string
	DocumentType    string
	Rules           RuleSet
}

// Extraction is the field-extraction output.
type Extraction struct {
	Fields          map[string]string
	RequiredMissing []string
	Confidence      float64
	Route           string
	Warnings        []string
}

// PatternResult is one field-regex check outcome.
type PatternResult struct {
	FieldName  string
	Pattern    string
	Value      string
	Status     string // PASS, FAIL or WARN
	ReasonCode string
}

// PrefilledMismatch records a disagreement between operator-prefilled data
// and the extracted value.
type PrefilledMismatch struct {
	Field          string
	MatchedField   string
	PrefilledValue string
	ExtractedValue string
	Similarity     float64
	Reason         string
}

// Validation is the rules/consistency check output.
type Validation struct {
	IsValid               bool
	OverallStatus         string // PASS, WARN or FAIL
	MissingFields         []string
	ExtractConfidence     float64
	RegistryStatus        string
	RegistryRequired      bool
	RuleName              string
	RuleVersion           int
	MinApprovalConfidence float64
	MaxApprovalRisk       float64
	PatternResults        []PatternResult
	PatternFailCount      int
	PrefilledMismatches   []PrefilledMismatch
	PrefilledMatchCount   int
}

// Authenticity is the stamp/seal detection output.
type Authenticity struct {
	StampPresent     bool
	SignaturePresent bool
	Score            float64
	Model            ModelMetadata
}

// Forensics is the tamper-forensics output.
type Forensics struct {
	Indicators       []string
	TamperRisk       float64
	GlobalImageScore float64
	Model            ModelMetadata
}

// ImageFeatures derives texture/quality signals from forensics + preprocess.
type ImageFeatures struct {
	TextureConsistency float64
	QualityScore       float64
}

// FraudComponent is one weighted input into the aggregate fraud score.
type FraudComponent struct {
	Score   float64
	Signals []string
}

// FraudScore is the aggregate fraud risk output.
type FraudScore struct {
	Score          float64
	RiskLevel      string
	DuplicateCount int
	LowQuality     bool
	DedupScope     string
	Image          FraudComponent
	Behavioral     FraudComponent
	IssuerMismatch FraudComponent
	Model          ModelMetadata
}

// RegistryResult is the issuer-registry verification output.
type RegistryResult struct {
	Status            string
	Confidence        float64
	Method            string
	IssuerReferenceID string
}

// NodeAudit is one explainability audit entry per executed module.
type NodeAudit struct {
	TenantID    string
	DocumentID  string
	JobID       string
	ModuleName  string
	LatencyMS   float64
	ReasonCodes []string
	CreatedAt   time.Time
}

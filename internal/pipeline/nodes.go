package pipeline

import (
	"context"

	"govdociq/internal/decision"
	"govdociq/internal/pipeline/modules"
)

// Node names. Handlers and audit records refer to nodes by these.
const (
	NodePreprocessing  = "preprocessing_hashing"
	NodeOCR            = "ocr_multi_script"
	NodeDedup          = "dedup_cross_submission"
	NodeClassification = "classification"
	NodeStampsSeals    = "stamps_seals"
	NodeForensics      = "tamper_forensics"
	NodeTemplateMap    = "template_map"
	NodeImageFeatures  = "image_features"
	NodeFieldExtract   = "field_extract"
	NodeRegistry       = "issuer_registry_verification"
	NodeValidation     = "validation"
	NodeFraud          = "fraud_behavioral_engine"
	NodeMerge          = "merge_node"
	NodeDecision       = "decision_explainability"
	NodeOutput         = "output_notification"
)

// BranchNodes are the nodes whose completion is published as a per-branch
// event.
var BranchNodes = []string{
	NodeClassification,
	NodeDedup,
	NodeStampsSeals,
	NodeForensics,
	NodeFraud,
	NodeRegistry,
}

// DedupCounter counts prior submissions that share a content hash, excluding
// the document being processed.
type DedupCounter interface {
	CountByHash(ctx context.Context, tenantID, dedupHash, excludeDocumentID string) (int, error)
	CountByHashGlobal(ctx context.Context, dedupHash, excludeDocumentID string) (int, error)
}

// PolicySource reports tenant policy toggles the pipeline needs.
type PolicySource interface {
	CrossTenantFraudEnabled(ctx context.Context, tenantID string) bool
}

// OutputSignal is the terminal node output consumed by the notification
// dispatcher.
type OutputSignal struct {
	FinalDecision       string
	Notify              bool
	NotificationChannel string
	RiskLevel           string
}

// Deps bundles everything the standard node set needs.
type Deps struct {
	Preprocessor *modules.Preprocessor
	Classifier   *modules.Classifier
	Templates    *modules.TemplateResolver
	Extractor    *modules.Extractor
	Validator    *modules.Validator
	Visual       *modules.VisualAuthenticity
	Registry     *modules.RegistryVerifier
	Fraud        *modules.FraudEngine
	Engine       *decision.Engine
	Dedup        DedupCounter
	Policies     PolicySource
}

// StandardNodes builds the full analysis graph. The fraud engine declares
// its registry dependency explicitly so the dedup scope, forensics and
// issuer signals it consumes are all visible in the graph.
func StandardNodes(d Deps) []Node {
	return []Node{
		{
			Name: NodePreprocessing,
			Fn: func(ctx context.Context, in Input) (any, error) {
				return d.Preprocessor.Preprocess(ctx, in.Seed.RawText), nil
			},
		},
		{
			Name:      NodeOCR,
			DependsOn: []string{NodePreprocessing},
			Fn: func(_ context.Context, in Input) (any, error) {
				pre := in.Dep(NodePreprocessing).(modules.PreprocessResult)
				return d.Preprocessor.OCRPass(pre), nil
			},
		},
		{
			Name:      NodeDedup,
			DependsOn: []string{NodePreprocessing},
			Fn: func(ctx context.Context, in Input) (any, error) {
				pre := in.Dep(NodePreprocessing).(modules.PreprocessResult)
				return countDuplicates(ctx, d, in.Seed, pre.DedupHash)
			},
		},
		{
			Name:      NodeClassification,
			DependsOn: []string{NodeOCR, NodePreprocessing},
			Fn: func(ctx context.Context, in Input) (any, error) {
				ocr := in.Dep(NodeOCR).(modules.OCRResult)
				pre := in.Dep(NodePreprocessing).(modules.PreprocessResult)
				return d.Classifier.Classify(ctx, ocr, pre, in.Seed.DocTypeHint), nil
			},
		},
		{
			Name:      NodeStampsSeals,
			DependsOn: []string{NodeOCR},
			Fn: func(ctx context.Context, in Input) (any, error) {
				ocr := in.Dep(NodeOCR).(modules.OCRResult)
				return d.Visual.DetectMarkers(ctx, ocr.Text), nil
			},
		},
		{
			Name:      NodeForensics,
			DependsOn: []string{NodeOCR},
			Fn: func(ctx context.Context, in Input) (any, error) {
				ocr := in.Dep(NodeOCR).(modules.OCRResult)
				return d.Visual.Forensics(ctx, ocr.Text), nil
			},
		},
		{
			Name:      NodeTemplateMap,
			DependsOn: []string{NodeClassification},
			Fn: func(ctx context.Context, in Input) (any, error) {
				classification := in.Dep(NodeClassification).(modules.Classification)
				return d.Templates.Resolve(ctx, in.Seed.TenantID, classification), nil
			},
		},
		{
			Name:      NodeImageFeatures,
			DependsOn: []string{NodeForensics, NodePreprocessing},
			Fn: func(_ context.Context, in Input) (any, error) {
				forensics := in.Dep(NodeForensics).(modules.Forensics)
				pre := in.Dep(NodePreprocessing).(modules.PreprocessResult)
				return modules.DeriveImageFeatures(forensics, pre), nil
			},
		},
		{
			Name:      NodeFieldExtract,
			DependsOn: []string{NodeOCR, NodeTemplateMap},
			Fn: func(ctx context.Context, in Input) (any, error) {
				ocr := in.Dep(NodeOCR).(modules.OCRResult)
				template := in.Dep(NodeTemplateMap).(modules.TemplateBundle)
				return d.Extractor.Extract(ctx, ocr, template), nil
			},
		},
		{
			Name:      NodeRegistry,
			DependsOn: []string{NodeFieldExtract, NodeClassification},
			Fn: func(ctx context.Context, in Input) (any, error) {
				extraction := in.Dep(NodeFieldExtract).(modules.Extraction)
				classification := in.Dep(NodeClassification).(modules.Classification)
				return d.Registry.Verify(ctx, in.Seed.TenantID, extraction, classification), nil
			},
		},
		{
			Name:      NodeValidation,
			DependsOn: []string{NodeFieldExtract, NodeRegistry, NodeTemplateMap},
			Fn: func(_ context.Context, in Input) (any, error) {
				extraction := in.Dep(NodeFieldExtract).(modules.Extraction)
				registry := in.Dep(NodeRegistry).(modules.RegistryResult)
				template := in.Dep(NodeTemplateMap).(modules.TemplateBundle)
				return d.Validator.Validate(extraction, registry, template, in.Seed.Prefilled), nil
			},
		},
		{
			Name:      NodeFraud,
			DependsOn: []string{NodeDedup, NodeForensics, NodeImageFeatures, NodeRegistry},
			Fn: func(_ context.Context, in Input) (any, error) {
				dedup := in.Dep(NodeDedup).(modules.DedupResult)
				forensics := in.Dep(NodeForensics).(modules.Forensics)
				features := in.Dep(NodeImageFeatures).(modules.ImageFeatures)
				registry := in.Dep(NodeRegistry).(modules.RegistryResult)
				return d.Fraud.Score(dedup, forensics, features, registry), nil
			},
		},
		{
			Name: NodeMerge,
			DependsOn: []string{
				NodeValidation, NodeFraud, NodeRegistry, NodeStampsSeals, NodeForensics,
			},
			Fn: func(_ context.Context, in Input) (any, error) {
				validation := in.Dep(NodeValidation).(modules.Validation)
				fraud := in.Dep(NodeFraud).(modules.FraudScore)
				registry := in.Dep(NodeRegistry).(modules.RegistryResult)
				auth := in.Dep(NodeStampsSeals).(modules.Authenticity)
				forensics := in.Dep(NodeForensics).(modules.Forensics)
				return d.Engine.Fuse(validation, fraud, registry, auth, forensics), nil
			},
		},
		{
			Name:      NodeDecision,
			DependsOn: []string{NodeMerge},
			Fn: func(_ context.Context, in Input) (any, error) {
				fusion := in.Dep(NodeMerge).(decision.Fusion)
				return d.Engine.Decide(fusion), nil
			},
		},
		{
			Name:      NodeOutput,
			DependsOn: []string{NodeDecision, NodeMerge},
			Fn: func(_ context.Context, in Input) (any, error) {
				outcome := in.Dep(NodeDecision).(decision.Outcome)
				fusion := in.Dep(NodeMerge).(decision.Fusion)
				return OutputSignal{
					FinalDecision:       outcome.Decision,
					Notify:              true,
					NotificationChannel: "PORTAL",
					RiskLevel:           fusion.RiskLevel,
				}, nil
			},
		},
	}
}

func countDuplicates(ctx context.Context, d Deps, seed Seed, dedupHash string) (modules.DedupResult, error) {
	scope := "TENANT"
	var (
		count int
		err   error
	)
	if d.Policies != nil && d.Policies.CrossTenantFraudEnabled(ctx, seed.TenantID) {
		scope = "GLOBAL"
		count, err = d.Dedup.CountByHashGlobal(ctx, dedupHash, seed.DocumentID)
	} else {
		count, err = d.Dedup.CountByHash(ctx, seed.TenantID, dedupHash, seed.DocumentID)
	}
	if err != nil {
		return modules.DedupResult{}, err
	}
	return modules.DedupResult{
		DedupHash:          dedupHash,
		DuplicateCount:     count,
		SuspectedDuplicate: count > 0,
		Scope:              scope,
	}, nil
}

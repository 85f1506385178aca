package modules

import (
	"context"
	"strings"

	"govdociq/internal/adapters"
)

// Classifier wraps the classification adapter with the handwriting policy
// and low-confidence flagging.
type Classifier struct {
	adapter adapters.Classifier
}

func NewClassifier(adapter adapters.Classifier) *Classifier {
	return &Classifier{adapter: adapter}
}

// Classify assigns a document type. Handwriting-heavy documents bypass the
// model entirely and classify as UNSTRUCTURED with full confidence: the
// guardrail routes them to manual transcription.
func (c *Classifier) Classify(ctx context.Context, ocr OCRResult, pre PreprocessResult, docTypeHint string) Classification {
	if ocr.UnstructuredHandwriting {
		return Classification{
			DocumentType: "UNSTRUCTURED",
			DocSubtype:   "HANDWRITTEN_HEAVY",
			Confidence:   0.99,
			Reasons:      []string{"HANDWRITING_POLICY"},
			Model:        ModelMetadata{ModelID: "doc-classifier-v2", ModelVersion: "2.0.0"},
		}
	}

	hint := strings.ToUpper(strings.TrimSpace(docTypeHint))
	if hint == "AUTO-DETECT" || hint == "AUTO_DETECT" {
		hint = ""
	}

	base := c.adapter.Classify(ctx, ocr.Text, "")
	docType := strings.ToUpper(base.DocType)
	if docType == "" {
		docType = "UNKNOWN"
	}
	confidence := base.Confidence

	reasons := append([]string{}, base.Reasons...)
	if hint != "" {
		docType = hint
		if confidence < 0.9 {
			confidence = 0.9
		}
		reasons = append(reasons, "DOC_TYPE_HINT_APPLIED")
	}
	if pre.QualityScore < 0.45 {
		reasons = append(reasons, "LOW_IMAGE_QUALITY")
	}

	confidence = Round3(confidence)
	return Classification{
		DocumentType:  docType,
		DocSubtype:    "FRONT_SIDE",
		Confidence:    confidence,
		LowConfidence: confidence < 0.72,
		Reasons:       reasons,
		Model:         ModelMetadata{ModelID: "doc-classifier-v2", ModelVersion: "2.0.0"},
	}
}

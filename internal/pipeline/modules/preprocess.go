package modules

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"govdociq/internal/adapters"
)

// Preprocessor runs OCR recognition, text normalization, content hashing and
// the handwriting guardrail that routes handwriting-heavy scans to manual
// transcription.
type Preprocessor struct {
	ocr adapters.OCR
}

func NewPreprocessor(ocr adapters.OCR) *Preprocessor {
	return &Preprocessor{ocr: ocr}
}

// Preprocess normalizes the recognized text and derives the dedup hash plus
// quality/handwriting signals.
func (p *Preprocessor) Preprocess(ctx context.Context, rawText string) PreprocessResult {
	recognized := p.ocr.Recognize(ctx, rawText)
	normalized := strings.Join(strings.Fields(recognized.Text), " ")

	sum := sha256.Sum256([]byte(strings.ToLower(normalized)))
	quality := Round3(Clamp01Min(float64(len(normalized))/4500, 0.2))

	total := len(normalized)
	if total == 0 {
		total = 1
	}
	digits, punct := 0, 0
	for _, ch := range normalized {
		switch {
		case unicode.IsDigit(ch):
			digits++
		case !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && !unicode.IsSpace(ch):
			punct++
		}
	}
	digitRatio := float64(digits) / float64(total)
	punctRatio := float64(punct) / float64(total)

	// Handwriting-heavy scans are usually short/noisy with low OCR confidence.
	handwriting := 0.25 + punctRatio*0.8
	if quality < 0.45 {
		handwriting += 0.35
	}
	handwriting = Round3(Clamp01(handwriting))

	return PreprocessResult{
		NormalizedText:         normalized,
		DedupHash:              hex.EncodeToString(sum[:]),
		QualityScore:           quality,
		StepsApplied:           []string{"DESKEW", "DENOISE", "CONTRAST_ENHANCEMENT"},
		OCRBackend:             recognized.Backend,
		OCRConfidence:          recognized.Confidence,
		HandwritingProbability: handwriting,
		HandwritingHeavy:       handwriting >= 0.7 && digitRatio < 0.7,
	}
}

// Clamp01Min clamps into [floor, 1].
func Clamp01Min(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	if v > 1 {
		return 1
	}
	return v
}

var scriptRanges = []struct {
	script string
	probe  *regexp.Regexp
}{
	{"DEVANAGARI", regexp.MustCompile(`[\x{0900}-\x{097F}]`)},
	{"TAMIL", regexp.MustCompile(`[\x{0B80}-\x{0BFF}]`)},
	{"TELUGU", regexp.MustCompile(`[\x{0C00}-\x{0C7F}]`)},
	{"KANNADA", regexp.MustCompile(`[\x{0C80}-\x{0CFF}]`)},
}

// OCRPass derives the multi-script OCR view from the preprocessing output.
// Later script matches win, matching the reading order of mixed documents.
func (p *Preprocessor) OCRPass(pre PreprocessResult) OCRResult {
	text := pre.NormalizedText

	script := "LATIN"
	for _, sr := range scriptRanges {
		if sr.probe.MatchString(text) {
			script = sr.script
		}
	}

	conf := pre.QualityScore
	if pre.OCRConfidence > conf {
		conf = pre.OCRConfidence
	}
	if pre.HandwritingHeavy {
		conf -= 0.2
	}
	if conf < 0.45 {
		conf = 0.45
	}
	conf = Round3(conf)

	if text == "" {
		script = "UNKNOWN"
		conf = 0
	}

	return OCRResult{
		Text:                    text,
		Confidence:              conf,
		Script:                  script,
		UnstructuredHandwriting: pre.HandwritingHeavy,
		Model:                   ModelMetadata{ModelID: "ocr-" + pre.OCRBackend, ModelVersion: "1.0.0"},
	}
}

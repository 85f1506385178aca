package adapters

import (
	"context"
	"regexp"
	"strings"
)

// Heuristic adapters stand in when no model backend is configured. They are
// deterministic over the submitted text, which keeps offline field nodes and
// tests reproducible.

// HeuristicOCR passes the submitted text through unchanged.
type HeuristicOCR struct{}

func NewHeuristicOCR() *HeuristicOCR { return &HeuristicOCR{} }

func (o *HeuristicOCR) Recognize(_ context.Context, textFallback string) OCRRecognition {
	conf := 0.0
	if strings.TrimSpace(textFallback) != "" {
		conf = 0.6
	}
	return OCRRecognition{Text: textFallback, Backend: "heuristic", Confidence: conf}
}

// docTypeKeywords maps keyword probes to document types, checked in order.
var docTypeKeywords = []struct {
	docType  string
	keywords []string
}{
	{"INCOME_CERTIFICATE", []string{"income certificate", "annual income"}},
	{"CASTE_CERTIFICATE", []string{"caste certificate", "community certificate"}},
	{"DRIVING_LICENSE", []string{"driving licence", "driving license", "dl no"}},
	{"AADHAAR", []string{"aadhaar", "uidai"}},
	{"PAN_CARD", []string{"permanent account number", "income tax department"}},
	{"MARKSHEET", []string{"marksheet", "roll number", "examination"}},
	{"BIRTH_CERTIFICATE", []string{"birth certificate", "date of birth registration"}},
}

// HeuristicClassifier types documents by keyword probes.
type HeuristicClassifier struct{}

func NewHeuristicClassifier() *HeuristicClassifier { return &HeuristicClassifier{} }

func (c *HeuristicClassifier) Classify(_ context.Context, text, fileName string) ClassifyOutput {
	haystack := strings.ToLower(text + " " + fileName)
	for _, probe := range docTypeKeywords {
		for _, kw := range probe.keywords {
			if strings.Contains(haystack, kw) {
				return ClassifyOutput{
					DocType:    probe.docType,
					Confidence: 0.85,
					Reasons:    []string{"KEYWORD_MATCH:" + strings.ToUpper(strings.ReplaceAll(kw, " ", "_"))},
				}
			}
		}
	}
	return ClassifyOutput{DocType: "UNKNOWN", Confidence: 0.35, Reasons: []string{"NO_KEYWORD_MATCH"}}
}

var fieldProbes = map[string]*regexp.Regexp{
	"name":            regexp.MustCompile(`(?i)name[:\s]+([A-Za-z .]{3,40})`),
	"document_number": regexp.MustCompile(`(?i)(?:no|number)[:.\s]+([A-Z0-9/-]{4,20})`),
	"dob":             regexp.MustCompile(`(?i)(?:dob|date of birth)[:\s]+([0-9]{2}[-/][0-9]{2}[-/][0-9]{4})`),
	"issuer":          regexp.MustCompile(`(?i)issued by[:\s]+([A-Za-z .]{3,60})`),
}

// HeuristicExtractor pulls fields with regex probes. Extraction confidence
// scales with how many probes hit.
type HeuristicExtractor struct{}

func NewHeuristicExtractor() *HeuristicExtractor { return &HeuristicExtractor{} }

func (e *HeuristicExtractor) Extract(_ context.Context, docType, text string) ExtractOutput {
	fields := map[string]string{}
	for name, probe := range fieldProbes {
		if m := probe.FindStringSubmatch(text); m != nil {
			fields[name] = strings.TrimSpace(m[1])
		}
	}

	missing := []string{}
	if _, ok := fields["name"]; !ok {
		missing = append(missing, "name")
	}
	if _, ok := fields["document_number"]; !ok {
		missing = append(missing, "document_number")
	}

	conf := 0.3 + 0.15*float64(len(fields))
	if conf > 0.9 {
		conf = 0.9
	}
	return ExtractOutput{Fields: fields, RequiredMissing: missing, Confidence: conf}
}

// HeuristicAuthenticity infers stamps/signatures and tamper signals from
// textual cues, the same guardrail the central models refine.
type HeuristicAuthenticity struct{}

func NewHeuristicAuthenticity() *HeuristicAuthenticity { return &HeuristicAuthenticity{} }

func (a *HeuristicAuthenticity) InferMarkers(_ context.Context, text string) Markers {
	lower := strings.ToLower(text)
	return Markers{
		StampPresent:     strings.Contains(lower, "seal") || strings.Contains(lower, "stamp"),
		SignaturePresent: strings.Contains(lower, "signature") || strings.Contains(lower, "signed"),
		Confidence:       0.5,
		Backend:          "heuristic",
	}
}

// tamperCues is ordered so forensic signals come out stable across runs.
var tamperCues = []struct{ cue, signal string }{
	{"photocopy", "PHOTOCOPY_SUSPECTED"},
	{"corrected", "MANUAL_CORRECTION"},
	{"overwritten", "OVERWRITING"},
	{"whitener", "WHITENER_TRACE"},
}

func (a *HeuristicAuthenticity) InferForensics(_ context.Context, text string) ForensicSignals {
	lower := strings.ToLower(text)
	signals := []string{}
	for _, probe := range tamperCues {
		if strings.Contains(lower, probe.cue) {
			signals = append(signals, probe.signal)
		}
	}

	risk := 0.1 + 0.2*float64(len(signals))
	if risk > 1 {
		risk = 1
	}
	return ForensicSignals{
		Signals:          signals,
		Risk:             risk,
		GlobalImageScore: 1 - risk,
		Backend:          "heuristic",
	}
}

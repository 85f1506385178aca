package modules

import (
	"regexp"
	"strings"
)

// aliasGroups maps canonical field keys to the aliases documents use for the
// same value, so prefilled data matches regardless of labeling.
var aliasGroups = map[string][]string{
	"name":           {"name", "fullname", "applicantname"},
	"dob":            {"dob", "dateofbirth", "birthdate"},
	"fathername":     {"fathername", "father", "sonof", "so"},
	"documentnumber": {"documentnumber", "aadhaarnumber", "pannumber", "licensenumber", "registrationnumber"},
}

// Validator applies the compiled rule bundle plus prefilled-consistency and
// field-pattern checks. It is a pure function of its inputs.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

// Validate evaluates extraction output against the rule bundle. The
// registry precheck feeds the registry-required rule; prefilled data, when
// supplied by the intake operator, is cross-checked for consistency.
func (v *Validator) Validate(extraction Extraction, registryPrecheck RegistryResult, template TemplateBundle, prefilled map[string]string) Validation {
	rules := template.Rules

	registryStatus := registryPrecheck.Status
	if registryStatus == "" {
		registryStatus = "NOT_AVAILABLE"
	}
	registryOK := registryStatus == "MATCHED" || registryStatus == "CONFIRMED"
	if !rules.RegistryRequired {
		registryOK = registryOK || registryStatus == "NOT_AVAILABLE"
	}

	normalized := make(map[string]string, len(extraction.Fields))
	for k, val := range extraction.Fields {
		normalized[normKey(k)] = val
	}

	mismatches, matchCount := checkPrefilled(prefilled, normalized)
	patternResults, patternFails := checkPatterns(rules.FieldPatterns, normalized)

	missing := extraction.RequiredMissing
	isValid := len(missing) == 0 &&
		extraction.Confidence >= rules.MinExtractConfidence &&
		registryOK &&
		len(mismatches) == 0 &&
		patternFails == 0

	status := "WARN"
	switch {
	case isValid:
		status = "PASS"
	case patternFails > 0 || !registryOK || len(missing) > 0:
		status = "FAIL"
	}

	return Validation{
		IsValid:               isValid,
		OverallStatus:         status,
		MissingFields:         missing,
		ExtractConfidence:     Round3(extraction.Confidence),
		RegistryStatus:        registryStatus,
		RegistryRequired:      rules.RegistryRequired,
		RuleName:              rules.Name,
		RuleVersion:           rules.Version,
		MinApprovalConfidence: rules.MinApprovalConfidence,
		MaxApprovalRisk:       rules.MaxApprovalRisk,
		PatternResults:        patternResults,
		PatternFailCount:      patternFails,
		PrefilledMismatches:   mismatches,
		PrefilledMatchCount:   matchCount,
	}
}

func checkPrefilled(prefilled, extracted map[string]string) ([]PrefilledMismatch, int) {
	mismatches := []PrefilledMismatch{}
	matches := 0
	for key, expected := range prefilled {
		canonical := normKey(key)
		aliases := append([]string{canonical}, aliasGroups[canonical]...)

		var value string
		var matchedField string
		found := false
		for _, alias := range aliases {
			if v, ok := extracted[normKey(alias)]; ok {
				value, matchedField, found = v, normKey(alias), true
				break
			}
		}

		if !found {
			mismatches = append(mismatches, PrefilledMismatch{
				Field:          key,
				PrefilledValue: expected,
				Reason:         "FIELD_NOT_EXTRACTED",
			})
			continue
		}

		similarity := textSimilarity(expected, value)
		if similarity >= 0.85 {
			matches++
			continue
		}
		mismatches = append(mismatches, PrefilledMismatch{
			Field:          key,
			MatchedField:   matchedField,
			PrefilledValue: expected,
			ExtractedValue: value,
			Similarity:     Round3(similarity),
			Reason:         "VALUE_MISMATCH",
		})
	}
	return mismatches, matches
}

func checkPatterns(patterns map[string]string, extracted map[string]string) ([]PatternResult, int) {
	results := []PatternResult{}
	fails := 0
	for field, pattern := range patterns {
		value, ok := extracted[normKey(field)]
		if !ok {
			results = append(results, PatternResult{
				FieldName: field, Pattern: pattern,
				Status: "WARN", ReasonCode: "FIELD_MISSING_FOR_PATTERN_CHECK",
			})
			continue
		}

		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			results = append(results, PatternResult{
				FieldName: field, Pattern: pattern, Value: value,
				Status: "WARN", ReasonCode: "INVALID_REGEX_PATTERN",
			})
			continue
		}

		if re.MatchString(strings.TrimSpace(value)) {
			results = append(results, PatternResult{
				FieldName: field, Pattern: pattern, Value: value,
				Status: "PASS", ReasonCode: "REGEX_MATCH",
			})
			continue
		}
		fails++
		results = append(results, PatternResult{
			FieldName: field, Pattern: pattern, Value: value,
			Status: "FAIL", ReasonCode: "REGEX_MISMATCH",
		})
	}
	return results, fails
}

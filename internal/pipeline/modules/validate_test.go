package modules

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ValidateSuite struct {
	suite.Suite
	validator *Validator
}

func (s *ValidateSuite) SetupTest() {
	s.validator = NewValidator()
}

func TestValidateSuite(t *testing.T) {
	suite.Run(t, new(ValidateSuite))
}

func (s *ValidateSuite) template(patterns map[string]string) TemplateBundle {
	rules := defaultRuleSet("AADHAAR")
	rules.FieldPatterns = map[string]string{}
	for k, v := range patterns {
		rules.FieldPatterns[normKey(k)] = v
	}
	return TemplateBundle{DocumentType: "AADHAAR", Rules: rules}
}

func (s *ValidateSuite) extraction() Extraction {
	return Extraction{
		Fields: map[string]string{
			"name":            "Asha Rao",
			"document_number": "1234 5678 9012",
		},
		RequiredMissing: []string{},
		Confidence:      0.8,
	}
}

func (s *ValidateSuite) TestValidate() {
	matched := RegistryResult{Status: "MATCHED", Confidence: 0.82}

	s.Run("passes a clean document", func() {
		out := s.validator.Validate(s.extraction(), matched, s.template(nil), nil)
		s.True(out.IsValid)
		s.Equal("PASS", out.OverallStatus)
	})

	s.Run("fails on missing required fields", func() {
		ex := s.extraction()
		ex.RequiredMissing = []string{"dob"}
		out := s.validator.Validate(ex, matched, s.template(nil), nil)
		s.False(out.IsValid)
		s.Equal("FAIL", out.OverallStatus)
	})

	s.Run("fails when registry is required and unverified", func() {
		out := s.validator.Validate(s.extraction(), RegistryResult{Status: "UNVERIFIED"}, s.template(nil), nil)
		s.False(out.IsValid)
		s.Equal("FAIL", out.OverallStatus)
	})

	s.Run("registry not available passes when not required", func() {
		tpl := s.template(nil)
		tpl.Rules.RegistryRequired = false
		out := s.validator.Validate(s.extraction(), RegistryResult{}, tpl, nil)
		s.True(out.IsValid)
	})

	s.Run("low extraction confidence warns instead of passing", func() {
		ex := s.extraction()
		ex.Confidence = 0.5
		out := s.validator.Validate(ex, matched, s.template(nil), nil)
		s.False(out.IsValid)
		s.Equal("WARN", out.OverallStatus)
	})

	s.Run("prefilled canonical key matches an extracted alias", func() {
		ex := s.extraction()
		delete(ex.Fields, "document_number")
		ex.Fields["aadhaar_number"] = "1234 5678 9012"
		out := s.validator.Validate(ex, matched, s.template(nil), map[string]string{
			"document_number": "1234 5678 9012",
		})
		s.True(out.IsValid)
		s.Equal(1, out.PrefilledMatchCount)
		s.Empty(out.PrefilledMismatches)
	})

	s.Run("prefilled disagreement records a mismatch", func() {
		out := s.validator.Validate(s.extraction(), matched, s.template(nil), map[string]string{
			"name": "Completely Different Person",
		})
		s.False(out.IsValid)
		s.Require().Len(out.PrefilledMismatches, 1)
		s.Equal("VALUE_MISMATCH", out.PrefilledMismatches[0].Reason)
	})

	s.Run("prefilled field missing from extraction records a mismatch", func() {
		out := s.validator.Validate(s.extraction(), matched, s.template(nil), map[string]string{
			"dob": "1990-01-01",
		})
		s.Require().Len(out.PrefilledMismatches, 1)
		s.Equal("FIELD_NOT_EXTRACTED", out.PrefilledMismatches[0].Reason)
	})

	s.Run("pattern mismatch fails validation", func() {
		tpl := s.template(map[string]string{"document_number": `\d{4} \d{4} \d{4}`})
		ex := s.extraction()
		ex.Fields["document_number"] = "ABCD"
		out := s.validator.Validate(ex, matched, tpl, nil)
		s.False(out.IsValid)
		s.Equal(1, out.PatternFailCount)
		s.Equal("FAIL", out.OverallStatus)
	})

	s.Run("pattern on absent field warns only", func() {
		tpl := s.template(map[string]string{"dob": `\d{4}-\d{2}-\d{2}`})
		out := s.validator.Validate(s.extraction(), matched, tpl, nil)
		s.True(out.IsValid)
		s.Require().Len(out.PatternResults, 1)
		s.Equal("WARN", out.PatternResults[0].Status)
	})

	s.Run("invalid regex warns instead of failing", func() {
		tpl := s.template(map[string]string{"name": `([`})
		out := s.validator.Validate(s.extraction(), matched, tpl, nil)
		s.True(out.IsValid)
		s.Require().Len(out.PatternResults, 1)
		s.Equal("INVALID_REGEX_PATTERN", out.PatternResults[0].ReasonCode)
	})
}

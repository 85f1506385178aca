package modules

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// evenCalibrator averages the components, keeping the aggregate predictable
// without pulling the production calibration into this package.
type evenCalibrator struct{}

func (evenCalibrator) Score(image, behavioral, issuer float64) float64 {
	return Round3((image + behavioral + issuer) / 3)
}

type FraudSuite struct {
	suite.Suite
	engine *FraudEngine
}

func (s *FraudSuite) SetupTest() {
	s.engine = NewFraudEngine(evenCalibrator{})
}

func TestFraudSuite(t *testing.T) {
	suite.Run(t, new(FraudSuite))
}

func (s *FraudSuite) TestScore() {
	s.Run("behavioral grows with duplicates and caps the duplicate term", func() {
		base := s.engine.Score(DedupResult{DuplicateCount: 0}, Forensics{}, ImageFeatures{QualityScore: 0.7}, RegistryResult{Status: "MATCHED"})
		s.InDelta(0.2, base.Behavioral.Score, 1e-9)

		one := s.engine.Score(DedupResult{DuplicateCount: 1}, Forensics{}, ImageFeatures{QualityScore: 0.7}, RegistryResult{Status: "MATCHED"})
		s.InDelta(0.4, one.Behavioral.Score, 1e-9)

		many := s.engine.Score(DedupResult{DuplicateCount: 9}, Forensics{}, ImageFeatures{QualityScore: 0.7}, RegistryResult{Status: "MATCHED"})
		s.InDelta(0.6, many.Behavioral.Score, 1e-9)
	})

	s.Run("low scan quality adds to behavioral and flags it", func() {
		out := s.engine.Score(DedupResult{}, Forensics{}, ImageFeatures{QualityScore: 0.3}, RegistryResult{Status: "MATCHED"})
		s.InDelta(0.4, out.Behavioral.Score, 1e-9)
		s.True(out.LowQuality)
		s.Contains(out.Behavioral.Signals, "LOW_IMAGE_QUALITY")
	})

	s.Run("image component mirrors tamper risk", func() {
		out := s.engine.Score(DedupResult{}, Forensics{TamperRisk: 0.65, Indicators: []string{"FONT_SHIFT"}}, ImageFeatures{QualityScore: 0.7}, RegistryResult{Status: "MATCHED"})
		s.InDelta(0.65, out.Image.Score, 1e-9)
		s.Equal([]string{"FONT_SHIFT"}, out.Image.Signals)
	})

	s.Run("issuer mismatch ladder", func() {
		matched := s.engine.Score(DedupResult{}, Forensics{}, ImageFeatures{QualityScore: 0.7}, RegistryResult{Status: "MATCHED"})
		s.InDelta(0.05, matched.IssuerMismatch.Score, 1e-9)
		s.Empty(matched.IssuerMismatch.Signals)

		unverified := s.engine.Score(DedupResult{}, Forensics{}, ImageFeatures{QualityScore: 0.7}, RegistryResult{Status: "UNVERIFIED"})
		s.InDelta(0.45, unverified.IssuerMismatch.Score, 1e-9)
		s.Contains(unverified.IssuerMismatch.Signals, "REGISTRY_UNVERIFIED")

		mismatch := s.engine.Score(DedupResult{}, Forensics{}, ImageFeatures{QualityScore: 0.7}, RegistryResult{Status: "MISMATCH"})
		s.InDelta(0.9, mismatch.IssuerMismatch.Score, 1e-9)
		s.Contains(mismatch.IssuerMismatch.Signals, "REGISTRY_MISMATCH")
	})

	s.Run("missing registry status counts as not available", func() {
		out := s.engine.Score(DedupResult{}, Forensics{}, ImageFeatures{QualityScore: 0.7}, RegistryResult{})
		s.InDelta(0.45, out.IssuerMismatch.Score, 1e-9)
		s.Contains(out.IssuerMismatch.Signals, "REGISTRY_NOT_AVAILABLE")
	})

	s.Run("aggregate carries risk level and dedup context", func() {
		out := s.engine.Score(
			DedupResult{DuplicateCount: 3, Scope: "GLOBAL"},
			Forensics{TamperRisk: 0.9},
			ImageFeatures{QualityScore: 0.2},
			RegistryResult{Status: "MISMATCH"},
		)
		// even blend of 0.9, 0.8 (0.2+0.4+0.2), 0.9
		s.InDelta(0.867, out.Score, 1e-9)
		s.Equal("HIGH", out.RiskLevel)
		s.Equal(3, out.DuplicateCount)
		s.Equal("GLOBAL", out.DedupScope)
	})
}

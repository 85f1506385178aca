package decision

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"govdociq/internal/pipeline/modules"
)

type EngineSuite struct {
	suite.Suite
	engine *Engine
}

func (s *EngineSuite) SetupTest() {
	s.engine = NewEngine(nil)
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) TestFuse() {
	s.Run("confidence blends extraction, authenticity and registry", func() {
		fusion := s.engine.Fuse(
			modules.Validation{ExtractConfidence: 0.9},
			modules.FraudScore{Score: 0.5, RiskLevel: "MEDIUM"},
			modules.RegistryResult{Confidence: 0.82},
			modules.Authenticity{Score: 0.8},
			modules.Forensics{TamperRisk: 0.3},
		)
		s.InDelta(0.846, fusion.Confidence, 1e-9)
	})

	s.Run("risk blends fraud and tamper", func() {
		fusion := s.engine.Fuse(
			modules.Validation{},
			modules.FraudScore{Score: 0.5, RiskLevel: "MEDIUM"},
			modules.RegistryResult{},
			modules.Authenticity{},
			modules.Forensics{TamperRisk: 0.3},
		)
		s.InDelta(0.44, fusion.RiskScore, 1e-9)
		s.Equal("MEDIUM", fusion.RiskLevel)
	})

	s.Run("risk is capped at one", func() {
		fusion := s.engine.Fuse(
			modules.Validation{},
			modules.FraudScore{Score: 1, RiskLevel: "CRITICAL"},
			modules.RegistryResult{},
			modules.Authenticity{},
			modules.Forensics{TamperRisk: 1},
		)
		s.InDelta(1, fusion.RiskScore, 1e-9)
	})
}

func (s *EngineSuite) TestDecide() {
	base := func() Fusion {
		return Fusion{
			Confidence: 0.85,
			RiskScore:  0.2,
			RiskLevel:  "LOW",
			Validation: modules.Validation{
				IsValid:               true,
				MinApprovalConfidence: 0.72,
				MaxApprovalRisk:       0.35,
			},
			Fraud:    modules.FraudScore{Score: 0.15},
			Registry: modules.RegistryResult{Status: "MATCHED"},
			Tamper:   modules.Forensics{TamperRisk: 0.1},
		}
	}

	s.Run("approves a valid document within thresholds", func() {
		outcome := s.engine.Decide(base())
		s.Equal("APPROVE", outcome.Decision)
	})

	s.Run("rejects on hard risk line regardless of validity", func() {
		fusion := base()
		fusion.RiskScore = 0.78
		outcome := s.engine.Decide(fusion)
		s.Equal("REJECT", outcome.Decision)
	})

	s.Run("reviews when confidence misses the threshold", func() {
		fusion := base()
		fusion.Confidence = 0.71
		outcome := s.engine.Decide(fusion)
		s.Equal("REVIEW", outcome.Decision)
	})

	s.Run("reviews when risk exceeds the approval ceiling", func() {
		fusion := base()
		fusion.RiskScore = 0.44
		outcome := s.engine.Decide(fusion)
		s.Equal("REVIEW", outcome.Decision)
	})

	s.Run("reviews invalid documents", func() {
		fusion := base()
		fusion.Validation.IsValid = false
		outcome := s.engine.Decide(fusion)
		s.Equal("REVIEW", outcome.Decision)
	})

	s.Run("emits reason codes in fixed order", func() {
		fusion := base()
		fusion.Fraud.Score = 0.5
		fusion.Tamper.TamperRisk = 0.3
		fusion.RiskScore = 0.44
		fusion.RiskLevel = "MEDIUM"
		outcome := s.engine.Decide(fusion)

		s.Equal([]string{
			"VALID=true",
			"REGISTRY=MATCHED",
			"FRAUD=0.5",
			"TAMPER=0.3",
			"RISK_LEVEL=MEDIUM",
		}, outcome.ReasonCodes)
	})

	s.Run("defaults thresholds when rules carry none", func() {
		fusion := base()
		fusion.Validation.MinApprovalConfidence = 0
		fusion.Validation.MaxApprovalRisk = 0
		fusion.Confidence = 0.73
		fusion.RiskScore = 0.3
		outcome := s.engine.Decide(fusion)
		s.Equal("APPROVE", outcome.Decision)
	})
}

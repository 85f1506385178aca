package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"govdociq/internal/adapters"
	"govdociq/internal/decision"
	"govdociq/internal/pipeline/modules"
)

type stubDedup struct {
	tenantCount int
	globalCount int
	globalCalls int
	tenantCalls int
}

func (d *stubDedup) CountByHash(_ context.Context, _, _, _ string) (int, error) {
	d.tenantCalls++
	return d.tenantCount, nil
}

func (d *stubDedup) CountByHashGlobal(_ context.Context, _, _ string) (int, error) {
	d.globalCalls++
	return d.globalCount, nil
}

type stubPolicies struct {
	crossTenant bool
}

func (p *stubPolicies) CrossTenantFraudEnabled(_ context.Context, _ string) bool {
	return p.crossTenant
}

type NodesSuite struct {
	suite.Suite
	ctx      context.Context
	dedup    *stubDedup
	policies *stubPolicies
	engine   *Engine
}

func (s *NodesSuite) SetupTest() {
	s.ctx = context.Background()
	s.dedup = &stubDedup{}
	s.policies = &stubPolicies{}

	deps := Deps{
		Preprocessor: modules.NewPreprocessor(adapters.NewHeuristicOCR()),
		Classifier:   modules.NewClassifier(adapters.NewHeuristicClassifier()),
		Templates:    modules.NewTemplateResolver(nil),
		Extractor:    modules.NewExtractor(adapters.NewHeuristicExtractor()),
		Validator:    modules.NewValidator(),
		Visual:       modules.NewVisualAuthenticity(adapters.NewHeuristicAuthenticity()),
		Registry:     modules.NewRegistryVerifier(nil),
		Fraud:        modules.NewFraudEngine(decision.NewCalibration("", nil)),
		Engine:       decision.NewEngine(nil),
		Dedup:        s.dedup,
		Policies:     s.policies,
	}

	engine, err := New(StandardNodes(deps), nil)
	s.Require().NoError(err)
	s.engine = engine
}

func TestNodesSuite(t *testing.T) {
	suite.Run(t, new(NodesSuite))
}

func (s *NodesSuite) seed(text string) Seed {
	return Seed{
		TenantID:   "tenant-a",
		DocumentID: "doc-1",
		CitizenID:  "citizen-1",
		FileName:   "aadhaar_card.pdf",
		RawText:    text,
		JobID:      "job-1",
	}
}

func (s *NodesSuite) TestStandardGraph() {
	s.Run("executes all fifteen nodes in dependency order", func() {
		res, err := s.engine.Run(s.ctx, s.seed(strings.Repeat("Aadhaar Name: Asha Rao Number: 1234 5678 9012 issued seal signature ", 20)))
		s.Require().NoError(err)
		s.Len(res.ExecutionOrder, 15)

		pos := map[string]int{}
		for i, name := range res.ExecutionOrder {
			pos[name] = i
		}
		s.Less(pos[NodePreprocessing], pos[NodeOCR])
		s.Less(pos[NodeRegistry], pos[NodeFraud])
		s.Less(pos[NodeFraud], pos[NodeMerge])
		s.Less(pos[NodeMerge], pos[NodeDecision])
		s.Less(pos[NodeDecision], pos[NodeOutput])
	})

	s.Run("produces typed outputs end to end", func() {
		res, err := s.engine.Run(s.ctx, s.seed(strings.Repeat("Aadhaar document with official seal and signature. Name: Asha Rao. ", 30)))
		s.Require().NoError(err)

		outcome, ok := res.Output(NodeDecision).(decision.Outcome)
		s.Require().True(ok)
		s.Contains([]string{"APPROVE", "REJECT", "REVIEW"}, outcome.Decision)
		s.Len(outcome.ReasonCodes, 5)

		signal, ok := res.Output(NodeOutput).(OutputSignal)
		s.Require().True(ok)
		s.Equal(outcome.Decision, signal.FinalDecision)
		s.Equal("PORTAL", signal.NotificationChannel)
	})

	s.Run("dedup scopes to tenant by default", func() {
		s.dedup.tenantCount = 2
		res, err := s.engine.Run(s.ctx, s.seed("short scan"))
		s.Require().NoError(err)

		dedup := res.Output(NodeDedup).(modules.DedupResult)
		s.Equal("TENANT", dedup.Scope)
		s.Equal(2, dedup.DuplicateCount)
		s.True(dedup.SuspectedDuplicate)
		s.Zero(s.dedup.globalCalls)
	})

	s.Run("cross tenant policy widens dedup scope", func() {
		s.policies.crossTenant = true
		res, err := s.engine.Run(s.ctx, s.seed("short scan"))
		s.Require().NoError(err)

		dedup := res.Output(NodeDedup).(modules.DedupResult)
		s.Equal("GLOBAL", dedup.Scope)
		s.NotZero(s.dedup.globalCalls)
	})
}

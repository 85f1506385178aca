package document

import (
	"context"

	"govdociq/internal/domain"
	"govdociq/internal/pipeline/modules"
)

// StoreRuleSource adapts the document store to the template resolver's rule
// lookup.
type StoreRuleSource struct {
	store Store
}

func NewStoreRuleSource(store Store) *StoreRuleSource {
	return &StoreRuleSource{store: store}
}

func (r *StoreRuleSource) ActiveRuleSet(ctx context.Context, tenantID, docType string) (modules.RuleSet, bool) {
	rules, ok, err := r.store.GetRuleSet(ctx, tenantID, docType)
	if err != nil || !ok {
		return modules.RuleSet{}, false
	}
	return rules, true
}

// StorePolicySource adapts the document store to the pipeline's tenant
// policy toggles.
type StorePolicySource struct {
	store Store
}

func NewStorePolicySource(store Store) *StorePolicySource {
	return &StorePolicySource{store: store}
}

func (p *StorePolicySource) CrossTenantFraudEnabled(ctx context.Context, tenantID string) bool {
	policy, err := p.store.GetTenantPolicy(ctx, tenantID)
	if err != nil {
		return domain.DefaultTenantPolicy(tenantID).CrossTenantFraudEnabled
	}
	return policy.CrossTenantFraudEnabled
}

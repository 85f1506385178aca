package modules

import (
	"context"
	"fmt"
	"strings"
)

// RuleSource supplies tenant-scoped rule overrides. Implementations may be
// backed by the document store; a nil source means defaults apply.
type RuleSource interface {
	ActiveRuleSet(ctx context.Context, tenantID, docType string) (RuleSet, bool)
}

// TemplateResolver resolves the template and compiled rule bundle for a
// tenant/document-type pair.
type TemplateResolver struct {
	rules RuleSource
}

func NewTemplateResolver(rules RuleSource) *TemplateResolver {
	return &TemplateResolver{rules: rules}
}

// Resolve compiles the rule bundle. Unknown tenants/types fall back to the
// platform defaults so validation always has thresholds to work with.
func (t *TemplateResolver) Resolve(ctx context.Context, tenantID string, classification Classification) TemplateBundle {
	docType := strings.ToUpper(classification.DocumentType)
	if docType == "" {
		docType = "UNKNOWN"
	}

	rules := defaultRuleSet(docType)
	if t.rules != nil {
		if override, ok := t.rules.ActiveRuleSet(ctx, tenantID, docType); ok {
			rules = mergeRuleSet(rules, override)
		}
	}

	normalized := make(map[string]string, len(rules.FieldPatterns))
	for field, pattern := range rules.FieldPatterns {
		if strings.TrimSpace(field) == "" || strings.TrimSpace(pattern) == "" {
			continue
		}
		normalized[normKey(field)] = pattern
	}
	rules.FieldPatterns = normalized

	return TemplateBundle{
		TemplateID:      "tpl_" + strings.ToLower(docType),
		TemplateVersion: "2025.1.0",
		DocumentType:    docType,
		Rules:           rules,
	}
}

func defaultRuleSet(docType string) RuleSet {
	return RuleSet{
		Name:                  "rule_" + strings.ToLower(docType),
		SetID:                 fmt.Sprintf("RULESET_%s_DEFAULT", docType),
		Version:               1,
		MinExtractConfidence:  0.6,
		MinApprovalConfidence: 0.72,
		MaxApprovalRisk:       0.35,
		RegistryRequired:      true,
		FieldPatterns:         map[string]string{},
	}
}

func mergeRuleSet(base, override RuleSet) RuleSet {
	if override.Name != "" {
		base.Name = override.Name
	}
	if override.SetID != "" {
		base.SetID = override.SetID
	}
	if override.Version > 0 {
		base.Version = override.Version
	}
	if override.MinExtractConfidence > 0 {
		base.MinExtractConfidence = override.MinExtractConfidence
	}
	if override.MinApprovalConfidence > 0 {
		base.MinApprovalConfidence = override.MinApprovalConfidence
	}
	if override.MaxApprovalRisk > 0 {
		base.MaxApprovalRisk = override.MaxApprovalRisk
	}
	base.RegistryRequired = override.RegistryRequired
	if len(override.FieldPatterns) > 0 {
		merged := make(map[string]string, len(base.FieldPatterns)+len(override.FieldPatterns))
		for k, v := range base.FieldPatterns {
			merged[k] = v
		}
		for k, v := range override.FieldPatterns {
			merged[k] = v
		}
		base.FieldPatterns = merged
	}
	return base
}

package permission

import "context"

// Checker answers whether a user may exercise a feature within a tenant.
// The role subsystem lives outside this service; implementations adapt
// whatever backs it to this capability check.
type Checker interface {
	CheckPermission(ctx context.Context, userID, featureCode, tenantID string) (bool, error)
}

// allowAll grants every permission. Used when no role backend is wired
// so plan-level entitlement remains the only gate.
type allowAll struct{}

// NewAllowAllChecker creates a checker that approves every request
func NewAllowAllChecker() Checker {
	return allowAll{}
}

func (allowAll) CheckPermission(_ context.Context, _, _, _ string) (bool, error) {
	return true, nil
}

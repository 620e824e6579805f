package testutil

import (
	"context"

	"github.com/platformhq/licensing/internal/types"
)

// SetupContext returns a context carrying the standard test identity
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetTenantID(ctx, "tenant_test")
	ctx = types.SetUserID(ctx, "user_test")
	ctx = types.SetRequestID(ctx, types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST))
	return ctx
}

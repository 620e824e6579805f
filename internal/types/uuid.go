package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix, e.g. inv_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_LICENSE             = "lic"
	UUID_PREFIX_SUBSCRIPTION        = "sub"
	UUID_PREFIX_BILLING_EVENT       = "bev"
	UUID_PREFIX_WEBHOOK_EVENT       = "whe"
	UUID_PREFIX_ALERT_LOG           = "alrt"
	UUID_PREFIX_INVOICE             = "inv"
	UUID_PREFIX_TENANT              = "tenant"
	UUID_PREFIX_USAGE_SNAPSHOT      = "usnap"
	UUID_PREFIX_UPGRADE_OPPORTUNITY = "upop"
	UUID_PREFIX_REQUEST             = "req"
)

package tenant

import (
	"time"
)

// TenantStatus is the activation state of a tenant. Only webhook processing
// flips this, because the payment processor is the system of record for
// whether a tenant is paid up.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// Tenant is an isolated customer organization
type Tenant struct {
	ID     string       `db:"id" json:"id"`
	Name   string       `db:"name" json:"name"`
	Email  string       `db:"email" json:"email"`
	Status TenantStatus `db:"status" json:"status"`

	// ProcessorCustomerID links the tenant to its processor customer record
	ProcessorCustomerID string `db:"processor_customer_id" json:"processor_customer_id"`

	// AutoPayEnabled lets the monthly billing cycle charge automatically
	AutoPayEnabled bool `db:"auto_pay_enabled" json:"auto_pay_enabled"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

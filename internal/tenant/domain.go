package tenant

import (
	"time"

	"github.com/gatewarden/gatewarden/internal/acl"
)

// Tenant is the top-level resource a platform installation is partitioned
// into. Its policy set is the parent set new role policies derive from.
type Tenant struct {
	ID          string
	Name        string
	DisplayName string
	Policies    acl.PolicySet
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

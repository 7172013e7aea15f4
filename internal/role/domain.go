package role

import (
	"sort"
	"time"

	"github.com/gatewarden/gatewarden/internal/acl"
)

// Role is a named permission group: a policy bundle plus direct user
// membership and indirect membership through assigned user groups.
type Role struct {
	ID          string
	TenantID    string
	Name        string
	Description string

	// Policies grants permissions on this role-as-resource to other roles.
	Policies acl.PolicySet

	// AssignedUserIDs and AssignedGroupIDs are id sets kept sorted and
	// duplicate-free. Entities are referenced by id only; lookups go
	// through the stores.
	AssignedUserIDs  []string
	AssignedGroupIDs []string

	// DefaultDomainType and DefaultDomainID are set only on auto-created
	// roles (a workspace's built-in admin role and the like). Such roles
	// never hold manage/delete grants on themselves.
	DefaultDomainType acl.DomainType
	DefaultDomainID   string

	IsProvisioned bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAutoCreated reports whether the role was system-generated rather than
// created through a user request.
func (r *Role) IsAutoCreated() bool {
	return r.DefaultDomainType != ""
}

// unionIDs returns base ∪ add, sorted and duplicate-free.
func unionIDs(base, add []string) []string {
	set := make(map[string]struct{}, len(base)+len(add))
	for _, id := range base {
		set[id] = struct{}{}
	}
	for _, id := range add {
		set[id] = struct{}{}
	}
	return setToSorted(set)
}

// subtractIDs returns base \ remove, sorted and duplicate-free. Removing an
// absent id is a no-op.
func subtractIDs(base, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	set := make(map[string]struct{}, len(base))
	for _, id := range base {
		if _, ok := drop[id]; !ok {
			set[id] = struct{}{}
		}
	}
	return setToSorted(set)
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

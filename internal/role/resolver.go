package role

import (
	"context"
	"fmt"
)

// Resolver computes the effective user set of a role: the closure of direct
// membership and indirect membership through assigned user groups.
type Resolver struct {
	groups GroupStore
}

// NewResolver constructs a Resolver over the given group store.
func NewResolver(groups GroupStore) *Resolver {
	return &Resolver{groups: groups}
}

// EffectiveUsers returns every user id the role reaches, sorted and
// duplicate-free. When both membership sets are empty it returns immediately
// without touching the group store; freshly created roles hit that path on
// every invalidation pass.
func (r *Resolver) EffectiveUsers(ctx context.Context, ro Role) ([]string, error) {
	if len(ro.AssignedUserIDs) == 0 && len(ro.AssignedGroupIDs) == 0 {
		return nil, nil
	}
	if len(ro.AssignedGroupIDs) == 0 {
		return unionIDs(ro.AssignedUserIDs, nil), nil
	}

	groups, err := r.groups.FindAllByID(ctx, ro.AssignedGroupIDs)
	if err != nil {
		return nil, fmt.Errorf("role: resolve members of %s: %w", ro.ID, err)
	}
	indirect := make([]string, 0, len(groups))
	for _, g := range groups {
		indirect = append(indirect, g.Users...)
	}
	return unionIDs(ro.AssignedUserIDs, indirect), nil
}

package acl

import "sort"

// Policy grants a permission on a resource to a set of role ids.
type Policy struct {
	Permission Permission `json:"permission"`
	RoleIDs    []string   `json:"roleIds"`
}

// PolicySet is the full policy list attached to a resource. At most one
// entry exists per permission.
type PolicySet []Policy

// Grantees returns the role ids entitled to the given permission.
func (ps PolicySet) Grantees(p Permission) []string {
	for _, policy := range ps {
		if policy.Permission == p {
			return policy.RoleIDs
		}
	}
	return nil
}

// GranteeSet returns the grantees of a permission as a lookup set.
func (ps PolicySet) GranteeSet(p Permission) map[string]struct{} {
	ids := ps.Grantees(p)
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether the set contains a grant for the permission.
func (ps PolicySet) Has(p Permission) bool {
	for _, policy := range ps {
		if policy.Permission == p {
			return true
		}
	}
	return false
}

// Without returns a copy of the set with the given permissions removed.
func (ps PolicySet) Without(perms ...Permission) PolicySet {
	drop := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		drop[p] = struct{}{}
	}
	out := make(PolicySet, 0, len(ps))
	for _, policy := range ps {
		if _, ok := drop[policy.Permission]; ok {
			continue
		}
		out = append(out, policy)
	}
	return out
}

// Clone deep-copies the policy set.
func (ps PolicySet) Clone() PolicySet {
	out := make(PolicySet, len(ps))
	for i, policy := range ps {
		ids := make([]string, len(policy.RoleIDs))
		copy(ids, policy.RoleIDs)
		out[i] = Policy{Permission: policy.Permission, RoleIDs: ids}
	}
	return out
}

func sortPolicies(ps PolicySet) {
	for i := range ps {
		sort.Strings(ps[i].RoleIDs)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Permission < ps[j].Permission })
}

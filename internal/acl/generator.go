package acl

type cascade struct {
	parent     DomainType
	child      DomainType
	permission Permission
}

// Generator derives the policy set of a newly created child resource from
// its parent's policies. The cascade table encodes "holding permission P on
// the parent implies permission P' on a new child of this type". Parent
// permissions without a table entry are dropped for the child. Derivation
// happens once at creation time; later changes to the parent never
// re-propagate.
type Generator struct {
	cascades map[cascade]Permission
}

// NewGenerator builds a Generator with the platform cascade table.
func NewGenerator() *Generator {
	return &Generator{cascades: map[cascade]Permission{
		// Tenant-level grants over roles carry onto each role created in
		// the tenant. The tenant-level create grant stays on the tenant.
		{DomainTenant, DomainRole, ReadRoles}:     ReadRoles,
		{DomainTenant, DomainRole, ManageRoles}:   ManageRoles,
		{DomainTenant, DomainRole, DeleteRoles}:   DeleteRoles,
		{DomainTenant, DomainRole, AssignRoles}:   AssignRoles,
		{DomainTenant, DomainRole, UnassignRoles}: UnassignRoles,

		// Workspace administrators can see and assign the workspace's
		// built-in roles.
		{DomainWorkspace, DomainRole, ManageWorkspaces}: AssignRoles,
		{DomainWorkspace, DomainRole, ReadWorkspaces}:   ReadRoles,
	}}
}

// ChildPolicies derives the child resource's policy set. Pure and
// deterministic: grantees are copied as-is and the result is sorted by
// permission.
func (g *Generator) ChildPolicies(parent PolicySet, parentType, childType DomainType) PolicySet {
	merged := make(map[Permission]map[string]struct{})
	for _, policy := range parent {
		childPerm, ok := g.cascades[cascade{parentType, childType, policy.Permission}]
		if !ok {
			continue
		}
		grantees := merged[childPerm]
		if grantees == nil {
			grantees = make(map[string]struct{}, len(policy.RoleIDs))
			merged[childPerm] = grantees
		}
		for _, id := range policy.RoleIDs {
			grantees[id] = struct{}{}
		}
	}

	out := make(PolicySet, 0, len(merged))
	for perm, grantees := range merged {
		ids := make([]string, 0, len(grantees))
		for id := range grantees {
			ids = append(ids, id)
		}
		out = append(out, Policy{Permission: perm, RoleIDs: ids})
	}
	sortPolicies(out)
	return out
}

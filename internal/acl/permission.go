package acl

// Permission names an operation on a class of resources.
type Permission string

// Role (permission group) scoped permissions. CreateRoles is granted on the
// tenant, the rest are granted on individual role documents.
const (
	CreateRoles   Permission = "create:roles"
	ReadRoles     Permission = "read:roles"
	ManageRoles   Permission = "manage:roles"
	DeleteRoles   Permission = "delete:roles"
	AssignRoles   Permission = "assign:roles"
	UnassignRoles Permission = "unassign:roles"
)

// Tenant and workspace scoped permissions.
const (
	ManageTenants    Permission = "manage:tenants"
	ReadTenants      Permission = "read:tenants"
	ManageWorkspaces Permission = "manage:workspaces"
	ReadWorkspaces   Permission = "read:workspaces"
)

// DomainType classifies the resource a policy set is attached to.
type DomainType string

const (
	DomainTenant    DomainType = "TENANT"
	DomainWorkspace DomainType = "WORKSPACE"
	DomainRole      DomainType = "ROLE"
)

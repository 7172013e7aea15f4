package group

import "time"

// UserGroup bundles a flat set of user ids under a name. Groups never nest;
// a role assigned to a group reaches exactly the users listed here.
type UserGroup struct {
	ID            string
	TenantID      string
	Name          string
	Description   string
	IsProvisioned bool
	Users         []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasUser reports whether the user id is a member of the group.
func (g *UserGroup) HasUser(userID string) bool {
	for _, id := range g.Users {
		if id == userID {
			return true
		}
	}
	return false
}

package auth

import "github.com/dmitrijs2005/contactkeeper/internal/server/models"

// RoleSet is an explicit list of roles allowed through a gate. There is no
// implied hierarchy: admin passes only where admin is listed.
type RoleSet []models.Role

var (
	AdminOnly      = RoleSet{models.RoleAdmin}
	ManagerOrAdmin = RoleSet{models.RoleAdmin, models.RoleManager}
	AnyStaff       = RoleSet{models.RoleAdmin, models.RoleManager, models.RoleAgent}
)

// Allows reports whether role is a member of s.
func (s RoleSet) Allows(role models.Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

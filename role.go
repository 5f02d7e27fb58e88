package authclient

import "strings"

// Role is the server-assigned role of a user.
type Role string

const (
	RoleMember    Role = "MEMBER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// roleAliases maps alternate spellings used by the backend onto canonical roles.
var roleAliases = map[string]Role{
	"MEMBER":    RoleMember,
	"USER":      RoleMember,
	"MODERATOR": RoleModerator,
	"ADMIN":     RoleAdmin,
}

// ParseRole normalizes a role string. Matching is case-insensitive and
// accepts the backend's "USER" spelling for members.
func ParseRole(s string) (Role, bool) {
	r, ok := roleAliases[strings.ToUpper(strings.TrimSpace(s))]
	return r, ok
}

// Rank returns the position of r in MEMBER < MODERATOR < ADMIN, or -1 for an
// unknown role. Every role comparison in the package goes through Rank.
func (r Role) Rank() int {
	switch r {
	case RoleMember:
		return 0
	case RoleModerator:
		return 1
	case RoleAdmin:
		return 2
	default:
		if parsed, ok := ParseRole(string(r)); ok && parsed != r {
			return parsed.Rank()
		}
		return -1
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// AtLeast reports whether r ranks at or above min. Unknown roles on either
// side never satisfy the check.
func (r Role) AtLeast(min Role) bool {
	rank, minRank := r.Rank(), min.Rank()
	if rank < 0 || minRank < 0 {
		return false
	}
	return rank >= minRank
}

// Exactly reports whether r and other name the same known role. This is the
// stricter predicate used by the administrator route.
func (r Role) Exactly(other Role) bool {
	rank := r.Rank()
	return rank >= 0 && rank == other.Rank()
}

// AllRoles returns the known roles in rank order.
func AllRoles() []Role {
	return []Role{RoleMember, RoleModerator, RoleAdmin}
}

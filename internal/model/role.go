package model

// Role is a closed set of user roles. Handlers and middleware dispatch on
// this value instead of doing string-membership checks on raw claims.
type Role int

const (
	RoleUser Role = iota
	RoleWellnessGuide
	RoleAdmin
)

const (
	roleNameUser          = "user"
	roleNameWellnessGuide = "wellness_guide"
	roleNameAdmin         = "admin"
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return roleNameAdmin
	case RoleWellnessGuide:
		return roleNameWellnessGuide
	default:
		return roleNameUser
	}
}

// ResolveRole collapses a list of role names into a single Role.
// Highest privilege wins; unknown names fall through to RoleUser.
func ResolveRole(names []string) Role {
	resolved := RoleUser
	for _, n := range names {
		switch n {
		case roleNameAdmin:
			return RoleAdmin
		case roleNameWellnessGuide:
			resolved = RoleWellnessGuide
		}
	}
	return resolved
}

// ValidRoleName reports whether s is one of the persisted role names.
func ValidRoleName(s string) bool {
	return s == roleNameUser || s == roleNameWellnessGuide || s == roleNameAdmin
}

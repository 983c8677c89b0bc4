package rbac

// Role names. They are embedded in issued tokens, so keep them stable.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleAnalyst  = "analyst"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// Valid reports whether role is one the API knows how to authorize.
func Valid(role string) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleAnalyst:
		return true
	}
	return false
}

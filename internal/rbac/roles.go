package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleCustomer   = "customer"
	RoleCompanion  = "companion"
	RoleSupport    = "support"
	RoleSuperAdmin = "super_admin"
	RoleTrustOps   = "trust_ops" // hidden role
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleTrustOps }

// IsParticipant reports whether the role can take part in a call session.
func IsParticipant(role string) bool {
	return role == RoleCustomer || role == RoleCompanion
}

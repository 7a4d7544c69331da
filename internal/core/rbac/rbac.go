// Package rbac holds the role predicates that gate portal routes. Every
// predicate is pure and returns false for a nil user.
package rbac

import "github.com/typeapproval/portal/internal/core/domain"

// Predicate decides whether a user may see a piece of the portal.
type Predicate func(u *domain.User) bool

// HasRole reports whether u holds role.
func HasRole(u *domain.User, role domain.Role) bool {
	if u == nil {
		return false
	}
	return u.Roles.Contains(role)
}

// HasAnyRole reports whether u holds at least one of roles.
func HasAnyRole(u *domain.User, roles ...domain.Role) bool {
	for _, r := range roles {
		if HasRole(u, r) {
			return true
		}
	}
	return false
}

func IsGuest(u *domain.User) bool {
	return HasRole(u, domain.RoleEmpty)
}

func IsDirector(u *domain.User) bool {
	return HasRole(u, domain.RoleDirector)
}

// CanViewTasksAndContracts denies users without tags and users whose only
// tag is EMPTY.
func CanViewTasksAndContracts(u *domain.User) bool {
	if u == nil || len(u.Roles) == 0 {
		return false
	}
	for _, r := range u.Roles {
		if r != domain.RoleEmpty {
			return true
		}
	}
	return false
}

func CanModifyTasks(u *domain.User) bool {
	return HasAnyRole(u, domain.RoleExpert, domain.RoleDirector)
}

func CanManageContracts(u *domain.User) bool {
	return HasRole(u, domain.RoleAccountant)
}

// CanUseSupportingEndpoints gates reference data used by task and contract forms.
func CanUseSupportingEndpoints(u *domain.User) bool {
	return HasAnyRole(u, domain.RoleExpert, domain.RoleAccountant, domain.RoleDirector)
}

// RequireRoles builds a predicate satisfied by any of roles.
func RequireRoles(roles ...domain.Role) Predicate {
	required := append([]domain.Role(nil), roles...)
	return func(u *domain.User) bool {
		return HasAnyRole(u, required...)
	}
}

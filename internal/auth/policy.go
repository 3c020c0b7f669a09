package auth

import (
	"strings"

	"github.com/spec-kit/blog-service/internal/domain"
)

// Policy is the single authorization component. Handlers and services ask
// it instead of comparing roles themselves.
type Policy struct {
	// ManageThreshold is the minimum role allowed to change other accounts' roles.
	ManageThreshold domain.Role
	// PrivilegedTier is the lowest role that only SuperThreshold may grant or revoke.
	PrivilegedTier domain.Role
	// SuperThreshold is the minimum role allowed to touch privileged-tier roles.
	SuperThreshold domain.Role
}

// DefaultPolicy lets admins manage roles below ADMIN and reserves ADMIN and
// SUPER_ADMIN assignments for super admins.
func DefaultPolicy() Policy {
	return Policy{
		ManageThreshold: domain.RoleAdmin,
		PrivilegedTier:  domain.RoleAdmin,
		SuperThreshold:  domain.RoleSuperAdmin,
	}
}

// Authorize reports whether actor satisfies the required role.
func (p Policy) Authorize(actor, required domain.Role) bool {
	return actor.AtLeast(required)
}

// Require is Authorize as an error: domain.ErrUnauthorized on denial.
func (p Policy) Require(actor, required domain.Role) error {
	if !p.Authorize(actor, required) {
		return domain.ErrUnauthorized
	}
	return nil
}

// AuthorizeRoleChange checks an administrative role transition. The
// privileged-tier rule is checked before the generic hierarchy so that a
// lower tier attempting to grant admin roles is reported as Forbidden.
func (p Policy) AuthorizeRoleChange(change domain.RoleChange) error {
	if strings.TrimSpace(change.Reason) == "" {
		return domain.ErrReasonRequired
	}
	if !change.NewRole.Valid() || !change.OldRole.Valid() {
		return domain.ErrInvalidRole
	}
	if change.Actor != "" && change.Actor == change.Username {
		return domain.ErrForbidden
	}
	touchesPrivileged := change.NewRole.AtLeast(p.PrivilegedTier) || change.OldRole.AtLeast(p.PrivilegedTier)
	if touchesPrivileged && !p.Authorize(change.ActorRole, p.SuperThreshold) {
		return domain.ErrForbidden
	}
	return p.Require(change.ActorRole, p.ManageThreshold)
}

// CanManage reports whether actor may administer an account holding target.
// Accounts in the privileged tier can only be administered by the super tier.
func (p Policy) CanManage(actor, target domain.Role) error {
	if target.AtLeast(p.PrivilegedTier) && !p.Authorize(actor, p.SuperThreshold) {
		return domain.ErrForbidden
	}
	return p.Require(actor, p.ManageThreshold)
}

package domain

import (
	"fmt"
	"strings"
)

// Role is a position in the account hierarchy. The numeric value is the
// hierarchy level, so comparisons between roles are level comparisons.
type Role int

const (
	RoleReader Role = iota + 1
	RoleContributor
	RoleAuthor
	RoleEditor
	RoleAdmin
	RoleSuperAdmin
)

var roleNames = map[Role]string{
	RoleReader:      "READER",
	RoleContributor: "CONTRIBUTOR",
	RoleAuthor:      "AUTHOR",
	RoleEditor:      "EDITOR",
	RoleAdmin:       "ADMIN",
	RoleSuperAdmin:  "SUPER_ADMIN",
}

var roleDescriptions = map[Role]string{
	RoleReader:      "Can read posts, comment, like, and follow authors",
	RoleContributor: "Can create and edit drafts, cannot publish directly",
	RoleAuthor:      "Can create, edit, publish, and delete their own posts",
	RoleEditor:      "Can manage all content, moderate comments, manage categories/tags",
	RoleAdmin:       "Can manage users, posts, comments, and site settings",
	RoleSuperAdmin:  "Platform-wide access, can manage everything",
}

// Roles returns every role ordered from lowest to highest level.
func Roles() []Role {
	return []Role{RoleReader, RoleContributor, RoleAuthor, RoleEditor, RoleAdmin, RoleSuperAdmin}
}

// DefaultRole is assigned to every new registration.
func DefaultRole() Role {
	return RoleReader
}

// ParseRole converts the canonical role name to a Role. Matching is
// case-insensitive; anything outside the closed set is rejected.
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for role, n := range roleNames {
		if n == name {
			return role, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Level returns the hierarchy level of the role. Undefined roles have level 0.
func (r Role) Level() int {
	if !r.Valid() {
		return 0
	}
	return int(r)
}

// AtLeast reports whether r satisfies the required role.
func (r Role) AtLeast(required Role) bool {
	return r.Valid() && required.Valid() && r.Level() >= required.Level()
}

// SelfAssignable reports whether the role may be chosen at registration.
func (r Role) SelfAssignable() bool {
	return r == RoleReader
}

// Description is a human readable summary of the role's capabilities.
func (r Role) Description() string {
	return roleDescriptions[r]
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name, rejecting unknown values.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

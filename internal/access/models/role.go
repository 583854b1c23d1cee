// Package models defines the roles the access registry assigns.
package models

import (
	"fmt"
	"slices"
	"strings"
)

// Role is a capability an identity may hold.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleAuditor    Role = "auditor"
	RoleScanner    Role = "scanner"
	RoleNGO        Role = "ngo"
)

// AllRoles lists every role in administration order.
var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleAuditor, RoleScanner, RoleNGO}

// AdminRole returns the role whose holders may grant and revoke r.
func (r Role) AdminRole() Role {
	switch r {
	case RoleSuperAdmin, RoleAdmin:
		return RoleSuperAdmin
	default:
		return RoleAdmin
	}
}

func (r Role) IsValid() bool {
	return slices.Contains(AllRoles, r)
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts the snake_case name in any case, with '-' for '_'.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// SortRoles orders roles by AllRoles and drops unknown or repeated entries.
func SortRoles(roles []Role) []Role {
	out := make([]Role, 0, len(roles))
	for _, r := range AllRoles {
		if slices.Contains(roles, r) {
			out = append(out, r)
		}
	}
	return out
}

package enums

import (
	"fmt"
	"slices"
	"strings"
)

// MemberRole is the marketplace role carried in access token claims.
type MemberRole string

const (
	MemberRoleCustomer MemberRole = "customer"
	MemberRoleProducer MemberRole = "producer"
	MemberRoleAdmin    MemberRole = "admin"
)

func (m MemberRole) String() string { return string(m) }

func (m MemberRole) IsValid() bool {
	switch m {
	case MemberRoleCustomer, MemberRoleProducer, MemberRoleAdmin:
		return true
	}
	return false
}

// In reports whether m is one of allowed.
func (m MemberRole) In(allowed ...MemberRole) bool {
	return m.IsValid() && slices.Contains(allowed, m)
}

// CanOverbook reports whether the role may book past a pallet's capacity.
// Config and the request flag must allow it too.
func (m MemberRole) CanOverbook() bool {
	return m == MemberRoleAdmin
}

// ParseMemberRole accepts any casing and surrounding whitespace.
func ParseMemberRole(value string) (MemberRole, error) {
	role := MemberRole(strings.ToLower(strings.TrimSpace(value)))
	if !role.IsValid() {
		return "", fmt.Errorf("invalid member role %q", value)
	}
	return role, nil
}

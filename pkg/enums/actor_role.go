package enums

import (
	"fmt"
	"strings"
)

// ActorRole identifies the kind of caller driving an operation.
type ActorRole string

const (
	ActorRoleAdmin   ActorRole = "admin"
	ActorRolePatient ActorRole = "patient"
	ActorRoleSystem  ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleAdmin,
	ActorRolePatient,
	ActorRoleSystem,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole, ignoring case.
func ParseActorRole(value string) (ActorRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validActorRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}

package rbac

import (
	"errors"
	"strings"
)

// Role is a user's console role as stored on the users row.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
	RoleUser   Role = "user"
)

type RoleRank int

var roleOrder = map[Role]RoleRank{
	RoleOwner:  4,
	RoleAdmin:  3,
	RoleViewer: 2,
	RoleUser:   1,
}

var ErrForbidden = errors.New("forbidden")

// ParseRole converts a case-insensitive string to Role.
func ParseRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "owner":
		return RoleOwner, true
	case "admin":
		return RoleAdmin, true
	case "viewer":
		return RoleViewer, true
	case "user":
		return RoleUser, true
	default:
		return "", false
	}
}

// AtLeast returns true if current role is >= required role.
func AtLeast(current, required Role) bool {
	need, ok := roleOrder[required]
	if !ok {
		return false
	}
	return roleOrder[current] >= need
}

// Ensure returns ErrForbidden unless current is at least required.
func Ensure(current, required Role) error {
	if !AtLeast(current, required) {
		return ErrForbidden
	}
	return nil
}

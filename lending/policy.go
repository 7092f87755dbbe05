// Package lending holds the key lending rules: who may do what, the checkout
// procedure that keeps keys and loans consistent, and the overdue sweep.
package lending

import (
	"fmt"

	"cabinetkey/models"
)

// Identity is the verified caller of one request.
type Identity struct {
	UserID      string      `json:"userId"`
	Email       string      `json:"email"`
	DisplayName string      `json:"displayName"`
	Role        models.Role `json:"role"`
	Active      bool        `json:"active"`
}

func IdentityOf(u *models.User) Identity {
	return Identity{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Active:      u.Active,
	}
}

func (id Identity) IsAdmin() bool { return id.Role == models.RoleAdmin }

func denied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrPermissionDenied, fmt.Sprintf(format, args...))
}

// RequireActive gates every mutating operation: deactivated accounts can do
// nothing regardless of role.
func RequireActive(id Identity) error {
	if id.UserID == "" {
		return denied("no identity")
	}
	if !id.Active {
		return denied("account %s is deactivated", id.UserID)
	}
	return nil
}

func RequireAdmin(id Identity) error {
	if err := RequireActive(id); err != nil {
		return err
	}
	if !id.IsAdmin() {
		return denied("administrator role required")
	}
	return nil
}

// CanBorrow: any active user may borrow any available key.
func CanBorrow(id Identity) error { return RequireActive(id) }

// CanReturn: holdership itself is checked by the conditional write.
func CanReturn(id Identity) error { return RequireActive(id) }

// RequireSelfOrAdmin lets users act on their own records and admins on anyone's.
func RequireSelfOrAdmin(id Identity, userID string) error {
	if id.UserID == "" {
		return denied("no identity")
	}
	if id.UserID == userID {
		return nil
	}
	if !id.IsAdmin() || !id.Active {
		return denied("cannot access user %s", userID)
	}
	return nil
}

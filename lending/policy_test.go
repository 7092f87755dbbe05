package lending

import (
	"testing"

	"cabinetkey/models"

	"github.com/stretchr/testify/assert"
)

func TestPolicy(t *testing.T) {
	user := Identity{UserID: "u1", Role: models.RoleUser, Active: true}
	admin := Identity{UserID: "a1", Role: models.RoleAdmin, Active: true}
	inactiveAdmin := Identity{UserID: "a2", Role: models.RoleAdmin, Active: false}

	tests := []struct {
		name    string
		err     error
		allowed bool
	}{
		{"user borrows", CanBorrow(user), true},
		{"user returns", CanReturn(user), true},
		{"anonymous borrows", CanBorrow(Identity{}), false},
		{"user is not admin", RequireAdmin(user), false},
		{"admin is admin", RequireAdmin(admin), true},
		{"deactivated admin is denied", RequireAdmin(inactiveAdmin), false},
		{"deactivated admin cannot borrow", CanBorrow(inactiveAdmin), false},
		{"self access", RequireSelfOrAdmin(user, "u1"), true},
		{"other user access", RequireSelfOrAdmin(user, "u9"), false},
		{"admin reads anyone", RequireSelfOrAdmin(admin, "u9"), true},
		{"deactivated admin reads nobody else", RequireSelfOrAdmin(inactiveAdmin, "u9"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.allowed {
				assert.NoError(t, tt.err)
			} else {
				assert.ErrorIs(t, tt.err, models.ErrPermissionDenied)
			}
		})
	}
}

func TestIdentityOf(t *testing.T) {
	u := &models.User{ID: "u1", Email: "a@b.c", DisplayName: "A", Role: models.RoleAdmin, Active: true}
	id := IdentityOf(u)
	assert.Equal(t, "u1", id.UserID)
	assert.True(t, id.IsAdmin())
	assert.True(t, id.Active)
}

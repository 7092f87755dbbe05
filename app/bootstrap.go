// app/bootstrap.go
package app

import (
	"context"
	"log"

	"cabinetkey/lending"
	"cabinetkey/models"
)

// BootstrapAdmins creates an administrator for every ADMIN_EMAILS entry that
// has no user yet. Existing users keep their role.
func BootstrapAdmins(ctx context.Context, accounts *lending.Accounts) {
	for _, email := range accounts.AdminEmails() {
		u, err := accounts.Provision(ctx, "", email, "")
		if err != nil {
			log.Printf("bootstrap admin %s failed: %v", email, err)
			continue
		}
		if u.Role != models.RoleAdmin {
			log.Printf("[BOOTSTRAP] %s exists with role %s, left unchanged", u.Email, u.Role)
			continue
		}
		log.Printf("[BOOTSTRAP] admin %s (%s)", u.Email, u.ID)
	}
}

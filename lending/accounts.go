package lending

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"

	"cabinetkey/db"
	"cabinetkey/models"

	"github.com/google/uuid"
)

// SessionRevoker drops every login session of a user.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

// UserPatch is a partial profile update; nil fields are left alone.
type UserPatch struct {
	DisplayName *string      `json:"displayName"`
	Email       *string      `json:"email"`
	Bio         *string      `json:"bio"`
	AvatarURL   *string      `json:"avatarUrl"`
	Role        *models.Role `json:"role"`
	Active      *bool        `json:"active"`
}

func (p UserPatch) empty() bool {
	return p.DisplayName == nil && p.Email == nil && p.Bio == nil &&
		p.AvatarURL == nil && p.Role == nil && p.Active == nil
}

// Accounts manages borrower profiles.
type Accounts struct {
	repo     *db.Repo
	sessions SessionRevoker
	admins   map[string]bool
}

// NewAccounts: users created for adminEmails start as administrators.
func NewAccounts(repo *db.Repo, sessions SessionRevoker, adminEmails []string) *Accounts {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &Accounts{repo: repo, sessions: sessions, admins: admins}
}

func (a *Accounts) AdminEmails() []string {
	out := make([]string, 0, len(a.admins))
	for e := range a.admins {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func cleanEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", fmt.Errorf("%w: invalid email %q", models.ErrInvalidInput, s)
	}
	return s, nil
}

func cleanDisplayName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > 255 {
		return "", fmt.Errorf("%w: display name must be 1-255 characters", models.ErrInvalidInput)
	}
	return s, nil
}

// Resolve loads the caller's user row by id.
func (a *Accounts) Resolve(ctx context.Context, userID string) (*models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("user %q: %w", userID, models.ErrNotFound)
	}
	u, err := a.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, classify("resolve user", err)
	}
	return u, nil
}

// Provision finds the user with this email or creates it. id is used for a
// new row when it is a valid UUID. A new row for a listed admin email starts
// as administrator; existing rows keep whatever role they have.
func (a *Accounts) Provision(ctx context.Context, id, email, displayName string) (*models.User, error) {
	email, err := cleanEmail(email)
	if err != nil {
		return nil, err
	}
	u, err := a.repo.FindUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, classify("provision user", err)
	}

	if _, perr := uuid.Parse(id); perr != nil {
		id = uuid.NewString()
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	if displayName, err = cleanDisplayName(displayName); err != nil {
		return nil, err
	}
	u = &models.User{ID: id, Email: email, DisplayName: displayName, Role: models.RoleUser, Active: true}
	if a.admins[email] {
		u.Role = models.RoleAdmin
	}
	if err := a.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// lost a race with a concurrent first request
			u, err = a.repo.FindUserByEmail(ctx, email)
			return u, classify("provision user", err)
		}
		return nil, classify("provision user", err)
	}
	return u, nil
}

// Create registers a user on behalf of an administrator.
func (a *Accounts) Create(ctx context.Context, actor Identity, email, displayName string, role models.Role) (*models.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, role)
	}
	email, err := cleanEmail(email)
	if err != nil {
		return nil, err
	}
	name, err := cleanDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	u := &models.User{ID: uuid.NewString(), Email: email, DisplayName: name, Role: role, Active: true}
	err = a.repo.Transaction(ctx, func(tx *db.Repo) error {
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		_, err := tx.LogAudit(ctx, actor.UserID, models.AuditUserUpdate, u.ID, "created as "+string(role))
		return err
	})
	if err != nil {
		return nil, classify("create user", err)
	}
	return u, nil
}

func (a *Accounts) Get(ctx context.Context, actor Identity, id string) (*models.User, error) {
	if err := RequireSelfOrAdmin(actor, id); err != nil {
		return nil, err
	}
	u, err := a.repo.FindUserByID(ctx, id)
	return u, classify("get user", err)
}

func (a *Accounts) List(ctx context.Context, actor Identity, q string, page, size int) (db.ListUsersResult, error) {
	if err := RequireAdmin(actor); err != nil {
		return db.ListUsersResult{}, err
	}
	res, err := a.repo.ListUsers(ctx, q, page, size)
	return res, classify("list users", err)
}

// Update applies a patch. Users may edit their own profile fields; role and
// active flag are for administrators, who cannot demote or deactivate
// themselves. Deactivating a user ends their sessions.
func (a *Accounts) Update(ctx context.Context, actor Identity, id string, p UserPatch) (*models.User, error) {
	if err := RequireActive(actor); err != nil {
		return nil, err
	}
	if err := RequireSelfOrAdmin(actor, id); err != nil {
		return nil, err
	}
	if p.empty() {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrInvalidInput)
	}
	self := actor.UserID == id
	if p.Role != nil || p.Active != nil {
		if !actor.IsAdmin() {
			return nil, denied("only administrators change role or status")
		}
		if self && p.Role != nil && *p.Role != models.RoleAdmin {
			return nil, fmt.Errorf("%w: administrators cannot demote themselves", models.ErrInvalidInput)
		}
		if self && p.Active != nil && !*p.Active {
			return nil, fmt.Errorf("%w: administrators cannot deactivate themselves", models.ErrInvalidInput)
		}
	}

	updates := map[string]any{}
	var changed []string
	if p.DisplayName != nil {
		v, err := cleanDisplayName(*p.DisplayName)
		if err != nil {
			return nil, err
		}
		updates["display_name"] = v
		changed = append(changed, "displayName")
	}
	if p.Email != nil {
		v, err := cleanEmail(*p.Email)
		if err != nil {
			return nil, err
		}
		updates["email"] = v
		changed = append(changed, "email")
	}
	if p.Bio != nil {
		updates["bio"] = strings.TrimSpace(*p.Bio)
		changed = append(changed, "bio")
	}
	if p.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*p.AvatarURL)
		changed = append(changed, "avatarUrl")
	}
	if p.Role != nil {
		if !p.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, *p.Role)
		}
		updates["role"] = *p.Role
		changed = append(changed, "role="+string(*p.Role))
	}
	if p.Active != nil {
		updates["active"] = *p.Active
		changed = append(changed, fmt.Sprintf("active=%t", *p.Active))
	}

	var u *models.User
	err := a.repo.Transaction(ctx, func(tx *db.Repo) error {
		if err := tx.UpdateUser(ctx, id, updates); err != nil {
			return err
		}
		if p.Role != nil || p.Active != nil {
			n, err := tx.CountActiveAdmins(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: at least one active administrator is required", models.ErrInvalidInput)
			}
		}
		if _, err := tx.LogAudit(ctx, actor.UserID, models.AuditUserUpdate, id, strings.Join(changed, ",")); err != nil {
			return err
		}
		var err error
		u, err = tx.FindUserByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, classify("update user", err)
	}

	if p.Active != nil && !*p.Active && a.sessions != nil {
		if err := a.sessions.RevokeAllForUser(ctx, id); err != nil {
			return u, models.NewFault("revoke sessions", err)
		}
	}
	return u, nil
}

package lending

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cabinetkey/db"
	"cabinetkey/models"

	"github.com/google/uuid"
)

const maxKeyName = 120

// Inventory manages key metadata. State and holder are not editable here.
type Inventory struct {
	repo *db.Repo
	now  func() time.Time
}

func NewInventory(repo *db.Repo) *Inventory {
	return &Inventory{repo: repo, now: time.Now}
}

func cleanKeyName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: key name is required", models.ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxKeyName {
		return "", fmt.Errorf("%w: key name longer than %d characters", models.ErrInvalidInput, maxKeyName)
	}
	return name, nil
}

func (inv *Inventory) Create(ctx context.Context, actor Identity, name, description string) (*models.Key, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	name, err := cleanKeyName(name)
	if err != nil {
		return nil, err
	}
	k := &models.Key{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		State:       models.KeyAvailable,
	}
	err = inv.repo.Transaction(ctx, func(tx *db.Repo) error {
		if err := tx.CreateKey(ctx, k); err != nil {
			return err
		}
		_, err := tx.LogAudit(ctx, actor.UserID, models.AuditKeyCreate, k.ID, k.Name)
		return err
	})
	if err != nil {
		return nil, classify("create key", err)
	}
	return k, nil
}

func (inv *Inventory) Get(ctx context.Context, viewer Identity, id string) (*db.KeyRow, error) {
	row, err := inv.repo.GetKeyRow(ctx, id, viewer.UserID)
	return row, classify("get key", err)
}

func (inv *Inventory) List(ctx context.Context, viewer Identity, q db.KeysQuery) (*db.PagedKeys, error) {
	if !q.Filter.Valid() {
		return nil, fmt.Errorf("%w: unknown filter %q", models.ErrInvalidInput, q.Filter)
	}
	q.ViewerID = viewer.UserID
	res, err := inv.repo.ListKeys(ctx, q)
	return res, classify("list keys", err)
}

// Update edits name and/or description; nil leaves a field unchanged.
func (inv *Inventory) Update(ctx context.Context, actor Identity, id string, name, description *string) (*models.Key, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if name == nil && description == nil {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrInvalidInput)
	}
	if name != nil {
		n, err := cleanKeyName(*name)
		if err != nil {
			return nil, err
		}
		name = &n
	}
	if description != nil {
		d := strings.TrimSpace(*description)
		description = &d
	}

	var k *models.Key
	err := inv.repo.Transaction(ctx, func(tx *db.Repo) error {
		var err error
		k, err = tx.UpdateKeyMetadata(ctx, id, name, description)
		if err != nil {
			return err
		}
		_, err = tx.LogAudit(ctx, actor.UserID, models.AuditKeyUpdate, id, k.Name)
		return err
	})
	if err != nil {
		return nil, classify("update key", err)
	}
	return k, nil
}

// Delete removes a key. A borrowed key is refused with ErrConflict unless
// cascade is set, in which case its loan is force-returned first in the same
// transaction. Loan history of the key is kept either way.
func (inv *Inventory) Delete(ctx context.Context, actor Identity, id string, cascade bool) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	now := inv.now().UTC()
	err := inv.repo.Transaction(ctx, func(tx *db.Repo) error {
		n, err := tx.DeleteAvailableKey(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			k, err := tx.FindKeyByID(ctx, id)
			if err != nil {
				return err
			}
			if !cascade {
				return fmt.Errorf("key %s is %s; return it first: %w", id, k.State, models.ErrConflict)
			}
			if _, err := forceReturn(ctx, tx, actor.UserID, id, "key deleted", now); err != nil {
				return err
			}
			if n, err = tx.DeleteAvailableKey(ctx, id); err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("key %s changed during delete: %w", id, models.ErrConflict)
			}
		}
		_, err = tx.LogAudit(ctx, actor.UserID, models.AuditKeyDelete, id, "")
		return err
	})
	return classify("delete key", err)
}

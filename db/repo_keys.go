// db/repo_keys.go
package db

import (
	"cabinetkey/models"
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Keys

func (r *Repo) CreateKey(ctx context.Context, k *models.Key) error {
	if k.State == "" {
		k.State = models.KeyAvailable
	}
	return wrap("create key", r.DB.WithContext(ctx).Create(k).Error)
}

func (r *Repo) FindKeyByID(ctx context.Context, id string) (*models.Key, error) {
	var k models.Key
	if err := r.DB.WithContext(ctx).First(&k, "id = ?", id).Error; err != nil {
		return nil, wrap("find key", err)
	}
	return &k, nil
}

// AcquireKey flips an available key to borrowed by userID in one conditional
// write. It returns the number of rows changed: 0 means the key is missing or
// somebody else got there first.
func (r *Repo) AcquireKey(ctx context.Context, keyID, userID string, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Key{}).
		Where("id = ? AND state = ?", keyID, models.KeyAvailable).
		Updates(map[string]any{
			"state":      models.KeyBorrowed,
			"holder_id":  userID,
			"updated_at": now,
		})
	return res.RowsAffected, wrap("acquire key", res.Error)
}

// ReleaseKey flips a borrowed key back to available. When holderID is non-nil
// the write only applies if that user is the current holder.
func (r *Repo) ReleaseKey(ctx context.Context, keyID string, holderID *string, now time.Time) (int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Key{}).
		Where("id = ? AND state = ?", keyID, models.KeyBorrowed)
	if holderID != nil {
		q = q.Where("holder_id = ?", *holderID)
	}
	res := q.Updates(map[string]any{
		"state":      models.KeyAvailable,
		"holder_id":  gorm.Expr("NULL"),
		"updated_at": now,
	})
	return res.RowsAffected, wrap("release key", res.Error)
}

// UpdateKeyMetadata changes name/description only; lifecycle columns are
// owned by the checkout procedure.
func (r *Repo) UpdateKeyMetadata(ctx context.Context, id string, name, description *string) (*models.Key, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if name != nil {
		updates["name"] = *name
	}
	if description != nil {
		updates["description"] = *description
	}
	res := r.DB.WithContext(ctx).Model(&models.Key{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, wrap("update key", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, wrap("update key", gorm.ErrRecordNotFound)
	}
	return r.FindKeyByID(ctx, id)
}

// DeleteAvailableKey removes a key row only while it is available. Loans that
// reference it are kept as history.
func (r *Repo) DeleteAvailableKey(ctx context.Context, id string) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND state = ?", id, models.KeyAvailable).
		Delete(&models.Key{})
	if res.Error != nil {
		return 0, wrap("delete key", res.Error)
	}
	if res.RowsAffected > 0 {
		// favorites have no life of their own
		if err := r.DB.WithContext(ctx).Where("key_id = ?", id).Delete(&models.Favorite{}).Error; err != nil {
			return 0, wrap("delete key favorites", err)
		}
	}
	return res.RowsAffected, nil
}

// KeyRow is a key joined with its open loan, holder and the viewer's favorite flag.
type KeyRow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	State       models.KeyState `json:"state"`
	HolderID    *string         `json:"holderId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`

	LoanID           *string            `json:"loanId,omitempty"`
	LoanStatus       *models.LoanStatus `json:"loanStatus,omitempty"`
	BorrowedAt       *time.Time         `json:"borrowedAt,omitempty"`
	ExpectedReturnAt *time.Time         `json:"expectedReturnAt,omitempty"`
	HolderName       *string            `json:"holderName,omitempty"`
	HolderEmail      *string            `json:"holderEmail,omitempty"`
	Favorite         bool               `json:"favorite"`
}

type KeyFilter string

const (
	KeyFilterAll       KeyFilter = "all"
	KeyFilterAvailable KeyFilter = "available"
	KeyFilterBorrowed  KeyFilter = "borrowed"
	KeyFilterOverdue   KeyFilter = "overdue"
	KeyFilterFavorites KeyFilter = "favorites"
)

func (f KeyFilter) Valid() bool {
	switch f {
	case "", KeyFilterAll, KeyFilterAvailable, KeyFilterBorrowed, KeyFilterOverdue, KeyFilterFavorites:
		return true
	}
	return false
}

type KeysQuery struct {
	ViewerID string // favorites are resolved for this user
	Q        string // 模糊搜索：钥匙名/描述/持有人
	Filter   KeyFilter
	Page     int
	Size     int
}

type PagedKeys struct {
	Total int64    `json:"total"`
	Keys  []KeyRow `json:"keys"`
}

const keyRowColumns = `
	k.id, k.name, k.description, k.state, k.holder_id, k.created_at, k.updated_at,
	ol.id            AS loan_id,
	ol.status        AS loan_status,
	ol.borrowed_at   AS borrowed_at,
	ol.expected_return_at AS expected_return_at,
	u.display_name   AS holder_name,
	u.email          AS holder_email,
	CASE WHEN f.user_id IS NULL THEN FALSE ELSE TRUE END AS favorite
`

func (r *Repo) keyRows(ctx context.Context, viewerID string) *gorm.DB {
	return r.DB.WithContext(ctx).
		Table(models.KeyTable+" k").
		Joins("LEFT JOIN "+models.LoanTable+" ol ON ol.key_id = k.id AND ol.status IN ?", models.OpenLoanStatuses).
		Joins("LEFT JOIN cabinet_users u ON u.id = k.holder_id").
		Joins("LEFT JOIN cabinet_favorites f ON f.key_id = k.id AND f.user_id = ?", viewerID)
}

func (r *Repo) ListKeys(ctx context.Context, q KeysQuery) (*PagedKeys, error) {
	page, size := normalizePage(q.Page, q.Size)

	qry := r.keyRows(ctx, q.ViewerID)
	if s := strings.TrimSpace(q.Q); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		qry = qry.Where("(LOWER(k.name) LIKE ? OR LOWER(k.description) LIKE ? OR LOWER(u.display_name) LIKE ? OR LOWER(u.email) LIKE ?)",
			pat, pat, pat, pat)
	}
	switch q.Filter {
	case KeyFilterAvailable:
		qry = qry.Where("k.state = ?", models.KeyAvailable)
	case KeyFilterBorrowed:
		qry = qry.Where("k.state = ?", models.KeyBorrowed)
	case KeyFilterOverdue:
		qry = qry.Where("ol.status = ?", models.LoanOverdue)
	case KeyFilterFavorites:
		qry = qry.Where("f.user_id IS NOT NULL")
	default:
		// all
	}
	qry = qry.Session(&gorm.Session{})

	var total int64
	if err := qry.Count(&total).Error; err != nil {
		return nil, wrap("count keys", err)
	}

	var rows []KeyRow
	if err := qry.Select(keyRowColumns).
		Order("k.name ASC, k.id ASC").
		Offset((page - 1) * size).
		Limit(size).
		Scan(&rows).Error; err != nil {
		return nil, wrap("list keys", err)
	}
	return &PagedKeys{Total: total, Keys: rows}, nil
}

func (r *Repo) GetKeyRow(ctx context.Context, id, viewerID string) (*KeyRow, error) {
	var rows []KeyRow
	if err := r.keyRows(ctx, viewerID).
		Select(keyRowColumns).
		Where("k.id = ?", id).
		Limit(1).
		Scan(&rows).Error; err != nil {
		return nil, wrap("get key", err)
	}
	if len(rows) == 0 {
		return nil, wrap("get key", gorm.ErrRecordNotFound)
	}
	return &rows[0], nil
}

package db

import (
	"cabinetkey/models"
	"context"
	"time"

	"gorm.io/gorm"
)

// Loan ledger. Rows are inserted by a successful borrow and closed exactly
// once; nothing here ever deletes a loan or edits a returned one.

func (r *Repo) AppendLoan(ctx context.Context, l *models.Loan) error {
	if l.Status == "" {
		l.Status = models.LoanActive
	}
	return wrap("append loan", r.DB.WithContext(ctx).Create(l).Error)
}

func (r *Repo) FindLoanByID(ctx context.Context, id string) (*models.Loan, error) {
	var l models.Loan
	if err := r.DB.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, wrap("find loan", err)
	}
	return &l, nil
}

func (r *Repo) FindOpenLoan(ctx context.Context, keyID string) (*models.Loan, error) {
	var l models.Loan
	if err := r.DB.WithContext(ctx).
		Where("key_id = ? AND status IN ?", keyID, models.OpenLoanStatuses).
		First(&l).Error; err != nil {
		return nil, wrap("find open loan", err)
	}
	return &l, nil
}

// CloseOpenLoan writes the one and only close of the open loan for keyID,
// whatever its Active/Overdue status is at that moment.
func (r *Repo) CloseOpenLoan(ctx context.Context, keyID, returnedBy string, returnedAt time.Time) (*models.Loan, error) {
	l, err := r.FindOpenLoan(ctx, keyID)
	if err != nil {
		return nil, err
	}
	res := r.DB.WithContext(ctx).Model(&models.Loan{}).
		Where("id = ? AND status IN ?", l.ID, models.OpenLoanStatuses).
		Updates(map[string]any{
			"status":      models.LoanReturned,
			"returned_at": returnedAt,
			"returned_by": returnedBy,
			"updated_at":  returnedAt,
		})
	if res.Error != nil {
		return nil, wrap("close loan", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, wrap("close loan", gorm.ErrRecordNotFound)
	}
	l.Status = models.LoanReturned
	l.ReturnedAt = &returnedAt
	l.ReturnedBy = &returnedBy
	l.UpdatedAt = returnedAt
	return l, nil
}

// MarkLoanOverdue moves an active loan to overdue. It reports false when the
// loan was no longer active (already overdue, or returned meanwhile).
func (r *Repo) MarkLoanOverdue(ctx context.Context, loanID string, now time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Loan{}).
		Where("id = ? AND status = ?", loanID, models.LoanActive).
		Updates(map[string]any{
			"status":     models.LoanOverdue,
			"overdue_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, wrap("mark loan overdue", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListDueLoans returns active loans whose deadline passed before now.
func (r *Repo) ListDueLoans(ctx context.Context, now time.Time, limit int) ([]models.Loan, error) {
	q := r.DB.WithContext(ctx).
		Where("status = ? AND expected_return_at IS NOT NULL AND expected_return_at < ?", models.LoanActive, now).
		Order("expected_return_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ls []models.Loan
	if err := q.Find(&ls).Error; err != nil {
		return nil, wrap("list due loans", err)
	}
	return ls, nil
}

type LoansQuery struct {
	KeyID    string
	UserID   string
	Statuses []models.LoanStatus
	Since    *time.Time
}

// ListLoans returns ledger rows newest first.
func (r *Repo) ListLoans(ctx context.Context, in LoansQuery) ([]models.Loan, error) {
	q := r.DB.WithContext(ctx).Model(&models.Loan{}).Order("borrowed_at DESC, id ASC")
	if in.UserID != "" {
		q = q.Where("user_id = ?", in.UserID)
	}
	if in.KeyID != "" {
		q = q.Where("key_id = ?", in.KeyID)
	}
	if len(in.Statuses) > 0 {
		q = q.Where("status IN ?", in.Statuses)
	}
	if in.Since != nil {
		q = q.Where("borrowed_at >= ?", *in.Since)
	}
	ls := []models.Loan{}
	if err := q.Find(&ls).Error; err != nil {
		return nil, wrap("list loans", err)
	}
	return ls, nil
}

func (r *Repo) ListLoansByKey(ctx context.Context, keyID string) ([]models.Loan, error) {
	return r.ListLoans(ctx, LoansQuery{KeyID: keyID})
}

func (r *Repo) ListLoansByUser(ctx context.Context, userID string, since *time.Time) ([]models.Loan, error) {
	return r.ListLoans(ctx, LoansQuery{UserID: userID, Since: since})
}

// ListOpenLoans is the "who holds what" view: every active or overdue loan.
func (r *Repo) ListOpenLoans(ctx context.Context) ([]models.Loan, error) {
	return r.ListLoans(ctx, LoansQuery{Statuses: models.OpenLoanStatuses})
}

func (r *Repo) ListOverdueLoans(ctx context.Context) ([]models.Loan, error) {
	return r.ListLoans(ctx, LoansQuery{Statuses: []models.LoanStatus{models.LoanOverdue}})
}

package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cabinetkey/db"
	"cabinetkey/metrics"
	"cabinetkey/models"

	"github.com/google/uuid"
)

// LoanLimits bounds the caller-supplied loan duration.
type LoanLimits struct {
	Min     time.Duration
	Max     time.Duration
	Default time.Duration
}

func DefaultLoanLimits() LoanLimits {
	return LoanLimits{Min: time.Hour, Max: 12 * time.Hour, Default: 2 * time.Hour}
}

func (l LoanLimits) resolve(d time.Duration) (time.Duration, error) {
	if d == 0 {
		return l.Default, nil
	}
	if d < l.Min || d > l.Max {
		return 0, fmt.Errorf("%w: loan duration %s outside [%s, %s]", models.ErrInvalidInput, d, l.Min, l.Max)
	}
	return d, nil
}

// Coordinator is the only code path that changes a key's state or holder.
// It keeps no state of its own: every operation is one storage transaction
// whose first statement is a conditional write on the key row, so competing
// callers are ordered by the database and not by in-process locks.
type Coordinator struct {
	repo   *db.Repo
	limits LoanLimits
	now    func() time.Time
}

func NewCoordinator(repo *db.Repo, limits LoanLimits) *Coordinator {
	return &Coordinator{repo: repo, limits: limits, now: time.Now}
}

// Borrow checks out keyID to the caller. Exactly one of any number of
// concurrent Borrow calls on the same available key succeeds; the rest get
// ErrConflict. A retry by the winner also gets ErrConflict.
func (c *Coordinator) Borrow(ctx context.Context, actor Identity, keyID string, d time.Duration) (loan *models.Loan, err error) {
	defer func() { metrics.ObserveCheckout("borrow", Outcome(err)) }()

	if err := CanBorrow(actor); err != nil {
		return nil, err
	}
	d, err = c.limits.resolve(d)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	err = c.repo.Transaction(ctx, func(tx *db.Repo) error {
		n, err := tx.AcquireKey(ctx, keyID, actor.UserID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := tx.FindKeyByID(ctx, keyID); err != nil {
				return err
			}
			return fmt.Errorf("key %s is not available: %w", keyID, models.ErrConflict)
		}

		due := now.Add(d)
		l := &models.Loan{
			ID:               uuid.NewString(),
			KeyID:            keyID,
			UserID:           actor.UserID,
			Status:           models.LoanActive,
			BorrowedAt:       now,
			ExpectedReturnAt: &due,
		}
		if err := tx.AppendLoan(ctx, l); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, classify("borrow", err)
	}
	return loan, nil
}

// Return closes the caller's own loan on keyID. It wins over a concurrent
// overdue sweep: an Active or Overdue loan is closed alike.
func (c *Coordinator) Return(ctx context.Context, actor Identity, keyID string) (loan *models.Loan, err error) {
	defer func() { metrics.ObserveCheckout("return", Outcome(err)) }()

	if err := CanReturn(actor); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	holder := actor.UserID
	err = c.repo.Transaction(ctx, func(tx *db.Repo) error {
		n, err := tx.ReleaseKey(ctx, keyID, &holder, now)
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := tx.FindKeyByID(ctx, keyID); err != nil {
				return err
			}
			return fmt.Errorf("return key %s: %w", keyID, models.ErrNotHolder)
		}
		loan, err = closeLoan(ctx, tx, keyID, actor.UserID, now)
		return err
	})
	if err != nil {
		return nil, classify("return", err)
	}
	return loan, nil
}

// ForceReturn is the administrator override for lost keys and corrections.
// The loan is closed, never discarded, and the override is audited.
func (c *Coordinator) ForceReturn(ctx context.Context, actor Identity, keyID, reason string) (loan *models.Loan, err error) {
	defer func() { metrics.ObserveCheckout("force_return", Outcome(err)) }()

	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	err = c.repo.Transaction(ctx, func(tx *db.Repo) error {
		loan, err = forceReturn(ctx, tx, actor.UserID, keyID, reason, now)
		return err
	})
	if err != nil {
		return nil, classify("force return", err)
	}
	return loan, nil
}

func forceReturn(ctx context.Context, tx *db.Repo, actorID, keyID, reason string, now time.Time) (*models.Loan, error) {
	n, err := tx.ReleaseKey(ctx, keyID, nil, now)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := tx.FindKeyByID(ctx, keyID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("key %s is not borrowed: %w", keyID, models.ErrConflict)
	}
	loan, err := closeLoan(ctx, tx, keyID, actorID, now)
	if err != nil {
		return nil, err
	}
	detail := fmt.Sprintf("loan %s held by %s", loan.ID, loan.UserID)
	if reason != "" {
		detail += ": " + reason
	}
	if _, err := tx.LogAudit(ctx, actorID, models.AuditForceReturn, keyID, detail); err != nil {
		return nil, err
	}
	return loan, nil
}

// closeLoan runs right after the key row was released inside the same
// transaction. A borrowed key without an open loan means the ledger is
// inconsistent, which is reported as a fault rather than NotFound.
func closeLoan(ctx context.Context, tx *db.Repo, keyID, returnedBy string, now time.Time) (*models.Loan, error) {
	loan, err := tx.CloseOpenLoan(ctx, keyID, returnedBy, now)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NewFault("close loan", fmt.Errorf("key %s was borrowed without an open loan", keyID))
	}
	return loan, err
}

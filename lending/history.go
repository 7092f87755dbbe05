package lending

import (
	"context"
	"fmt"
	"time"

	"cabinetkey/db"
	"cabinetkey/models"
)

// History answers read-only questions over the loan ledger.
type History struct {
	repo *db.Repo
	now  func() time.Time
}

func NewHistory(repo *db.Repo) *History { return &History{repo: repo, now: time.Now} }

// ByKey lists the ledger of a key, newest first. History of a deleted key
// is still returned.
func (h *History) ByKey(ctx context.Context, keyID string) ([]models.Loan, error) {
	ls, err := h.repo.ListLoansByKey(ctx, keyID)
	if err != nil {
		return nil, classify("key history", err)
	}
	if len(ls) == 0 {
		if _, err := h.repo.FindKeyByID(ctx, keyID); err != nil {
			return nil, classify("key history", err)
		}
	}
	return ls, nil
}

// ByUser lists a user's loans, newest first; period is "", "all", "today",
// "week" or "month".
func (h *History) ByUser(ctx context.Context, viewer Identity, userID, period string) ([]models.Loan, error) {
	if err := RequireSelfOrAdmin(viewer, userID); err != nil {
		return nil, err
	}
	since, err := periodStart(h.now().UTC(), period)
	if err != nil {
		return nil, err
	}
	ls, err := h.repo.ListLoansByUser(ctx, userID, since)
	return ls, classify("user history", err)
}

func (h *History) Open(ctx context.Context) ([]models.Loan, error) {
	ls, err := h.repo.ListOpenLoans(ctx)
	return ls, classify("open loans", err)
}

func (h *History) Overdue(ctx context.Context) ([]models.Loan, error) {
	ls, err := h.repo.ListOverdueLoans(ctx)
	return ls, classify("overdue loans", err)
}

func periodStart(now time.Time, period string) (*time.Time, error) {
	var t time.Time
	switch period {
	case "", "all":
		return nil, nil
	case "today":
		t = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case "week":
		t = now.AddDate(0, 0, -7)
	case "month":
		t = now.AddDate(0, -1, 0)
	default:
		return nil, fmt.Errorf("%w: unknown period %q", models.ErrInvalidInput, period)
	}
	return &t, nil
}

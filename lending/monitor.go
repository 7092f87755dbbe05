package lending

import (
	"context"
	"log/slog"
	"time"

	"cabinetkey/db"
	"cabinetkey/metrics"
	"cabinetkey/notify"
)

// Notifier receives one event per loan that newly became overdue.
type Notifier interface {
	PublishOverdue(ctx context.Context, ev notify.LoanOverdue) error
}

// Locker elects a single sweeper when several service instances run.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

type SweepResult struct {
	Scanned      int      `json:"scanned"`
	Transitioned int      `json:"transitioned"`
	LoanIDs      []string `json:"loanIds"`
}

// Monitor moves active loans past their deadline to overdue. It never touches
// key state: an overdue key is still held.
type Monitor struct {
	repo     *db.Repo
	notifier Notifier
	locker   Locker
	log      *slog.Logger
	interval time.Duration
	batch    int
	now      func() time.Time
}

type MonitorOption func(*Monitor)

func WithLocker(l Locker) MonitorOption            { return func(m *Monitor) { m.locker = l } }
func WithLogger(l *slog.Logger) MonitorOption      { return func(m *Monitor) { m.log = l } }
func WithBatchSize(n int) MonitorOption            { return func(m *Monitor) { m.batch = n } }
func WithClock(now func() time.Time) MonitorOption { return func(m *Monitor) { m.now = now } }

func NewMonitor(repo *db.Repo, notifier Notifier, interval time.Duration, opts ...MonitorOption) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	m := &Monitor{
		repo:     repo,
		notifier: notifier,
		log:      slog.Default(),
		interval: interval,
		batch:    500,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Sweep is idempotent: a loan already overdue is not selected again, and a
// loan returned between the scan and the write is skipped by the conditional
// update.
func (m *Monitor) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	now = now.UTC()
	res := SweepResult{LoanIDs: []string{}}
	due, err := m.repo.ListDueLoans(ctx, now, m.batch)
	if err != nil {
		return res, classify("sweep", err)
	}
	res.Scanned = len(due)

	for _, l := range due {
		moved, err := m.repo.MarkLoanOverdue(ctx, l.ID, now)
		if err != nil {
			return res, classify("sweep", err)
		}
		if !moved {
			continue
		}
		res.Transitioned++
		res.LoanIDs = append(res.LoanIDs, l.ID)
		metrics.OverdueTransitions.Inc()

		if m.notifier == nil {
			continue
		}
		ev := notify.LoanOverdue{
			LoanID:           l.ID,
			KeyID:            l.KeyID,
			UserID:           l.UserID,
			BorrowedAt:       l.BorrowedAt,
			ExpectedReturnAt: l.ExpectedReturnAt,
			OverdueAt:        now,
		}
		// delivery is best effort; the transition already committed
		if err := m.notifier.PublishOverdue(ctx, ev); err != nil {
			metrics.NotificationFailures.Inc()
			m.log.WarnContext(ctx, "overdue notification failed", "loan_id", l.ID, "err", err)
		}
	}
	return res, nil
}

// Run sweeps every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("overdue monitor started", "interval", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("overdue monitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	if m.locker != nil {
		ok, err := m.locker.TryLock(ctx, "ledger:sweep", m.interval/2)
		if err != nil {
			m.log.WarnContext(ctx, "sweep lock failed", "err", err)
			return
		}
		if !ok {
			return
		}
	}
	res, err := m.Sweep(ctx, m.now())
	if err != nil {
		m.log.ErrorContext(ctx, "overdue sweep failed", "err", err)
		return
	}
	if res.Transitioned > 0 {
		m.log.InfoContext(ctx, "overdue sweep", "scanned", res.Scanned, "transitioned", res.Transitioned)
	}
}

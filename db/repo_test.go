package db_test

import (
	"context"
	"testing"
	"time"

	"cabinetkey/db"
	"cabinetkey/db/dbtest"
	"cabinetkey/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, r *db.Repo, name, email string) *models.User {
	t.Helper()
	u := &models.User{ID: uuid.NewString(), DisplayName: name, Email: email, Role: models.RoleUser, Active: true}
	require.NoError(t, r.CreateUser(context.Background(), u))
	return u
}

func seedKey(t *testing.T, r *db.Repo, name string) *models.Key {
	t.Helper()
	k := &models.Key{ID: uuid.NewString(), Name: name}
	require.NoError(t, r.CreateKey(context.Background(), k))
	return k
}

func TestCreateUserNormalizesEmailAndRejectsDuplicates(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()

	u := seedUser(t, r, "Ana", "  Ana@Example.COM ")
	assert.Equal(t, "ana@example.com", u.Email)

	got, err := r.FindUserByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	dup := &models.User{ID: uuid.NewString(), DisplayName: "Other", Email: "ana@example.com", Active: true}
	assert.ErrorIs(t, r.CreateUser(ctx, dup), models.ErrConflict)

	_, err = r.FindUserByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListUsersSearchAndPaging(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()
	seedUser(t, r, "Carla", "carla@example.com")
	seedUser(t, r, "Ana", "ana@example.com")
	seedUser(t, r, "Bruno", "bruno@lab.org")

	res, err := r.ListUsers(ctx, "", 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	require.Len(t, res.Users, 2)
	assert.Equal(t, "Ana", res.Users[0].DisplayName)
	assert.Equal(t, "Bruno", res.Users[1].DisplayName)

	res, err = r.ListUsers(ctx, "EXAMPLE", 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
}

func TestUpdateUserMissingRow(t *testing.T) {
	r := dbtest.NewRepo(t)
	err := r.UpdateUser(context.Background(), uuid.NewString(), map[string]any{"bio": "x"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAcquireAndReleaseKeyAreConditional(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ana := seedUser(t, r, "Ana", "ana@example.com")
	bob := seedUser(t, r, "Bob", "bob@example.com")
	k := seedKey(t, r, "Lab 101")

	n, err := r.AcquireKey(ctx, k.ID, ana.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = r.AcquireKey(ctx, k.ID, bob.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "second acquire must not apply")

	n, err = r.ReleaseKey(ctx, k.ID, &bob.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "non-holder release must not apply")

	n, err = r.ReleaseKey(ctx, k.ID, &ana.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := r.FindKeyByID(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KeyAvailable, got.State)
	assert.Nil(t, got.HolderID)

	n, err = r.ReleaseKey(ctx, k.ID, nil, now)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestOneOpenLoanPerKeyIndex(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	u := seedUser(t, r, "Ana", "ana@example.com")
	k := seedKey(t, r, "Lab 101")

	first := &models.Loan{ID: uuid.NewString(), KeyID: k.ID, UserID: u.ID, BorrowedAt: now}
	require.NoError(t, r.AppendLoan(ctx, first))
	assert.Equal(t, models.LoanActive, first.Status)

	second := &models.Loan{ID: uuid.NewString(), KeyID: k.ID, UserID: u.ID, BorrowedAt: now}
	assert.ErrorIs(t, r.AppendLoan(ctx, second), models.ErrConflict)

	_, err := r.CloseOpenLoan(ctx, k.ID, u.ID, now)
	require.NoError(t, err)
	require.NoError(t, r.AppendLoan(ctx, second), "a returned loan no longer blocks the key")
}

func TestCloseOpenLoan(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	u := seedUser(t, r, "Ana", "ana@example.com")
	k := seedKey(t, r, "Lab 101")

	_, err := r.CloseOpenLoan(ctx, k.ID, u.ID, now)
	assert.ErrorIs(t, err, models.ErrNotFound)

	l := &models.Loan{ID: uuid.NewString(), KeyID: k.ID, UserID: u.ID, BorrowedAt: now}
	require.NoError(t, r.AppendLoan(ctx, l))
	moved, err := r.MarkLoanOverdue(ctx, l.ID, now)
	require.NoError(t, err)
	require.True(t, moved)

	closed, err := r.CloseOpenLoan(ctx, k.ID, u.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.LoanReturned, closed.Status)

	got, err := r.FindLoanByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanReturned, got.Status)
	require.NotNil(t, got.ReturnedAt)
	require.NotNil(t, got.OverdueAt, "overdue mark survives the return")
	assert.Equal(t, u.ID, *got.ReturnedBy)
}

func TestMarkLoanOverdueOnlyOnce(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	u := seedUser(t, r, "Ana", "ana@example.com")
	k := seedKey(t, r, "Lab 101")
	due := now.Add(-time.Minute)
	l := &models.Loan{ID: uuid.NewString(), KeyID: k.ID, UserID: u.ID, BorrowedAt: now.Add(-time.Hour), ExpectedReturnAt: &due}
	require.NoError(t, r.AppendLoan(ctx, l))

	ls, err := r.ListDueLoans(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, ls, 1)

	moved, err := r.MarkLoanOverdue(ctx, l.ID, now)
	require.NoError(t, err)
	assert.True(t, moved)
	moved, err = r.MarkLoanOverdue(ctx, l.ID, now)
	require.NoError(t, err)
	assert.False(t, moved)

	ls, err = r.ListDueLoans(ctx, now, 0)
	require.NoError(t, err)
	assert.Empty(t, ls)

	overdue, err := r.ListOverdueLoans(ctx)
	require.NoError(t, err)
	assert.Len(t, overdue, 1)
}

func TestListLoansByUserSince(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	u := seedUser(t, r, "Ana", "ana@example.com")
	old := seedKey(t, r, "Old")
	recent := seedKey(t, r, "Recent")

	require.NoError(t, r.AppendLoan(ctx, &models.Loan{ID: uuid.NewString(), KeyID: old.ID, UserID: u.ID, BorrowedAt: now.AddDate(0, 0, -10), Status: models.LoanReturned}))
	require.NoError(t, r.AppendLoan(ctx, &models.Loan{ID: uuid.NewString(), KeyID: recent.ID, UserID: u.ID, BorrowedAt: now.Add(-time.Hour)}))

	all, err := r.ListLoansByUser(ctx, u.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, recent.ID, all[0].KeyID, "newest first")

	since := now.AddDate(0, 0, -7)
	week, err := r.ListLoansByUser(ctx, u.ID, &since)
	require.NoError(t, err)
	require.Len(t, week, 1)
	assert.Equal(t, recent.ID, week[0].KeyID)
}

func TestListKeysFiltersAndSearch(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ana := seedUser(t, r, "Ana Souza", "ana@example.com")
	lab := seedKey(t, r, "Lab 101")
	seedKey(t, r, "Storage")
	office := seedKey(t, r, "Office")

	n, err := r.AcquireKey(ctx, lab.ID, ana.ID, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.NoError(t, r.AppendLoan(ctx, &models.Loan{ID: uuid.NewString(), KeyID: lab.ID, UserID: ana.ID, BorrowedAt: now}))
	require.NoError(t, r.AddFavorite(ctx, ana.ID, office.ID))
	require.NoError(t, r.AddFavorite(ctx, ana.ID, office.ID), "favorite add is idempotent")

	res, err := r.ListKeys(ctx, db.KeysQuery{ViewerID: ana.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	require.Len(t, res.Keys, 3)
	assert.Equal(t, "Lab 101", res.Keys[0].Name)
	require.NotNil(t, res.Keys[0].HolderName)
	assert.Equal(t, "Ana Souza", *res.Keys[0].HolderName)
	assert.True(t, res.Keys[1].Favorite)

	res, err = r.ListKeys(ctx, db.KeysQuery{ViewerID: ana.ID, Filter: db.KeyFilterBorrowed})
	require.NoError(t, err)
	require.Len(t, res.Keys, 1)
	assert.Equal(t, lab.ID, res.Keys[0].ID)

	res, err = r.ListKeys(ctx, db.KeysQuery{ViewerID: ana.ID, Filter: db.KeyFilterAvailable})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)

	res, err = r.ListKeys(ctx, db.KeysQuery{ViewerID: ana.ID, Filter: db.KeyFilterFavorites})
	require.NoError(t, err)
	require.Len(t, res.Keys, 1)
	assert.Equal(t, office.ID, res.Keys[0].ID)

	res, err = r.ListKeys(ctx, db.KeysQuery{ViewerID: ana.ID, Q: "souza"})
	require.NoError(t, err)
	require.Len(t, res.Keys, 1, "search matches holder name")
	assert.Equal(t, lab.ID, res.Keys[0].ID)

	row, err := r.GetKeyRow(ctx, office.ID, ana.ID)
	require.NoError(t, err)
	assert.True(t, row.Favorite)
	_, err = r.GetKeyRow(ctx, uuid.NewString(), ana.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteAvailableKeyKeepsHistory(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	u := seedUser(t, r, "Ana", "ana@example.com")
	k := seedKey(t, r, "Lab 101")
	require.NoError(t, r.AppendLoan(ctx, &models.Loan{ID: uuid.NewString(), KeyID: k.ID, UserID: u.ID, BorrowedAt: now, Status: models.LoanReturned}))
	require.NoError(t, r.AddFavorite(ctx, u.ID, k.ID))

	n, err := r.DeleteAvailableKey(ctx, k.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = r.FindKeyByID(ctx, k.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	ls, err := r.ListLoansByKey(ctx, k.ID)
	require.NoError(t, err)
	assert.Len(t, ls, 1)
	favs, err := r.ListFavoriteKeys(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, favs)
}

func TestUpdateKeyMetadata(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()
	k := seedKey(t, r, "Lab 101")

	name := "Lab 102"
	got, err := r.UpdateKeyMetadata(ctx, k.ID, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "Lab 102", got.Name)
	assert.Equal(t, models.KeyAvailable, got.State)

	_, err = r.UpdateKeyMetadata(ctx, uuid.NewString(), &name, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTransactionRollsBack(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()
	k := &models.Key{ID: uuid.NewString(), Name: "Lab 101"}

	err := r.Transaction(ctx, func(tx *db.Repo) error {
		require.NoError(t, tx.CreateKey(ctx, k))
		return models.ErrConflict
	})
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = r.FindKeyByID(ctx, k.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAuditLog(t *testing.T) {
	r := dbtest.NewRepo(t)
	ctx := context.Background()
	_, err := r.LogAudit(ctx, "admin-1", models.AuditKeyCreate, "key-1", "Lab 101")
	require.NoError(t, err)
	_, err = r.LogAudit(ctx, "admin-1", models.AuditKeyUpdate, "key-2", "")
	require.NoError(t, err)

	entries, err := r.ListAudit(ctx, "key-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditKeyCreate, entries[0].Action)

	all, err := r.ListAudit(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPostgresDSN(t *testing.T) {
	cfg := db.PostgresConfig{Host: "db", User: "u", Password: "p", Name: "cabinet", Port: "5432"}
	assert.Equal(t, "host=db user=u password=p dbname=cabinet port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}

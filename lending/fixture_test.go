package lending

import (
	"context"
	"testing"
	"time"

	"cabinetkey/db"
	"cabinetkey/db/dbtest"
	"cabinetkey/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo  *db.Repo
	clock *fakeClock
	admin Identity
	ana   Identity
	bob   Identity
}

type fakeClock struct{ t time.Time }

func newClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, dbtest.NewRepo(t))
}

func newFixtureOn(t *testing.T, repo *db.Repo) *fixture {
	t.Helper()
	f := &fixture{
		repo:  repo,
		clock: newClock(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)),
	}
	f.admin = f.addUser(t, "Admin", "admin@example.com", models.RoleAdmin)
	f.ana = f.addUser(t, "Ana", "ana@example.com", models.RoleUser)
	f.bob = f.addUser(t, "Bob", "bob@example.com", models.RoleUser)
	return f
}

func (f *fixture) addUser(t *testing.T, name, email string, role models.Role) Identity {
	t.Helper()
	u := &models.User{ID: uuid.NewString(), DisplayName: name, Email: email, Role: role, Active: true}
	require.NoError(t, f.repo.CreateUser(context.Background(), u))
	return IdentityOf(u)
}

func (f *fixture) addKey(t *testing.T, name string) *models.Key {
	t.Helper()
	k := &models.Key{ID: uuid.NewString(), Name: name}
	require.NoError(t, f.repo.CreateKey(context.Background(), k))
	return k
}

func (f *fixture) coordinator() *Coordinator {
	c := NewCoordinator(f.repo, DefaultLoanLimits())
	c.now = f.clock.Now
	return c
}

func (f *fixture) key(t *testing.T, id string) *models.Key {
	t.Helper()
	k, err := f.repo.FindKeyByID(context.Background(), id)
	require.NoError(t, err)
	return k
}

// requireConsistent checks that every key is borrowed iff it has a holder
// iff it has exactly one open loan, held by that holder.
func (f *fixture) requireConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	var keys []models.Key
	require.NoError(t, f.repo.DB.WithContext(ctx).Find(&keys).Error)
	for _, k := range keys {
		var open []models.Loan
		require.NoError(t, f.repo.DB.WithContext(ctx).
			Where("key_id = ? AND status IN ?", k.ID, models.OpenLoanStatuses).
			Find(&open).Error)
		switch k.State {
		case models.KeyBorrowed:
			require.NotNil(t, k.HolderID, "borrowed key %s has no holder", k.Name)
			require.Len(t, open, 1, "borrowed key %s", k.Name)
			require.Equal(t, *k.HolderID, open[0].UserID)
		case models.KeyAvailable:
			require.Nil(t, k.HolderID, "available key %s has a holder", k.Name)
			require.Empty(t, open, "available key %s has an open loan", k.Name)
		default:
			t.Fatalf("key %s has unknown state %q", k.Name, k.State)
		}
	}
}

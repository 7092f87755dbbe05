package lending

import (
	"context"

	"cabinetkey/db"
	"cabinetkey/models"
)

// Favorites is the per-user key bookmark index. It never touches checkout state.
type Favorites struct{ repo *db.Repo }

func NewFavorites(repo *db.Repo) *Favorites { return &Favorites{repo: repo} }

func (f *Favorites) Add(ctx context.Context, actor Identity, keyID string) error {
	if err := RequireActive(actor); err != nil {
		return err
	}
	if _, err := f.repo.FindKeyByID(ctx, keyID); err != nil {
		return classify("add favorite", err)
	}
	return classify("add favorite", f.repo.AddFavorite(ctx, actor.UserID, keyID))
}

// Remove is idempotent.
func (f *Favorites) Remove(ctx context.Context, actor Identity, keyID string) error {
	if err := RequireActive(actor); err != nil {
		return err
	}
	return classify("remove favorite", f.repo.RemoveFavorite(ctx, actor.UserID, keyID))
}

func (f *Favorites) List(ctx context.Context, actor Identity) ([]models.Key, error) {
	keys, err := f.repo.ListFavoriteKeys(ctx, actor.UserID)
	return keys, classify("list favorites", err)
}

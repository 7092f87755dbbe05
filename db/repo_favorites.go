package db

import (
	"cabinetkey/models"
	"context"
	"time"

	"gorm.io/gorm/clause"
)

func (r *Repo) AddFavorite(ctx context.Context, userID, keyID string) error {
	fav := &models.Favorite{UserID: userID, KeyID: keyID, CreatedAt: time.Now().UTC()}
	return wrap("add favorite", r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(fav).Error)
}

func (r *Repo) RemoveFavorite(ctx context.Context, userID, keyID string) error {
	return wrap("remove favorite", r.DB.WithContext(ctx).
		Where("user_id = ? AND key_id = ?", userID, keyID).
		Delete(&models.Favorite{}).Error)
}

// ListFavoriteKeys returns the user's bookmarked keys, most recent bookmark first.
func (r *Repo) ListFavoriteKeys(ctx context.Context, userID string) ([]models.Key, error) {
	keys := []models.Key{}
	err := r.DB.WithContext(ctx).
		Table(models.KeyTable+" k").
		Select("k.*").
		Joins("JOIN cabinet_favorites f ON f.key_id = k.id").
		Where("f.user_id = ?", userID).
		Order("f.created_at DESC").
		Scan(&keys).Error
	return keys, wrap("list favorites", err)
}

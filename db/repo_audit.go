package db

import (
	"cabinetkey/models"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (r *Repo) LogAudit(ctx context.Context, actorID string, action models.AuditAction, targetID, detail string) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Action:    action,
		TargetID:  targetID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return entry, nil
}

func (r *Repo) ListAudit(ctx context.Context, targetID string) ([]models.AuditEntry, error) {
	q := r.DB.WithContext(ctx).Order("created_at DESC")
	if targetID != "" {
		q = q.Where("target_id = ?", targetID)
	}
	entries := []models.AuditEntry{}
	if err := q.Find(&entries).Error; err != nil {
		return nil, wrap("list audit", err)
	}
	return entries, nil
}

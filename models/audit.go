package models

import "time"

type AuditAction string

const (
	AuditKeyCreate   AuditAction = "key.create"
	AuditKeyUpdate   AuditAction = "key.update"
	AuditKeyDelete   AuditAction = "key.delete"
	AuditForceReturn AuditAction = "key.force_return"
	AuditUserUpdate  AuditAction = "user.update"
)

// AuditEntry records an administrative override. It is written in the same
// transaction as the mutation it describes.
type AuditEntry struct {
	ID        string      `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID   string      `gorm:"type:uuid;index;not null" json:"actorId"`
	Action    AuditAction `gorm:"size:40;not null;index" json:"action"`
	TargetID  string      `gorm:"type:uuid;index" json:"targetId"`
	Detail    string      `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (AuditEntry) TableName() string { return "cabinet_audit_log" }

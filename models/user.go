package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// User is a borrower profile. Role only gates administrative operations;
// any active user may borrow any available key.
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	DisplayName string `gorm:"size:255;not null" json:"displayName"`
	Email       string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role        Role   `gorm:"size:20;not null;default:'user'" json:"role"`
	Active      bool   `gorm:"not null;default:true" json:"active"`

	AvatarURL string `gorm:"size:512" json:"avatarUrl,omitempty"`
	Bio       string `gorm:"type:text" json:"bio,omitempty"`

	LastSeenAt *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "cabinet_users"
}

// Favorite bookmarks a key for a user.
type Favorite struct {
	UserID    string    `gorm:"type:uuid;primaryKey" json:"userId"`
	KeyID     string    `gorm:"type:uuid;primaryKey;index" json:"keyId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Favorite) TableName() string { return "cabinet_favorites" }

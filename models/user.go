package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the forum account an identified post author maps to.
type User struct {
	ID         int64          `gorm:"primaryKey" json:"uid"`
	Username   string         `gorm:"size:64;not null" json:"username"`
	PostCount  int64          `gorm:"not null;default:0" json:"postcount"`
	LastPostAt *time.Time     `json:"last_post_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

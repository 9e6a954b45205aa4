package models

import "time"

// Category groups topics.
type Category struct {
	ID        int64     `gorm:"primaryKey" json:"cid"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryModerator grants a user moderation privileges in one category.
type CategoryModerator struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CategoryID int64     `gorm:"index:idx_cat_mod,unique;not null" json:"cid"`
	UserID     int64     `gorm:"index:idx_cat_mod,unique;not null" json:"uid"`
	CreatedAt  time.Time `json:"created_at"`
}

package models

import (
	"errors"
	"time"
)

// ErrTopicNotFound is returned by topic lookups for unknown ids.
var ErrTopicNotFound = errors.New("topic not found")

// Topic is the thread a post belongs to. Only the fields the post pipeline reads
// or maintains live here; topic creation is handled elsewhere.
type Topic struct {
	ID         int64      `gorm:"primaryKey" json:"tid"`
	CategoryID int64      `gorm:"index;not null" json:"cid"`
	UserID     int64      `gorm:"index" json:"uid"`
	Title      string     `gorm:"size:255;not null" json:"title"`
	Pinned     bool       `gorm:"default:false" json:"pinned"`
	Deleted    bool       `gorm:"default:false" json:"deleted"`
	PostCount  int64      `gorm:"not null;default:0" json:"postcount"`
	LastPostID int64      `json:"last_post_id"`
	LastPostAt *time.Time `json:"last_post_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TopicFields is the slice of a topic a new post copies at creation time.
type TopicFields struct {
	CategoryID int64 `json:"cid"`
	Pinned     bool  `json:"pinned"`
}

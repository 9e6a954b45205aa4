package models

import "time"

// GroupMember records membership of a user in a named group.
type GroupMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupName string    `gorm:"size:64;index:idx_group_member,unique;not null" json:"group_name"`
	UserID    int64     `gorm:"index;index:idx_group_member,unique;not null" json:"uid"`
	CreatedAt time.Time `json:"created_at"`
}

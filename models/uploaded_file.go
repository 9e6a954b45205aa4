package models

import "time"

// UploadedFile records locally stored uploaded files. Files not yet referenced
// by a post expire and are removed by the upload cleaner.
type UploadedFile struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	FilePath  string     `gorm:"size:1024;not null" json:"file_path"` // absolute or relative filesystem path
	URL       string     `gorm:"size:1024;not null;index" json:"url"` // public URL like /static/uploads/...
	PostID    int64      `gorm:"index;default:0" json:"pid"`          // first post referencing the file, 0 when unattached
	ExpireAt  *time.Time `gorm:"index" json:"expire_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

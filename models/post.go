package models

import "time"

// AnonymousUID is the uid written to storage for posts without a visible author.
const AnonymousUID int64 = 0

// AuthorKind tells how a post's author identity is held.
type AuthorKind uint8

const (
	// AuthorIdentified is a registered user.
	AuthorIdentified AuthorKind = iota
	// AuthorGuest is a submission without an authenticated identity (uid 0).
	AuthorGuest
	// AuthorAnonymous hides a real identity from storage.
	AuthorAnonymous
)

func (k AuthorKind) String() string {
	switch k {
	case AuthorIdentified:
		return "identified"
	case AuthorGuest:
		return "guest"
	case AuthorAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Author is the resolved identity of a post's author.
type Author struct {
	Kind AuthorKind `json:"kind"`
	ID   int64      `json:"-"`
}

// Identified returns the author for a registered user.
func Identified(uid int64) Author { return Author{Kind: AuthorIdentified, ID: uid} }

// Guest returns the author for an unauthenticated submitter.
func Guest() Author { return Author{Kind: AuthorGuest} }

// Anonymous returns the masked author.
func Anonymous() Author { return Author{Kind: AuthorAnonymous} }

// UID is the uid persisted for this author.
func (a Author) UID() int64 {
	if a.Kind == AuthorIdentified {
		return a.ID
	}
	return AnonymousUID
}

// Post is the canonical post record stored under post:<pid>.
type Post struct {
	ID          int64     `json:"pid"`
	Author      Author    `json:"-"`
	UID         int64     `json:"uid"`
	TopicID     int64     `json:"tid"`
	CategoryID  int64     `json:"cid"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	IsPrivate   bool      `json:"isPrivate"`
	IsAnonymous bool      `json:"isAnonymous"`
	ReplyToID   int64     `json:"toPid,omitempty"`
	IP          string    `json:"ip,omitempty"`
	Handle      string    `json:"handle,omitempty"`
	Replies     int64     `json:"replies"`
	Deleted     bool      `json:"deleted"`

	// IsMain is echoed to the caller and never stored.
	IsMain bool `json:"isMain"`
}

// IsReply reports whether the post links to a parent post.
func (p *Post) IsReply() bool { return p.ReplyToID > 0 }

// Clone returns an independent copy of p.
func (p *Post) Clone() Post {
	return *p
}

// Package store exposes the key/value and sorted-set primitives the forum
// keeps its posts and indexes in. Every mutating primitive is atomic per key;
// callers never add their own locking around counters.
package store

import (
	"context"
	"errors"
	"strconv"
)

// ErrNotFound is returned by reads of keys that do not exist.
var ErrNotFound = errors.New("store: key not found")

// Store is the storage contract shared by the post pipeline and its collaborators.
type Store interface {
	// IncrObjectField atomically adds 1 to a hash field and returns the new value.
	IncrObjectField(ctx context.Context, key, field string) (int64, error)
	// SetObject writes all fields of a hash in one command.
	SetObject(ctx context.Context, key string, fields map[string]string) error
	// GetObject returns every field of a hash, or ErrNotFound.
	GetObject(ctx context.Context, key string) (map[string]string, error)
	// GetObjectFields returns the requested fields that exist. A missing key
	// yields an empty map, not an error.
	GetObjectFields(ctx context.Context, key string, fields ...string) (map[string]string, error)

	SortedSetAdd(ctx context.Context, key string, score float64, member string) error
	SortedSetRemove(ctx context.Context, key string, members ...string) error
	// SortedSetRange returns members ordered by ascending score, stop -1 meaning the end.
	SortedSetRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// SortedSetScore returns the member's score and whether it is present.
	SortedSetScore(ctx context.Context, key, member string) (float64, bool, error)
}

// Keys used by the post pipeline.
const (
	GlobalKey      = "global"
	FieldNextPid   = "nextPid"
	FieldPostCount = "postCount"
	FieldReplies   = "replies"
	PostsByTimeKey = "posts:pid"
)

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// PostKey is the canonical record of a post.
func PostKey(pid int64) string { return "post:" + itoa(pid) }

// RepliesKey indexes the replies of a parent post by time.
func RepliesKey(pid int64) string { return "pid:" + itoa(pid) + ":replies" }

// PostUploadsKey indexes the upload URLs referenced by a post.
func PostUploadsKey(pid int64) string { return "post:" + itoa(pid) + ":uploads" }

// TopicPostsKey indexes the posts of a topic by time.
func TopicPostsKey(tid int64) string { return "tid:" + itoa(tid) + ":posts" }

// CategoryKey holds redis-side category counters.
func CategoryKey(cid int64) string { return "category:" + itoa(cid) }

// CategoryPostsKey indexes every post in a category by time.
func CategoryPostsKey(cid int64) string { return "cid:" + itoa(cid) + ":pids" }

// CategoryTopicsKey orders a category's topics by last activity.
func CategoryTopicsKey(cid int64) string { return "cid:" + itoa(cid) + ":tids" }

// UserPostsKey indexes a user's posts by time.
func UserPostsKey(uid int64) string { return "uid:" + itoa(uid) + ":posts" }

// GroupPostsKey indexes posts made by members of a group.
func GroupPostsKey(group string) string { return "group:" + group + ":member:pids" }

// Member formats an id as a sorted-set member.
func Member(id int64) string { return itoa(id) }

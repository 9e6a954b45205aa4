package posts

import (
	"context"
	"errors"

	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/store"
)

// ErrPostNotFound is returned by GetPost for unknown ids.
var ErrPostNotFound = errors.New("post not found")

// Reader loads stored posts.
type Reader struct {
	store store.Store
}

func NewReader(s store.Store) *Reader {
	return &Reader{store: s}
}

// GetPostFields returns the requested hash fields of post:<pid>. Fields that
// are not set are absent from the map; an unknown pid yields an empty map.
func (r *Reader) GetPostFields(ctx context.Context, pid int64, fields ...string) (map[string]string, error) {
	return r.store.GetObjectFields(ctx, store.PostKey(pid), fields...)
}

// GetPost loads the whole record.
func (r *Reader) GetPost(ctx context.Context, pid int64) (*models.Post, error) {
	m, err := r.store.GetObject(ctx, store.PostKey(pid))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodePost(m)
}

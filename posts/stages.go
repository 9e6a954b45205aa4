package posts

import (
	"context"
	"errors"

	"github.com/cppla/postcore/plugins"
)

// ErrEmptyContent rejects a post with nothing left after sanitizing.
var ErrEmptyContent = errors.New("content is empty")

// SanitizeStage returns a filter:post.create stage that rewrites the content
// through clean. clean reports false when nothing worth keeping is left.
func SanitizeStage(clean func(string) (string, bool)) plugins.FilterFunc[CreatePayload] {
	return func(_ context.Context, p CreatePayload) (CreatePayload, error) {
		out, ok := clean(p.Post.Content)
		if !ok {
			return p, ErrEmptyContent
		}
		p.Post.Content = out
		return p, nil
	}
}

// PostCache drops cached reads a new post makes stale.
type PostCache interface {
	InvalidatePost(ctx context.Context, tid, parentPid int64) error
}

// InvalidateStage returns an action:post.save stage clearing the topic pages
// and the parent's detail from cache.
func InvalidateStage(c PostCache) plugins.ActionFunc[SavePayload] {
	return func(ctx context.Context, p SavePayload) error {
		return c.InvalidatePost(ctx, p.Post.TopicID, p.Post.ReplyToID)
	}
}

// RegisterDefaults installs the stages every deployment runs.
func (h *Hooks) RegisterDefaults(clean func(string) (string, bool), cache PostCache) {
	if clean != nil {
		h.Create.Register("sanitize", SanitizeStage(clean))
	}
	if cache != nil {
		h.Save.Register("invalidate-cache", InvalidateStage(cache))
	}
}

package posts

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/store"
)

// fanOut starts every secondary write at once and waits for all of them.
// A failure does not cancel the others; the first error is returned.
func (c *Creator) fanOut(ctx context.Context, post *models.Post, pinned bool) error {
	var g errgroup.Group
	score := float64(post.Timestamp.UnixMilli())

	run := func(name string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				c.logger.Warn("fan-out operation failed",
					zap.String("op", name), zap.Int64("pid", post.ID), zap.Error(err))
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	run("posts index", func() error {
		return c.store.SortedSetAdd(ctx, store.PostsByTimeKey, score, store.Member(post.ID))
	})
	run("post count", func() error {
		_, err := c.store.IncrObjectField(ctx, store.GlobalKey, store.FieldPostCount)
		return err
	})
	run("user", func() error { return c.users.OnNewPost(ctx, post) })
	run("topic", func() error { return c.topicAgg.OnNewPost(ctx, post) })
	run("category", func() error { return c.categories.OnNewPost(ctx, post.CategoryID, pinned, post) })
	run("groups", func() error { return c.groups.OnNewPost(ctx, post) })
	run("reply", func() error { return c.linkReply(ctx, post, score) })
	run("uploads", func() error { return c.uploads.Sync(ctx, post.ID) })

	return g.Wait()
}

// linkReply indexes post under its parent and bumps the parent's reply count.
// Posts without a parent are left alone.
func (c *Creator) linkReply(ctx context.Context, post *models.Post, score float64) error {
	if !post.IsReply() {
		return nil
	}
	var g errgroup.Group
	g.Go(func() error {
		return c.store.SortedSetAdd(ctx, store.RepliesKey(post.ReplyToID), score, store.Member(post.ID))
	})
	g.Go(func() error {
		_, err := c.store.IncrObjectField(ctx, store.PostKey(post.ReplyToID), store.FieldReplies)
		return err
	})
	return g.Wait()
}

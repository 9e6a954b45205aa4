package posts

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cppla/postcore/models"
)

type validated struct {
	// uid is the submitter as given, before anonymity masking.
	uid    int64
	author models.Author
	topic  models.TopicFields
}

// resolveAuthor turns the raw submitter id into an Author. Anonymity is
// decided here once; nothing downstream looks at uid 0 to guess it.
func resolveAuthor(in CreateInput) (models.Author, error) {
	if in.AuthorID == nil || *in.AuthorID < 0 {
		return models.Author{}, newError(KindInvalidAuthor, nil, "missing or invalid author id")
	}
	switch uid := *in.AuthorID; {
	case in.IsAnonymous:
		return models.Anonymous(), nil
	case uid == 0:
		return models.Guest(), nil
	default:
		return models.Identified(uid), nil
	}
}

// validate performs every read-only check. Nothing is written.
func (c *Creator) validate(ctx context.Context, in CreateInput) (validated, error) {
	author, err := resolveAuthor(in)
	if err != nil {
		return validated{}, err
	}
	v := validated{uid: *in.AuthorID, author: author}

	if in.TopicID <= 0 {
		return v, newError(KindInvalidTopic, nil, "invalid topic id %d", in.TopicID)
	}
	if in.ReplyToID < 0 {
		return v, newError(KindInvalidReplyTarget, nil, "invalid reply target %d", in.ReplyToID)
	}
	if terms := c.banned.Match(in.Content); len(terms) > 0 {
		return v, &Error{Kind: KindBannedContent, Message: "content contains banned terms", Terms: terms}
	}

	var (
		g       errgroup.Group
		target  map[string]string
		canView bool
	)
	g.Go(func() error {
		fields, err := c.topics.GetTopicFields(ctx, in.TopicID)
		if errors.Is(err, models.ErrTopicNotFound) {
			return newError(KindInvalidTopic, err, "topic %d", in.TopicID)
		}
		if err != nil {
			return fmt.Errorf("get topic %d: %w", in.TopicID, err)
		}
		v.topic = fields
		return nil
	})
	if in.ReplyToID > 0 {
		g.Go(func() error {
			var err error
			target, err = c.reader.GetPostFields(ctx, in.ReplyToID, fieldPid, fieldDeleted)
			if err != nil {
				return fmt.Errorf("get reply target %d: %w", in.ReplyToID, err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			canView, err = c.privileges.CanViewDeleted(ctx, in.ReplyToID, v.uid)
			if err != nil {
				return fmt.Errorf("check view_deleted on %d: %w", in.ReplyToID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return v, err
	}

	if in.ReplyToID > 0 {
		exists := target[fieldPid] != ""
		if !exists || (parseBool(target[fieldDeleted]) && !canView) {
			return v, newError(KindInvalidReplyTarget, nil, "post %d", in.ReplyToID)
		}
	}
	return v, nil
}

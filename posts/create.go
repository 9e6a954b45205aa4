// Package posts implements post creation: validation, id allocation, the
// canonical write and the fan-out of secondary indexes and aggregates.
package posts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/store"
)

// TopicReader resolves the topic fields a post copies.
type TopicReader interface {
	// GetTopicFields returns models.ErrTopicNotFound for unknown topics.
	GetTopicFields(ctx context.Context, tid int64) (models.TopicFields, error)
}

// Privileges answers access questions about existing posts.
type Privileges interface {
	CanViewDeleted(ctx context.Context, pid, uid int64) (bool, error)
}

// PostNotifier is told about every created post, after it is persisted.
// Implementations must treat the post as read-only; it is shared with the
// other fan-out operations.
type PostNotifier interface {
	OnNewPost(ctx context.Context, post *models.Post) error
}

// CategoryNotifier is the category aggregate. pinned is the topic's flag.
type CategoryNotifier interface {
	OnNewPost(ctx context.Context, cid int64, pinned bool, post *models.Post) error
}

// UploadSyncer reconciles the uploads a post references.
type UploadSyncer interface {
	Sync(ctx context.Context, pid int64) error
}

// CreateInput is a submission.
type CreateInput struct {
	// AuthorID is the submitter's uid. 0 is a guest; nil is rejected.
	AuthorID *int64
	TopicID  int64
	Content  string
	// Timestamp defaults to now.
	Timestamp   time.Time
	IsMain      bool
	IsAnonymous bool
	IsPrivate   bool
	// ReplyToID is the parent post, 0 for none.
	ReplyToID int64
	IP        string
	// Handle is a display name, kept only for guests.
	Handle string
}

// Deps wires a Creator. Nil collaborators are treated as no-ops, a nil
// Privileges denies everything.
type Deps struct {
	Store      store.Store
	Topics     TopicReader
	Privileges Privileges

	Users      PostNotifier
	TopicAgg   PostNotifier
	Categories CategoryNotifier
	Groups     PostNotifier
	Uploads    UploadSyncer

	Hooks  *Hooks
	Banned *BannedTerms
	// TrackIPPerPost stores the submitter IP on the record.
	TrackIPPerPost bool

	Logger *zap.Logger
	Now    func() time.Time
}

// Creator runs the post creation pipeline.
type Creator struct {
	store      store.Store
	reader     *Reader
	topics     TopicReader
	privileges Privileges

	users      PostNotifier
	topicAgg   PostNotifier
	categories CategoryNotifier
	groups     PostNotifier
	uploads    UploadSyncer

	hooks   *Hooks
	banned  *BannedTerms
	trackIP bool
	logger  *zap.Logger
	now     func() time.Time
}

func NewCreator(d Deps) *Creator {
	c := &Creator{
		store:      d.Store,
		reader:     NewReader(d.Store),
		topics:     d.Topics,
		privileges: d.Privileges,
		users:      d.Users,
		topicAgg:   d.TopicAgg,
		categories: d.Categories,
		groups:     d.Groups,
		uploads:    d.Uploads,
		hooks:      d.Hooks,
		banned:     d.Banned,
		trackIP:    d.TrackIPPerPost,
		logger:     d.Logger,
		now:        d.Now,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.hooks == nil {
		c.hooks = NewHooks(c.logger)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.privileges == nil {
		c.privileges = denyAll{}
	}
	if c.users == nil {
		c.users = nopNotifier{}
	}
	if c.topicAgg == nil {
		c.topicAgg = nopNotifier{}
	}
	if c.groups == nil {
		c.groups = nopNotifier{}
	}
	if c.categories == nil {
		c.categories = nopCategories{}
	}
	if c.uploads == nil {
		c.uploads = nopUploads{}
	}
	return c
}

// Hooks returns the pipeline's extension points.
func (c *Creator) Hooks() *Hooks { return c.hooks }

// Reader returns the reader over the same store.
func (c *Creator) Reader() *Reader { return c.reader }

// Create validates in, allocates an id, persists the record and fans out.
//
// Validation and allocation failures happen before any write. A FanOutFailed
// error means the record is stored and readable but some secondary index or
// aggregate may be missing it; nothing is rolled back.
func (c *Creator) Create(ctx context.Context, in CreateInput) (*models.Post, error) {
	v, err := c.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	pid, err := c.store.IncrObjectField(ctx, store.GlobalKey, store.FieldNextPid)
	if err != nil {
		return nil, newError(KindAllocationFailed, err, "allocate post id")
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	ts = ts.Truncate(time.Millisecond) // stored as unix millis
	author := v.author
	post := &models.Post{
		ID:          pid,
		Author:      author,
		UID:         author.UID(),
		TopicID:     in.TopicID,
		CategoryID:  v.topic.CategoryID,
		Content:     in.Content,
		Timestamp:   ts,
		IsPrivate:   in.IsPrivate,
		IsAnonymous: in.IsAnonymous,
		ReplyToID:   in.ReplyToID,
	}
	if in.IP != "" && c.trackIP {
		post.IP = in.IP
	}
	if in.Handle != "" && v.uid == 0 {
		post.Handle = in.Handle
	}

	created, err := c.hooks.Create.Apply(ctx, CreatePayload{Post: post, Data: in})
	if err != nil {
		return nil, fmt.Errorf("post %d: %w", pid, err)
	}
	if created.Post != nil {
		post = created.Post
	}
	c.pinIdentity(post, pid, in.TopicID, ts)

	if err := c.store.SetObject(ctx, store.PostKey(pid), encodePost(post)); err != nil {
		return nil, newError(KindPersistenceFailed, err, "write post %d", pid)
	}

	if err := c.fanOut(ctx, post, v.topic.Pinned); err != nil {
		c.logger.Error("post stored but fan-out failed",
			zap.Int64("pid", pid), zap.Int64("tid", post.TopicID), zap.Error(err))
		return nil, &Error{Kind: KindFanOutFailed, Message: fmt.Sprintf("post %d", pid), PID: pid, Err: err}
	}

	viewed, err := c.hooks.Get.Apply(ctx, GetPayload{Post: post, UID: v.uid})
	if err != nil {
		return nil, fmt.Errorf("post %d: %w", pid, err)
	}
	if viewed.Post != nil {
		post = viewed.Post
	}
	post.IsMain = in.IsMain

	c.hooks.Save.Fire(ctx, SavePayload{Post: post.Clone()})

	c.logger.Info("post created",
		zap.Int64("pid", pid), zap.Int64("tid", post.TopicID), zap.Int64("cid", post.CategoryID),
		zap.Stringer("author", post.Author.Kind))
	return post, nil
}

// Get loads a post and passes it through filter:post.get for uid.
func (c *Creator) Get(ctx context.Context, pid, uid int64) (*models.Post, error) {
	post, err := c.reader.GetPost(ctx, pid)
	if err != nil {
		return nil, err
	}
	viewed, err := c.hooks.Get.Apply(ctx, GetPayload{Post: post, UID: uid})
	if err != nil {
		return nil, err
	}
	if viewed.Post != nil {
		post = viewed.Post
	}
	return post, nil
}

// CanView reports whether uid may read post. Private posts are visible to
// their stored author and to users holding the view-deleted privilege on the
// post (admins, the category's moderators).
func (c *Creator) CanView(ctx context.Context, post *models.Post, uid int64) (bool, error) {
	if !post.IsPrivate {
		return true, nil
	}
	if uid > 0 && post.Author.UID() == uid {
		return true, nil
	}
	return c.privileges.CanViewDeleted(ctx, post.ID, uid)
}

// pinIdentity restores the fields create filters may not change and
// re-derives the author from what they did change. An anonymous post is
// always stored under AnonymousUID.
func (c *Creator) pinIdentity(post *models.Post, pid, tid int64, ts time.Time) {
	if post.ID != pid || post.TopicID != tid || !post.Timestamp.Equal(ts) {
		c.logger.Warn("create filter changed immutable fields; restoring",
			zap.Int64("pid", pid), zap.Int64("filtered_pid", post.ID), zap.Int64("tid", tid))
		post.ID, post.TopicID, post.Timestamp = pid, tid, ts
	}

	switch {
	case post.IsAnonymous:
		post.Author = models.Anonymous()
	case post.UID > 0:
		post.Author = models.Identified(post.UID)
	default:
		post.Author = models.Guest()
	}
	post.UID = post.Author.UID()
}

type nopNotifier struct{}

func (nopNotifier) OnNewPost(context.Context, *models.Post) error { return nil }

type nopCategories struct{}

func (nopCategories) OnNewPost(context.Context, int64, bool, *models.Post) error { return nil }

type nopUploads struct{}

func (nopUploads) Sync(context.Context, int64) error { return nil }

type denyAll struct{}

func (denyAll) CanViewDeleted(context.Context, int64, int64) (bool, error) { return false, nil }

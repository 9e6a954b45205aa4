package posts_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/plugins"
	"github.com/cppla/postcore/posts"
	"github.com/cppla/postcore/store"
	"github.com/cppla/postcore/store/storetest"
)

type fakeTopics struct {
	mu     sync.Mutex
	topics map[int64]models.TopicFields
}

func (f *fakeTopics) GetTopicFields(_ context.Context, tid int64) (models.TopicFields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.topics[tid]
	if !ok {
		return models.TopicFields{}, models.ErrTopicNotFound
	}
	return t, nil
}

func (f *fakeTopics) set(tid int64, t models.TopicFields) {
	f.mu.Lock()
	f.topics[tid] = t
	f.mu.Unlock()
}

type fakePrivileges struct {
	allow bool
}

func (f fakePrivileges) CanViewDeleted(context.Context, int64, int64) (bool, error) {
	return f.allow, nil
}

// recorder implements every aggregate notifier and remembers what it saw.
type recorder struct {
	mu     sync.Mutex
	posts  []models.Post
	pinned []bool
	err    error
}

func (r *recorder) OnNewPost(_ context.Context, p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, *p)
	return r.err
}

type categoryRecorder struct{ recorder }

func (r *categoryRecorder) OnNewPost(ctx context.Context, _ int64, pinned bool, p *models.Post) error {
	r.mu.Lock()
	r.pinned = append(r.pinned, pinned)
	r.mu.Unlock()
	return r.recorder.OnNewPost(ctx, p)
}

type harness struct {
	creator    *posts.Creator
	store      store.Store
	topics     *fakeTopics
	users      *recorder
	topicAgg   *recorder
	categories *categoryRecorder
	groups     *recorder
}

type option func(*posts.Deps)

func withStore(s store.Store) option { return func(d *posts.Deps) { d.Store = s } }
func withPrivileges(allow bool) option { return func(d *posts.Deps) { d.Privileges = fakePrivileges{allow: allow} } }
func withTrackIP() option { return func(d *posts.Deps) { d.TrackIPPerPost = true } }
func withTopicErr(err error) option { return func(d *posts.Deps) { d.TopicAgg.(*recorder).err = err } }
func withBanned(words ...string) option {
	return func(d *posts.Deps) {
		b, err := posts.ParseBannedTerms([]byte(strings.Join(words, "\n")))
		if err != nil {
			panic(err)
		}
		d.Banned = b
	}
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	s, _ := storetest.New(t)
	h := &harness{
		topics:     &fakeTopics{topics: map[int64]models.TopicFields{1: {CategoryID: 7}}},
		users:      &recorder{},
		topicAgg:   &recorder{},
		categories: &categoryRecorder{},
		groups:     &recorder{},
	}
	d := posts.Deps{
		Store:      s,
		Topics:     h.topics,
		Users:      h.users,
		TopicAgg:   h.topicAgg,
		Categories: h.categories,
		Groups:     h.groups,
	}
	for _, o := range opts {
		o(&d)
	}
	h.store = d.Store
	h.creator = posts.NewCreator(d)
	return h
}

func uid(v int64) *int64 { return &v }

func (h *harness) create(t *testing.T, in posts.CreateInput) *models.Post {
	t.Helper()
	if in.AuthorID == nil {
		in.AuthorID = uid(3)
	}
	if in.TopicID == 0 {
		in.TopicID = 1
	}
	if in.Content == "" {
		in.Content = "hello there"
	}
	p, err := h.creator.Create(context.Background(), in)
	require.NoError(t, err)
	return p
}

func (h *harness) globalFields(t *testing.T) map[string]string {
	t.Helper()
	m, err := h.store.GetObjectFields(context.Background(), store.GlobalKey, store.FieldNextPid, store.FieldPostCount)
	require.NoError(t, err)
	return m
}

func TestCreate_IDsAreUniqueUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	const n = 40

	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := h.creator.Create(context.Background(), posts.CreateInput{
				AuthorID: uid(int64(i + 1)),
				TopicID:  1,
				Content:  fmt.Sprintf("post %d", i),
			})
			if assert.NoError(t, err) {
				ids <- p.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "pid %d issued twice", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "pid %d missing", i)
	}

	g := h.globalFields(t)
	assert.Equal(t, "40", g[store.FieldNextPid])
	assert.Equal(t, "40", g[store.FieldPostCount])
	assert.Len(t, h.users.posts, n)
}

func TestCreate_AnonymousMasksAuthor(t *testing.T) {
	h := newHarness(t)
	var seenUID int64 = -1
	h.creator.Hooks().Get.Register("observe", func(_ context.Context, p posts.GetPayload) (posts.GetPayload, error) {
		seenUID = p.UID
		return p, nil
	})

	p := h.create(t, posts.CreateInput{AuthorID: uid(42), IsAnonymous: true})
	assert.Equal(t, models.AnonymousUID, p.UID)
	assert.Equal(t, models.AuthorAnonymous, p.Author.Kind)
	assert.True(t, p.IsAnonymous)

	stored, err := h.creator.Reader().GetPost(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnonymousUID, stored.UID)
	assert.Equal(t, models.AuthorAnonymous, stored.Author.Kind)

	require.Len(t, h.users.posts, 1)
	assert.Equal(t, models.AnonymousUID, h.users.posts[0].UID)
	assert.Equal(t, int64(42), seenUID)
}

func TestCreate_FilterMarkingAnonymousMasksAuthor(t *testing.T) {
	h := newHarness(t)
	h.creator.Hooks().Create.Register("mask", func(_ context.Context, p posts.CreatePayload) (posts.CreatePayload, error) {
		p.Post.IsAnonymous = true
		return p, nil
	})

	p := h.create(t, posts.CreateInput{AuthorID: uid(42)})
	assert.True(t, p.IsAnonymous)
	assert.Equal(t, models.AnonymousUID, p.UID)
	assert.Equal(t, models.Anonymous(), p.Author)

	stored, err := h.creator.Reader().GetPost(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnonymousUID, stored.UID)
	assert.Equal(t, p.Author, stored.Author)

	require.Len(t, h.users.posts, 1)
	assert.Equal(t, models.AnonymousUID, h.users.posts[0].UID)
	require.Len(t, h.groups.posts, 1)
	assert.Equal(t, models.AnonymousUID, h.groups.posts[0].UID)
}

func TestCreate_FilterChangingUIDRederivesAuthor(t *testing.T) {
	h := newHarness(t)
	h.creator.Hooks().Create.Register("reassign", func(_ context.Context, p posts.CreatePayload) (posts.CreatePayload, error) {
		p.Post.UID = 8
		return p, nil
	})

	p := h.create(t, posts.CreateInput{AuthorID: uid(0)})
	assert.Equal(t, models.Identified(8), p.Author)

	stored, err := h.creator.Reader().GetPost(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stored.UID)
	assert.Equal(t, models.Identified(8), stored.Author)
}

func TestCreate_AuthorKinds(t *testing.T) {
	h := newHarness(t)

	guest := h.create(t, posts.CreateInput{AuthorID: uid(0), Handle: "visitor"})
	assert.Equal(t, models.AuthorGuest, guest.Author.Kind)
	assert.Equal(t, "visitor", guest.Handle)

	member := h.create(t, posts.CreateInput{AuthorID: uid(9), Handle: "ignored"})
	assert.Equal(t, models.AuthorIdentified, member.Author.Kind)
	assert.Equal(t, int64(9), member.UID)
	assert.Empty(t, member.Handle)
}

func TestCreate_InvalidAuthor(t *testing.T) {
	h := newHarness(t)
	for _, id := range []*int64{nil, uid(-1)} {
		_, err := h.creator.Create(context.Background(), posts.CreateInput{AuthorID: id, TopicID: 1, Content: "x"})
		assert.ErrorIs(t, err, posts.ErrInvalidAuthor)
	}
	assert.Empty(t, h.globalFields(t))
}

func TestCreate_PrivateFlagDefaultsToFalse(t *testing.T) {
	h := newHarness(t)

	public := h.create(t, posts.CreateInput{})
	assert.False(t, public.IsPrivate)

	private := h.create(t, posts.CreateInput{IsPrivate: true})
	assert.True(t, private.IsPrivate)

	stored, err := h.creator.Reader().GetPost(context.Background(), private.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPrivate)
}

func TestCanView_PrivatePosts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	public := h.create(t, posts.CreateInput{AuthorID: uid(9)})
	private := h.create(t, posts.CreateInput{AuthorID: uid(9), IsPrivate: true})

	for _, viewer := range []int64{0, 9, 11} {
		ok, err := h.creator.CanView(ctx, public, viewer)
		require.NoError(t, err)
		assert.True(t, ok, "public post for uid %d", viewer)
	}
	for viewer, want := range map[int64]bool{0: false, 9: true, 11: false} {
		ok, err := h.creator.CanView(ctx, private, viewer)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "private post for uid %d", viewer)
	}

	moderated := newHarness(t, withPrivileges(true))
	p := moderated.create(t, posts.CreateInput{AuthorID: uid(9), IsPrivate: true})
	ok, err := moderated.creator.CanView(ctx, p, 11)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreate_CopiesTopicCategoryAtCreation(t *testing.T) {
	h := newHarness(t)

	first := h.create(t, posts.CreateInput{})
	assert.Equal(t, int64(7), first.CategoryID)

	h.topics.set(1, models.TopicFields{CategoryID: 9})
	second := h.create(t, posts.CreateInput{})
	assert.Equal(t, int64(9), second.CategoryID)

	stored, err := h.creator.Reader().GetPost(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.CategoryID)
}

func TestCreate_PassesPinnedToCategory(t *testing.T) {
	h := newHarness(t)
	h.topics.set(2, models.TopicFields{CategoryID: 4, Pinned: true})

	h.create(t, posts.CreateInput{TopicID: 2})
	require.Equal(t, []bool{true}, h.categories.pinned)
	assert.Equal(t, int64(4), h.categories.posts[0].CategoryID)
}

func TestCreate_LinksReplyExactlyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	parent := h.create(t, posts.CreateInput{})
	child := h.create(t, posts.CreateInput{ReplyToID: parent.ID})
	assert.Equal(t, parent.ID, child.ReplyToID)

	fields, err := h.store.GetObjectFields(ctx, store.PostKey(parent.ID), store.FieldReplies)
	require.NoError(t, err)
	assert.Equal(t, "1", fields[store.FieldReplies])

	replies, err := h.store.SortedSetRange(ctx, store.RepliesKey(parent.ID), 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{store.Member(child.ID)}, replies)

	h.create(t, posts.CreateInput{})
	fields, err = h.store.GetObjectFields(ctx, store.PostKey(parent.ID), store.FieldReplies)
	require.NoError(t, err)
	assert.Equal(t, "1", fields[store.FieldReplies])

	stored, err := h.creator.Reader().GetPost(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Replies)
}

func TestCreate_BannedTermsMatchWholeWordsOnly(t *testing.T) {
	h := newHarness(t, withBanned("ass", "damn"))

	_, err := h.creator.Create(context.Background(), posts.CreateInput{
		AuthorID: uid(1), TopicID: 1, Content: "Damn, what an ASS. ass!",
	})
	require.ErrorIs(t, err, posts.ErrBannedContent)
	var perr *posts.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, []string{"ass", "damn"}, perr.Terms)
	assert.Empty(t, h.globalFields(t))

	p := h.create(t, posts.CreateInput{Content: "a classy class, assessed"})
	assert.Equal(t, int64(1), p.ID)
}

func TestCreate_InvalidReplyTargetWritesNothing(t *testing.T) {
	h := newHarness(t)

	_, err := h.creator.Create(context.Background(), posts.CreateInput{
		AuthorID: uid(1), TopicID: 1, Content: "reply", ReplyToID: 999,
	})
	require.ErrorIs(t, err, posts.ErrInvalidReplyTarget)
	assert.Equal(t, posts.KindInvalidReplyTarget, posts.KindOf(err))
	assert.Empty(t, h.globalFields(t))
	assert.Empty(t, h.users.posts)
}

func TestCreate_DeletedReplyTargetNeedsPrivilege(t *testing.T) {
	ctx := context.Background()
	for _, allow := range []bool{false, true} {
		t.Run(fmt.Sprintf("allow=%v", allow), func(t *testing.T) {
			h := newHarness(t, withPrivileges(allow))
			parent := h.create(t, posts.CreateInput{})
			require.NoError(t, h.store.SetObject(ctx, store.PostKey(parent.ID), map[string]string{"deleted": "1"}))

			_, err := h.creator.Create(ctx, posts.CreateInput{
				AuthorID: uid(1), TopicID: 1, Content: "reply", ReplyToID: parent.ID,
			})
			if allow {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, posts.ErrInvalidReplyTarget)
			}
		})
	}
}

func TestCreate_UnknownTopic(t *testing.T) {
	h := newHarness(t)

	_, err := h.creator.Create(context.Background(), posts.CreateInput{AuthorID: uid(1), TopicID: 55, Content: "x"})
	require.ErrorIs(t, err, posts.ErrInvalidTopic)
	assert.ErrorIs(t, err, models.ErrTopicNotFound)
	assert.Empty(t, h.globalFields(t))
}

func TestCreate_FanOutFailureKeepsRecordReadable(t *testing.T) {
	boom := errors.New("topic aggregate down")
	h := newHarness(t, withTopicErr(boom))

	_, err := h.creator.Create(context.Background(), posts.CreateInput{AuthorID: uid(5), TopicID: 1, Content: "still here"})
	require.ErrorIs(t, err, posts.ErrFanOutFailed)
	assert.ErrorIs(t, err, boom)

	var perr *posts.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, int64(1), perr.PID)

	stored, err := h.creator.Reader().GetPost(context.Background(), perr.PID)
	require.NoError(t, err)
	assert.Equal(t, "still here", stored.Content)

	// The other fan-out operations still ran to completion.
	assert.Len(t, h.users.posts, 1)
	assert.Equal(t, "1", h.globalFields(t)[store.FieldPostCount])
}

func TestCreate_FanOutStoreFailure(t *testing.T) {
	s, _ := storetest.New(t)
	faulty := storetest.NewFaulty(s)
	faulty.FailOn("zadd", store.PostsByTimeKey)
	h := newHarness(t, withStore(faulty))

	_, err := h.creator.Create(context.Background(), posts.CreateInput{AuthorID: uid(5), TopicID: 1, Content: "x"})
	require.ErrorIs(t, err, posts.ErrFanOutFailed)
	assert.ErrorIs(t, err, storetest.ErrInjected)

	_, err = h.creator.Reader().GetPost(context.Background(), 1)
	assert.NoError(t, err)
}

func TestCreate_AllocationFailureWritesNothing(t *testing.T) {
	s, _ := storetest.New(t)
	faulty := storetest.NewFaulty(s)
	faulty.FailOn("incr", store.GlobalKey)
	h := newHarness(t, withStore(faulty))

	_, err := h.creator.Create(context.Background(), posts.CreateInput{AuthorID: uid(5), TopicID: 1, Content: "x"})
	require.ErrorIs(t, err, posts.ErrAllocationFailed)

	_, err = h.creator.Reader().GetPost(context.Background(), 1)
	assert.ErrorIs(t, err, posts.ErrPostNotFound)
	assert.Empty(t, h.users.posts)
}

func TestCreate_PersistenceFailureBurnsID(t *testing.T) {
	s, _ := storetest.New(t)
	faulty := storetest.NewFaulty(s)
	faulty.FailOn("set", "post:")
	h := newHarness(t, withStore(faulty))

	_, err := h.creator.Create(context.Background(), posts.CreateInput{AuthorID: uid(5), TopicID: 1, Content: "x"})
	require.ErrorIs(t, err, posts.ErrPersistenceFailed)

	g := h.globalFields(t)
	assert.Equal(t, "1", g[store.FieldNextPid])
	assert.Empty(t, g[store.FieldPostCount])
	assert.Empty(t, h.users.posts)
}

func TestCreate_FilterRewritesAndRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.creator.Hooks().Create.Register("shout", func(_ context.Context, p posts.CreatePayload) (posts.CreatePayload, error) {
		p.Post.Content = strings.ToUpper(p.Post.Content)
		p.Post.ID = 1000
		return p, nil
	})

	p := h.create(t, posts.CreateInput{Content: "quiet"})
	assert.Equal(t, "QUIET", p.Content)
	assert.Equal(t, int64(1), p.ID)

	stored, err := h.creator.Reader().GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "QUIET", stored.Content)

	reject := errors.New("rejected by plugin")
	h.creator.Hooks().Create.Register("reject", func(_ context.Context, p posts.CreatePayload) (posts.CreatePayload, error) {
		return p, reject
	})
	_, err = h.creator.Create(ctx, posts.CreateInput{AuthorID: uid(1), TopicID: 1, Content: "again"})
	require.ErrorIs(t, err, reject)
	var se *plugins.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, posts.HookFilterCreate, se.Hook)

	_, err = h.creator.Reader().GetPost(ctx, 2)
	assert.ErrorIs(t, err, posts.ErrPostNotFound)
}

func TestCreate_IPTrackedOnlyWhenEnabled(t *testing.T) {
	off := newHarness(t)
	assert.Empty(t, off.create(t, posts.CreateInput{IP: "10.0.0.1"}).IP)

	on := newHarness(t, withTrackIP())
	assert.Equal(t, "10.0.0.1", on.create(t, posts.CreateInput{IP: "10.0.0.1"}).IP)
}

func TestCreate_IsMainEchoedButNotStored(t *testing.T) {
	h := newHarness(t)
	p := h.create(t, posts.CreateInput{IsMain: true})
	assert.True(t, p.IsMain)

	stored, err := h.creator.Reader().GetPost(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsMain)
}

func TestCreate_SaveActionGetsACopy(t *testing.T) {
	h := newHarness(t)
	got := make(chan models.Post, 1)
	release := make(chan struct{})
	h.creator.Hooks().Save.Register("capture", func(_ context.Context, p posts.SavePayload) error {
		<-release
		got <- p.Post
		return errors.New("ignored")
	})

	ts := time.UnixMilli(1_700_000_000_000)
	p := h.create(t, posts.CreateInput{Content: "original", Timestamp: ts})
	p.Content = "mutated by caller"
	close(release)
	h.creator.Hooks().Save.Wait()

	snap := <-got
	assert.Equal(t, "original", snap.Content)
	assert.True(t, ts.Equal(snap.Timestamp))
}

func TestCreate_TimestampIndexesByCreationTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ts := time.UnixMilli(1_600_000_000_000)

	p := h.create(t, posts.CreateInput{Timestamp: ts})
	score, ok, err := h.store.SortedSetScore(ctx, store.PostsByTimeKey, store.Member(p.ID))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(ts.UnixMilli()), score)
}

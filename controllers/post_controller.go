package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/postcore/middleware"
	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/plugins"
	"github.com/cppla/postcore/posts"
	"github.com/cppla/postcore/utils"
)

// PostIndex lists the pids filed under one owner (a topic or a user), oldest
// first.
type PostIndex interface {
	PostIDs(ctx context.Context, id, start, stop int64) ([]string, error)
}

// PostController exposes post creation and reads.
type PostController struct {
	creator *posts.Creator
	topics  PostIndex
	users   PostIndex
	cache   *utils.Cache
	logger  *zap.Logger
}

// NewPostController creates a new PostController instance. cache may be nil.
func NewPostController(creator *posts.Creator, topics, users PostIndex, cache *utils.Cache, logger *zap.Logger) *PostController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostController{creator: creator, topics: topics, users: users, cache: cache, logger: logger}
}

type createPostRequest struct {
	Content     string `json:"content" binding:"required"`
	ReplyToID   int64  `json:"reply_to_id"`
	IsAnonymous bool   `json:"is_anonymous"`
	IsPrivate   bool   `json:"is_private"`
	IsMain      bool   `json:"is_main"`
	Handle      string `json:"handle"`
}

// CreatePost adds a post to a topic. Guests may post; a valid bearer token
// makes the post the user's.
func (p *PostController) CreatePost(ctx *gin.Context) {
	tid, err := strconv.ParseInt(ctx.Param("tid"), 10, 64)
	if err != nil || tid <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid topic id")
		return
	}

	var req createPostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	uid := middleware.UserID(ctx)
	post, err := p.creator.Create(ctx.Request.Context(), posts.CreateInput{
		AuthorID:    &uid,
		TopicID:     tid,
		Content:     req.Content,
		IsMain:      req.IsMain,
		IsAnonymous: req.IsAnonymous,
		IsPrivate:   req.IsPrivate,
		ReplyToID:   req.ReplyToID,
		IP:          ctx.ClientIP(),
		Handle:      strings.TrimSpace(req.Handle),
	})
	if err != nil {
		p.writeCreateError(ctx, err)
		return
	}
	utils.Created(ctx, post)
}

func (p *PostController) writeCreateError(ctx *gin.Context, err error) {
	var perr *posts.Error
	if errors.As(err, &perr) {
		switch perr.Kind {
		case posts.KindInvalidAuthor:
			utils.Error(ctx, http.StatusBadRequest, 40022, "invalid author")
		case posts.KindInvalidTopic:
			utils.Error(ctx, http.StatusNotFound, 40420, "topic not found")
		case posts.KindInvalidReplyTarget:
			utils.Error(ctx, http.StatusBadRequest, 40023, "invalid reply target")
		case posts.KindBannedContent:
			utils.ErrorWithData(ctx, http.StatusBadRequest, 40024, "content contains banned words", gin.H{"terms": perr.Terms})
		case posts.KindFanOutFailed:
			// the post exists; report its id so the client does not resubmit
			utils.ErrorWithData(ctx, http.StatusInternalServerError, 50022, "post saved but indexing incomplete", gin.H{"pid": perr.PID})
		default:
			p.logger.Error("create post failed", zap.String("kind", string(posts.KindOf(err))), zap.Error(err))
			utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		}
		return
	}
	var se *plugins.StageError
	if errors.As(err, &se) {
		utils.ErrorWithData(ctx, http.StatusUnprocessableEntity, 42220, "post rejected", gin.H{"reason": se.Err.Error()})
		return
	}
	p.logger.Error("create post failed", zap.Error(err))
	utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to create post")
}

// GetPost returns one post. Private posts read as not found unless the
// caller may see them. Views are cached per caller.
func (p *PostController) GetPost(ctx *gin.Context) {
	pid, err := strconv.ParseInt(ctx.Param("pid"), 10, 64)
	if err != nil || pid <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40025, "invalid post id")
		return
	}

	uid := middleware.UserID(ctx)
	cacheKey := utils.PostDetailCacheKey(pid, uid)
	if p.cache != nil {
		if b, ok := p.cache.GetBytes(ctx.Request.Context(), cacheKey); ok {
			var post models.Post
			if json.Unmarshal(b, &post) == nil {
				utils.Success(ctx, post)
				return
			}
		}
	}

	post, err := p.creator.Get(ctx.Request.Context(), pid, uid)
	if errors.Is(err, posts.ErrPostNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40421, "post not found")
		return
	}
	if err != nil {
		p.logger.Error("get post failed", zap.Int64("pid", pid), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}
	if post.Deleted {
		utils.Error(ctx, http.StatusNotFound, 40421, "post not found")
		return
	}
	visible, err := p.creator.CanView(ctx.Request.Context(), post, uid)
	if err != nil {
		p.logger.Error("check post visibility failed", zap.Int64("pid", pid), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}
	if !visible {
		utils.Error(ctx, http.StatusNotFound, 40421, "post not found")
		return
	}
	post = publicView(post)
	if p.cache != nil && !post.IsPrivate {
		p.cache.SetJSON(ctx.Request.Context(), cacheKey, post)
	}
	utils.Success(ctx, post)
}

// ListTopicPosts returns a page of a topic's posts, oldest first.
func (p *PostController) ListTopicPosts(ctx *gin.Context) {
	tid, err := strconv.ParseInt(ctx.Param("tid"), 10, 64)
	if err != nil || tid <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid topic id")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	cacheKey := utils.TopicPostsCachePrefix(tid) + strconv.Itoa(page) + ":" + strconv.Itoa(pageSize) + ":" +
		strconv.FormatInt(middleware.UserID(ctx), 10)
	if p.cache != nil {
		if b, ok := p.cache.GetBytes(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
			return
		}
	}

	items, err := p.loadPage(ctx, p.topics, tid, page, pageSize)
	if err != nil {
		p.logger.Error("list topic posts failed", zap.Int64("tid", tid), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to list posts")
		return
	}

	resp := utils.JSONResponse{Code: 0, Message: "success", Data: gin.H{"items": items, "page": page, "page_size": pageSize}}
	if p.cache != nil {
		p.cache.SetJSON(ctx.Request.Context(), cacheKey, resp)
	}
	ctx.JSON(http.StatusOK, resp)
}

// ListUserPosts returns a page of a user's public posts, oldest first.
// Anonymous posts are never filed under their author.
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	uid, err := strconv.ParseInt(ctx.Param("uid"), 10, 64)
	if err != nil || uid <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40026, "invalid user id")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	items, err := p.loadPage(ctx, p.users, uid, page, pageSize)
	if err != nil {
		p.logger.Error("list user posts failed", zap.Int64("uid", uid), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to list posts")
		return
	}
	utils.Success(ctx, gin.H{"items": items, "page": page, "page_size": pageSize})
}

// loadPage reads one page of index id through the get filter, skipping
// posts that are deleted, private or unreadable.
func (p *PostController) loadPage(ctx *gin.Context, index PostIndex, id int64, page, pageSize int) ([]*models.Post, error) {
	start := int64((page - 1) * pageSize)
	ids, err := index.PostIDs(ctx.Request.Context(), id, start, start+int64(pageSize)-1)
	if err != nil {
		return nil, err
	}

	uid := middleware.UserID(ctx)
	items := make([]*models.Post, 0, len(ids))
	for _, raw := range ids {
		pid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		post, err := p.creator.Get(ctx.Request.Context(), pid, uid)
		if err != nil {
			p.logger.Warn("skip unreadable post", zap.Int64("pid", pid), zap.Error(err))
			continue
		}
		if post.Deleted || post.IsPrivate {
			continue
		}
		items = append(items, publicView(post))
	}
	return items, nil
}

// publicView hides what only the submitter gets back on create.
func publicView(post *models.Post) *models.Post {
	out := post.Clone()
	out.IP = ""
	return &out
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 20
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

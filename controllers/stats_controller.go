package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/postcore/categories"
	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/store"
	"github.com/cppla/postcore/utils"
)

// StatsController reports forum counters.
type StatsController struct {
	db    *gorm.DB
	store store.Store
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB, s store.Store) *StatsController {
	return &StatsController{db: db, store: s}
}

// GetStats returns aggregate statistics for the forum.
func (s *StatsController) GetStats(ctx *gin.Context) {
	fields, err := s.store.GetObjectFields(ctx.Request.Context(), store.GlobalKey, store.FieldPostCount, store.FieldNextPid)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load stats")
		return
	}

	var userCount int64
	if err := s.db.WithContext(ctx.Request.Context()).Model(&models.User{}).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}

	utils.Success(ctx, gin.H{
		"user_count": userCount,
		"post_count": atoi64(fields[store.FieldPostCount]),
		"last_pid":   atoi64(fields[store.FieldNextPid]),
	})
}

// GetTopicStats returns the counters of one topic.
func (s *StatsController) GetTopicStats(ctx *gin.Context) {
	tid, err := strconv.ParseInt(ctx.Param("tid"), 10, 64)
	if err != nil || tid <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid topic id")
		return
	}
	var t models.Topic
	err = s.db.WithContext(ctx.Request.Context()).
		Select("id", "category_id", "post_count", "last_post_id", "last_post_at").
		Where("id = ? AND deleted = ?", tid, false).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40420, "topic not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load topic")
		return
	}
	utils.Success(ctx, gin.H{
		"tid":          t.ID,
		"cid":          t.CategoryID,
		"post_count":   t.PostCount,
		"last_post_id": t.LastPostID,
		"last_post_at": t.LastPostAt,
	})
}

// GetCategoryStats returns the post counter of one category.
func (s *StatsController) GetCategoryStats(ctx *gin.Context) {
	cid, err := strconv.ParseInt(ctx.Param("cid"), 10, 64)
	if err != nil || cid <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40027, "invalid category id")
		return
	}
	fields, err := s.store.GetObjectFields(ctx.Request.Context(), store.CategoryKey(cid), categories.FieldPostCount)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to load category stats")
		return
	}
	utils.Success(ctx, gin.H{"cid": cid, "post_count": atoi64(fields[categories.FieldPostCount])})
}

func atoi64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

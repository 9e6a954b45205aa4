package controllers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/postcore/middleware"
	"github.com/cppla/postcore/uploads"
	"github.com/cppla/postcore/utils"
)

const maxUploadSize = 50 * 1024 * 1024

// UploadController stores attachments that posts later reference by URL.
type UploadController struct {
	db      *gorm.DB
	rootDir string
	ttl     time.Duration
	logger  *zap.Logger
}

// NewUploadController creates an UploadController writing below rootDir
// (./static/uploads when empty). Files expire after ttl unless attached; a zero
// ttl keeps them.
func NewUploadController(db *gorm.DB, rootDir string, ttl time.Duration, logger *zap.Logger) *UploadController {
	if rootDir == "" {
		rootDir = filepath.Join(".", "static", "uploads")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadController{db: db, rootDir: rootDir, ttl: ttl, logger: logger}
}

// UploadAttachment handles file uploads for posts.
func (u *UploadController) UploadAttachment(ctx *gin.Context) {
	userID := middleware.UserID(ctx)
	if userID <= 0 {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	// Accept common field name 'file' or fallback to 'f'
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		file, header, err = ctx.Request.FormFile("f")
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
			return
		}
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		utils.Error(ctx, http.StatusBadRequest, 40032, "file size exceeds 50MB")
		return
	}

	now := time.Now()
	datePath := filepath.Join(now.Format("2006"), now.Format("01"), now.Format("02"))
	dir := filepath.Join(u.rootDir, datePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create upload directory")
		return
	}

	fname := filepath.Base(header.Filename)
	if fname == "." || fname == "/" || fname == "" {
		fname = fmt.Sprintf("file_%d", now.UnixNano())
	}
	safeName := fmt.Sprintf("%d_%d_%s", now.UnixNano(), userID, fname)
	dstPath := filepath.Join(dir, safeName)

	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to save file")
		return
	}
	written, err := io.Copy(out, &io.LimitedReader{R: file, N: maxUploadSize + 1})
	_ = out.Close()
	if err != nil || written > maxUploadSize {
		_ = os.Remove(dstPath)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to write file")
		} else {
			utils.Error(ctx, http.StatusBadRequest, 40032, "file size exceeds 50MB")
		}
		return
	}

	relURL := uploads.URLPrefix + filepath.ToSlash(filepath.Join(datePath, safeName))
	absPath, _ := filepath.Abs(dstPath)
	rec, err := uploads.Track(ctx.Request.Context(), u.db, absPath, relURL, u.ttl)
	if err != nil {
		_ = os.Remove(dstPath)
		u.logger.Error("track upload failed", zap.String("path", absPath), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to record upload")
		return
	}

	utils.Created(ctx, gin.H{
		"url":       relURL,
		"name":      fname,
		"size":      written,
		"expire_at": rec.ExpireAt,
	})
}

package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/postcore/config"
	"github.com/cppla/postcore/controllers"
	"github.com/cppla/postcore/middleware"
	"github.com/cppla/postcore/utils"
)

// Handlers is everything the router serves.
type Handlers struct {
	Auth     *middleware.Authenticator
	Limiter  *middleware.RateLimiter
	Sessions *controllers.AuthController
	Posts    *controllers.PostController
	Uploads  *controllers.UploadController
	Stats    *controllers.StatsController

	// AccessLog receives request logs. When nil a rolling file logger is
	// opened at cfg.GinPath.
	AccessLog *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, h Handlers) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())

	gl := h.AccessLog
	if gl == nil {
		var err error
		gl, err = utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err != nil {
			gl = nil
		}
	}
	if gl != nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	if h.Sessions != nil {
		authGroup := api.Group("/auth")
		authGroup.Use(h.Auth.Required())
		authGroup.GET("/me", h.Sessions.Me)
		authGroup.POST("/logout", h.Sessions.Logout)
	}

	public := api.Group("")
	public.Use(h.Auth.Optional())
	public.GET("/posts/:pid", h.Posts.GetPost)
	public.GET("/topics/:tid/posts", h.Posts.ListTopicPosts)
	public.GET("/users/:uid/posts", h.Posts.ListUserPosts)
	if h.Stats != nil {
		public.GET("/stats", h.Stats.GetStats)
		public.GET("/topics/:tid/stats", h.Stats.GetTopicStats)
		public.GET("/categories/:cid/stats", h.Stats.GetCategoryStats)
	}

	writes := api.Group("")
	if h.Limiter != nil {
		writes.Use(h.Limiter.Middleware())
	}
	writes.POST("/topics/:tid/posts", h.Auth.Optional(), h.Posts.CreatePost)
	if h.Uploads != nil {
		writes.POST("/uploads", h.Auth.Required(), h.Uploads.UploadAttachment)
	}

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/static/") {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "static asset not found"})
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}

package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/postcore/categories"
	"github.com/cppla/postcore/config"
	"github.com/cppla/postcore/controllers"
	"github.com/cppla/postcore/groups"
	"github.com/cppla/postcore/middleware"
	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/posts"
	"github.com/cppla/postcore/privileges"
	"github.com/cppla/postcore/routes"
	"github.com/cppla/postcore/store"
	"github.com/cppla/postcore/topics"
	"github.com/cppla/postcore/uploads"
	"github.com/cppla/postcore/users"
	"github.com/cppla/postcore/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	logger := utils.L()
	defer func() { _ = logger.Sync() }()

	db := config.InitDatabase(&models.Category{}, &models.CategoryModerator{}, &models.Topic{},
		&models.User{}, &models.GroupMember{}, &models.UploadedFile{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := utils.PingRedis(ctx); err != nil {
		logger.Fatal("redis unavailable", zap.Error(err))
	}
	st := utils.NewStore()

	banned, err := loadBannedTerms(cfg.BannedWordsPath)
	if err != nil {
		logger.Fatal("failed to load banned words", zap.String("path", cfg.BannedWordsPath), zap.Error(err))
	}
	logger.Info("banned words loaded", zap.Int("terms", banned.Len()))

	topicSvc := topics.NewService(db, st, logger)
	userSvc := users.NewService(db, st, logger)
	creator := newCreator(cfg, db, st, topicSvc, userSvc, banned, logger)

	cache := utils.NewCache(utils.GetRedis(), logger, 2*time.Minute)
	creator.Hooks().RegisterDefaults(utils.SanitizeContent, cache)

	var uploadTTL time.Duration
	if cfg.UploadsSelfDestructEnabled {
		uploadTTL = time.Duration(cfg.UploadsSelfDestructMinutes) * time.Minute
		go uploads.NewCleaner(db, logger, 5*time.Minute).Run(ctx)
	}

	blacklist := utils.NewTokenBlacklist(utils.GetRedis())
	r := routes.SetupRouter(cfg, routes.Handlers{
		Auth:     middleware.NewAuthenticator(cfg.JWTSecret, blacklist),
		Limiter:  middleware.NewRateLimiter(cfg.RateLimitPerMinute),
		Sessions: controllers.NewAuthController(cfg.JWTSecret, blacklist, userSvc),
		Posts:    controllers.NewPostController(creator, topicSvc, userSvc, cache, logger),
		Uploads:  controllers.NewUploadController(db, "", uploadTTL, logger),
		Stats:    controllers.NewStatsController(db, st),
	})

	srv := utils.NewServer(":"+cfg.AppPort, r, utils.DEFAULT_READ_TIMEOUT, utils.DEFAULT_WRITE_TIMEOUT)
	srv.AfterShutdown(cancel)
	srv.AfterShutdown(creator.Hooks().Save.Wait)

	logger.Info("starting server", zap.String("port", cfg.AppPort))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func loadBannedTerms(path string) (*posts.BannedTerms, error) {
	data, err := config.BannedWords(path)
	if err != nil {
		return nil, err
	}
	return posts.ParseBannedTerms(data)
}

func newCreator(cfg config.AppConfig, db *gorm.DB, st store.Store, topicSvc *topics.Service, userSvc *users.Service, banned *posts.BannedTerms, logger *zap.Logger) *posts.Creator {
	catSvc := categories.NewService(db, st)
	return posts.NewCreator(posts.Deps{
		Store:          st,
		Topics:         topicSvc,
		Privileges:     privileges.NewService(st, userSvc, catSvc, cfg.IsAdminUsername),
		Users:          userSvc,
		TopicAgg:       topicSvc,
		Categories:     catSvc,
		Groups:         groups.NewService(db, st),
		Uploads:        uploads.NewService(db, st, logger),
		Banned:         banned,
		TrackIPPerPost: cfg.TrackIPPerPost,
		Logger:         logger,
	})
}

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/pending-subjects-api/api/swagger"
	"github.com/noah-isme/pending-subjects-api/internal/handler"
	"github.com/noah-isme/pending-subjects-api/internal/middleware"
	"github.com/noah-isme/pending-subjects-api/internal/models"
	"github.com/noah-isme/pending-subjects-api/internal/repository"
	"github.com/noah-isme/pending-subjects-api/internal/service"
	"github.com/noah-isme/pending-subjects-api/pkg/cache"
	"github.com/noah-isme/pending-subjects-api/pkg/config"
	"github.com/noah-isme/pending-subjects-api/pkg/database"
	"github.com/noah-isme/pending-subjects-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/pending-subjects-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/pending-subjects-api/pkg/middleware/requestid"
)

// @title Pending Subjects API
// @version 1.0.0
// @description Tracks subjects students still owe from previous years through the intensification checkpoints.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db, logr).RequireVersion(int64(cfg.Database.SchemaVersion)); err != nil {
		logr.Fatal("database schema check failed", zap.Int("required", cfg.Database.SchemaVersion), zap.Error(err))
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	var redisClient *redis.Client
	if cfg.Pending.CacheEnabled {
		redisClient, err = cache.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, pending view cache disabled", zap.Error(err))
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(
		cacheRepo,
		metricsSvc,
		cfg.Pending.CacheTTL,
		logr,
		redisClient != nil,
	)

	policy, ok := service.ParseGroupGradePolicy(cfg.Pending.GroupGradePolicy)
	if !ok {
		logr.Warn("unknown group grade policy, using minimum", zap.String("policy", cfg.Pending.GroupGradePolicy))
	}

	pendingRepo := repository.NewPendingRegistrationRepository(db)
	auditRepo := repository.NewPendingAuditRepository(db)
	groupRepo := repository.NewSubjectGroupRepository(db)
	offeringRepo := repository.NewSubjectOfferingRepository(db)
	courseRepo := repository.NewCourseRepository(db)

	validate := validator.New()
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	groupSvc := service.NewSubjectGroupService(groupRepo, offeringRepo, logr)
	viewSvc := service.NewPendingViewService(pendingRepo, courseRepo, groupSvc, offeringRepo, cacheSvc, metricsSvc, service.PendingViewConfig{
		Policy:            policy,
		CacheTTL:          cfg.Pending.CacheTTL,
		InvalidationDelay: cfg.Pending.InvalidationDelay,
	}, logr)
	pendingSvc := service.NewPendingRegistrationService(pendingRepo, auditRepo, offeringRepo, courseRepo, viewSvc, metricsSvc, validate, logr)

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	pendingHandler := handler.NewPendingHandler(pendingSvc)
	viewHandler := handler.NewPendingViewHandler(viewSvc)
	groupHandler := handler.NewSubjectGroupHandler(groupSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metricsSvc != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	managers := middleware.RequireRoles(models.ManagerRoles...)
	viewers := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDirector, models.RoleTeacher)

	pending := api.Group("/pending-registrations")
	pending.GET("", viewers, pendingHandler.List)
	pending.POST("", managers, pendingHandler.Create)
	pending.POST("/bulk", managers, pendingHandler.BulkAssign)
	pending.GET("/:id", viewers, pendingHandler.Get)
	pending.PATCH("/:id", viewers, pendingHandler.Update)
	pending.DELETE("/:id", managers, pendingHandler.Delete)
	pending.GET("/:id/history", viewers, pendingHandler.History)

	api.GET("/students/:id/pending-view", viewers, viewHandler.Student)
	api.GET("/courses/:id/pending-view", viewers, viewHandler.Course)
	api.POST("/pending-views/invalidate", managers, viewHandler.Invalidate)
	api.GET("/subject-offerings/:id/group", viewers, groupHandler.Resolve)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "group_grade_policy", policy)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

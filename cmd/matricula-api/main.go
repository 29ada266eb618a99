package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/gestionmatricula/matricula-api/api/swagger"
	"github.com/gestionmatricula/matricula-api/internal/handler"
	"github.com/gestionmatricula/matricula-api/internal/middleware"
	"github.com/gestionmatricula/matricula-api/internal/models"
	"github.com/gestionmatricula/matricula-api/internal/repository"
	"github.com/gestionmatricula/matricula-api/internal/service"
	"github.com/gestionmatricula/matricula-api/pkg/cache"
	"github.com/gestionmatricula/matricula-api/pkg/config"
	"github.com/gestionmatricula/matricula-api/pkg/database"
	"github.com/gestionmatricula/matricula-api/pkg/logger"
	corsmiddleware "github.com/gestionmatricula/matricula-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gestionmatricula/matricula-api/pkg/middleware/requestid"
)

// @title Matricula API
// @version 1.0.0
// @description Course catalog and enrollment admission service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// A missing cache backend degrades catalog reads to the store, it
	// never keeps the service from starting.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	courseRepo := repository.NewCourseRepository(db, metricsSvc)
	enrollmentRepo := repository.NewEnrollmentRepository(db, metricsSvc)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Catalog.CacheTTL, logr, false)
	}

	catalogSvc := service.NewCatalogService(courseRepo, cacheSvc, cfg.Catalog.CacheTTL, logr)
	courseSvc := service.NewCourseService(courseRepo, catalogSvc, validate, logr)
	admissionSvc := service.NewAdmissionService(enrollmentRepo, courseRepo, metricsSvc, logr)
	reportSvc := service.NewReportService(reportRepo, enrollmentRepo, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc, courseSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(admissionSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Metrics)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/catalog/courses", catalogHandler.List)
	authed.GET("/catalog/courses/:id", catalogHandler.Get)

	student := authed.Group("")
	student.Use(middleware.RequireRoles(models.RoleStudent))
	student.POST("/enrollments", enrollmentHandler.Enroll)
	student.GET("/enrollments/me", enrollmentHandler.MyEnrollments)
	student.DELETE("/enrollments/:id", enrollmentHandler.CancelOwn)

	coordinator := authed.Group("")
	coordinator.Use(middleware.RequireRoles(models.RoleCoordinator))
	coordinator.GET("/courses", courseHandler.List)
	coordinator.GET("/courses/:id", courseHandler.Get)
	coordinator.POST("/courses", courseHandler.Create)
	coordinator.PUT("/courses/:id", courseHandler.Update)
	coordinator.POST("/courses/:id/activate", courseHandler.Activate)
	coordinator.POST("/courses/:id/deactivate", courseHandler.Deactivate)
	coordinator.GET("/admission/enrollments", enrollmentHandler.List)
	coordinator.POST("/admission/enrollments/:id/confirm", enrollmentHandler.Confirm)
	coordinator.POST("/admission/enrollments/:id/cancel", enrollmentHandler.Cancel)
	coordinator.GET("/reports/overview", reportHandler.Overview)
	coordinator.GET("/reports/courses/:id/roster", reportHandler.ExportRoster)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academic-records-api/api/swagger"
	"github.com/noah-isme/academic-records-api/internal/handler"
	internalmiddleware "github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/cache"
	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/database"
	"github.com/noah-isme/academic-records-api/pkg/export"
	"github.com/noah-isme/academic-records-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/requestid"
)

// @title Academic Records API
// @version 1.0.0
// @description Gradebook allocation, result records and attendance tracking.
// @BasePath /api/v1
// @schemes http

type recordStore interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	ListResultRecords(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, error)
	UpsertResultRecords(ctx context.Context, records []models.ResultRecord) error
	ListAttendanceEntries(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, error)
	UpsertAttendanceEntries(ctx context.Context, entries []models.AttendanceEntry) error
	UpsertUser(ctx context.Context, user models.User) error
	UpsertCourse(ctx context.Context, course models.Course) error
	Ping(ctx context.Context) error
}

func main() {
	flags := config.Flags(os.Args[0])
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}
	cfg, err := config.Load(flags)
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

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open record store", zap.Error(err))
	}
	defer closeStore()

	if cfg.Store.SeedOnStart {
		fixtures, err := repository.LoadSeed(cfg.Store.SeedFile)
		if err != nil {
			logr.Fatal("failed to load seed fixtures", zap.Error(err))
		}
		if err := repository.Seed(ctx, store, fixtures, logr); err != nil {
			logr.Fatal("failed to seed record store", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	defaults := models.NewAssessmentSchema(
		cfg.Gradebook.QuizCapacity,
		cfg.Gradebook.AssignmentCapacity,
		cfg.Gradebook.MidtermCapacity,
		cfg.Gradebook.FinalCapacity,
	)
	gradebookSvc := service.NewGradebookService(store, defaults, cacheSvc, metricsSvc, nil, logr)
	attendanceSvc := service.NewAttendanceService(store, cfg.Attendance.GoodStandingThreshold, cacheSvc, metricsSvc, nil, logr)
	resultSvc := service.NewResultService(store, export.NewRenderer(), cacheSvc, logr)

	gradebookHandler := handler.NewGradebookHandler(gradebookSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	resultHandler := handler.NewResultHandler(resultSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
		"store": store,
		"cache": cacheRepo,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(path.Join("/", cfg.APIPrefix))
	api.Use(internalmiddleware.RequireActor())

	courses := api.Group("/courses/:courseId")
	{
		gradebook := courses.Group("/gradebook")
		gradebook.GET("", gradebookHandler.Get)
		gradebook.DELETE("", gradebookHandler.Discard)
		gradebook.GET("/preview", gradebookHandler.Preview)
		gradebook.POST("/save", internalmiddleware.Audit(logr, "save", "gradebook"), gradebookHandler.Save)
		gradebook.PUT("/categories/:category", gradebookHandler.ResizeCategory)
		gradebook.POST("/items", gradebookHandler.AddItem)
		gradebook.PATCH("/items/:itemId", gradebookHandler.ResizeItem)
		gradebook.DELETE("/items/:itemId", gradebookHandler.RemoveItem)
		gradebook.POST("/items/:itemId/toggle", gradebookHandler.Toggle)
		gradebook.PUT("/items/:itemId/scores", gradebookHandler.SetScores)
		gradebook.PUT("/items/:itemId/scores/:studentId", gradebookHandler.SetScore)

		courses.POST("/attendance", internalmiddleware.Audit(logr, "mark", "attendance"), attendanceHandler.MarkDay)
		courses.GET("/attendance/roster", attendanceHandler.Roster)

		courses.GET("/results", resultHandler.CourseSheet)
		courses.GET("/results/export", resultHandler.Export)
	}

	api.GET("/attendance", attendanceHandler.List)
	api.GET("/attendance/summary", attendanceHandler.Summary)
	api.GET("/results", resultHandler.StudentResults)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (recordStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logr.Info("using postgres record store", zap.String("database", cfg.Database.Name))
		return repository.NewPostgresRecordStore(db), func() { _ = db.Close() }, nil
	case config.StoreDriverMemory, "":
		logr.Info("using in-memory record store")
		return repository.NewMemoryRecordStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

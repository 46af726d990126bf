package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-scheduling-api/api/swagger"
	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
	"github.com/noah-isme/sma-scheduling-api/internal/handler"
	"github.com/noah-isme/sma-scheduling-api/internal/repository"
	"github.com/noah-isme/sma-scheduling-api/internal/service"
	"github.com/noah-isme/sma-scheduling-api/pkg/cache"
	"github.com/noah-isme/sma-scheduling-api/pkg/config"
	"github.com/noah-isme/sma-scheduling-api/pkg/database"
	"github.com/noah-isme/sma-scheduling-api/pkg/lock"
	"github.com/noah-isme/sma-scheduling-api/pkg/logger"
)

// @title School Scheduling API
// @version 1.0.0
// @description Weekly timetables, academic periods, calendar events and enrollments with conflict-free placement.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	locker, err := newLocker(cfg.Scheduling, redisClient, logr)
	if err != nil {
		return err
	}
	guard := conflict.NewGuard(service.NewTimedLocker(locker, metrics), logr)

	deps := map[string]handler.Pinger{"postgres": db}
	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, "scheduling", logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled)
		deps["redis"] = cacheRepo
	}

	users := repository.NewUserRepository(db)
	refs := repository.NewReferenceRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	periodRepo := repository.NewAcademicPeriodRepository(db)
	eventRepo := repository.NewAcademicEventRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	audit := service.NewAuditService(repository.NewAuditRepository(db), metrics, service.AuditConfig{Workers: cfg.Audit.Workers, MaxRetries: cfg.Audit.MaxRetries}, logr)
	audit.Start(ctx)
	defer audit.Stop()

	loc, err := sweepLocation(cfg.Scheduling.SweepTimezone)
	if err != nil {
		return err
	}

	scheduleSvc := service.NewScheduleService(scheduleRepo, refs, guard, audit, cacheSvc, validate, logr)
	periodSvc := service.NewAcademicPeriodService(periodRepo, eventRepo, guard, audit, cacheSvc, validate, logr).
		WithLocation(loc).
		WithMetrics(metrics)
	eventSvc := service.NewAcademicEventService(eventRepo, periodRepo, guard, audit, cacheSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, refs, periodRepo, guard, audit, cacheSvc, validate, logr)
	exportSvc := service.NewExportService(scheduleSvc, audit, logr)
	authSvc := service.NewAuthService(users, audit, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.Auth.SingleSession,
	})

	sweeper, err := service.NewPeriodSweeper(periodSvc, cfg.Scheduling.PeriodSweep, loc, logr)
	if err != nil {
		return err
	}
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	router := newRouter(cfg, logr, routerDeps{
		auth:        authSvc,
		metrics:     metrics,
		limiter:     newLoginLimiter(cfg.Auth),
		health:      handler.NewMetricsHandler(metrics, deps),
		authH:       handler.NewAuthHandler(authSvc),
		schedules:   handler.NewScheduleHandler(scheduleSvc, exportSvc),
		periods:     handler.NewAcademicPeriodHandler(periodSvc),
		events:      handler.NewAcademicEventHandler(eventSvc),
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		auditH:      handler.NewAuditHandler(audit),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("lock_backend", cfg.Scheduling.LockBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLocker(cfg config.SchedulingConfig, client *redis.Client, logr *zap.Logger) (conflict.Locker, error) {
	if cfg.LockBackend != config.LockBackendRedis {
		return lock.NewMemory(cfg.LockWait), nil
	}
	if client == nil {
		return nil, errors.New("redis lock backend requires REDIS_ENABLED=true")
	}
	return lock.NewRedis(client, lock.RedisConfig{TTL: cfg.LockTTL, Wait: cfg.LockWait, Logger: logr}), nil
}

func sweepLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid PERIOD_SWEEP_TZ %q: %w", name, err)
	}
	return loc, nil
}

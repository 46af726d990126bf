package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/handler"
	"github.com/noah-isme/sma-scheduling-api/internal/middleware"
	"github.com/noah-isme/sma-scheduling-api/internal/service"
	"github.com/noah-isme/sma-scheduling-api/pkg/config"
	"github.com/noah-isme/sma-scheduling-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-scheduling-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-scheduling-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth        middleware.TokenValidator
	metrics     *service.MetricsService
	limiter     *middleware.RateLimiter
	health      *handler.MetricsHandler
	authH       *handler.AuthHandler
	schedules   *handler.ScheduleHandler
	periods     *handler.AcademicPeriodHandler
	events      *handler.AcademicEventHandler
	enrollments *handler.EnrollmentHandler
	auditH      *handler.AuditHandler
}

func newLoginLimiter(cfg config.AuthConfig) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.LoginRatePerMinute)
}

func newRouter(cfg *config.Config, logr *zap.Logger, d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(d.metrics))
	r.Use(middleware.AuditContext())

	r.GET("/health", d.health.Health)
	r.GET("/ready", d.health.Ready)
	r.GET("/metrics", d.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", d.limiter.Middleware(), d.authH.Login)
	auth.POST("/refresh", d.limiter.Middleware(), d.authH.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.auth))

	secured.POST("/auth/logout", d.authH.Logout)
	secured.POST("/auth/change-password", d.authH.ChangePassword)
	secured.GET("/auth/me", d.authH.Me)

	editors := middleware.RequireRoles(middleware.EditorRoles...)
	admins := middleware.RequireRoles(middleware.AdminRoles...)

	schedules := secured.Group("/schedules")
	schedules.GET("", d.schedules.List)
	schedules.GET("/stats", d.schedules.Stats)
	schedules.GET("/export", d.schedules.Export)
	schedules.GET("/teacher/:id", d.schedules.ListByTeacher)
	schedules.GET("/course/:id", d.schedules.ListByCourse)
	schedules.GET("/:id", d.schedules.Get)
	schedules.POST("", editors, d.schedules.Create)
	schedules.PUT("/:id", editors, d.schedules.Update)
	schedules.DELETE("/:id", admins, d.schedules.Delete)

	periods := secured.Group("/academic-periods")
	periods.GET("", d.periods.List)
	periods.GET("/current", d.periods.Current)
	periods.GET("/upcoming", d.periods.Upcoming)
	periods.GET("/active", d.periods.Active)
	periods.GET("/stats", d.periods.Stats)
	periods.GET("/:id", d.periods.Get)
	periods.GET("/:id/events", d.periods.Events)
	periods.POST("", admins, d.periods.Create)
	periods.PUT("/:id", admins, d.periods.Update)
	periods.DELETE("/:id", admins, d.periods.Delete)

	events := secured.Group("/academic-events")
	events.GET("", d.events.List)
	events.GET("/calendar", d.events.Calendar)
	events.GET("/upcoming", d.events.Upcoming)
	events.GET("/today", d.events.Today)
	events.GET("/stats", d.events.Stats)
	events.GET("/type/:type", d.events.ByType)
	events.GET("/:id", d.events.Get)
	events.POST("", editors, d.events.Create)
	events.PUT("/:id", editors, d.events.Update)
	events.DELETE("/:id", admins, d.events.Delete)

	enrollments := secured.Group("/enrollments")
	enrollments.GET("", d.enrollments.List)
	enrollments.GET("/stats", d.enrollments.Stats)
	enrollments.GET("/:id", d.enrollments.Get)
	enrollments.POST("", admins, d.enrollments.Create)
	enrollments.PUT("/:id", admins, d.enrollments.Update)
	enrollments.DELETE("/:id", admins, d.enrollments.Delete)

	secured.GET("/audit-logs", admins, d.auditH.List)
	secured.GET("/metrics/summary", admins, d.health.Summary)

	return r
}

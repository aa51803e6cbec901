package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/handler"
	"github.com/noah-isme/print-hub-api/internal/middleware"
	"github.com/noah-isme/print-hub-api/internal/models"
	"github.com/noah-isme/print-hub-api/internal/service"
	"github.com/noah-isme/print-hub-api/pkg/config"
	"github.com/noah-isme/print-hub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/print-hub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/print-hub-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	auth     *handler.AuthHandler
	printJob *handler.PrintJobHandler
	tracking *handler.TrackingHandler
	payment  *handler.PaymentHandler
	admin    *handler.AdminHandler
	report   *handler.ReportHandler
	file     *handler.FileHandler
	metrics  *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, tokens middleware.TokenValidator, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	requireAuth := middleware.JWT(tokens)
	adminOnly := []gin.HandlerFunc{requireAuth, middleware.RequireRoles(models.RoleAdmin)}

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.GET("/verify", requireAuth, h.auth.Verify)
	auth.POST("/register", requireAuth, middleware.RequireRoles(models.RoleSuperAdmin), h.auth.Register)

	printJobs := api.Group("/print-job", middleware.OptionalJWT(tokens))
	printJobs.POST("", h.printJob.Create)
	printJobs.GET("/preview/:token", h.printJob.Preview)
	printJobs.DELETE("/:token", h.printJob.Cancel)

	api.GET("/tracking/:token", h.tracking.ByToken)
	api.GET("/tracking/roll/:rollNumber", h.tracking.ByRoll)

	payments := api.Group("/payment")
	payments.POST("/process", h.payment.Process)
	payments.GET("/verify/:paymentId", h.payment.Verify)
	api.POST(cfg.Payment.CallbackPath, h.payment.Callback)

	admin := api.Group("/admin", adminOnly...)
	admin.GET("/orders", h.admin.ListOrders)
	admin.GET("/orders/:id", h.admin.GetOrder)
	admin.PUT("/orders/:id", h.admin.UpdateOrder)
	admin.GET("/files", h.admin.ListFiles)
	admin.GET("/payment-settings", h.admin.GetPaymentSettings)
	admin.PUT("/payment-settings", h.admin.UpdatePaymentSettings)
	admin.GET("/payment-stats", h.admin.PaymentStats)

	reports := api.Group("/reports", adminOnly...)
	reports.GET("/daily", h.report.Daily)
	reports.GET("/monthly", h.report.Monthly)
	reports.GET("/revenue", h.report.Revenue)
	reports.GET("/export/:type", h.report.Export)

	api.GET("/files/*key", h.file.Serve)

	return r
}

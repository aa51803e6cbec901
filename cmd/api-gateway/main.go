package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/print-hub-api/api/swagger"
	"github.com/noah-isme/print-hub-api/internal/handler"
	"github.com/noah-isme/print-hub-api/internal/repository"
	"github.com/noah-isme/print-hub-api/internal/service"
	"github.com/noah-isme/print-hub-api/pkg/broker"
	"github.com/noah-isme/print-hub-api/pkg/cache"
	"github.com/noah-isme/print-hub-api/pkg/config"
	"github.com/noah-isme/print-hub-api/pkg/database"
	"github.com/noah-isme/print-hub-api/pkg/jobs"
	"github.com/noah-isme/print-hub-api/pkg/logger"
	"github.com/noah-isme/print-hub-api/pkg/scanner"
	"github.com/noah-isme/print-hub-api/pkg/storage"
)

// @title Print Hub API
// @version 1.0.0
// @description Print job ordering, payment settlement and operator console
// @BasePath /api
// @schemes http https
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

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, report caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	blobs, err := storage.NewBlobStore(cfg.Storage.Dir)
	if err != nil {
		logr.Fatal("failed to prepare blob store", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	var fileScanner scanner.Scanner = scanner.Noop{}
	if cfg.Scanner.Address != "" {
		fileScanner = scanner.NewClamd(cfg.Scanner.Address)
	} else {
		logr.Warn("no malware scanner configured, uploads are stored unscanned")
	}

	var publisher broker.Publisher
	if len(cfg.Events.Brokers) > 0 {
		publisher = broker.NewProducer(cfg.Events.Brokers, cfg.Events.Topic)
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	orderRepo := repository.NewOrderRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewConfigurationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, redisClient != nil)
	events := service.NewEventService(publisher, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.MaxRetries,
		Logger:     logr,
	})

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	ingestionSvc := service.NewIngestionService(blobs, fileScanner, metrics, logr, service.IngestionConfig{
		AllowedExtensions: cfg.Ingestion.AllowedFileTypes,
		MaxFileSize:       cfg.Ingestion.MaxFileSizeBytes,
		ScanTimeout:       cfg.Scanner.Timeout,
	})
	orderSvc := service.NewOrderService(orderRepo, auditRepo, blobs, signer, cacheSvc, events, metrics, validate, logr, service.OrderServiceConfig{
		FilesPath: cfg.APIPrefix + "/files",
	})
	settingsSvc := service.NewSettingsService(settingsRepo, validate, logr)
	paymentSvc := service.NewPaymentService(orderSvc, settingsSvc, reportRepo, events, metrics, validate, logr, service.PaymentConfig{
		CallbackURL: cfg.PublicBaseURL + cfg.APIPrefix + cfg.Payment.CallbackPath,
	})
	reportSvc := service.NewReportService(reportRepo, cacheSvc, logr, cfg.Reports.CacheTTL)
	fileSvc := service.NewFileService(blobs, signer, cfg.Storage.RequireSignature, logr)
	retentionSvc := service.NewRetentionService(blobs, cfg.Storage.RetentionMaxAge, cfg.Storage.RetentionInterval, metrics, logr)

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	events.Start(workerCtx)
	retentionSvc.Start(workerCtx)

	router := newRouter(cfg, logr, metrics, authSvc, routeHandlers{
		auth:     handler.NewAuthHandler(authSvc),
		printJob: handler.NewPrintJobHandler(ingestionSvc, orderSvc),
		tracking: handler.NewTrackingHandler(orderSvc),
		payment:  handler.NewPaymentHandler(paymentSvc, logr),
		admin:    handler.NewAdminHandler(orderSvc, settingsSvc, paymentSvc, fileSvc),
		report:   handler.NewReportHandler(reportSvc),
		file:     handler.NewFileHandler(fileSvc),
		metrics:  handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	retentionSvc.Wait()
	events.Stop()
	logr.Info("server exited")
}

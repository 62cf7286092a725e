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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edu-center-api/api/swagger"
	"github.com/noah-isme/edu-center-api/internal/handler"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/pkg/cache"
	"github.com/noah-isme/edu-center-api/pkg/config"
	"github.com/noah-isme/edu-center-api/pkg/database"
	"github.com/noah-isme/edu-center-api/pkg/jobs"
	"github.com/noah-isme/edu-center-api/pkg/logger"
)

// @title Edu Center API
// @version 1.0.0
// @description Education center management: enrollments, attendance, tuition payments and debt reconciliation
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	loc := cfg.Billing.Location()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	debtRepo := repository.NewDebtRepository(db)
	financeRepo := repository.NewFinanceRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	ledger := repository.NewLedgerStore(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "edu", logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Debts.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	debtSvc := service.NewDebtService(ledger, debtRepo, userRepo, cacheSvc, metrics, service.DebtServiceConfig{
		DefaultLessonsPerWeek: cfg.Billing.DefaultLessonsPerWeek,
		MaxAttempts:           cfg.Billing.ReconcileMaxRetries,
		Location:              loc,
		CacheTTL:              cfg.Debts.CacheTTL,
	}, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	groupSvc := service.NewGroupService(groupRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, groupRepo, debtSvc, userRepo, validate, logr)

	refreshQueue := jobs.NewQueue("debt-refresh", service.DebtRefreshHandler(debtSvc), jobs.QueueConfig{
		Workers:    cfg.Billing.RefreshWorkers,
		MaxRetries: cfg.Billing.ReconcileMaxRetries,
		Logger:     logr,
	})
	refreshQueue.Start(context.Background())
	defer refreshQueue.Stop()

	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentSvc, service.NewDebtRefresher(refreshQueue, logr), validate, logr, loc)
	paymentSvc := service.NewPaymentService(debtSvc, paymentRepo, validate, logr)
	financeSvc := service.NewFinanceReportService(financeRepo, validate, logr, loc)
	subscriptionSvc := service.NewSubscriptionService(subscriptionRepo, cacheSvc, metrics, cfg.Subscriptions.CacheTTL, loc, logr)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	router := newRouter(routerDeps{
		cfg:          cfg,
		logger:       logr,
		metrics:      metrics,
		tokens:       authSvc,
		subscription: subscriptionSvc,
		audit:        userRepo,
		handlers: handlers{
			auth:         handler.NewAuthHandler(authSvc),
			students:     handler.NewStudentHandler(studentSvc),
			groups:       handler.NewGroupHandler(groupSvc),
			enrollments:  handler.NewEnrollmentHandler(enrollmentSvc, studentSvc),
			attendance:   handler.NewAttendanceHandler(attendanceSvc, enrollmentSvc),
			payments:     handler.NewPaymentHandler(paymentSvc, enrollmentSvc),
			debts:        handler.NewDebtHandler(debtSvc, studentSvc, financeSvc),
			finance:      handler.NewFinanceHandler(financeSvc, cfg.Reports.Enabled),
			subscription: handler.NewSubscriptionHandler(subscriptionSvc),
			metrics:      handler.NewMetricsHandler(metrics, checks),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
		}
		return
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		_ = server.Close()
	}
	logr.Info("server stopped")
}

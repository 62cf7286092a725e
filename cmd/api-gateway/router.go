package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/handler"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/pkg/config"
	"github.com/noah-isme/edu-center-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edu-center-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-center-api/pkg/middleware/requestid"
)

type handlers struct {
	auth         *handler.AuthHandler
	students     *handler.StudentHandler
	groups       *handler.GroupHandler
	enrollments  *handler.EnrollmentHandler
	attendance   *handler.AttendanceHandler
	payments     *handler.PaymentHandler
	debts        *handler.DebtHandler
	finance      *handler.FinanceHandler
	subscription *handler.SubscriptionHandler
	metrics      *handler.MetricsHandler
}

type routerDeps struct {
	cfg          *config.Config
	logger       *zap.Logger
	metrics      *service.MetricsService
	tokens       middleware.TokenValidator
	subscription middleware.SubscriptionChecker
	audit        middleware.AuditWriter
	handlers     handlers
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))
	r.Use(middleware.WithResponseMeta())

	h := d.handlers
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := strings.TrimRight(d.cfg.APIPrefix, "/")
	api := r.Group(prefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)
	auth.POST("/logout", middleware.JWT(d.tokens), h.auth.Logout)

	staff := api.Group("")
	staff.Use(middleware.JWT(d.tokens))
	if d.cfg.Subscriptions.GateEnabled {
		staff.Use(middleware.SubscriptionGate(d.subscription, d.cfg.Subscriptions.ExemptPaths, d.logger))
	}

	students := staff.Group("/students")
	students.GET("", middleware.RequireCapability(models.CapDebtsRead), h.students.List)
	students.POST("", middleware.RequireCapability(models.CapStudentsWrite),
		middleware.Audit(d.audit, d.logger, models.AuditActionStudentCreate, "student", ""), h.students.Create)
	students.GET("/:id", middleware.RequireCapability(models.CapDebtsRead), h.students.Get)
	students.GET("/:id/enrollments", middleware.RequireCapability(models.CapDebtsRead), h.enrollments.ListActiveForStudent)
	students.GET("/:id/debt", middleware.RequireCapability(models.CapDebtsRead), h.debts.Summary)
	students.GET("/:id/debt/history", middleware.RequireCapability(models.CapDebtsRead), h.debts.History)
	students.POST("/:id/debt/reconcile", middleware.RequireCapability(models.CapDebtsReconcile), h.debts.Reconcile)

	groups := staff.Group("/groups", middleware.RequireCapability(models.CapGroupsWrite))
	groups.GET("", h.groups.List)
	groups.POST("", middleware.Audit(d.audit, d.logger, models.AuditActionGroupWrite, "group", ""), h.groups.Create)
	groups.GET("/:id", h.groups.Get)
	groups.PUT("/:id", middleware.Audit(d.audit, d.logger, models.AuditActionGroupWrite, "group", "id"), h.groups.Update)
	groups.GET("/:id/pricing", h.groups.Pricing)

	enrollments := staff.Group("/enrollments")
	enrollments.GET("", middleware.RequireCapability(models.CapEnrollmentsWrite), h.enrollments.List)
	enrollments.POST("", middleware.RequireCapability(models.CapEnrollmentsWrite), h.enrollments.Enroll)
	enrollments.GET("/:id", middleware.RequireCapability(models.CapEnrollmentsWrite), h.enrollments.Get)
	enrollments.POST("/:id/withdraw", middleware.RequireCapability(models.CapEnrollmentsWrite), h.enrollments.Withdraw)
	enrollments.DELETE("/:id", middleware.RequireCapability(models.CapEnrollmentsWrite), h.enrollments.Withdraw)
	enrollments.GET("/:id/attendance", middleware.RequireCapability(models.CapAttendanceWrite), h.attendance.List)
	enrollments.POST("/:id/attendance", middleware.RequireCapability(models.CapAttendanceWrite), h.attendance.Mark)

	payments := staff.Group("/payments")
	payments.GET("", middleware.RequireCapability(models.CapPaymentsRead), h.payments.List)
	payments.POST("", middleware.RequireCapability(models.CapPaymentsWrite), h.payments.Record)

	staff.GET("/branches/:id/debtors",
		middleware.RequireCapability(models.CapDebtsRead),
		middleware.RequireBranchParam("id"),
		h.debts.Debtors,
	)
	staff.GET("/subscription/branches/:id",
		middleware.RequireCapability(models.CapReportsRead),
		middleware.RequireBranchParam("id"),
		h.subscription.Status,
	)

	finance := staff.Group("/finance")
	finance.GET("/report", middleware.RequireCapability(models.CapReportsRead), h.finance.Report)
	finance.POST("/expenses", middleware.RequireCapability(models.CapPaymentsWrite),
		middleware.Audit(d.audit, d.logger, models.AuditActionExpenseCreate, "expense", ""), h.finance.CreateExpense)
	finance.POST("/incomes", middleware.RequireCapability(models.CapPaymentsWrite),
		middleware.Audit(d.audit, d.logger, models.AuditActionIncomeCreate, "income", ""), h.finance.CreateIncome)

	return r
}

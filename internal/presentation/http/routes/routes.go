package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/bursar-api/internal/application/service"
	"github.com/sangkips/bursar-api/internal/config"
	domainRepo "github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/internal/presentation/http/handler"
	"github.com/sangkips/bursar-api/internal/presentation/http/middleware"
	"github.com/sangkips/bursar-api/pkg/utils"
	"go.uber.org/zap"
)

// Role groups used by the route table
var (
	readers   = []string{tenancy.RoleAdmin, tenancy.RoleBursar, tenancy.RoleAccountant, tenancy.RoleAuditor}
	billers   = []string{tenancy.RoleAdmin, tenancy.RoleBursar}
	cashiers  = []string{tenancy.RoleAdmin, tenancy.RoleBursar, tenancy.RoleAccountant}
	approvers = []string{tenancy.RoleAdmin, tenancy.RoleAccountant}
	consumers = []string{tenancy.RoleAdmin, tenancy.RoleSystem}
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Catalog    *handler.CatalogHandler
	Assignment *handler.AssignmentHandler
	Invoice    *handler.InvoiceHandler
	Payment    *handler.PaymentHandler
	Plan       *handler.PlanHandler
	Refund     *handler.RefundHandler
	Report     *handler.ReportHandler
	Webhook    *handler.WebhookHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	JWTManager      *utils.JWTManager
	Cfg             *config.Config
	Log             *zap.Logger
	IdempotencyRepo domainRepo.IdempotencyRepository
	RateLimiter     *middleware.TenantRateLimiter
	Now             func() time.Time
	// Ready reports whether storage is reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	handler.RegisterBindingValidation()

	router := gin.New()

	// Global middleware
	router.Use(middleware.LoggerMiddleware(deps.Log))
	router.Use(middleware.RecoveryMiddleware(deps.Log))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if deps.Ready != nil {
			if err := deps.Ready(c.Request.Context()); err != nil {
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}
		body := gin.H{
			"status":  status,
			"service": deps.Cfg.App.Name,
		}
		if deps.RateLimiter != nil {
			body["rate_limit"] = deps.RateLimiter.Stats()
		}
		c.JSON(code, body)
	})

	v1 := router.Group("/api/v1")
	{
		// Signature verified, no token
		v1.POST("/webhooks/midtrans", h.Webhook.Midtrans)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.JWTManager))
		if deps.RateLimiter != nil {
			protected.Use(deps.RateLimiter.Middleware())
		}
		protected.Use(middleware.Idempotency(middleware.IdempotencyConfig{
			Repo: deps.IdempotencyRepo,
			Log:  deps.Log,
			Now:  deps.Now,
		}))

		registerCatalogRoutes(protected, h)
		registerAssignmentRoutes(protected, h)
		registerInvoiceRoutes(protected, h)
		registerPaymentRoutes(protected, h)
		registerPlanRoutes(protected, h)
		registerRefundRoutes(protected, h)
		registerReportRoutes(protected, h)
	}

	return router
}

func registerCatalogRoutes(protected *gin.RouterGroup, h *Handlers) {
	read := middleware.RequireRole(readers...)
	write := middleware.RequireRole(billers...)

	categories := protected.Group("/fee-categories")
	{
		categories.GET("", read, h.Catalog.ListCategories)
		categories.POST("", write, h.Catalog.CreateCategory)
		categories.PUT("/:id", write, h.Catalog.UpdateCategory)
	}

	structures := protected.Group("/fee-structures")
	{
		structures.GET("", read, h.Catalog.ListStructures)
		structures.POST("", write, h.Catalog.CreateStructure)
		structures.GET("/:id", read, h.Catalog.GetStructure)
		structures.POST("/:id/transition", write, h.Catalog.TransitionStructure)
		structures.POST("/:id/items", write, h.Catalog.AddFeeItem)
	}
}

func registerAssignmentRoutes(protected *gin.RouterGroup, h *Handlers) {
	read := middleware.RequireRole(readers...)
	write := middleware.RequireRole(billers...)

	assignments := protected.Group("/assignments")
	{
		assignments.POST("", write, h.Assignment.Assign)
		assignments.POST("/:id/suspend", write, h.Assignment.Suspend)
		assignments.POST("/:id/reactivate", write, h.Assignment.Reactivate)
		assignments.POST("/:id/cancel", write, h.Assignment.Cancel)
	}

	students := protected.Group("/students/:id")
	{
		students.GET("/assignments", read, h.Assignment.ListByStudent)
		students.GET("/invoices", read, h.Invoice.ListByStudent)
		students.GET("/credit", read, h.Payment.Credit)
	}
}

func registerInvoiceRoutes(protected *gin.RouterGroup, h *Handlers) {
	read := middleware.RequireRole(readers...)
	write := middleware.RequireRole(billers...)

	invoices := protected.Group("/invoices")
	{
		invoices.GET("", read, h.Invoice.List)
		invoices.POST("/generate", write, h.Invoice.Generate)
		invoices.GET("/:id", read, h.Invoice.Get)
		invoices.GET("/:id/allocations", read, h.Invoice.Allocations)
		invoices.POST("/:id/issue", write, h.Invoice.Issue)
		invoices.POST("/:id/cancel", write, h.Invoice.Cancel)
		invoices.POST("/:id/reconcile", middleware.RequireRole(cashiers...), h.Invoice.Reconcile)
		invoices.POST("/:id/plan", write, h.Plan.Create)
	}
}

func registerPaymentRoutes(protected *gin.RouterGroup, h *Handlers) {
	read := middleware.RequireRole(readers...)
	write := middleware.RequireRole(cashiers...)

	methods := protected.Group("/payment-methods")
	{
		methods.GET("", read, h.Payment.ListMethods)
		methods.POST("", middleware.RequireRole(tenancy.RoleAdmin), h.Payment.CreateMethod)
	}

	payments := protected.Group("/payments")
	{
		payments.GET("", read, h.Payment.List)
		payments.POST("", write, h.Payment.Record)
		payments.GET("/:id", read, h.Payment.Get)
		payments.GET("/:id/allocations", read, h.Payment.Allocations)
		payments.GET("/:id/receipt", read, h.Payment.Receipt)
		payments.POST("/:id/initiate", write, h.Payment.Initiate)
		payments.POST("/:id/confirm", write, h.Payment.Confirm)
		payments.POST("/:id/cancel", write, h.Payment.Cancel)
		payments.POST("/:id/allocate", write, h.Payment.Allocate)
		payments.POST("/:id/auto-allocate", write, h.Payment.AutoAllocate)
	}
}

func registerPlanRoutes(protected *gin.RouterGroup, h *Handlers) {
	read := middleware.RequireRole(readers...)
	write := middleware.RequireRole(billers...)

	plans := protected.Group("/plans")
	{
		plans.GET("/:id", read, h.Plan.Get)
		plans.POST("/:id/default", write, h.Plan.MarkDefaulted)
		plans.POST("/:id/cancel", write, h.Plan.Cancel)
	}

	protected.POST("/installments/:id/pay", middleware.RequireRole(cashiers...), h.Plan.PayInstallment)
}

func registerRefundRoutes(protected *gin.RouterGroup, h *Handlers) {
	read := middleware.RequireRole(readers...)
	approve := middleware.RequireRole(approvers...)

	refunds := protected.Group("/refunds")
	{
		refunds.GET("", read, h.Refund.List)
		refunds.POST("", middleware.RequireRole(cashiers...), h.Refund.Create)
		refunds.GET("/:id", read, h.Refund.Get)
		refunds.POST("/:id/approve", approve, h.Refund.Approve)
		refunds.POST("/:id/process", approve, h.Refund.Process)
		refunds.POST("/:id/cancel", middleware.RequireRole(cashiers...), h.Refund.Cancel)
	}
}

func registerReportRoutes(protected *gin.RouterGroup, h *Handlers) {
	reports := protected.Group("/reports")
	{
		reports.GET("/summaries", middleware.RequireRole(readers...), h.Report.Summaries)
		reports.POST("/summaries/rebuild", middleware.RequireRole(approvers...), h.Report.Rebuild)
	}

	events := protected.Group("/events")
	{
		events.GET("", middleware.RequireRole(consumers...), h.Report.Events)
		events.POST("/ack", middleware.RequireRole(consumers...), h.Report.AckEvents)
	}
}

// NewHandlers builds every handler on top of the wired services
func NewHandlers(svc *service.Services, log *zap.Logger) *Handlers {
	loc := svc.Core.Billing.Location()
	return &Handlers{
		Catalog:    handler.NewCatalogHandler(svc.Catalog, loc),
		Assignment: handler.NewAssignmentHandler(svc.Assignments, loc),
		Invoice:    handler.NewInvoiceHandler(svc.Invoices, svc.Reconciliation, svc.Payments, loc),
		Payment:    handler.NewPaymentHandler(svc.Payments, loc),
		Plan:       handler.NewPlanHandler(svc.Installments, loc),
		Refund:     handler.NewRefundHandler(svc.Refunds),
		Report:     handler.NewReportHandler(svc.Summaries, svc.Events, loc),
		Webhook:    handler.NewWebhookHandler(svc.Gateway, svc.Payments, log),
	}
}

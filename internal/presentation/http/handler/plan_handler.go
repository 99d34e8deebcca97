package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/application/service"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/request"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/response"
)

// PlanHandler handles payment plan and installment requests
type PlanHandler struct {
	installmentService *service.InstallmentService
	loc                *time.Location
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(installmentService *service.InstallmentService, loc *time.Location) *PlanHandler {
	return &PlanHandler{installmentService: installmentService, loc: loc}
}

// Create handles scheduling an invoice into installments
func (h *PlanHandler) Create(c *gin.Context) {
	invoiceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req request.CreatePlanRequest
	if !bindJSON(c, &req) {
		return
	}

	firstDue, err := parseDate("first_due_date", req.FirstDueDate, h.loc)
	if err != nil {
		response.Error(c, err)
		return
	}

	plan, err := h.installmentService.CreatePlan(c.Request.Context(), invoiceID, &service.CreatePlanInput{
		InstallmentCount: req.InstallmentCount,
		FirstDueDate:     firstDue,
		Frequency:        enum.PlanFrequency(req.Frequency),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Payment plan created successfully", plan)
}

// Get handles retrieving a plan with its installments
func (h *PlanHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	plan, err := h.installmentService.GetPlan(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment plan retrieved successfully", plan)
}

// PayInstallment handles paying an installment from a completed payment
func (h *PlanHandler) PayInstallment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req request.PayInstallmentRequest
	if !bindJSON(c, &req) {
		return
	}

	plan, err := h.installmentService.PayInstallment(c.Request.Context(), id, &service.PayInstallmentInput{
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Installment paid successfully", plan)
}

// MarkDefaulted handles flagging a plan as defaulted
func (h *PlanHandler) MarkDefaulted(c *gin.Context) {
	h.transition(c, h.installmentService.MarkDefaulted, "Payment plan marked as defaulted")
}

// Cancel handles cancelling a plan
func (h *PlanHandler) Cancel(c *gin.Context) {
	h.transition(c, h.installmentService.CancelPlan, "Payment plan cancelled successfully")
}

func (h *PlanHandler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (*entity.PaymentPlan, error), message string) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	plan, err := fn(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, message, plan)
}

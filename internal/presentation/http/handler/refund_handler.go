package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/bursar-api/internal/application/service"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/request"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/response"
)

// RefundHandler handles refund requests
type RefundHandler struct {
	refundService *service.RefundService
}

// NewRefundHandler creates a new refund handler
func NewRefundHandler(refundService *service.RefundService) *RefundHandler {
	return &RefundHandler{refundService: refundService}
}

// Create handles requesting a refund
func (h *RefundHandler) Create(c *gin.Context) {
	var req request.CreateRefundRequest
	if !bindJSON(c, &req) {
		return
	}

	refund, err := h.refundService.Create(c.Request.Context(), &service.CreateRefundInput{
		StudentID:         req.StudentID,
		Amount:            req.Amount,
		Reason:            req.Reason,
		Type:              enum.RefundType(req.Type),
		Method:            enum.RefundMethod(req.Method),
		OriginalPaymentID: req.OriginalPaymentID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Refund requested successfully", refund)
}

// List handles listing refunds
func (h *RefundHandler) List(c *gin.Context) {
	params := &repository.RefundFilterParams{Pagination: pageParams(c)}
	if status := c.Query("status"); status != "" {
		s := enum.RefundStatus(status)
		params.Status = &s
	}

	var err error
	if params.StudentID, err = queryID(c, "student_id"); err != nil {
		response.Error(c, err)
		return
	}
	if params.PaymentID, err = queryID(c, "payment_id"); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.refundService.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Refunds retrieved successfully", result)
}

// Get handles retrieving a refund
func (h *RefundHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	refund, err := h.refundService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Refund retrieved successfully", refund)
}

// Approve handles approving a pending refund
func (h *RefundHandler) Approve(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	refund, err := h.refundService.Approve(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Refund approved successfully", refund)
}

// Process handles paying out an approved refund
func (h *RefundHandler) Process(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	refund, err := h.refundService.Process(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Refund processed successfully", refund)
}

// Cancel handles cancelling an open refund
func (h *RefundHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	refund, err := h.refundService.Cancel(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Refund cancelled successfully", refund)
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/bursar-api/internal/application/service"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/request"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/response"
)

// PaymentHandler handles payment, allocation and credit requests
type PaymentHandler struct {
	paymentService *service.PaymentService
	loc            *time.Location
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *service.PaymentService, loc *time.Location) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, loc: loc}
}

// CreateMethod handles adding a payment method
func (h *PaymentHandler) CreateMethod(c *gin.Context) {
	var req request.PaymentMethodRequest
	if !bindJSON(c, &req) {
		return
	}

	method, err := h.paymentService.CreateMethod(c.Request.Context(), &service.MethodInput{
		Code:    req.Code,
		Name:    req.Name,
		Channel: enum.PaymentChannel(req.Channel),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Payment method created successfully", method)
}

// ListMethods handles listing payment methods
func (h *PaymentHandler) ListMethods(c *gin.Context) {
	methods, err := h.paymentService.ListMethods(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment methods retrieved successfully", methods)
}

// Record handles recording a received payment
func (h *PaymentHandler) Record(c *gin.Context) {
	var req request.RecordPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	date, err := optionalDate("date", req.Date, h.loc)
	if err != nil {
		response.Error(c, err)
		return
	}

	input := &service.RecordPaymentInput{
		StudentID:    req.StudentID,
		Amount:       req.Amount,
		MethodID:     req.MethodID,
		Reference:    req.Reference,
		Currency:     req.Currency,
		AutoAllocate: req.AutoAllocate,
	}
	if date != nil {
		input.Date = *date
	}

	payment, err := h.paymentService.Record(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Payment recorded successfully", payment)
}

// List handles listing payments
func (h *PaymentHandler) List(c *gin.Context) {
	params := &repository.PaymentFilterParams{
		Pagination: pageParams(c),
		Search:     c.Query("search"),
	}
	if status := c.Query("status"); status != "" {
		s := enum.PaymentStatus(status)
		params.Status = &s
	}

	var err error
	if params.StudentID, err = queryID(c, "student_id"); err != nil {
		response.Error(c, err)
		return
	}
	if params.StartDate, err = queryDate(c, "start_date", h.loc); err != nil {
		response.Error(c, err)
		return
	}
	if params.EndDate, err = queryDate(c, "end_date", h.loc); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.paymentService.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Payments retrieved successfully", result)
}

// Get handles retrieving a payment
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment retrieved successfully", payment)
}

// Initiate handles starting an online gateway payment
func (h *PaymentHandler) Initiate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.paymentService.Initiate(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment initiated successfully", result)
}

// Confirm handles a manual confirmation of a payment outcome
func (h *PaymentHandler) Confirm(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req request.ConfirmPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.paymentService.Confirm(c.Request.Context(), id, &service.ConfirmInput{
		Result:        enum.GatewayResult(req.Result),
		ExternalTxnID: req.ExternalTxnID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment confirmed successfully", payment)
}

// Cancel handles voiding a pending payment
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.Cancel(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment cancelled successfully", payment)
}

// Allocate handles applying a payment to one or more invoices
func (h *PaymentHandler) Allocate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req request.AllocateRequest
	if !bindJSON(c, &req) {
		return
	}

	lines := make([]service.AllocationLine, 0, len(req.Allocations))
	for _, l := range req.Allocations {
		lines = append(lines, service.AllocationLine{InvoiceID: l.InvoiceID, Amount: l.Amount})
	}

	allocations, err := h.paymentService.AllocateBatch(c.Request.Context(), id, lines)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Payment allocated successfully", allocations)
}

// AutoAllocate handles spreading a payment over the student's open invoices
func (h *PaymentHandler) AutoAllocate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.paymentService.AutoAllocate(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment auto-allocated successfully", result)
}

// Allocations handles listing a payment's allocations
func (h *PaymentHandler) Allocations(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	allocations, err := h.paymentService.ListAllocations(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Allocations retrieved successfully", allocations)
}

// Credit handles reading a student's unallocated credit
func (h *PaymentHandler) Credit(c *gin.Context) {
	studentID, ok := paramID(c, "id")
	if !ok {
		return
	}

	credit, err := h.paymentService.CreditBalance(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Credit balance retrieved successfully", credit)
}

// Receipt handles composing a payment receipt
func (h *PaymentHandler) Receipt(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	receipt, err := h.paymentService.Receipt(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment receipt retrieved successfully", receipt)
}

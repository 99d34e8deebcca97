package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/bursar-api/internal/application/service"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/request"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/response"
)

// InvoiceHandler handles invoice requests
type InvoiceHandler struct {
	invoiceService *service.InvoiceService
	reconService   *service.ReconciliationService
	paymentService *service.PaymentService
	loc            *time.Location
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoiceService *service.InvoiceService, reconService *service.ReconciliationService, paymentService *service.PaymentService, loc *time.Location) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		reconService:   reconService,
		paymentService: paymentService,
		loc:            loc,
	}
}

// Generate handles an invoice generation run
func (h *InvoiceHandler) Generate(c *gin.Context) {
	var req request.GenerateInvoicesRequest
	if !bindJSON(c, &req) {
		return
	}

	dates := make(map[string]time.Time, 4)
	for field, raw := range map[string]string{
		"period_start": req.PeriodStart,
		"period_end":   req.PeriodEnd,
		"invoice_date": req.InvoiceDate,
		"due_date":     req.DueDate,
	} {
		t, err := parseDate(field, raw, h.loc)
		if err != nil {
			response.Error(c, err)
			return
		}
		dates[field] = t
	}

	result, err := h.invoiceService.Generate(c.Request.Context(), &service.GenerateInput{
		Period: service.BillingPeriod{
			Key:   req.PeriodKey,
			Type:  enum.Frequency(req.PeriodType),
			Start: dates["period_start"],
			End:   dates["period_end"],
		},
		InvoiceDate:   dates["invoice_date"],
		DueDate:       dates["due_date"],
		StudentIDs:    req.StudentIDs,
		AssignmentIDs: req.AssignmentIDs,
		Draft:         req.Draft,
		SkipExisting:  req.SkipExisting,
		Notes:         req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Invoices generated successfully", result)
}

// List handles listing invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	params := &repository.InvoiceFilterParams{
		Pagination: pageParams(c),
		Search:     c.Query("search"),
		PeriodKey:  c.Query("period_key"),
	}
	if status := c.Query("status"); status != "" {
		s := enum.InvoiceStatus(status)
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

	result, err := h.invoiceService.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Invoices retrieved successfully", result)
}

// ListByStudent handles listing one student's invoices
func (h *InvoiceHandler) ListByStudent(c *gin.Context) {
	studentID, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.invoiceService.ListByStudent(c.Request.Context(), studentID, pageParams(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Invoices retrieved successfully", result)
}

// Get handles retrieving an invoice with its lines
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Invoice retrieved successfully", invoice)
}

// Issue handles issuing a draft invoice
func (h *InvoiceHandler) Issue(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Issue(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Invoice issued successfully", invoice)
}

// Cancel handles cancelling an invoice
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Cancel(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Invoice cancelled successfully", invoice)
}

// Reconcile handles recomputing an invoice's balance and status
func (h *InvoiceHandler) Reconcile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.reconService.ReconcileInvoice(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Invoice reconciled successfully", invoice)
}

// Allocations handles listing the payments allocated to an invoice
func (h *InvoiceHandler) Allocations(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	allocations, err := h.paymentService.ListInvoiceAllocations(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Allocations retrieved successfully", allocations)
}

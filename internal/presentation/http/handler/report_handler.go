package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/bursar-api/internal/application/service"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/request"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/response"
	"github.com/sangkips/bursar-api/pkg/apperror"
)

// ReportHandler serves the reporting rollups and the outbox event feed
type ReportHandler struct {
	summaryService *service.SummaryService
	eventService   *service.EventService
	loc            *time.Location
}

// NewReportHandler creates a new report handler
func NewReportHandler(summaryService *service.SummaryService, eventService *service.EventService, loc *time.Location) *ReportHandler {
	return &ReportHandler{summaryService: summaryService, eventService: eventService, loc: loc}
}

// Summaries handles reading financial summaries for a range
func (h *ReportHandler) Summaries(c *gin.Context) {
	r, err := h.summaryRange(c.DefaultQuery("period_type", string(enum.SummaryDaily)), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}

	summaries, err := h.summaryService.List(c.Request.Context(), r)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Financial summaries retrieved successfully", summaries)
}

// Rebuild handles recomputing financial summaries for a range
func (h *ReportHandler) Rebuild(c *gin.Context) {
	var req request.RebuildSummariesRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := h.summaryRange(req.PeriodType, req.From, req.To)
	if err != nil {
		response.Error(c, err)
		return
	}

	summaries, err := h.summaryService.Rebuild(c.Request.Context(), r)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Financial summaries rebuilt successfully", summaries)
}

func (h *ReportHandler) summaryRange(periodType, from, to string) (*service.SummaryRange, error) {
	if from == "" || to == "" {
		return nil, apperror.NewFieldError("from", "from and to are required")
	}
	start, err := parseDate("from", from, h.loc)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("to", to, h.loc)
	if err != nil {
		return nil, err
	}
	return &service.SummaryRange{PeriodType: enum.SummaryPeriod(periodType), From: start, To: end}, nil
}

// Events handles reading the tenant's undelivered domain events, oldest first
func (h *ReportHandler) Events(c *gin.Context) {
	result, err := h.eventService.ListPending(c.Request.Context(), cursorParams(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithCursor(c, 200, "Events retrieved successfully", result)
}

// AckEvents handles marking events as delivered
func (h *ReportHandler) AckEvents(c *gin.Context) {
	var req request.AckEventsRequest
	if !bindJSON(c, &req) {
		return
	}

	n, err := h.eventService.Ack(c.Request.Context(), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Events acknowledged", gin.H{"acknowledged": n})
}

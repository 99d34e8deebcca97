package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/application/service"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/request"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/response"
)

// AssignmentHandler handles student fee assignment requests
type AssignmentHandler struct {
	assignmentService *service.AssignmentService
	loc               *time.Location
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(assignmentService *service.AssignmentService, loc *time.Location) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService, loc: loc}
}

// Assign handles putting a student on a fee structure
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req request.AssignRequest
	if !bindJSON(c, &req) {
		return
	}

	from, err := optionalDate("effective_from", req.EffectiveFrom, h.loc)
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := optionalDate("effective_to", req.EffectiveTo, h.loc)
	if err != nil {
		response.Error(c, err)
		return
	}

	input := &service.AssignInput{
		StudentID:       req.StudentID,
		StructureID:     req.StructureID,
		EffectiveTo:     to,
		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  req.DiscountAmount,
	}
	if from != nil {
		input.EffectiveFrom = *from
	}

	assignment, err := h.assignmentService.Assign(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Student assigned successfully", assignment)
}

// Suspend handles suspending an assignment
func (h *AssignmentHandler) Suspend(c *gin.Context) {
	h.transition(c, h.assignmentService.Suspend, "Assignment suspended successfully")
}

// Reactivate handles reactivating a suspended assignment
func (h *AssignmentHandler) Reactivate(c *gin.Context) {
	h.transition(c, h.assignmentService.Reactivate, "Assignment reactivated successfully")
}

// Cancel handles cancelling an assignment
func (h *AssignmentHandler) Cancel(c *gin.Context) {
	h.transition(c, h.assignmentService.Cancel, "Assignment cancelled successfully")
}

func (h *AssignmentHandler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (*entity.StudentFeeAssignment, error), message string) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	assignment, err := fn(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, message, assignment)
}

// ListByStudent handles listing a student's assignments
func (h *AssignmentHandler) ListByStudent(c *gin.Context) {
	studentID, ok := paramID(c, "id")
	if !ok {
		return
	}

	assignments, err := h.assignmentService.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Assignments retrieved successfully", assignments)
}

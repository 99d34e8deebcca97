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

// CatalogHandler handles fee category and fee structure requests
type CatalogHandler struct {
	catalogService *service.CatalogService
	loc            *time.Location
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *service.CatalogService, loc *time.Location) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, loc: loc}
}

// CreateCategory handles fee category creation
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req request.FeeCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.catalogService.CreateCategory(c.Request.Context(), categoryInput(&req))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Fee category created successfully", category)
}

// UpdateCategory handles fee category updates
func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req request.FeeCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.catalogService.UpdateCategory(c.Request.Context(), id, categoryInput(&req))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Fee category updated successfully", category)
}

// ListCategories handles listing fee categories
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Fee categories retrieved successfully", categories)
}

func categoryInput(req *request.FeeCategoryRequest) *service.CategoryInput {
	return &service.CategoryInput{
		Name:       req.Name,
		Code:       req.Code,
		Mandatory:  req.Mandatory,
		Refundable: req.Refundable,
	}
}

// CreateStructure handles fee structure creation
func (h *CatalogHandler) CreateStructure(c *gin.Context) {
	var req request.CreateFeeStructureRequest
	if !bindJSON(c, &req) {
		return
	}

	from, err := parseDate("effective_from", req.EffectiveFrom, h.loc)
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := optionalDate("effective_to", req.EffectiveTo, h.loc)
	if err != nil {
		response.Error(c, err)
		return
	}

	structure, err := h.catalogService.CreateStructure(c.Request.Context(), &service.StructureInput{
		Name:          req.Name,
		AcademicYear:  req.AcademicYear,
		GradeLevels:   req.GradeLevels,
		EffectiveFrom: from,
		EffectiveTo:   to,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Fee structure created successfully", structure)
}

// GetStructure handles retrieving a fee structure with its items
func (h *CatalogHandler) GetStructure(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	structure, err := h.catalogService.GetStructure(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Fee structure retrieved successfully", structure)
}

// ListStructures handles listing fee structures
func (h *CatalogHandler) ListStructures(c *gin.Context) {
	params := &repository.FeeStructureFilterParams{
		Pagination:   pageParams(c),
		AcademicYear: c.Query("academic_year"),
	}
	if status := c.Query("status"); status != "" {
		s := enum.FeeStructureStatus(status)
		params.Status = &s
	}

	result, err := h.catalogService.ListStructures(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Fee structures retrieved successfully", result)
}

// TransitionStructure handles fee structure status changes
func (h *CatalogHandler) TransitionStructure(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req request.TransitionRequest
	if !bindJSON(c, &req) {
		return
	}

	structure, err := h.catalogService.TransitionStructure(c.Request.Context(), id, enum.FeeStructureStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Fee structure status updated successfully", structure)
}

// AddFeeItem handles adding a priced item to a fee structure
func (h *CatalogHandler) AddFeeItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req request.FeeItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.MaxInstallments == 0 {
		req.MaxInstallments = 1
	}

	item, err := h.catalogService.AddFeeItem(c.Request.Context(), id, &service.FeeItemInput{
		CategoryID:       req.CategoryID,
		Name:             req.Name,
		BaseAmount:       req.BaseAmount,
		Currency:         req.Currency,
		Frequency:        enum.Frequency(req.Frequency),
		MaxInstallments:  req.MaxInstallments,
		LateFeeAmount:    req.LateFeeAmount,
		GraceDays:        req.GraceDays,
		DailyPenaltyRate: req.DailyPenaltyRate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Fee item added successfully", item)
}

package handler

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	ut "github.com/go-playground/universal-translator"
	"github.com/sangkips/bursar-api/internal/presentation/http/dto/response"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/sangkips/bursar-api/pkg/pagination"
	"github.com/sangkips/bursar-api/pkg/validation"
)

const dateLayout = "2006-01-02"

var (
	bindingOnce  sync.Once
	bindingTrans ut.Translator
)

// RegisterBindingValidation installs the decimal rules and English messages on
// gin's request validator. Safe to call more than once.
func RegisterBindingValidation() {
	bindingOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			bindingTrans = validation.Register(v)
		}
	})
}

// bindJSON binds the request body and writes a validation response on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, validation.FromError(err, bindingTrans))
		return false
	}
	return true
}

// paramID parses a UUID path parameter and writes a 400 on failure
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional UUID query parameter
func queryID(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.NewFieldError(name, "must be a valid UUID")
	}
	return &id, nil
}

// parseDate parses a YYYY-MM-DD value in loc
func parseDate(field, raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, apperror.NewFieldError(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

// optionalDate parses raw when set
func optionalDate(field, raw string, loc *time.Location) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(field, raw, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// queryDate parses an optional date query parameter
func queryDate(c *gin.Context, name string, loc *time.Location) (*time.Time, error) {
	return optionalDate(name, c.Query(name), loc)
}

func pageParams(c *gin.Context) *pagination.PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "15"))
	return &pagination.PaginationParams{Page: page, PerPage: perPage}
}

func cursorParams(c *gin.Context) *pagination.CursorParams {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	return &pagination.CursorParams{Cursor: c.Query("cursor"), Limit: limit}
}

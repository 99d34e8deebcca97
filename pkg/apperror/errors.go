package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an AppError independently of its message so callers can
// match on it with errors.Is.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindCrossTenantAccess    Kind = "cross_tenant_access"
	KindDuplicateInvoice     Kind = "duplicate_invoice"
	KindInvalidAssignment    Kind = "invalid_assignment"
	KindPlanAlreadyExists    Kind = "plan_already_exists"
	KindInvalidSchedule      Kind = "invalid_schedule"
	KindRefundExceedsPayment Kind = "refund_exceeds_payment"
	KindAllocationExceeds    Kind = "allocation_exceeds_balance"
	KindPaymentNotCompleted  Kind = "payment_not_completed"
	KindInvalidTransition    Kind = "invalid_transition"
	KindConcurrency          Kind = "concurrency"
	KindExternal             Kind = "external"
	KindInternal             Kind = "internal"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int          `json:"code"`
	Kind    Kind         `json:"kind,omitempty"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Is reports whether target is an AppError of the same kind. Sentinels without
// a kind only match themselves.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return e == t
	}
	return e.Kind == t.Kind
}

// Common errors, usable as errors.Is targets.
var (
	ErrNotFound             = &AppError{Code: http.StatusNotFound, Kind: KindNotFound, Message: "Resource not found"}
	ErrUnauthorized         = &AppError{Code: http.StatusUnauthorized, Kind: KindUnauthorized, Message: "Unauthorized"}
	ErrForbidden            = &AppError{Code: http.StatusForbidden, Kind: KindForbidden, Message: "Forbidden"}
	ErrBadRequest           = &AppError{Code: http.StatusBadRequest, Kind: KindValidation, Message: "Bad request"}
	ErrInternalServer       = &AppError{Code: http.StatusInternalServerError, Kind: KindInternal, Message: "Internal server error"}
	ErrConflict             = &AppError{Code: http.StatusConflict, Kind: KindConflict, Message: "Resource already exists"}
	ErrUnprocessable        = &AppError{Code: http.StatusUnprocessableEntity, Kind: KindValidation, Message: "Unprocessable entity"}
	ErrCrossTenantAccess    = &AppError{Code: http.StatusForbidden, Kind: KindCrossTenantAccess, Message: "Resource belongs to another tenant"}
	ErrDuplicateInvoice     = &AppError{Code: http.StatusConflict, Kind: KindDuplicateInvoice, Message: "Invoice already exists for this period"}
	ErrInvalidAssignment    = &AppError{Code: http.StatusUnprocessableEntity, Kind: KindInvalidAssignment, Message: "Fee assignment is not active"}
	ErrPlanAlreadyExists    = &AppError{Code: http.StatusConflict, Kind: KindPlanAlreadyExists, Message: "Payment plan already exists for this invoice"}
	ErrInvalidSchedule      = &AppError{Code: http.StatusUnprocessableEntity, Kind: KindInvalidSchedule, Message: "Invalid installment schedule"}
	ErrRefundExceedsPayment = &AppError{Code: http.StatusUnprocessableEntity, Kind: KindRefundExceedsPayment, Message: "Refund exceeds refundable amount"}
	ErrAllocationExceeds    = &AppError{Code: http.StatusConflict, Kind: KindAllocationExceeds, Message: "Allocation exceeds available balance"}
	ErrPaymentNotCompleted  = &AppError{Code: http.StatusConflict, Kind: KindPaymentNotCompleted, Message: "Payment is not completed"}
	ErrInvalidTransition    = &AppError{Code: http.StatusUnprocessableEntity, Kind: KindInvalidTransition, Message: "Invalid status transition"}
	ErrConcurrency          = &AppError{Code: http.StatusConflict, Kind: KindConcurrency, Message: "Resource is busy, please retry"}
	ErrExternal             = &AppError{Code: http.StatusBadGateway, Kind: KindExternal, Message: "External service failure"}
)

// NewAppError creates a new application error
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// New creates an error of the given sentinel's kind and status with a custom message.
func New(base *AppError, message string) *AppError {
	return &AppError{
		Code:    base.Code,
		Kind:    base.Kind,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(fieldErrors []FieldError) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Kind:    KindValidation,
		Message: "Validation failed",
		Errors:  fieldErrors,
	}
}

// NewFieldError creates a validation error for a single field.
func NewFieldError(field, message string) *AppError {
	return NewValidationError([]FieldError{{Field: field, Message: message}})
}

// NewNotFoundError creates a not found error with a custom message
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Kind:    KindNotFound,
		Message: resource + " not found",
	}
}

// NewConflictError creates a conflict error with a custom message
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Kind:    KindConflict,
		Message: message,
	}
}

// NewBadRequestError creates a bad request error with a custom message
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Kind:    KindValidation,
		Message: message,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// GetAppError converts an error to AppError if possible
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:    http.StatusInternalServerError,
		Kind:    KindInternal,
		Message: err.Error(),
	}
}

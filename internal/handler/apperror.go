package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Insufficient role for this operation"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount          = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidThreshold       = &AppError{http.StatusBadRequest, "INVALID_THRESHOLD", "Low balance threshold must not be negative"}
	ErrAccountNotFound        = &AppError{http.StatusNotFound, "RETAINER_NOT_FOUND", "Retainer account not found"}
	ErrInvoiceNotFound        = &AppError{http.StatusNotFound, "INVOICE_NOT_FOUND", "Invoice not found"}
	ErrAccountExists          = &AppError{http.StatusConflict, "RETAINER_ALREADY_EXISTS", "Client already has a retainer account"}
	ErrInsufficientBalance    = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Insufficient retainer balance"}
	ErrInvoiceOverpayment     = &AppError{http.StatusUnprocessableEntity, "INVOICE_OVERPAYMENT", "Amount exceeds the invoice outstanding balance"}
	ErrInvoiceClientMismatch  = &AppError{http.StatusUnprocessableEntity, "INVOICE_CLIENT_MISMATCH", "Invoice belongs to a different client"}
	ErrWouldOverdraw          = &AppError{http.StatusUnprocessableEntity, "WOULD_OVERDRAW", "Adjustment would make the balance negative"}
	ErrAccountInactive        = &AppError{http.StatusUnprocessableEntity, "RETAINER_INACTIVE", "Retainer account is inactive"}
	ErrConcurrentModification = &AppError{http.StatusConflict, "CONCURRENT_MODIFICATION", "Retainer was modified concurrently, please retry"}
	ErrMissingIdempotencyKey  = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict    = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyInFlight    = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_FLIGHT", "A request with this Idempotency-Key is still being processed"}
)

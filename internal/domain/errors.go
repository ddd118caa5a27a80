package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidAmount          = errors.New("amount must be non-zero and positive where required")
	ErrInsufficientBalance    = errors.New("insufficient retainer balance")
	ErrInvoiceOverpayment     = errors.New("amount exceeds invoice outstanding balance")
	ErrWouldOverdraw          = errors.New("adjustment would overdraw retainer")
	ErrAccountInactive        = errors.New("retainer account inactive")
	ErrAccountNotFound        = errors.New("retainer account not found")
	ErrConcurrentModification = errors.New("retainer account modified concurrently")
	ErrAccountExists          = errors.New("retainer account already exists for this client")
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrInvoiceClientMismatch  = errors.New("invoice belongs to a different client")
	ErrInvalidThreshold       = errors.New("low balance threshold must not be negative")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrVersionConflict        = errors.New("optimistic lock conflict")
)

package repository

import (
	"errors"

	"github.com/lib/pq"
)

type scanner interface {
	Scan(dest ...any) error
}

const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == pgUniqueViolation
}

func isCheckViolation(err error) bool {
	return pqCode(err) == pgCheckViolation
}

// isRetryable covers the conflicts Postgres reports when two transactions
// race on the same rows.
func isRetryable(err error) bool {
	switch pqCode(err) {
	case pgSerializationFailure, pgDeadlockDetected:
		return true
	default:
		return false
	}
}

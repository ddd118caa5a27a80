package domain

import (
	"time"

	"github.com/google/uuid"
)

// Invoice is the slice of the invoice aggregate the ledger reads and writes.
type Invoice struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	TotalCents      int64
	PaidAmountCents int64
	UpdatedAt       time.Time
}

func (i *Invoice) OutstandingCents() int64 {
	return i.TotalCents - i.PaidAmountCents
}

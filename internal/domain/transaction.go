package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeUsage      TransactionType = "usage"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeUsage, TransactionTypeRefund, TransactionTypeAdjustment:
		return true
	default:
		return false
	}
}

// Sign is the display glyph for the type. Adjustments can go either way.
func (t TransactionType) Sign() string {
	switch t {
	case TransactionTypeDeposit:
		return "+"
	case TransactionTypeUsage, TransactionTypeRefund:
		return "-"
	default:
		return "±"
	}
}

// Transaction is an immutable ledger entry. AmountCents is the signed delta
// applied to the account balance.
type Transaction struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	Sequence          int64
	Type              TransactionType
	AmountCents       int64
	BalanceAfterCents int64
	Description       *string
	InvoiceID         *uuid.UUID
	CreatedAt         time.Time
}

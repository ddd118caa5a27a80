package domain

import (
	"time"

	"github.com/google/uuid"
)

type RetainerAccount struct {
	ID                       uuid.UUID
	ClientID                 uuid.UUID
	BalanceCents             int64
	TotalDepositedCents      int64
	TotalUsedCents           int64
	LowBalanceThresholdCents *int64
	IsActive                 bool
	Version                  int64
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// IsLowBalance reports whether the account has a threshold configured and
// its balance is at or below it.
func IsLowBalance(a *RetainerAccount) bool {
	if a == nil || a.LowBalanceThresholdCents == nil {
		return false
	}
	return a.BalanceCents <= *a.LowBalanceThresholdCents
}

func (a *RetainerAccount) IsLowBalance() bool {
	return IsLowBalance(a)
}

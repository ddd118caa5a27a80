package retainer

import (
	"fmt"
	"math"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
)

func validatePositive(amountCents int64) error {
	if amountCents <= 0 {
		return fmt.Errorf("validatePositive: %w", domain.ErrInvalidAmount)
	}
	return nil
}

// addOverflows reports whether total+amount exceeds int64 for non-negative operands.
func addOverflows(total, amount int64) bool {
	return amount > math.MaxInt64-total
}

func validateDeposit(acct *domain.RetainerAccount, amountCents int64) error {
	if err := validatePositive(amountCents); err != nil {
		return fmt.Errorf("validateDeposit: %w", err)
	}
	if !acct.IsActive {
		return fmt.Errorf("validateDeposit: %w", domain.ErrAccountInactive)
	}
	if addOverflows(acct.BalanceCents, amountCents) || addOverflows(acct.TotalDepositedCents, amountCents) {
		return fmt.Errorf("validateDeposit: total out of range: %w", domain.ErrInvalidAmount)
	}
	return nil
}

func validateUsage(acct *domain.RetainerAccount, inv *domain.Invoice, amountCents int64) error {
	if err := validatePositive(amountCents); err != nil {
		return fmt.Errorf("validateUsage: %w", err)
	}
	if !acct.IsActive {
		return fmt.Errorf("validateUsage: %w", domain.ErrAccountInactive)
	}
	if inv.ClientID != acct.ClientID {
		return fmt.Errorf("validateUsage: %w", domain.ErrInvoiceClientMismatch)
	}
	if amountCents > acct.BalanceCents {
		return fmt.Errorf("validateUsage: %w", domain.ErrInsufficientBalance)
	}
	if amountCents > inv.OutstandingCents() {
		return fmt.Errorf("validateUsage: %w", domain.ErrInvoiceOverpayment)
	}
	if addOverflows(acct.TotalUsedCents, amountCents) {
		return fmt.Errorf("validateUsage: total out of range: %w", domain.ErrInvalidAmount)
	}
	return nil
}

func validateRefund(acct *domain.RetainerAccount, amountCents int64) error {
	if err := validatePositive(amountCents); err != nil {
		return fmt.Errorf("validateRefund: %w", err)
	}
	if !acct.IsActive {
		return fmt.Errorf("validateRefund: %w", domain.ErrAccountInactive)
	}
	if amountCents > acct.BalanceCents {
		return fmt.Errorf("validateRefund: %w", domain.ErrInsufficientBalance)
	}
	if addOverflows(acct.TotalUsedCents, amountCents) {
		return fmt.Errorf("validateRefund: total out of range: %w", domain.ErrInvalidAmount)
	}
	return nil
}

// Adjustments skip the active check: they correct history rather than
// transact new business.
func validateAdjustment(acct *domain.RetainerAccount, deltaCents int64) error {
	if deltaCents == 0 {
		return fmt.Errorf("validateAdjustment: %w", domain.ErrInvalidAmount)
	}
	if deltaCents > 0 && addOverflows(acct.BalanceCents, deltaCents) {
		return fmt.Errorf("validateAdjustment: balance out of range: %w", domain.ErrInvalidAmount)
	}
	if acct.BalanceCents+deltaCents < 0 {
		return fmt.Errorf("validateAdjustment: %w", domain.ErrWouldOverdraw)
	}
	return nil
}

func validateThreshold(thresholdCents *int64) error {
	if thresholdCents != nil && *thresholdCents < 0 {
		return fmt.Errorf("validateThreshold: %w", domain.ErrInvalidThreshold)
	}
	return nil
}

package retainer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
)

// RecordAdjustment applies a signed administrative correction. Lifetime
// deposit and usage totals are left alone, and inactive accounts may be
// adjusted.
func (s *Service) RecordAdjustment(ctx context.Context, accountID uuid.UUID, deltaCents int64, description *string) (*Result, error) {
	if deltaCents == 0 {
		return nil, fmt.Errorf("RecordAdjustment: %w", domain.ErrInvalidAmount)
	}

	res, err := s.mutate(ctx, accountID, func(ctx context.Context, tx *sql.Tx, acct *domain.RetainerAccount, now time.Time) (*domain.Transaction, error) {
		if err := validateAdjustment(acct, deltaCents); err != nil {
			return nil, err
		}
		acct.BalanceCents += deltaCents
		return s.appendEntry(ctx, tx, acct, domain.TransactionTypeAdjustment, deltaCents, description, nil, now)
	})
	if err != nil {
		return nil, fmt.Errorf("RecordAdjustment: %w", err)
	}

	logging.FromContext(ctx).Info("retainer adjustment recorded",
		"account_id", accountID,
		"transaction_id", res.Transaction.ID,
		"delta_cents", deltaCents,
		"balance_after_cents", res.Account.BalanceCents,
	)

	return res, nil
}

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

// RecordRefund returns retainer funds to the client. Refunds count towards
// TotalUsedCents alongside invoice usage.
func (s *Service) RecordRefund(ctx context.Context, accountID uuid.UUID, amountCents int64, description *string) (*Result, error) {
	if err := validatePositive(amountCents); err != nil {
		return nil, fmt.Errorf("RecordRefund: %w", err)
	}

	res, err := s.mutate(ctx, accountID, func(ctx context.Context, tx *sql.Tx, acct *domain.RetainerAccount, now time.Time) (*domain.Transaction, error) {
		if err := validateRefund(acct, amountCents); err != nil {
			return nil, err
		}
		acct.BalanceCents -= amountCents
		acct.TotalUsedCents += amountCents
		return s.appendEntry(ctx, tx, acct, domain.TransactionTypeRefund, -amountCents, description, nil, now)
	})
	if err != nil {
		return nil, fmt.Errorf("RecordRefund: %w", err)
	}

	logging.FromContext(ctx).Info("retainer refund recorded",
		"account_id", accountID,
		"transaction_id", res.Transaction.ID,
		"amount_cents", amountCents,
		"balance_after_cents", res.Account.BalanceCents,
	)

	return res, nil
}

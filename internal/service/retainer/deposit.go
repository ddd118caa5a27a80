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

func (s *Service) RecordDeposit(ctx context.Context, accountID uuid.UUID, amountCents int64, description *string) (*Result, error) {
	if err := validatePositive(amountCents); err != nil {
		return nil, fmt.Errorf("RecordDeposit: %w", err)
	}

	res, err := s.mutate(ctx, accountID, func(ctx context.Context, tx *sql.Tx, acct *domain.RetainerAccount, now time.Time) (*domain.Transaction, error) {
		if err := validateDeposit(acct, amountCents); err != nil {
			return nil, err
		}
		acct.BalanceCents += amountCents
		acct.TotalDepositedCents += amountCents
		return s.appendEntry(ctx, tx, acct, domain.TransactionTypeDeposit, amountCents, description, nil, now)
	})
	if err != nil {
		return nil, fmt.Errorf("RecordDeposit: %w", err)
	}

	logging.FromContext(ctx).Info("retainer deposit recorded",
		"account_id", accountID,
		"transaction_id", res.Transaction.ID,
		"amount_cents", amountCents,
		"balance_after_cents", res.Account.BalanceCents,
	)

	return res, nil
}

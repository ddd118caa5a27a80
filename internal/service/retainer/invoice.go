package retainer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
)

// ApplyToInvoice moves retainer funds onto an invoice. The usage entry, the
// account debit and the invoice credit commit together or not at all. Locks
// are always taken account first, then invoice.
func (s *Service) ApplyToInvoice(ctx context.Context, accountID, invoiceID uuid.UUID, amountCents int64) (*Result, error) {
	if err := validatePositive(amountCents); err != nil {
		return nil, fmt.Errorf("ApplyToInvoice: %w", err)
	}

	res, err := s.mutate(ctx, accountID, func(ctx context.Context, tx *sql.Tx, acct *domain.RetainerAccount, now time.Time) (*domain.Transaction, error) {
		inv, err := s.invoices.GetForUpdate(ctx, tx, invoiceID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("lock invoice: %w", domain.ErrInvoiceNotFound)
			}
			return nil, fmt.Errorf("lock invoice: %w", err)
		}

		if err := validateUsage(acct, inv, amountCents); err != nil {
			return nil, err
		}

		acct.BalanceCents -= amountCents
		acct.TotalUsedCents += amountCents

		entry, err := s.appendEntry(ctx, tx, acct, domain.TransactionTypeUsage, -amountCents, nil, &invoiceID, now)
		if err != nil {
			return nil, err
		}

		if err := s.invoices.AddPayment(ctx, tx, invoiceID, amountCents); err != nil {
			return nil, fmt.Errorf("credit invoice: %w", err)
		}
		return entry, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ApplyToInvoice: %w", err)
	}

	logging.FromContext(ctx).Info("retainer applied to invoice",
		"account_id", accountID,
		"invoice_id", invoiceID,
		"transaction_id", res.Transaction.ID,
		"amount_cents", amountCents,
		"balance_after_cents", res.Account.BalanceCents,
	)

	return res, nil
}

package retainer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
)

// ListTransactions returns the most recent entries, newest first, and the
// total number of entries on the account.
func (s *Service) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, int, error) {
	if limit <= 0 {
		return nil, 0, fmt.Errorf("ListTransactions: limit: %w", domain.ErrInvalidRequest)
	}

	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: %w", err)
	}

	entries, total, err := s.transactions.ListByAccountID(ctx, accountID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: %w", err)
	}
	return entries, total, nil
}

type LedgerReport struct {
	AccountID            uuid.UUID
	Entries              int
	BalanceCents         int64
	ReplayedBalanceCents int64
	DepositedCents       int64
	UsedCents            int64
	Consistent           bool
	// Set when Consistent is false.
	FirstBadSequence *int64
	Problem          string
}

// VerifyLedger replays the account history and checks it against the cached
// aggregates. The account row is locked for the duration so no mutation can
// commit mid-replay.
func (s *Service) VerifyLedger(ctx context.Context, accountID uuid.UUID) (*LedgerReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("VerifyLedger: begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := s.lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("VerifyLedger: %w", err)
	}

	history, err := s.transactions.History(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("VerifyLedger: %w", err)
	}

	return replay(acct, history), nil
}

func replay(acct *domain.RetainerAccount, history []domain.Transaction) *LedgerReport {
	report := &LedgerReport{
		AccountID:    acct.ID,
		Entries:      len(history),
		BalanceCents: acct.BalanceCents,
	}

	fail := func(t *domain.Transaction, format string, args ...any) *LedgerReport {
		if t != nil {
			seq := t.Sequence
			report.FirstBadSequence = &seq
		}
		report.Problem = fmt.Sprintf(format, args...)
		return report
	}

	var running int64
	for i := range history {
		t := &history[i]

		if msg := signProblem(t); msg != "" {
			return fail(t, "%s", msg)
		}

		running += t.AmountCents
		switch t.Type {
		case domain.TransactionTypeDeposit:
			report.DepositedCents += t.AmountCents
		case domain.TransactionTypeUsage, domain.TransactionTypeRefund:
			report.UsedCents -= t.AmountCents
		}
		report.ReplayedBalanceCents = running

		if running < 0 {
			return fail(t, "balance went negative (%d)", running)
		}
		if t.BalanceAfterCents != running {
			return fail(t, "balance_after %d does not match replayed balance %d", t.BalanceAfterCents, running)
		}
	}

	switch {
	case running != acct.BalanceCents:
		return fail(nil, "cached balance %d does not match replayed balance %d", acct.BalanceCents, running)
	case report.DepositedCents != acct.TotalDepositedCents:
		return fail(nil, "cached deposits %d do not match replayed deposits %d", acct.TotalDepositedCents, report.DepositedCents)
	case report.UsedCents != acct.TotalUsedCents:
		return fail(nil, "cached usage %d does not match replayed usage %d", acct.TotalUsedCents, report.UsedCents)
	}

	report.Consistent = true
	return report
}

func signProblem(t *domain.Transaction) string {
	switch t.Type {
	case domain.TransactionTypeDeposit:
		if t.AmountCents <= 0 {
			return "deposit with non-positive amount"
		}
	case domain.TransactionTypeUsage, domain.TransactionTypeRefund:
		if t.AmountCents >= 0 {
			return fmt.Sprintf("%s with non-negative amount", t.Type)
		}
	case domain.TransactionTypeAdjustment:
		if t.AmountCents == 0 {
			return "zero adjustment"
		}
	default:
		return fmt.Sprintf("unknown transaction type %q", t.Type)
	}
	return ""
}

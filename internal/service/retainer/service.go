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

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RetainerAccount, error)
	GetByClientID(ctx context.Context, clientID uuid.UUID) (*domain.RetainerAccount, error)
	Create(ctx context.Context, account *domain.RetainerAccount) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.RetainerAccount, error)
	Update(ctx context.Context, tx *sql.Tx, account *domain.RetainerAccount) error
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, int, error)
	History(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
}

type invoiceRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Invoice, error)
	AddPayment(ctx context.Context, tx *sql.Tx, id uuid.UUID, amountCents int64) error
}

// Service is the retainer ledger. Every mutation runs in one database
// transaction holding the account row lock, so mutations on one account are
// serialized while different accounts proceed independently.
type Service struct {
	accounts     accountRepo
	transactions transactionRepo
	invoices     invoiceRepo
	db           *sql.DB
	maxAttempts  int
	now          func() time.Time
}

func NewService(
	accounts accountRepo,
	transactions transactionRepo,
	invoices invoiceRepo,
	db *sql.DB,
	maxAttempts int,
) *Service {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		invoices:     invoices,
		db:           db,
		maxAttempts:  maxAttempts,
		now:          time.Now,
	}
}

// Result is the committed state after a mutation. Transaction is nil for
// lifecycle operations. WasLowBalance is the low-balance flag before the
// mutation, letting callers detect a crossing without another read.
type Result struct {
	Account       *domain.RetainerAccount
	Transaction   *domain.Transaction
	WasLowBalance bool
}

// mutation validates against the locked account, mutates it in place and
// writes any ledger entry through tx.
type mutation func(ctx context.Context, tx *sql.Tx, acct *domain.RetainerAccount, now time.Time) (*domain.Transaction, error)

func (s *Service) mutate(ctx context.Context, accountID uuid.UUID, fn mutation) (*Result, error) {
	log := logging.FromContext(ctx)

	for attempt := 1; ; attempt++ {
		res, err := s.mutateOnce(ctx, accountID, fn)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		if attempt >= s.maxAttempts {
			log.Warn("retainer mutation gave up after conflicts",
				"account_id", accountID,
				"attempts", attempt,
				"error", err,
			)
			return nil, fmt.Errorf("mutate: %d attempts: %w", attempt, domain.ErrConcurrentModification)
		}
		log.Warn("retainer mutation conflicted, retrying",
			"account_id", accountID,
			"attempt", attempt,
			"error", err,
		)
	}
}

func (s *Service) mutateOnce(ctx context.Context, accountID uuid.UUID, fn mutation) (*Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mutateOnce: begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := s.lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("mutateOnce: %w", err)
	}

	wasLow := acct.IsLowBalance()
	now := s.entryTime(acct)

	entry, err := fn(ctx, tx, acct, now)
	if err != nil {
		return nil, fmt.Errorf("mutateOnce: %w", err)
	}

	acct.Version++
	acct.UpdatedAt = now
	if err := s.accounts.Update(ctx, tx, acct); err != nil {
		return nil, fmt.Errorf("mutateOnce: update account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("mutateOnce: commit: %w", err)
	}

	return &Result{Account: acct, Transaction: entry, WasLowBalance: wasLow}, nil
}

func (s *Service) lockAccount(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (*domain.RetainerAccount, error) {
	acct, err := s.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("lockAccount: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("lockAccount: %w", err)
	}
	return acct, nil
}

// entryTime never goes behind the account's last mutation, keeping
// created_at ordering consistent with commit order even if the wall clock
// steps back.
func (s *Service) entryTime(acct *domain.RetainerAccount) time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if now.Before(acct.UpdatedAt) {
		return acct.UpdatedAt.UTC()
	}
	return now
}

func (s *Service) appendEntry(
	ctx context.Context,
	tx *sql.Tx,
	acct *domain.RetainerAccount,
	txType domain.TransactionType,
	deltaCents int64,
	description *string,
	invoiceID *uuid.UUID,
	now time.Time,
) (*domain.Transaction, error) {
	entry := &domain.Transaction{
		ID:                uuid.New(),
		AccountID:         acct.ID,
		Type:              txType,
		AmountCents:       deltaCents,
		BalanceAfterCents: acct.BalanceCents,
		Description:       description,
		InvoiceID:         invoiceID,
		CreatedAt:         now,
	}
	if err := s.transactions.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("appendEntry: %s: %w", txType, err)
	}
	return entry, nil
}

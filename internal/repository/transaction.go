package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
)

const transactionColumns = `id, account_id, sequence, type, amount_cents, balance_after_cents,
	description, invoice_id, created_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends an entry and fills in the sequence assigned by the database.
func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO retainer_transactions (
			id, account_id, type, amount_cents, balance_after_cents,
			description, invoice_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING sequence`,
		t.ID, t.AccountID, t.Type, t.AmountCents, t.BalanceAfterCents,
		t.Description, t.InvoiceID, t.CreatedAt,
	).Scan(&t.Sequence)
	if isCheckViolation(err) {
		return fmt.Errorf("Create: %w", domain.ErrInvalidAmount)
	}
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM retainer_transactions WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByAccountID: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM retainer_transactions
		WHERE account_id = $1 ORDER BY created_at DESC, sequence DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByAccountID: %w", err)
	}
	defer rows.Close()

	entries, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByAccountID: %w", err)
	}
	return entries, total, nil
}

// History returns the full ledger for an account in commit order.
func (r *TransactionRepository) History(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM retainer_transactions
		WHERE account_id = $1 ORDER BY created_at, sequence`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	defer rows.Close()

	entries, err := collectTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	return entries, nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	entries := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var invoiceID uuid.NullUUID
	err := s.Scan(
		&t.ID, &t.AccountID, &t.Sequence, &t.Type, &t.AmountCents, &t.BalanceAfterCents,
		&t.Description, &invoiceID, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if invoiceID.Valid {
		t.InvoiceID = &invoiceID.UUID
	}
	return &t, nil
}

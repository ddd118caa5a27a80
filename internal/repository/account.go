package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
)

const accountColumns = `id, client_id, balance_cents, total_deposited_cents, total_used_cents,
	low_balance_threshold_cents, is_active, version, created_at, updated_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RetainerAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM retainer_accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetByClientID(ctx context.Context, clientID uuid.UUID) (*domain.RetainerAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM retainer_accounts WHERE client_id = $1`, clientID,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByClientID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByClientID: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.RetainerAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO retainer_accounts (
			id, client_id, balance_cents, total_deposited_cents, total_used_cents,
			low_balance_threshold_cents, is_active, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		account.ID, account.ClientID, account.BalanceCents,
		account.TotalDepositedCents, account.TotalUsedCents,
		account.LowBalanceThresholdCents, account.IsActive, account.Version,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrAccountExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.RetainerAccount, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM retainer_accounts WHERE id = $1 FOR UPDATE`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		if isRetryable(err) {
			return nil, fmt.Errorf("GetForUpdate: %w: %w", domain.ErrVersionConflict, err)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return a, nil
}

// Update persists the mutable columns of a locked account. The caller bumps
// Version before calling; the row must still hold Version-1.
func (r *AccountRepository) Update(ctx context.Context, tx *sql.Tx, a *domain.RetainerAccount) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE retainer_accounts SET
			balance_cents = $1, total_deposited_cents = $2, total_used_cents = $3,
			low_balance_threshold_cents = $4, is_active = $5, version = $6, updated_at = $7
		WHERE id = $8 AND version = $9`,
		a.BalanceCents, a.TotalDepositedCents, a.TotalUsedCents,
		a.LowBalanceThresholdCents, a.IsActive, a.Version, a.UpdatedAt,
		a.ID, a.Version-1,
	)
	if err != nil {
		switch {
		case isRetryable(err):
			return fmt.Errorf("Update: %w: %w", domain.ErrVersionConflict, err)
		case isCheckViolation(err):
			return fmt.Errorf("Update: %w", domain.ErrWouldOverdraw)
		}
		return fmt.Errorf("Update: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrVersionConflict)
	}
	return nil
}

func scanAccount(s scanner) (*domain.RetainerAccount, error) {
	var a domain.RetainerAccount
	var threshold sql.NullInt64
	err := s.Scan(
		&a.ID, &a.ClientID, &a.BalanceCents, &a.TotalDepositedCents, &a.TotalUsedCents,
		&threshold, &a.IsActive, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if threshold.Valid {
		a.LowBalanceThresholdCents = &threshold.Int64
	}
	return &a, nil
}

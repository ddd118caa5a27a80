package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
)

const invoiceColumns = `id, client_id, total_cents, paid_amount_cents, updated_at`

// InvoiceRepository touches only the invoice columns the retainer ledger owns
// a stake in. Everything else about invoices belongs to the invoicing module.
type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Invoice, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		if isRetryable(err) {
			return nil, fmt.Errorf("GetForUpdate: %w: %w", domain.ErrVersionConflict, err)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepository) AddPayment(ctx context.Context, tx *sql.Tx, id uuid.UUID, amountCents int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET paid_amount_cents = paid_amount_cents + $1, updated_at = now()
		WHERE id = $2 AND paid_amount_cents + $1 <= total_cents`,
		amountCents, id,
	)
	if err != nil {
		if isRetryable(err) {
			return fmt.Errorf("AddPayment: %w: %w", domain.ErrVersionConflict, err)
		}
		return fmt.Errorf("AddPayment: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("AddPayment: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("AddPayment: %w", domain.ErrInvoiceOverpayment)
	}
	return nil
}

func scanInvoice(s scanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := s.Scan(&inv.ID, &inv.ClientID, &inv.TotalCents, &inv.PaidAmountCents, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

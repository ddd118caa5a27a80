package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
)

const alertEventColumns = `id, account_id, client_id, event_type, balance_cents, threshold_cents,
	status, attempts, last_attempt, created_at`

type AlertEventRepository struct {
	db *sql.DB
}

func NewAlertEventRepository(db *sql.DB) *AlertEventRepository {
	return &AlertEventRepository{db: db}
}

func (r *AlertEventRepository) Create(ctx context.Context, event *domain.AlertEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alert_events (
			id, account_id, client_id, event_type, balance_cents, threshold_cents,
			status, attempts, last_attempt, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.AccountID, event.ClientID, event.EventType,
		event.BalanceCents, event.ThresholdCents,
		event.Status, event.Attempts, event.LastAttempt, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *AlertEventRepository) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.AlertEvent, error) {
	// SKIP LOCKED lets several dispatchers share the outbox without double delivery
	rows, err := tx.QueryContext(ctx,
		`SELECT `+alertEventColumns+` FROM alert_events
		WHERE status = $1 ORDER BY created_at LIMIT $2 FOR UPDATE SKIP LOCKED`,
		domain.AlertEventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var events []domain.AlertEvent
	for rows.Next() {
		e, err := scanAlertEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return events, nil
}

func (r *AlertEventRepository) MarkDispatched(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	return r.updateAttempt(ctx, tx, "MarkDispatched",
		`UPDATE alert_events SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE id = $2`,
		domain.AlertEventStatusDispatched, id,
	)
}

// MarkAttemptFailed records a failed delivery. The event stays pending until
// it has used up maxAttempts.
func (r *AlertEventRepository) MarkAttemptFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID, maxAttempts int) error {
	return r.updateAttempt(ctx, tx, "MarkAttemptFailed",
		`UPDATE alert_events SET
			status = CASE WHEN attempts + 1 >= $1 THEN $2 ELSE status END,
			attempts = attempts + 1, last_attempt = now()
		WHERE id = $3`,
		maxAttempts, domain.AlertEventStatusFailed, id,
	)
}

func (r *AlertEventRepository) updateAttempt(ctx context.Context, tx *sql.Tx, op, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

func scanAlertEvent(s scanner) (*domain.AlertEvent, error) {
	var e domain.AlertEvent
	err := s.Scan(
		&e.ID, &e.AccountID, &e.ClientID, &e.EventType, &e.BalanceCents, &e.ThresholdCents,
		&e.Status, &e.Attempts, &e.LastAttempt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

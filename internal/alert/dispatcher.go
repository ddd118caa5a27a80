package alert

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
)

type outboxRepo interface {
	ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.AlertEvent, error)
	MarkDispatched(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
	MarkAttemptFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID, maxAttempts int) error
}

type sender interface {
	Send(ctx context.Context, event domain.AlertEvent) error
}

type DispatcherConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// Dispatcher drains the alert outbox on a fixed interval.
type Dispatcher struct {
	events outboxRepo
	sender sender
	db     *sql.DB
	logger *slog.Logger
	cfg    DispatcherConfig
}

func NewDispatcher(events outboxRepo, sender sender, db *sql.DB, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		events: events,
		sender: sender,
		db:     db,
		logger: logger,
		cfg:    cfg,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("alert dispatcher started", "interval", d.cfg.Interval)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("alert dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.poll(ctx); err != nil {
				d.logger.Error("alert dispatch round failed", "error", err)
			}
		}
	}
}

// poll delivers up to BatchSize events and returns how many were delivered.
// Every event is claimed, sent and marked in its own transaction, so a
// failure part way through never rolls back events already delivered.
func (d *Dispatcher) poll(ctx context.Context) (int, error) {
	delivered := 0
	for range d.cfg.BatchSize {
		claimed, sent, err := d.dispatchNext(ctx)
		if err != nil {
			return delivered, fmt.Errorf("poll: %w", err)
		}
		if !claimed {
			break
		}
		if sent {
			delivered++
		}
	}
	return delivered, nil
}

func (d *Dispatcher) dispatchNext(ctx context.Context) (claimed, sent bool, err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, fmt.Errorf("dispatchNext: begin tx: %w", err)
	}
	defer tx.Rollback()

	events, err := d.events.ClaimPending(ctx, tx, 1)
	if err != nil {
		return false, false, fmt.Errorf("dispatchNext: %w", err)
	}
	if len(events) == 0 {
		return false, false, nil
	}
	event := events[0]

	if sendErr := d.sender.Send(ctx, event); sendErr != nil {
		d.logger.Warn("alert delivery failed",
			"alert_event_id", event.ID,
			"attempt", event.Attempts+1,
			"error", sendErr,
		)
		if err := d.events.MarkAttemptFailed(ctx, tx, event.ID, d.cfg.MaxAttempts); err != nil {
			return true, false, fmt.Errorf("dispatchNext: %w", err)
		}
	} else {
		if err := d.events.MarkDispatched(ctx, tx, event.ID); err != nil {
			return true, false, fmt.Errorf("dispatchNext: %w", err)
		}
		sent = true
	}

	if err := tx.Commit(); err != nil {
		return true, false, fmt.Errorf("dispatchNext: commit: %w", err)
	}
	return true, sent, nil
}

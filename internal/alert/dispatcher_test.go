package alert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/repository"
)

type fakeSender struct {
	sent []domain.AlertEvent
	fail map[string]bool
}

func (f *fakeSender) Send(_ context.Context, event domain.AlertEvent) error {
	if f.fail[event.ID.String()] {
		return errors.New("sink down")
	}
	f.sent = append(f.sent, event)
	return nil
}

var alertCols = []string{
	"id", "account_id", "client_id", "event_type", "balance_cents", "threshold_cents",
	"status", "attempts", "last_attempt", "created_at",
}

func addAlertRow(rows *sqlmock.Rows, e domain.AlertEvent) *sqlmock.Rows {
	return rows.AddRow(
		e.ID.String(), e.AccountID.String(), e.ClientID.String(), string(e.EventType),
		e.BalanceCents, e.ThresholdCents, string(e.Status), e.Attempts, nil, e.CreatedAt,
	)
}

func newTestDispatcher(t *testing.T, s sender) (*Dispatcher, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d := NewDispatcher(
		repository.NewAlertEventRepository(db),
		s,
		db,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		DispatcherConfig{Interval: time.Second, BatchSize: 10, MaxAttempts: 3},
	)
	return d, mock
}

func expectClaim(mock sqlmock.Sqlmock, events ...domain.AlertEvent) {
	rows := sqlmock.NewRows(alertCols)
	for _, e := range events {
		rows = addAlertRow(rows, e)
	}
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(domain.AlertEventStatusPending, 1).
		WillReturnRows(rows)
}

func TestDispatcherPoll(t *testing.T) {
	ok := sampleEvent()
	bad := sampleEvent()
	s := &fakeSender{fail: map[string]bool{bad.ID.String(): true}}
	d, mock := newTestDispatcher(t, s)

	expectClaim(mock, ok)
	mock.ExpectExec(`UPDATE alert_events SET status = \$1`).
		WithArgs(domain.AlertEventStatusDispatched, ok.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectClaim(mock, bad)
	mock.ExpectExec(`UPDATE alert_events SET`).
		WithArgs(3, domain.AlertEventStatusFailed, bad.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectClaim(mock)
	mock.ExpectRollback()

	delivered, err := d.poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	require.Len(t, s.sent, 1)
	assert.Equal(t, ok.ID, s.sent[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatcherPoll_MarkFailureKeepsEarlierDeliveries(t *testing.T) {
	first := sampleEvent()
	second := sampleEvent()
	s := &fakeSender{}
	d, mock := newTestDispatcher(t, s)

	expectClaim(mock, first)
	mock.ExpectExec(`UPDATE alert_events SET status = \$1`).
		WithArgs(domain.AlertEventStatusDispatched, first.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectClaim(mock, second)
	mock.ExpectExec(`UPDATE alert_events SET status = \$1`).
		WithArgs(domain.AlertEventStatusDispatched, second.ID).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	delivered, err := d.poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, delivered)
	assert.Len(t, s.sent, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatcherPoll_StopsAtBatchSize(t *testing.T) {
	s := &fakeSender{}
	d, mock := newTestDispatcher(t, s)
	d.cfg.BatchSize = 2

	for range 2 {
		e := sampleEvent()
		expectClaim(mock, e)
		mock.ExpectExec(`UPDATE alert_events SET status = \$1`).
			WithArgs(domain.AlertEventStatusDispatched, e.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	delivered, err := d.poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatcherPoll_Empty(t *testing.T) {
	d, mock := newTestDispatcher(t, &fakeSender{})

	expectClaim(mock)
	mock.ExpectRollback()

	delivered, err := d.poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatcherPoll_ClaimErrorRollsBack(t *testing.T) {
	d, mock := newTestDispatcher(t, &fakeSender{})

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).WillReturnError(errors.New("db gone"))
	mock.ExpectRollback()

	_, err := d.poll(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

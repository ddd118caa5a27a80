package retainer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/repository"
)

var accountCols = []string{
	"id", "client_id", "balance_cents", "total_deposited_cents", "total_used_cents",
	"low_balance_threshold_cents", "is_active", "version", "created_at", "updated_at",
}

func newMockService(t *testing.T, maxAttempts int) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(
		repository.NewAccountRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewInvoiceRepository(db),
		db,
		maxAttempts,
	)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	return svc, mock
}

func expectLock(mock sqlmock.Sqlmock, id uuid.UUID, balance, version int64, active bool) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)SELECT .+ FROM retainer_accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(
			id.String(), uuid.NewString(), balance, balance, int64(0),
			nil, active, version, created, created,
		))
}

func TestRecordDeposit_RetriesThenSucceeds(t *testing.T) {
	svc, mock := newMockService(t, 3)
	id := uuid.New()

	mock.ExpectBegin()
	expectLock(mock, id, 1000, 4, true)
	mock.ExpectQuery(`INSERT INTO retainer_transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(10)))
	mock.ExpectExec(`UPDATE retainer_accounts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	mock.ExpectBegin()
	expectLock(mock, id, 1000, 5, true)
	mock.ExpectQuery(`INSERT INTO retainer_transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(11)))
	mock.ExpectExec(`UPDATE retainer_accounts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.RecordDeposit(context.Background(), id, 500, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1500), res.Account.BalanceCents)
	assert.Equal(t, int64(6), res.Account.Version)
	assert.Equal(t, int64(11), res.Transaction.Sequence)
	assert.Equal(t, int64(500), res.Transaction.AmountCents)
	assert.Equal(t, int64(1500), res.Transaction.BalanceAfterCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeposit_ConflictsExhausted(t *testing.T) {
	svc, mock := newMockService(t, 3)
	id := uuid.New()

	for range 3 {
		mock.ExpectBegin()
		expectLock(mock, id, 1000, 1, true)
		mock.ExpectQuery(`INSERT INTO retainer_transactions`).
			WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(1)))
		mock.ExpectExec(`UPDATE retainer_accounts`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()
	}

	_, err := svc.RecordDeposit(context.Background(), id, 500, nil)
	require.ErrorIs(t, err, domain.ErrConcurrentModification)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRefund_InsufficientRollsBack(t *testing.T) {
	svc, mock := newMockService(t, 3)
	id := uuid.New()

	mock.ExpectBegin()
	expectLock(mock, id, 1000, 1, true)
	mock.ExpectRollback()

	_, err := svc.RecordRefund(context.Background(), id, 1001, nil)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeposit_BalanceOverflowRejected(t *testing.T) {
	svc, mock := newMockService(t, 3)
	id := uuid.New()

	mock.ExpectBegin()
	expectLock(mock, id, math.MaxInt64-10, 1, true)
	mock.ExpectRollback()

	res, err := svc.RecordDeposit(context.Background(), id, 100, nil)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Nil(t, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeposit_InvalidAmountSkipsDatabase(t *testing.T) {
	svc, mock := newMockService(t, 3)

	_, err := svc.RecordDeposit(context.Background(), uuid.New(), 0, nil)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutate_AccountNotFound(t *testing.T) {
	svc, mock := newMockService(t, 3)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .+ FROM retainer_accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(accountCols))
	mock.ExpectRollback()

	_, err := svc.RecordAdjustment(context.Background(), id, 100, nil)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutate_InfrastructureErrorNotRetried(t *testing.T) {
	svc, mock := newMockService(t, 3)
	id := uuid.New()
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .+ FROM retainer_accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnError(boom)
	mock.ExpectRollback()

	_, err := svc.SetActive(context.Background(), id, false)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, domain.ErrConcurrentModification)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryTime_NeverBehindLastUpdate(t *testing.T) {
	svc := &Service{now: func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }}
	later := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	got := svc.entryTime(&domain.RetainerAccount{UpdatedAt: later})
	assert.Equal(t, later, got)

	earlier := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	got = svc.entryTime(&domain.RetainerAccount{UpdatedAt: earlier})
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestListTransactions_RejectsNonPositiveLimit(t *testing.T) {
	svc, mock := newMockService(t, 3)

	_, _, err := svc.ListTransactions(context.Background(), uuid.New(), 0)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	require.NoError(t, mock.ExpectationsWereMet())
}

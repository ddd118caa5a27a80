package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
)

// SeedAccount inserts an active account whose balance is backed by a single
// opening deposit, so the seeded ledger verifies cleanly.
func SeedAccount(t *testing.T, db *sql.DB, balanceCents int64, thresholdCents *int64) *domain.RetainerAccount {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	a := &domain.RetainerAccount{
		ID:                       uuid.New(),
		ClientID:                 uuid.New(),
		BalanceCents:             balanceCents,
		TotalDepositedCents:      balanceCents,
		LowBalanceThresholdCents: thresholdCents,
		IsActive:                 true,
		Version:                  1,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	_, err := db.Exec(
		`INSERT INTO retainer_accounts (id, client_id, balance_cents, total_deposited_cents,
			low_balance_threshold_cents, is_active, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.ClientID, a.BalanceCents, a.TotalDepositedCents,
		a.LowBalanceThresholdCents, a.IsActive, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}

	if balanceCents > 0 {
		_, err = db.Exec(
			`INSERT INTO retainer_transactions (id, account_id, type, amount_cents, balance_after_cents, created_at)
			 VALUES ($1, $2, 'deposit', $3, $3, $4)`,
			uuid.New(), a.ID, balanceCents, now,
		)
		if err != nil {
			t.Fatalf("seed opening deposit: %v", err)
		}
	}
	return a
}

func SeedInvoice(t *testing.T, db *sql.DB, clientID uuid.UUID, totalCents, paidCents int64) *domain.Invoice {
	t.Helper()

	inv := &domain.Invoice{
		ID:              uuid.New(),
		ClientID:        clientID,
		TotalCents:      totalCents,
		PaidAmountCents: paidCents,
		UpdatedAt:       time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO invoices (id, client_id, total_cents, paid_amount_cents, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		inv.ID, inv.ClientID, inv.TotalCents, inv.PaidAmountCents, inv.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return inv
}

func SetAccountActive(t *testing.T, db *sql.DB, accountID uuid.UUID, active bool) {
	t.Helper()

	_, err := db.Exec(`UPDATE retainer_accounts SET is_active = $1 WHERE id = $2`, active, accountID)
	if err != nil {
		t.Fatalf("set account %s active=%v: %v", accountID, active, err)
	}
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(`SELECT balance_cents FROM retainer_accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func GetInvoicePaid(t *testing.T, db *sql.DB, invoiceID uuid.UUID) int64 {
	t.Helper()

	var paid int64
	err := db.QueryRow(`SELECT paid_amount_cents FROM invoices WHERE id = $1`, invoiceID).Scan(&paid)
	if err != nil {
		t.Fatalf("get invoice paid %s: %v", invoiceID, err)
	}
	return paid
}

func CountTransactions(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM retainer_transactions WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for account %s: %v", accountID, err)
	}
	return count
}

func CountAlertEvents(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM alert_events WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		t.Fatalf("count alert events for account %s: %v", accountID, err)
	}
	return count
}

func Int64Ptr(v int64) *int64 {
	return &v
}

package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/service/retainer"
)

type eventStore interface {
	Create(ctx context.Context, event *domain.AlertEvent) error
}

// Monitor turns low-balance crossings into outbox events. It only fires on
// the transition into the low state, not on every mutation while low.
type Monitor struct {
	events eventStore
	now    func() time.Time
}

func NewMonitor(events eventStore) *Monitor {
	return &Monitor{events: events, now: time.Now}
}

// Crossed reports whether the mutation moved the account from healthy to low.
func Crossed(res *retainer.Result) bool {
	if res == nil || res.Account == nil {
		return false
	}
	return !res.WasLowBalance && res.Account.IsLowBalance()
}

func (m *Monitor) Observe(ctx context.Context, res *retainer.Result) error {
	if !Crossed(res) {
		return nil
	}

	acct := res.Account
	event := &domain.AlertEvent{
		ID:             uuid.New(),
		AccountID:      acct.ID,
		ClientID:       acct.ClientID,
		EventType:      domain.AlertEventTypeLowBalance,
		BalanceCents:   acct.BalanceCents,
		ThresholdCents: *acct.LowBalanceThresholdCents,
		Status:         domain.AlertEventStatusPending,
		CreatedAt:      m.now().UTC(),
	}
	if err := m.events.Create(ctx, event); err != nil {
		return fmt.Errorf("Observe: %w", err)
	}

	logging.FromContext(ctx).Info("low balance alert queued",
		"alert_event_id", event.ID,
		"account_id", acct.ID,
		"balance", domain.FormatCents(acct.BalanceCents),
		"threshold", domain.FormatCents(event.ThresholdCents),
	)
	return nil
}

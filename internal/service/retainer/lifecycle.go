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

func (s *Service) CreateAccount(ctx context.Context, clientID uuid.UUID, thresholdCents *int64) (*domain.RetainerAccount, error) {
	if clientID == uuid.Nil {
		return nil, fmt.Errorf("CreateAccount: client id: %w", domain.ErrInvalidRequest)
	}
	if err := validateThreshold(thresholdCents); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	account := &domain.RetainerAccount{
		ID:                       uuid.New(),
		ClientID:                 clientID,
		LowBalanceThresholdCents: thresholdCents,
		IsActive:                 true,
		Version:                  1,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	logging.FromContext(ctx).Info("retainer account created",
		"account_id", account.ID,
		"client_id", clientID,
	)

	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.RetainerAccount, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetAccount: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return account, nil
}

func (s *Service) GetAccountByClient(ctx context.Context, clientID uuid.UUID) (*domain.RetainerAccount, error) {
	account, err := s.accounts.GetByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetAccountByClient: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetAccountByClient: %w", err)
	}
	return account, nil
}

// SetActive toggles the lifecycle flag. History is untouched.
func (s *Service) SetActive(ctx context.Context, accountID uuid.UUID, active bool) (*Result, error) {
	res, err := s.mutate(ctx, accountID, func(_ context.Context, _ *sql.Tx, acct *domain.RetainerAccount, _ time.Time) (*domain.Transaction, error) {
		acct.IsActive = active
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("SetActive: %w", err)
	}

	logging.FromContext(ctx).Info("retainer account status changed",
		"account_id", accountID,
		"active", active,
	)

	return res, nil
}

// SetLowBalanceThreshold replaces the alert threshold; nil disables alerting.
func (s *Service) SetLowBalanceThreshold(ctx context.Context, accountID uuid.UUID, thresholdCents *int64) (*Result, error) {
	if err := validateThreshold(thresholdCents); err != nil {
		return nil, fmt.Errorf("SetLowBalanceThreshold: %w", err)
	}

	res, err := s.mutate(ctx, accountID, func(_ context.Context, _ *sql.Tx, acct *domain.RetainerAccount, _ time.Time) (*domain.Transaction, error) {
		acct.LowBalanceThresholdCents = thresholdCents
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("SetLowBalanceThreshold: %w", err)
	}

	logging.FromContext(ctx).Info("retainer low balance threshold changed",
		"account_id", accountID,
		"threshold_cents", thresholdCents,
		"low_balance", res.Account.IsLowBalance(),
	)

	return res, nil
}

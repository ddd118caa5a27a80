package domain

import (
	"time"

	"github.com/google/uuid"
)

type AlertEventStatus string

const (
	AlertEventStatusPending    AlertEventStatus = "pending"
	AlertEventStatusDispatched AlertEventStatus = "dispatched"
	AlertEventStatusFailed     AlertEventStatus = "failed"
)

type AlertEventType string

const (
	AlertEventTypeLowBalance AlertEventType = "retainer.low_balance"
)

type AlertEvent struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	ClientID       uuid.UUID
	EventType      AlertEventType
	BalanceCents   int64
	ThresholdCents int64
	Status         AlertEventStatus
	Attempts       int
	LastAttempt    *time.Time
	CreatedAt      time.Time
}

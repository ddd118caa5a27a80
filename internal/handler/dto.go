package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/alert"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/service/retainer"
)

type retainerDTO struct {
	ID                       uuid.UUID `json:"id"`
	ClientID                 uuid.UUID `json:"client_id"`
	BalanceCents             int64     `json:"balance_cents"`
	Balance                  string    `json:"balance"`
	TotalDepositedCents      int64     `json:"total_deposited_cents"`
	TotalUsedCents           int64     `json:"total_used_cents"`
	LowBalanceThresholdCents *int64    `json:"low_balance_threshold_cents"`
	IsLowBalance             bool      `json:"is_low_balance"`
	IsActive                 bool      `json:"is_active"`
	Version                  int64     `json:"version"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func toRetainerDTO(a *domain.RetainerAccount) retainerDTO {
	return retainerDTO{
		ID:                       a.ID,
		ClientID:                 a.ClientID,
		BalanceCents:             a.BalanceCents,
		Balance:                  domain.FormatCents(a.BalanceCents),
		TotalDepositedCents:      a.TotalDepositedCents,
		TotalUsedCents:           a.TotalUsedCents,
		LowBalanceThresholdCents: a.LowBalanceThresholdCents,
		IsLowBalance:             a.IsLowBalance(),
		IsActive:                 a.IsActive,
		Version:                  a.Version,
		CreatedAt:                a.CreatedAt,
		UpdatedAt:                a.UpdatedAt,
	}
}

type transactionDTO struct {
	ID                uuid.UUID  `json:"id"`
	Sequence          int64      `json:"sequence"`
	Type              string     `json:"type"`
	Sign              string     `json:"sign"`
	AmountCents       int64      `json:"amount_cents"`
	Amount            string     `json:"amount"`
	BalanceAfterCents int64      `json:"balance_after_cents"`
	Description       *string    `json:"description"`
	InvoiceID         *uuid.UUID `json:"invoice_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:                t.ID,
		Sequence:          t.Sequence,
		Type:              string(t.Type),
		Sign:              t.Type.Sign(),
		AmountCents:       t.AmountCents,
		Amount:            domain.FormatCents(t.AmountCents),
		BalanceAfterCents: t.BalanceAfterCents,
		Description:       t.Description,
		InvoiceID:         t.InvoiceID,
		CreatedAt:         t.CreatedAt,
	}
}

type mutationDTO struct {
	Retainer    retainerDTO     `json:"retainer"`
	Transaction *transactionDTO `json:"transaction,omitempty"`
	// True when this mutation moved the account into the low-balance state.
	LowBalanceCrossed bool `json:"low_balance_crossed"`
}

func toMutationDTO(res *retainer.Result) mutationDTO {
	dto := mutationDTO{
		Retainer:          toRetainerDTO(res.Account),
		LowBalanceCrossed: alert.Crossed(res),
	}
	if res.Transaction != nil {
		t := toTransactionDTO(res.Transaction)
		dto.Transaction = &t
	}
	return dto
}

type transactionListDTO struct {
	Transactions []transactionDTO `json:"transactions"`
	Total        int              `json:"total"`
	Limit        int              `json:"limit"`
}

type ledgerReportDTO struct {
	AccountID            uuid.UUID `json:"account_id"`
	Consistent           bool      `json:"consistent"`
	Entries              int       `json:"entries"`
	BalanceCents         int64     `json:"balance_cents"`
	ReplayedBalanceCents int64     `json:"replayed_balance_cents"`
	DepositedCents       int64     `json:"deposited_cents"`
	UsedCents            int64     `json:"used_cents"`
	FirstBadSequence     *int64    `json:"first_bad_sequence,omitempty"`
	Problem              string    `json:"problem,omitempty"`
}

func toLedgerReportDTO(r *retainer.LedgerReport) ledgerReportDTO {
	return ledgerReportDTO{
		AccountID:            r.AccountID,
		Consistent:           r.Consistent,
		Entries:              r.Entries,
		BalanceCents:         r.BalanceCents,
		ReplayedBalanceCents: r.ReplayedBalanceCents,
		DepositedCents:       r.DepositedCents,
		UsedCents:            r.UsedCents,
		FirstBadSequence:     r.FirstBadSequence,
		Problem:              r.Problem,
	}
}

type invoiceDTO struct {
	ID               uuid.UUID `json:"id"`
	ClientID         uuid.UUID `json:"client_id"`
	TotalCents       int64     `json:"total_cents"`
	PaidAmountCents  int64     `json:"paid_amount_cents"`
	OutstandingCents int64     `json:"outstanding_cents"`
	Outstanding      string    `json:"outstanding"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toInvoiceDTO(inv *domain.Invoice) invoiceDTO {
	return invoiceDTO{
		ID:               inv.ID,
		ClientID:         inv.ClientID,
		TotalCents:       inv.TotalCents,
		PaidAmountCents:  inv.PaidAmountCents,
		OutstandingCents: inv.OutstandingCents(),
		Outstanding:      domain.FormatCents(inv.OutstandingCents()),
		UpdatedAt:        inv.UpdatedAt,
	}
}

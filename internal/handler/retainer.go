package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/service/retainer"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 200
)

type retainerService interface {
	CreateAccount(ctx context.Context, clientID uuid.UUID, thresholdCents *int64) (*domain.RetainerAccount, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.RetainerAccount, error)
	GetAccountByClient(ctx context.Context, clientID uuid.UUID) (*domain.RetainerAccount, error)
	RecordDeposit(ctx context.Context, accountID uuid.UUID, amountCents int64, description *string) (*retainer.Result, error)
	ApplyToInvoice(ctx context.Context, accountID, invoiceID uuid.UUID, amountCents int64) (*retainer.Result, error)
	RecordRefund(ctx context.Context, accountID uuid.UUID, amountCents int64, description *string) (*retainer.Result, error)
	RecordAdjustment(ctx context.Context, accountID uuid.UUID, deltaCents int64, description *string) (*retainer.Result, error)
	SetActive(ctx context.Context, accountID uuid.UUID, active bool) (*retainer.Result, error)
	SetLowBalanceThreshold(ctx context.Context, accountID uuid.UUID, thresholdCents *int64) (*retainer.Result, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, int, error)
	VerifyLedger(ctx context.Context, accountID uuid.UUID) (*retainer.LedgerReport, error)
}

type balanceObserver interface {
	Observe(ctx context.Context, res *retainer.Result) error
}

type RetainerHandler struct {
	retainers retainerService
	alerts    balanceObserver
}

func NewRetainerHandler(retainers retainerService, alerts balanceObserver) *RetainerHandler {
	return &RetainerHandler{retainers: retainers, alerts: alerts}
}

type createRetainerRequest struct {
	ClientID                 string `json:"client_id" validate:"required,uuid"`
	LowBalanceThresholdCents *int64 `json:"low_balance_threshold_cents" validate:"omitempty,gte=0"`
}

func (r createRetainerRequest) Validate() []FieldError { return validateStruct(r) }

type amountRequest struct {
	AmountCents int64   `json:"amount_cents" validate:"gt=0"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

func (r amountRequest) Validate() []FieldError { return validateStruct(r) }

type applyToInvoiceRequest struct {
	InvoiceID   string `json:"invoice_id" validate:"required,uuid"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
}

func (r applyToInvoiceRequest) Validate() []FieldError { return validateStruct(r) }

type adjustmentRequest struct {
	AmountCents int64   `json:"amount_cents" validate:"ne=0"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

func (r adjustmentRequest) Validate() []FieldError { return validateStruct(r) }

type statusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func (r statusRequest) Validate() []FieldError { return validateStruct(r) }

type thresholdRequest struct {
	// null clears the threshold and disables alerting.
	LowBalanceThresholdCents *int64 `json:"low_balance_threshold_cents" validate:"omitempty,gte=0"`
}

func (r thresholdRequest) Validate() []FieldError { return validateStruct(r) }

type validatable interface {
	Validate() []FieldError
}

// decode reads and validates the body, writing the error response itself.
func decode(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return false
	}
	if fields := dst.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return false
	}
	return true
}

func accountIDFromPath(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func (h *RetainerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRetainerRequest
	if !decode(w, r, &req) {
		return
	}

	account, err := h.retainers.CreateAccount(r.Context(), uuid.MustParse(req.ClientID), req.LowBalanceThresholdCents)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to create retainer", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toRetainerDTO(account))
}

func (h *RetainerHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	account, err := h.retainers.GetAccount(r.Context(), accountID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toRetainerDTO(account))
}

func (h *RetainerHandler) GetByClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "clientID"))
	if err != nil {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	account, err := h.retainers.GetAccountByClient(r.Context(), clientID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toRetainerDTO(account))
}

func (h *RetainerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	var req amountRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.retainers.RecordDeposit(r.Context(), accountID, req.AmountCents, req.Description)
	h.respondMutation(w, r, http.StatusCreated, "deposit", res, err)
}

func (h *RetainerHandler) ApplyToInvoice(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	var req applyToInvoiceRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.retainers.ApplyToInvoice(r.Context(), accountID, uuid.MustParse(req.InvoiceID), req.AmountCents)
	h.respondMutation(w, r, http.StatusCreated, "invoice application", res, err)
}

func (h *RetainerHandler) Refund(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	var req amountRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.retainers.RecordRefund(r.Context(), accountID, req.AmountCents, req.Description)
	h.respondMutation(w, r, http.StatusCreated, "refund", res, err)
}

func (h *RetainerHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	var req adjustmentRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.retainers.RecordAdjustment(r.Context(), accountID, req.AmountCents, req.Description)
	h.respondMutation(w, r, http.StatusCreated, "adjustment", res, err)
}

func (h *RetainerHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	var req statusRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.retainers.SetActive(r.Context(), accountID, *req.IsActive)
	h.respondMutation(w, r, http.StatusOK, "status change", res, err)
}

func (h *RetainerHandler) SetThreshold(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	var req thresholdRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.retainers.SetLowBalanceThreshold(r.Context(), accountID, req.LowBalanceThresholdCents)
	h.respondMutation(w, r, http.StatusOK, "threshold change", res, err)
}

func (h *RetainerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	limit := defaultTransactionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			RespondValidationError(w, []FieldError{{Field: "limit", Message: "must be a positive integer"}})
			return
		}
		limit = min(n, maxTransactionLimit)
	}

	entries, total, err := h.retainers.ListTransactions(r.Context(), accountID, limit)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transactionDTO, len(entries))
	for i := range entries {
		dtos[i] = toTransactionDTO(&entries[i])
	}

	RespondSuccess(w, http.StatusOK, transactionListDTO{
		Transactions: dtos,
		Total:        total,
		Limit:        limit,
	})
}

func (h *RetainerHandler) Verify(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	report, err := h.retainers.VerifyLedger(r.Context(), accountID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	if !report.Consistent {
		logging.FromContext(r.Context()).Error("retainer ledger inconsistent",
			"account_id", accountID,
			"first_bad_sequence", report.FirstBadSequence,
			"problem", report.Problem,
		)
	}

	RespondSuccess(w, http.StatusOK, toLedgerReportDTO(report))
}

func (h *RetainerHandler) respondMutation(w http.ResponseWriter, r *http.Request, status int, op string, res *retainer.Result, err error) {
	log := logging.FromContext(r.Context())

	if err != nil {
		if isClientError(err) {
			log.Info("retainer "+op+" rejected", "error", err)
		} else {
			log.Error("retainer "+op+" failed", "error", err)
		}
		RespondDomainError(w, err)
		return
	}

	if h.alerts != nil {
		// The mutation is committed; a failed alert write must not fail the request.
		if err := h.alerts.Observe(r.Context(), res); err != nil {
			log.Error("failed to queue low balance alert", "account_id", res.Account.ID, "error", err)
		}
	}

	RespondSuccess(w, status, toMutationDTO(res))
}

func isClientError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidAmount,
		domain.ErrInsufficientBalance,
		domain.ErrInvoiceOverpayment,
		domain.ErrInvoiceClientMismatch,
		domain.ErrWouldOverdraw,
		domain.ErrAccountInactive,
		domain.ErrAccountNotFound,
		domain.ErrInvoiceNotFound,
		domain.ErrInvalidThreshold,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

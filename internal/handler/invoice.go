package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/domain"
)

type invoiceReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
}

type InvoiceHandler struct {
	invoices invoiceReader
}

func NewInvoiceHandler(invoices invoiceReader) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondAppError(w, ErrInvoiceNotFound, nil)
		return
	}

	inv, err := h.invoices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			RespondAppError(w, ErrInvoiceNotFound, nil)
			return
		}
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toInvoiceDTO(inv))
}

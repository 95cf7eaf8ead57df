package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
)

type paymentRequest struct {
	ContractID        uuid.UUID            `json:"contract_id"`
	InstallmentNumber int                  `json:"installment_number"`
	Amount            decimal.Decimal      `json:"amount"`
	DueDate           string               `json:"due_date"`
	PaymentMethod     models.PaymentMethod `json:"payment_method"`
	Notes             *string              `json:"notes"`
}

type confirmRequest struct {
	PaymentDate   string               `json:"payment_date"`
	AmountPaid    decimal.NullDecimal  `json:"amount_paid"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Notes         *string              `json:"notes"`
}

type cancelRequest struct {
	Reason *string `json:"reason"`
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.PaymentFilter{
		Status: models.PaymentStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
	}
	if filter.Status != "" && !filter.Status.IsValid() && filter.Status != models.PaymentStatusOverdue {
		writeBadRequest(w, "invalid status")
		return
	}

	contractID, err := uuidQuery(r, "contract_id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	filter.ContractID = contractID

	if filter.DueFrom, err = parseDate(q.Get("due_from"), "due_from"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.DueTo, err = parseDate(q.Get("due_to"), "due_to"); err != nil {
		writeError(w, r, err)
		return
	}

	payments, page, err := s.svc.ListPayments(r.Context(), filter, pageFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, payments, page)
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := &models.PaymentCreate{
		ContractID:        req.ContractID,
		InstallmentNumber: req.InstallmentNumber,
		Amount:            req.Amount,
		PaymentMethod:     req.PaymentMethod,
		Notes:             req.Notes,
	}
	dueDate, err := parseDate(req.DueDate, "due_date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if dueDate != nil {
		in.DueDate = *dueDate
	}

	payment, err := s.svc.CreatePayment(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, payment)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	payment, err := s.svc.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, payment)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := s.svc.DeletePayment(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Payment deleted"})
}

// handleConfirmPayment settles an installment. An empty body confirms today
// for the full amount.
func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req confirmRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	paidDate, err := parseDate(req.PaymentDate, "payment_date")
	if err != nil {
		writeError(w, r, err)
		return
	}

	payment, err := s.svc.ConfirmPayment(r.Context(), id, ledger.ConfirmRequest{
		PaymentDate:   paidDate,
		AmountPaid:    req.AmountPaid,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, payment)
}

func (s *Server) handleCancelPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req cancelRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	payment, err := s.svc.CancelPayment(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, payment)
}

func (s *Server) handleOverduePayments(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.OverdueInstallments(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
)

type contractRequest struct {
	ClientID         uuid.UUID             `json:"client_id"`
	Description      string                `json:"description"`
	TotalValue       decimal.Decimal       `json:"total_value"`
	DownPayment      decimal.Decimal       `json:"down_payment"`
	NumberOfPayments int                   `json:"number_of_payments"`
	Status           models.ContractStatus `json:"status"`
	StartDate        string                `json:"start_date"`
	ContractNumber   string                `json:"contract_number"`
}

type statusRequest struct {
	Status models.ContractStatus `json:"status"`
	Reason *string               `json:"reason"`
}

type scheduleRequest struct {
	InstallmentsCount int                  `json:"installments_count"`
	FirstDueDate      string               `json:"first_due_date"`
	PaymentMethod     models.PaymentMethod `json:"payment_method"`
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	filter := models.ContractFilter{
		Status: models.ContractStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		writeBadRequest(w, "invalid status")
		return
	}
	clientID, err := uuidQuery(r, "client_id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	filter.ClientID = clientID

	summaries, page, err := s.svc.ListContracts(r.Context(), filter, pageFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, summaries, page)
}

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var req contractRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	startDate, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		writeError(w, r, err)
		return
	}

	contract, err := s.svc.CreateContract(r.Context(), &models.ContractCreate{
		ClientID:         req.ClientID,
		Description:      req.Description,
		TotalValue:       req.TotalValue,
		DownPayment:      req.DownPayment,
		NumberOfPayments: req.NumberOfPayments,
		Status:           req.Status,
		StartDate:        startDate,
		ContractNumber:   req.ContractNumber,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, contract)
}

// handleGetContract returns the contract with its metrics and next payment.
func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	summary, err := s.svc.ContractSummary(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, summary)
}

func (s *Server) handleDeleteContract(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := s.svc.DeleteContract(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Contract deleted"})
}

func (s *Server) handleChangeContractStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	contract, err := s.svc.ChangeContractStatus(r.Context(), id, req.Status, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, contract)
}

func (s *Server) handleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	firstDue, err := parseDate(req.FirstDueDate, "first_due_date")
	if err != nil {
		writeError(w, r, err)
		return
	}

	schedule, err := s.svc.GenerateSchedule(r.Context(), id, ledger.ScheduleRequest{
		InstallmentsCount: req.InstallmentsCount,
		FirstDueDate:      firstDue,
		PaymentMethod:     req.PaymentMethod,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, schedule)
}

func (s *Server) handleContractPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if _, err := s.svc.GetContract(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	payments, page, err := s.svc.ListPayments(r.Context(), models.PaymentFilter{ContractID: &id}, pageFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, payments, page)
}

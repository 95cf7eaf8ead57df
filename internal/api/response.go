package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/money"
	"github.com/viniciusnovato/finance-sub000/internal/services/backoffice"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Response represents a standard API response
type Response struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message,omitempty"`
	Data       interface{}        `json:"data,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	Error      string             `json:"error,omitempty"`
	Code       string             `json:"code,omitempty"`
	Field      string             `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		utils.GetLogger().Warn("Failed to write response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writePage(w http.ResponseWriter, data interface{}, page models.Pagination) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data, Pagination: &page})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: message, Code: string(models.KindInvalidInput)})
}

// writeError maps a service error to an HTTP status and envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var le *models.LedgerError
	if errors.As(err, &le) {
		writeJSON(w, statusForKind(le.Kind), Response{
			Success: false,
			Error:   le.Message,
			Code:    string(le.Kind),
			Field:   le.Field,
		})
		return
	}

	if errors.Is(err, backoffice.ErrExportDisabled) {
		writeJSON(w, http.StatusServiceUnavailable, Response{Success: false, Error: err.Error()})
		return
	}

	utils.GetLogger().Error("Request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "internal server error"})
}

func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindMissingField, models.KindInvalidInput, models.KindInvalidInstallmentCount:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidContractState:
		return http.StatusUnprocessableEntity
	case models.KindInvalidContractStatus, models.KindScheduleAlreadyExists, models.KindInvalidTransition,
		models.KindPendingPayments, models.KindAlreadyPaid, models.KindAlreadyCancelled,
		models.KindContractHasPayments, models.KindClientHasContracts:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		writeBadRequest(w, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func pageFromQuery(r *http.Request) models.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return models.NewPage(page, limit)
}

func intQuery(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func uuidQuery(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &id, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty input yields nil.
func parseDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := money.ParseDate(raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, &models.LedgerError{Kind: models.KindInvalidInput, Field: field, Message: fmt.Sprintf("invalid %s %q", field, raw)}
	}
	t = money.DateOnly(t)
	return &t, nil
}

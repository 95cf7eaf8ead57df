// Package models defines the data structures for the finance back office.
package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrorKind classifies a ledger failure so callers can branch without parsing messages.
type ErrorKind string

const (
	KindMissingField            ErrorKind = "missing_field"
	KindInvalidInstallmentCount ErrorKind = "invalid_installment_count"
	KindInvalidContractStatus   ErrorKind = "invalid_contract_status"
	KindScheduleAlreadyExists   ErrorKind = "schedule_already_exists"
	KindInvalidContractState    ErrorKind = "invalid_contract_state"
	KindInvalidTransition       ErrorKind = "invalid_transition"
	KindPendingPayments         ErrorKind = "pending_payments"
	KindAlreadyPaid             ErrorKind = "already_paid"
	KindAlreadyCancelled        ErrorKind = "already_cancelled"
	KindContractHasPayments     ErrorKind = "contract_has_payments"
	KindClientHasContracts      ErrorKind = "client_has_contracts"
	KindNotFound                ErrorKind = "not_found"
	KindInvalidInput            ErrorKind = "invalid_input"
)

// LedgerError is the single error type returned by ledger operations.
type LedgerError struct {
	Kind    ErrorKind `json:"kind"`
	Field   string    `json:"field,omitempty"`
	ID      string    `json:"id,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Field != "" {
		b.WriteString(" (field ")
		b.WriteString(e.Field)
		b.WriteString(")")
	}
	if e.ID != "" {
		b.WriteString(" [id ")
		b.WriteString(e.ID)
		b.WriteString("]")
	}
	return b.String()
}

// Is matches another LedgerError of the same kind. A target that names a
// field only matches errors about that field.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

// NewLedgerError builds a LedgerError for the given record.
func NewLedgerError(kind ErrorKind, field string, id uuid.UUID, message string) *LedgerError {
	e := &LedgerError{Kind: kind, Field: field, Message: message}
	if id != uuid.Nil {
		e.ID = id.String()
	}
	return e
}

// KindOf extracts the ErrorKind from err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}

// Sentinel errors, one per kind, for use with errors.Is.
var (
	ErrMissingField            = &LedgerError{Kind: KindMissingField, Message: "required field is missing"}
	ErrInvalidInstallmentCount = &LedgerError{Kind: KindInvalidInstallmentCount, Message: "installments count must be at least 1"}
	ErrInvalidContractStatus   = &LedgerError{Kind: KindInvalidContractStatus, Message: "operation not allowed for contract status"}
	ErrScheduleAlreadyExists   = &LedgerError{Kind: KindScheduleAlreadyExists, Message: "contract already has installments"}
	ErrInvalidContractState    = &LedgerError{Kind: KindInvalidContractState, Message: "down payment exceeds total value"}
	ErrInvalidTransition       = &LedgerError{Kind: KindInvalidTransition, Message: "contract is in a terminal state"}
	ErrPendingPayments         = &LedgerError{Kind: KindPendingPayments, Message: "contract has an unpaid balance"}
	ErrAlreadyPaid             = &LedgerError{Kind: KindAlreadyPaid, Message: "payment is already paid"}
	ErrAlreadyCancelled        = &LedgerError{Kind: KindAlreadyCancelled, Message: "payment is already cancelled"}
	ErrContractHasPayments     = &LedgerError{Kind: KindContractHasPayments, Message: "contract has payments"}
	ErrClientHasContracts      = &LedgerError{Kind: KindClientHasContracts, Message: "client has contracts"}
	ErrNotFound                = &LedgerError{Kind: KindNotFound, Message: "record not found"}
	ErrInvalidInput            = &LedgerError{Kind: KindInvalidInput, Message: "invalid input"}
)

// ErrStaleRecord is returned by store updates when the stored status no
// longer matches the status the change was computed from.
var ErrStaleRecord = errors.New("record changed since it was read")

// Validation errors for inbound records.
var (
	ErrEmptyFirstName        = &LedgerError{Kind: KindInvalidInput, Field: "first_name", Message: "first_name cannot be empty"}
	ErrInvalidEmail          = &LedgerError{Kind: KindInvalidInput, Field: "email", Message: "invalid email address"}
	ErrInvalidClientStatus   = &LedgerError{Kind: KindInvalidInput, Field: "status", Message: "invalid client status"}
	ErrInvalidTotalValue     = &LedgerError{Kind: KindInvalidInput, Field: "total_value", Message: "total_value must be greater than zero"}
	ErrInvalidDownPayment    = &LedgerError{Kind: KindInvalidInput, Field: "down_payment", Message: "down_payment cannot be negative"}
	ErrInvalidPaymentsNumber = &LedgerError{Kind: KindInvalidInput, Field: "number_of_payments", Message: "number_of_payments cannot be negative"}
	ErrInvalidAmount         = &LedgerError{Kind: KindInvalidInput, Field: "amount", Message: "amount must be greater than zero"}
	ErrInvalidPaymentMethod  = &LedgerError{Kind: KindInvalidInput, Field: "payment_method", Message: "invalid payment method"}
	ErrInvalidInstallment    = &LedgerError{Kind: KindInvalidInput, Field: "installment_number", Message: "installment_number must be at least 1"}
)

// NormalizeClientStatus converts common status spellings to standard values.
func NormalizeClientStatus(status string) ClientStatus {
	normalized := strings.ToLower(strings.TrimSpace(status))

	statusMap := map[string]ClientStatus{
		"":         ClientStatusActive,
		"active":   ClientStatusActive,
		"ativo":    ClientStatusActive,
		"ativa":    ClientStatusActive,
		"enabled":  ClientStatusActive,
		"1":        ClientStatusActive,
		"inactive": ClientStatusInactive,
		"inativo":  ClientStatusInactive,
		"inativa":  ClientStatusInactive,
		"disabled": ClientStatusInactive,
		"0":        ClientStatusInactive,
	}

	if mapped, ok := statusMap[normalized]; ok {
		return mapped
	}

	// Unknown values pass through and fail validation
	return ClientStatus(normalized)
}

// ValidateClientCreate validates client creation data.
func ValidateClientCreate(c *ClientCreate) error {
	if strings.TrimSpace(c.FirstName) == "" {
		return ErrEmptyFirstName
	}

	if c.Email != "" && !isValidEmail(c.Email) {
		return ErrInvalidEmail
	}

	if c.Status == "" {
		c.Status = ClientStatusActive
	}
	if !c.Status.IsValid() {
		return ErrInvalidClientStatus
	}

	return nil
}

// ValidateContractCreate validates contract creation data.
func ValidateContractCreate(c *ContractCreate) error {
	if c.ClientID == uuid.Nil {
		return &LedgerError{Kind: KindMissingField, Field: "client_id", Message: "client_id is required"}
	}

	if !c.TotalValue.GreaterThan(decimal.Zero) {
		return ErrInvalidTotalValue
	}

	if c.DownPayment.IsNegative() {
		return ErrInvalidDownPayment
	}

	if c.DownPayment.GreaterThan(c.TotalValue) {
		return &LedgerError{Kind: KindInvalidContractState, Field: "down_payment", Message: "down payment exceeds total value"}
	}

	if c.NumberOfPayments < 0 {
		return ErrInvalidPaymentsNumber
	}

	if c.Status == "" {
		c.Status = ContractStatusPending
	}
	if !c.Status.IsValid() || c.Status.IsTerminal() {
		return &LedgerError{Kind: KindInvalidContractStatus, Field: "status", Message: fmt.Sprintf("contracts cannot be created as %q", c.Status)}
	}

	return nil
}

// ValidatePaymentCreate validates single installment creation data.
func ValidatePaymentCreate(p *PaymentCreate) error {
	if p.ContractID == uuid.Nil {
		return &LedgerError{Kind: KindMissingField, Field: "contract_id", Message: "contract_id is required"}
	}

	if p.InstallmentNumber < 1 {
		return ErrInvalidInstallment
	}

	if !p.Amount.GreaterThan(decimal.Zero) {
		return ErrInvalidAmount
	}

	if p.DueDate.IsZero() {
		return &LedgerError{Kind: KindMissingField, Field: "due_date", Message: "due_date is required"}
	}

	if p.PaymentMethod == "" {
		p.PaymentMethod = DefaultPaymentMethod
	}
	if !p.PaymentMethod.IsValid() {
		return ErrInvalidPaymentMethod
	}

	return nil
}

// isValidEmail performs basic email validation.
func isValidEmail(email string) bool {
	if email == "" {
		return false
	}

	// Must contain @ with content before and after
	atIndex := strings.Index(email, "@")
	if atIndex <= 0 || atIndex == len(email)-1 {
		return false
	}

	// Must have a dot after @
	dotIndex := strings.LastIndex(email, ".")
	if dotIndex <= atIndex+1 || dotIndex == len(email)-1 {
		return false
	}

	return true
}

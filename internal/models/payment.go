// Package models defines the data structures for the finance back office.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the stored state of an installment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"

	// PaymentStatusOverdue is derived at read time and never persisted.
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// IsValid checks if the status is one that may be stored.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusCancelled:
		return true
	}
	return false
}

// PaymentMethod enumerates the accepted settlement channels.
type PaymentMethod string

const (
	PaymentMethodBoleto       PaymentMethod = "boleto"
	PaymentMethodPix          PaymentMethod = "pix"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodDebitCard    PaymentMethod = "debit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
)

// DefaultPaymentMethod is used when a caller does not choose one.
const DefaultPaymentMethod = PaymentMethodBoleto

// ValidPaymentMethods returns all valid payment methods.
func ValidPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodBoleto,
		PaymentMethodPix,
		PaymentMethodCreditCard,
		PaymentMethodDebitCard,
		PaymentMethodBankTransfer,
		PaymentMethodCash,
	}
}

// IsValid checks if the payment method is valid.
func (m PaymentMethod) IsValid() bool {
	for _, valid := range ValidPaymentMethods() {
		if m == valid {
			return true
		}
	}
	return false
}

// Payment represents one scheduled installment of a contract.
type Payment struct {
	ID                 uuid.UUID           `json:"id" db:"id"`
	ContractID         uuid.UUID           `json:"contract_id" db:"contract_id"`
	InstallmentNumber  int                 `json:"installment_number" db:"installment_number"`
	Amount             decimal.Decimal     `json:"amount" db:"amount"`
	DueDate            time.Time           `json:"due_date" db:"due_date"`
	Status             PaymentStatus       `json:"status" db:"status"`
	PaidDate           *time.Time          `json:"paid_date,omitempty" db:"paid_date"`
	AmountPaid         decimal.NullDecimal `json:"amount_paid" db:"amount_paid"`
	PaymentMethod      PaymentMethod       `json:"payment_method" db:"payment_method"`
	Notes              *string             `json:"notes,omitempty" db:"notes"`
	CancellationReason *string             `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
}

// PaymentCreate represents data needed to create a single installment.
type PaymentCreate struct {
	ContractID        uuid.UUID       `json:"contract_id" validate:"required"`
	InstallmentNumber int             `json:"installment_number" validate:"gte=1"`
	Amount            decimal.Decimal `json:"amount" validate:"required,gt=0"`
	DueDate           time.Time       `json:"due_date" validate:"required"`
	PaymentMethod     PaymentMethod   `json:"payment_method,omitempty"`
	Notes             *string         `json:"notes,omitempty"`
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	Status     PaymentStatus
	ContractID *uuid.UUID
	DueFrom    *time.Time
	DueTo      *time.Time
}

// Package models defines the data structures for the finance back office.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContractStatus represents the lifecycle state of a financing agreement.
type ContractStatus string

const (
	ContractStatusDraft     ContractStatus = "draft"
	ContractStatusPending   ContractStatus = "pending"
	ContractStatusActive    ContractStatus = "active"
	ContractStatusInactive  ContractStatus = "inactive"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusCancelled ContractStatus = "cancelled"
)

// ValidContractStatuses returns all valid contract status values.
func ValidContractStatuses() []ContractStatus {
	return []ContractStatus{
		ContractStatusDraft,
		ContractStatusPending,
		ContractStatusActive,
		ContractStatusInactive,
		ContractStatusCompleted,
		ContractStatusCancelled,
	}
}

// IsValid checks if the contract status is valid.
func (s ContractStatus) IsValid() bool {
	for _, valid := range ValidContractStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further business mutation is allowed.
func (s ContractStatus) IsTerminal() bool {
	return s == ContractStatusCompleted || s == ContractStatusCancelled
}

// Contract represents a financing agreement tied to exactly one client.
type Contract struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	ContractNumber     string          `json:"contract_number" db:"contract_number"`
	ClientID           uuid.UUID       `json:"client_id" db:"client_id"`
	Description        string          `json:"description,omitempty" db:"description"`
	TotalValue         decimal.Decimal `json:"total_value" db:"total_value"`
	DownPayment        decimal.Decimal `json:"down_payment" db:"down_payment"`
	NumberOfPayments   int             `json:"number_of_payments" db:"number_of_payments"`
	Status             ContractStatus  `json:"status" db:"status"`
	StartDate          *time.Time      `json:"start_date,omitempty" db:"start_date"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
	CancellationReason *string         `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// HasDownPayment reports whether an upfront amount was recorded.
func (c *Contract) HasDownPayment() bool {
	return c.DownPayment.GreaterThan(decimal.Zero)
}

// ContractCreate represents data needed to create a new contract.
type ContractCreate struct {
	ClientID         uuid.UUID       `json:"client_id" validate:"required"`
	Description      string          `json:"description,omitempty"`
	TotalValue       decimal.Decimal `json:"total_value" validate:"required,gt=0"`
	DownPayment      decimal.Decimal `json:"down_payment"`
	NumberOfPayments int             `json:"number_of_payments" validate:"gte=0"`
	Status           ContractStatus  `json:"status,omitempty"`
	StartDate        *time.Time      `json:"start_date,omitempty"`
	ContractNumber   string          `json:"contract_number,omitempty"`
}

// ContractFilter narrows contract listings.
type ContractFilter struct {
	Status   ContractStatus
	ClientID *uuid.UUID
}

// ContractWithPayments pairs a contract with the installments it owns.
type ContractWithPayments struct {
	Contract Contract
	Payments []Payment
}

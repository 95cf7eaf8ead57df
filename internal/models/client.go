// Package models defines the data structures for the finance back office.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClientStatus represents whether a client is currently active.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// IsValid checks if the client status is valid.
func (s ClientStatus) IsValid() bool {
	return s == ClientStatusActive || s == ClientStatusInactive
}

// Client represents a person or organization that may hold contracts.
type Client struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	FirstName string       `json:"first_name" db:"first_name"`
	LastName  string       `json:"last_name" db:"last_name"`
	Email     string       `json:"email,omitempty" db:"email"`
	Phone     string       `json:"phone,omitempty" db:"phone"`
	TaxID     string       `json:"tax_id,omitempty" db:"tax_id"`
	Status    ClientStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// FullName joins the display name parts.
func (c *Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ClientCreate represents the data needed to create a new client.
type ClientCreate struct {
	FirstName string       `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string       `json:"last_name" validate:"max=100"`
	Email     string       `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string       `json:"phone,omitempty"`
	TaxID     string       `json:"tax_id,omitempty"`
	Status    ClientStatus `json:"status,omitempty"`
}

// ClientFilter narrows client listings.
type ClientFilter struct {
	Status ClientStatus
	Search string
}

// BulkInsertResult contains the results of a bulk insert operation.
type BulkInsertResult struct {
	BatchID       string   `json:"batch_id,omitempty"`
	InsertedCount int      `json:"inserted_count"`
	FailedCount   int      `json:"failed_count"`
	Errors        []string `json:"errors,omitempty"`
}

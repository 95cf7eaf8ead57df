// Package memstore is an in-memory implementation of the back office stores.
// The server uses it in demo mode when no database is configured.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/money"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
)

// Store holds clients, contracts and payments behind a single lock.
type Store struct {
	mu        sync.RWMutex
	now       func() time.Time
	clients   []models.Client
	contracts []models.Contract
	payments  []models.Payment
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clients returns the client view of the store.
func (s *Store) Clients() *ClientStore { return &ClientStore{s: s} }

// Contracts returns the contract view of the store.
func (s *Store) Contracts() *ContractStore { return &ContractStore{s: s} }

// Payments returns the payment view of the store.
func (s *Store) Payments() *PaymentStore { return &PaymentStore{s: s} }

// HealthCheck always succeeds.
func (s *Store) HealthCheck(context.Context) error { return nil }

func paginate[T any](items []T, page models.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := len(items)
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

func notFound(kind string, id uuid.UUID) error {
	return models.NewLedgerError(models.KindNotFound, "", id, kind+" not found")
}

// ClientStore manages clients.
type ClientStore struct{ s *Store }

// Create adds a client.
func (c *ClientStore) Create(_ context.Context, in *models.ClientCreate) (*models.Client, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	client := c.s.newClient(in)
	return &client, nil
}

func (s *Store) newClient(in *models.ClientCreate) models.Client {
	now := s.now()
	client := models.Client{
		ID:        uuid.New(),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		TaxID:     strings.TrimSpace(in.TaxID),
		Status:    in.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.clients = append(s.clients, client)
	return client
}

// BulkInsert adds several clients, reporting invalid rows.
func (c *ClientStore) BulkInsert(_ context.Context, clients []*models.ClientCreate, batchID string) (*models.BulkInsertResult, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	result := &models.BulkInsertResult{BatchID: batchID, Errors: []string{}}
	for i, in := range clients {
		if err := models.ValidateClientCreate(in); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", i+1, in.FirstName, err))
			continue
		}
		c.s.newClient(in)
		result.InsertedCount++
	}
	return result, nil
}

// GetByID returns a client, or nil when missing.
func (c *ClientStore) GetByID(_ context.Context, id uuid.UUID) (*models.Client, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	for _, client := range c.s.clients {
		if client.ID == id {
			found := client
			return &found, nil
		}
	}
	return nil, nil
}

// List returns one page of matching clients, newest first.
func (c *ClientStore) List(_ context.Context, filter models.ClientFilter, page models.Page) ([]models.Client, int, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	matched := c.s.filterClients(filter)
	return paginate(matched, page), len(matched), nil
}

// ListAll returns every client, newest first.
func (c *ClientStore) ListAll(_ context.Context) ([]models.Client, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	return c.s.filterClients(models.ClientFilter{}), nil
}

func (s *Store) filterClients(filter models.ClientFilter) []models.Client {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []models.Client{}
	for _, client := range s.clients {
		if filter.Status != "" && client.Status != filter.Status {
			continue
		}
		if search != "" && !clientMatches(client, search) {
			continue
		}
		out = append(out, client)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func clientMatches(c models.Client, search string) bool {
	for _, field := range []string{c.FirstName, c.LastName, c.Email, c.TaxID} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// Delete removes a client without contracts.
func (c *ClientStore) Delete(_ context.Context, id uuid.UUID) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	idx := -1
	for i, client := range c.s.clients {
		if client.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFound("client", id)
	}

	var owned []models.Contract
	for _, contract := range c.s.contracts {
		if contract.ClientID == id {
			owned = append(owned, contract)
		}
	}
	if err := ledger.CheckClientDeletable(id, owned); err != nil {
		return err
	}

	c.s.clients = append(c.s.clients[:idx], c.s.clients[idx+1:]...)
	return nil
}

// ContractStore manages contracts.
type ContractStore struct{ s *Store }

// Create adds a contract, allocating the next contract number when none is given.
func (c *ContractStore) Create(_ context.Context, in *models.ContractCreate) (*models.Contract, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	now := c.s.now()
	numbers := make([]string, 0, len(c.s.contracts))
	for _, existing := range c.s.contracts {
		numbers = append(numbers, existing.ContractNumber)
	}

	number := in.ContractNumber
	if number == "" {
		number = ledger.NextContractNumber(now.Year(), numbers)
	} else {
		for _, existing := range numbers {
			if existing == number {
				return nil, &models.LedgerError{
					Kind:    models.KindInvalidInput,
					Field:   "contract_number",
					Message: fmt.Sprintf("contract number %s is already in use", number),
				}
			}
		}
	}

	contract := models.Contract{
		ID:               uuid.New(),
		ContractNumber:   number,
		ClientID:         in.ClientID,
		Description:      in.Description,
		TotalValue:       money.Round2(in.TotalValue),
		DownPayment:      money.Round2(in.DownPayment),
		NumberOfPayments: in.NumberOfPayments,
		Status:           in.Status,
		StartDate:        in.StartDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	c.s.contracts = append(c.s.contracts, contract)
	return &contract, nil
}

// GetByID returns a contract, or nil when missing.
func (c *ContractStore) GetByID(_ context.Context, id uuid.UUID) (*models.Contract, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	for _, contract := range c.s.contracts {
		if contract.ID == id {
			found := contract
			return &found, nil
		}
	}
	return nil, nil
}

// List returns one page of matching contracts, newest first.
func (c *ContractStore) List(_ context.Context, filter models.ContractFilter, page models.Page) ([]models.Contract, int, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	matched := c.s.filterContracts(filter)
	return paginate(matched, page), len(matched), nil
}

// ListAll returns every matching contract, newest first.
func (c *ContractStore) ListAll(_ context.Context, filter models.ContractFilter) ([]models.Contract, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	return c.s.filterContracts(filter), nil
}

func (s *Store) filterContracts(filter models.ContractFilter) []models.Contract {
	out := []models.Contract{}
	for _, contract := range s.contracts {
		if filter.Status != "" && contract.Status != filter.Status {
			continue
		}
		if filter.ClientID != nil && contract.ClientID != *filter.ClientID {
			continue
		}
		out = append(out, contract)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Update replaces the stored contract while it is still in the expected status.
func (c *ContractStore) Update(_ context.Context, contract *models.Contract, expected models.ContractStatus) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	for i := range c.s.contracts {
		if c.s.contracts[i].ID != contract.ID {
			continue
		}
		if c.s.contracts[i].Status != expected {
			return models.ErrStaleRecord
		}
		c.s.contracts[i] = *contract
		return nil
	}
	return models.ErrStaleRecord
}

// Delete removes a contract without payments.
func (c *ContractStore) Delete(_ context.Context, id uuid.UUID) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	idx := -1
	for i, contract := range c.s.contracts {
		if contract.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFound("contract", id)
	}

	if err := ledger.CheckContractDeletable(c.s.contracts[idx], c.s.paymentsOf(id)); err != nil {
		return err
	}

	c.s.contracts = append(c.s.contracts[:idx], c.s.contracts[idx+1:]...)
	return nil
}

func (s *Store) paymentsOf(contractID uuid.UUID) []models.Payment {
	var out []models.Payment
	for _, p := range s.payments {
		if p.ContractID == contractID {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) hasContract(id uuid.UUID) bool {
	for _, contract := range s.contracts {
		if contract.ID == id {
			return true
		}
	}
	return false
}

// PaymentStore manages payments.
type PaymentStore struct{ s *Store }

// Create adds a single installment.
func (p *PaymentStore) Create(_ context.Context, in *models.PaymentCreate) (*models.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	if !p.s.hasContract(in.ContractID) {
		return nil, notFound("contract", in.ContractID)
	}
	for _, existing := range p.s.paymentsOf(in.ContractID) {
		if existing.InstallmentNumber == in.InstallmentNumber {
			return nil, &models.LedgerError{
				Kind:    models.KindInvalidInput,
				Field:   "installment_number",
				Message: fmt.Sprintf("installment %d already exists for contract", in.InstallmentNumber),
			}
		}
	}

	now := p.s.now()
	payment := models.Payment{
		ID:                uuid.New(),
		ContractID:        in.ContractID,
		InstallmentNumber: in.InstallmentNumber,
		Amount:            money.Round2(in.Amount),
		DueDate:           money.DateOnly(in.DueDate),
		Status:            models.PaymentStatusPending,
		PaymentMethod:     in.PaymentMethod,
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	p.s.payments = append(p.s.payments, payment)
	return &payment, nil
}

// InsertSchedule stores a generated schedule unless the contract already
// has payments. The check and insert happen under the write lock.
func (p *PaymentStore) InsertSchedule(_ context.Context, contractID uuid.UUID, payments []models.Payment) ([]models.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	if !p.s.hasContract(contractID) {
		return nil, notFound("contract", contractID)
	}
	if existing := p.s.paymentsOf(contractID); len(existing) > 0 {
		return nil, models.NewLedgerError(models.KindScheduleAlreadyExists, "", contractID,
			fmt.Sprintf("contract already has %d payments", len(existing)))
	}

	now := p.s.now()
	stored := make([]models.Payment, len(payments))
	for i, payment := range payments {
		payment.ID = uuid.New()
		payment.ContractID = contractID
		payment.DueDate = money.DateOnly(payment.DueDate)
		payment.CreatedAt = now
		payment.UpdatedAt = now
		stored[i] = payment
	}
	p.s.payments = append(p.s.payments, stored...)

	out := make([]models.Payment, len(stored))
	copy(out, stored)
	return out, nil
}

// GetByID returns a payment, or nil when missing.
func (p *PaymentStore) GetByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	for _, payment := range p.s.payments {
		if payment.ID == id {
			found := payment
			return &found, nil
		}
	}
	return nil, nil
}

// List returns one page of matching payments ordered by due date.
func (p *PaymentStore) List(_ context.Context, filter models.PaymentFilter, page models.Page) ([]models.Payment, int, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	matched := p.s.filterPayments(filter)
	return paginate(matched, page), len(matched), nil
}

// ListAll returns every matching payment ordered by due date.
func (p *PaymentStore) ListAll(_ context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	return p.s.filterPayments(filter), nil
}

func (s *Store) filterPayments(filter models.PaymentFilter) []models.Payment {
	out := []models.Payment{}
	for _, payment := range s.payments {
		if filter.Status != "" && payment.Status != filter.Status {
			continue
		}
		if filter.ContractID != nil && payment.ContractID != *filter.ContractID {
			continue
		}
		if filter.DueFrom != nil && payment.DueDate.Before(money.DateOnly(*filter.DueFrom)) {
			continue
		}
		if filter.DueTo != nil && payment.DueDate.After(money.DateOnly(*filter.DueTo)) {
			continue
		}
		out = append(out, payment)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].InstallmentNumber < out[j].InstallmentNumber
	})
	return out
}

// Update replaces the stored payment while it is still in the expected status.
func (p *PaymentStore) Update(_ context.Context, payment *models.Payment, expected models.PaymentStatus) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	for i := range p.s.payments {
		if p.s.payments[i].ID != payment.ID {
			continue
		}
		if p.s.payments[i].Status != expected {
			return models.ErrStaleRecord
		}
		p.s.payments[i] = *payment
		return nil
	}
	return models.ErrStaleRecord
}

// Delete removes an unpaid payment.
func (p *PaymentStore) Delete(_ context.Context, id uuid.UUID) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	for i, payment := range p.s.payments {
		if payment.ID != id {
			continue
		}
		if err := ledger.CheckPaymentDeletable(payment); err != nil {
			return err
		}
		p.s.payments = append(p.s.payments[:i], p.s.payments[i+1:]...)
		return nil
	}
	return notFound("payment", id)
}

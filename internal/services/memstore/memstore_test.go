package memstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/services/memstore"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) }
}

func seedContract(t *testing.T, s *memstore.Store) (*models.Client, *models.Contract) {
	t.Helper()
	ctx := context.Background()

	client, err := s.Clients().Create(ctx, &models.ClientCreate{FirstName: "Ana", Status: models.ClientStatusActive})
	require.NoError(t, err)

	contract, err := s.Contracts().Create(ctx, &models.ContractCreate{
		ClientID:         client.ID,
		TotalValue:       decimal.NewFromInt(1200),
		DownPayment:      decimal.NewFromInt(200),
		NumberOfPayments: 5,
		Status:           models.ContractStatusPending,
	})
	require.NoError(t, err)
	return client, contract
}

func schedule(contractID uuid.UUID, n int) []models.Payment {
	payments := make([]models.Payment, n)
	for i := range payments {
		payments[i] = models.Payment{
			ContractID:        contractID,
			InstallmentNumber: i + 1,
			Amount:            decimal.NewFromInt(200),
			DueDate:           time.Date(2024, time.Month(i+1), 15, 0, 0, 0, 0, time.UTC),
			Status:            models.PaymentStatusPending,
			PaymentMethod:     models.PaymentMethodBoleto,
		}
	}
	return payments
}

func TestContractNumbering(t *testing.T) {
	s := memstore.New(memstore.WithClock(fixedClock()))
	_, first := seedContract(t, s)
	_, second := seedContract(t, s)

	assert.Equal(t, "2024-0001", first.ContractNumber)
	assert.Equal(t, "2024-0002", second.ContractNumber)

	_, err := s.Contracts().Create(context.Background(), &models.ContractCreate{
		ClientID:       first.ClientID,
		TotalValue:     decimal.NewFromInt(10),
		Status:         models.ContractStatusPending,
		ContractNumber: "2024-0002",
	})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestInsertSchedule_OnlyOnce(t *testing.T) {
	s := memstore.New(memstore.WithClock(fixedClock()))
	_, contract := seedContract(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Payments().InsertSchedule(ctx, contract.ID, schedule(contract.ID, 5))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, errors.Is(err, models.ErrScheduleAlreadyExists))
		}
	}
	assert.Equal(t, 1, succeeded)

	all, err := s.Payments().ListAll(ctx, models.PaymentFilter{ContractID: &contract.ID})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestDeleteGuards(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	client, contract := seedContract(t, s)

	stored, err := s.Payments().InsertSchedule(ctx, contract.ID, schedule(contract.ID, 2))
	require.NoError(t, err)

	assert.True(t, errors.Is(s.Clients().Delete(ctx, client.ID), models.ErrClientHasContracts))
	assert.True(t, errors.Is(s.Contracts().Delete(ctx, contract.ID), models.ErrContractHasPayments))

	paid := stored[0]
	paid.Status = models.PaymentStatusPaid
	require.NoError(t, s.Payments().Update(ctx, &paid, models.PaymentStatusPending))
	assert.ErrorIs(t, s.Payments().Update(ctx, &paid, models.PaymentStatusPending), models.ErrStaleRecord)
	assert.True(t, errors.Is(s.Payments().Delete(ctx, paid.ID), models.ErrAlreadyPaid))

	assert.True(t, errors.Is(s.Payments().Delete(ctx, uuid.New()), models.ErrNotFound))
}

func TestListPaginationAndFilters(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	for _, name := range []string{"Ana", "Bruno", "Carla", "Diego", "Elisa"} {
		status := models.ClientStatusActive
		if name == "Diego" {
			status = models.ClientStatusInactive
		}
		_, err := s.Clients().Create(ctx, &models.ClientCreate{FirstName: name, Status: status})
		require.NoError(t, err)
	}

	page, total, err := s.Clients().List(ctx, models.ClientFilter{}, models.NewPage(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)

	page, total, err = s.Clients().List(ctx, models.ClientFilter{}, models.NewPage(4, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, page)

	_, total, err = s.Clients().List(ctx, models.ClientFilter{Status: models.ClientStatusInactive}, models.NewPage(1, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	found, total, err := s.Clients().List(ctx, models.ClientFilter{Search: "carl"}, models.NewPage(1, 20))
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "Carla", found[0].FirstName)
}

func TestBulkInsert_ReportsInvalidRows(t *testing.T) {
	s := memstore.New()

	result, err := s.Clients().BulkInsert(context.Background(), []*models.ClientCreate{
		{FirstName: "Ana"},
		{FirstName: ""},
		{FirstName: "Bruno", Email: "not-an-email"},
	}, "batch-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.InsertedCount)
	assert.Equal(t, 2, result.FailedCount)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, "batch-1", result.BatchID)
}

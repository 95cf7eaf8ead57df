package reporting_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/services/reporting"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

type fixture struct {
	clients   []models.Client
	contracts []models.Contract
	payments  []models.Payment
}

func newFixture() fixture {
	alice := models.Client{ID: uuid.New(), FirstName: "Alice", Status: models.ClientStatusActive, CreatedAt: date("2024-05-20")}
	bruno := models.Client{ID: uuid.New(), FirstName: "Bruno", Status: models.ClientStatusActive, CreatedAt: date("2023-11-02")}
	carla := models.Client{ID: uuid.New(), FirstName: "Carla", Status: models.ClientStatusInactive, CreatedAt: date("2023-08-14")}

	paidOff := models.Contract{
		ID: uuid.New(), ClientID: bruno.ID, TotalValue: dec("600"), DownPayment: dec("0"),
		NumberOfPayments: 2, Status: models.ContractStatusCompleted, CreatedAt: date("2023-11-10"),
	}
	running := models.Contract{
		ID: uuid.New(), ClientID: alice.ID, TotalValue: dec("1200"), DownPayment: dec("200"),
		NumberOfPayments: 5, Status: models.ContractStatusActive, CreatedAt: date("2024-05-25"),
	}
	dropped := models.Contract{
		ID: uuid.New(), ClientID: carla.ID, TotalValue: dec("300"), DownPayment: dec("0"),
		NumberOfPayments: 1, Status: models.ContractStatusCancelled, CreatedAt: date("2023-09-01"),
	}

	payments := []models.Payment{
		{ID: uuid.New(), ContractID: paidOff.ID, InstallmentNumber: 1, Amount: dec("300"), DueDate: date("2023-12-10"),
			Status: models.PaymentStatusPaid, PaidDate: datePtr("2023-12-09")},
		{ID: uuid.New(), ContractID: paidOff.ID, InstallmentNumber: 2, Amount: dec("300"), DueDate: date("2024-01-10"),
			Status: models.PaymentStatusPaid, PaidDate: datePtr("2024-01-10")},
		{ID: uuid.New(), ContractID: running.ID, InstallmentNumber: 1, Amount: dec("200"), DueDate: date("2024-05-26"),
			Status: models.PaymentStatusPaid, PaidDate: datePtr("2024-05-26")},
		{ID: uuid.New(), ContractID: running.ID, InstallmentNumber: 2, Amount: dec("200"), DueDate: date("2024-06-05"),
			Status: models.PaymentStatusPending},
		{ID: uuid.New(), ContractID: running.ID, InstallmentNumber: 3, Amount: dec("200"), DueDate: date("2024-07-05"),
			Status: models.PaymentStatusPending},
		{ID: uuid.New(), ContractID: dropped.ID, InstallmentNumber: 1, Amount: dec("300"), DueDate: date("2023-10-01"),
			Status: models.PaymentStatusCancelled},
	}

	return fixture{
		clients:   []models.Client{alice, bruno, carla},
		contracts: []models.Contract{paidOff, running, dropped},
		payments:  payments,
	}
}

func TestBuildDashboard(t *testing.T) {
	f := newFixture()

	d := reporting.BuildDashboard(reporting.DashboardInput{
		Clients:    f.clients,
		Contracts:  f.contracts,
		Payments:   f.payments,
		PeriodDays: 30,
		AsOf:       time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, date("2024-05-11"), d.PeriodStart)

	assert.Equal(t, reporting.ClientStats{Total: 3, Active: 2, Inactive: 1, NewThisPeriod: 1}, d.Clients)

	assert.Equal(t, 3, d.Contracts.Total)
	assert.Equal(t, 1, d.Contracts.Active)
	assert.Equal(t, 1, d.Contracts.Completed)
	assert.Equal(t, 1, d.Contracts.Cancelled)
	assert.Equal(t, "2100.00", d.Contracts.TotalValue.StringFixed(2))
	assert.Equal(t, "700.00", d.Contracts.AverageValue.StringFixed(2))
	assert.Equal(t, 1, d.Contracts.NewThisPeriod)

	assert.Equal(t, 6, d.Payments.Total)
	assert.Equal(t, 3, d.Payments.Paid.Count)
	assert.Equal(t, "800.00", d.Payments.Paid.Amount.StringFixed(2))
	assert.Equal(t, 2, d.Payments.Pending.Count)
	assert.Equal(t, 1, d.Payments.Cancelled.Count)
	assert.Equal(t, 1, d.Payments.Overdue.Count)
	assert.Equal(t, "200.00", d.Payments.Overdue.Amount.StringFixed(2))
	assert.Equal(t, "200.00", d.Payments.RevenueThisPeriod.StringFixed(2))
	assert.Equal(t, "250.00", d.Payments.AverageValue.StringFixed(2))

	assert.Equal(t, "100.00", d.Rates.ConversionRate.StringFixed(2))
	assert.Equal(t, "50.00", d.Rates.PaymentRate.StringFixed(2))

	assert.Equal(t, 3, d.Portfolio.TotalContracts)
	assert.Equal(t, 1, d.Portfolio.FullyPaidContracts)
	assert.Equal(t, 2, d.Portfolio.PartiallyPaidContracts)
	assert.Equal(t, 1, d.Portfolio.ContractsWithDownPayment)
}

func TestBuildDashboard_Empty(t *testing.T) {
	d := reporting.BuildDashboard(reporting.DashboardInput{AsOf: date("2024-06-10")})

	assert.Equal(t, reporting.DefaultPeriodDays, d.PeriodDays)
	assert.Equal(t, 0, d.Clients.Total)
	assert.True(t, d.Contracts.AverageValue.IsZero())
	assert.True(t, d.Payments.AverageValue.IsZero())
	assert.True(t, d.Rates.ConversionRate.IsZero())
	assert.True(t, d.Rates.PaymentRate.IsZero())
	assert.True(t, d.Portfolio.AveragePercentagePaid.IsZero())
	assert.Equal(t, 0, d.Portfolio.PartiallyPaidContracts)
}

func TestDashboard_JSONFlattensPortfolio(t *testing.T) {
	f := newFixture()
	d := reporting.BuildDashboard(reporting.DashboardInput{
		Clients: f.clients, Contracts: f.contracts, Payments: f.payments, AsOf: date("2024-06-10"),
	})

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	portfolio, ok := decoded["portfolio"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, portfolio, "average_percentage_paid")
	assert.Contains(t, portfolio, "payment_completion_rate")
	assert.Contains(t, portfolio, "partially_paid_contracts")
}

func TestMonthlyRevenue(t *testing.T) {
	f := newFixture()

	months := reporting.MonthlyRevenue(f.payments, 7, date("2024-06-10"))

	require.Len(t, months, 7)
	assert.Equal(t, "2023-12", months[0].Month)
	assert.Equal(t, "300.00", months[0].Revenue.StringFixed(2))
	assert.Equal(t, "2024-01", months[1].Month)
	assert.Equal(t, 1, months[1].Payments)
	assert.Equal(t, "2024-05", months[5].Month)
	assert.Equal(t, "200.00", months[5].Revenue.StringFixed(2))
	assert.Equal(t, "2024-06", months[6].Month)
	assert.True(t, months[6].Revenue.IsZero())
}

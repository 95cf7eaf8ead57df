package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
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

// mockPayment creates a pending installment with default values
func mockPayment(overrides func(p *models.Payment)) models.Payment {
	p := models.Payment{
		ID:                uuid.New(),
		ContractID:        uuid.New(),
		InstallmentNumber: 1,
		Amount:            dec("200.00"),
		DueDate:           date("2024-01-01"),
		Status:            models.PaymentStatusPending,
		PaymentMethod:     models.PaymentMethodBoleto,
	}
	if overrides != nil {
		overrides(&p)
	}
	return p
}

func TestConfirmPayment_DefaultsAmountPaid(t *testing.T) {
	p := mockPayment(nil)
	paidOn := date("2024-01-05")
	asOf := date("2024-01-06")

	updated, err := ledger.ConfirmPayment(p, ledger.ConfirmRequest{PaymentDate: &paidOn}, asOf)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, updated.Status)
	require.NotNil(t, updated.PaidDate)
	assert.Equal(t, paidOn, *updated.PaidDate)
	require.True(t, updated.AmountPaid.Valid)
	assert.True(t, dec("200").Equal(updated.AmountPaid.Decimal))
	assert.Equal(t, models.PaymentMethodBoleto, updated.PaymentMethod)
	assert.Equal(t, asOf, updated.UpdatedAt)

	// Input untouched
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Nil(t, p.PaidDate)
}

func TestConfirmPayment_ExplicitFields(t *testing.T) {
	p := mockPayment(nil)
	paidOn := date("2024-01-05")
	notes := "paid at the counter"

	updated, err := ledger.ConfirmPayment(p, ledger.ConfirmRequest{
		PaymentDate:   &paidOn,
		AmountPaid:    decimal.NewNullDecimal(dec("150.50")),
		PaymentMethod: models.PaymentMethodPix,
		Notes:         &notes,
	}, date("2024-01-05"))
	require.NoError(t, err)

	assert.True(t, dec("150.50").Equal(updated.AmountPaid.Decimal))
	assert.Equal(t, models.PaymentMethodPix, updated.PaymentMethod)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
}

func TestConfirmPayment_Errors(t *testing.T) {
	paidOn := date("2024-01-05")

	tests := []struct {
		name     string
		payment  models.Payment
		req      ledger.ConfirmRequest
		expected error
	}{
		{
			name:     "already paid",
			payment:  mockPayment(func(p *models.Payment) { p.Status = models.PaymentStatusPaid }),
			req:      ledger.ConfirmRequest{PaymentDate: &paidOn},
			expected: models.ErrAlreadyPaid,
		},
		{
			name:     "cancelled",
			payment:  mockPayment(func(p *models.Payment) { p.Status = models.PaymentStatusCancelled }),
			req:      ledger.ConfirmRequest{PaymentDate: &paidOn},
			expected: models.ErrAlreadyCancelled,
		},
		{
			name:     "missing payment date",
			payment:  mockPayment(nil),
			req:      ledger.ConfirmRequest{},
			expected: models.ErrMissingField,
		},
		{
			name:     "paid status checked before missing date",
			payment:  mockPayment(func(p *models.Payment) { p.Status = models.PaymentStatusPaid }),
			req:      ledger.ConfirmRequest{},
			expected: models.ErrAlreadyPaid,
		},
		{
			name:     "invalid method",
			payment:  mockPayment(nil),
			req:      ledger.ConfirmRequest{PaymentDate: &paidOn, PaymentMethod: "cheque"},
			expected: models.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.ConfirmPayment(tt.payment, tt.req, paidOn)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}
}

func TestConfirmPayment_ErrorCarriesFieldAndID(t *testing.T) {
	p := mockPayment(nil)

	_, err := ledger.ConfirmPayment(p, ledger.ConfirmRequest{}, date("2024-01-05"))

	var le *models.LedgerError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, models.KindMissingField, le.Kind)
	assert.Equal(t, "payment_date", le.Field)
	assert.Equal(t, p.ID.String(), le.ID)
}

func TestCancelPayment(t *testing.T) {
	reason := "renegotiated"
	p := mockPayment(nil)

	// Overdue installments can still be cancelled
	updated, err := ledger.CancelPayment(p, &reason, date("2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, updated.Status)
	require.NotNil(t, updated.CancellationReason)
	assert.Equal(t, reason, *updated.CancellationReason)

	_, err = ledger.CancelPayment(updated, nil, date("2024-03-02"))
	assert.True(t, errors.Is(err, models.ErrAlreadyCancelled))

	paid := mockPayment(func(p *models.Payment) { p.Status = models.PaymentStatusPaid })
	_, err = ledger.CancelPayment(paid, nil, date("2024-03-02"))
	assert.True(t, errors.Is(err, models.ErrAlreadyPaid))
}

func TestCheckPaymentDeletable(t *testing.T) {
	assert.NoError(t, ledger.CheckPaymentDeletable(mockPayment(nil)))

	paid := mockPayment(func(p *models.Payment) { p.Status = models.PaymentStatusPaid })
	assert.True(t, errors.Is(ledger.CheckPaymentDeletable(paid), models.ErrAlreadyPaid))
}

func TestOverdueDays_Scenario(t *testing.T) {
	p := mockPayment(nil)
	asOf := date("2024-01-11")

	assert.Equal(t, 10, ledger.OverdueDays(p, asOf))
	assert.True(t, ledger.IsOverdue(p, asOf))
	assert.Equal(t, models.PaymentStatusOverdue, ledger.EffectiveStatus(p, asOf))
}

func TestOverdueDays_TimeOfDayIndependent(t *testing.T) {
	p := mockPayment(func(p *models.Payment) {
		p.DueDate = time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	})

	assert.Equal(t, 0, ledger.OverdueDays(p, time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 1, ledger.OverdueDays(p, time.Date(2024, 1, 2, 0, 1, 0, 0, time.UTC)))
}

func TestOverdueDays_NonPending(t *testing.T) {
	for _, status := range []models.PaymentStatus{models.PaymentStatusPaid, models.PaymentStatusCancelled} {
		p := mockPayment(func(p *models.Payment) { p.Status = status })
		assert.Equal(t, 0, ledger.OverdueDays(p, date("2025-01-01")))
		assert.Equal(t, status, ledger.EffectiveStatus(p, date("2025-01-01")))
	}
}

func TestOverdueDays_Monotonic(t *testing.T) {
	p := mockPayment(func(p *models.Payment) { p.DueDate = date("2024-02-10") })

	previous := 0
	for asOf := date("2024-01-01"); asOf.Before(date("2024-06-01")); asOf = asOf.AddDate(0, 0, 1) {
		days := ledger.OverdueDays(p, asOf)
		if !asOf.After(p.DueDate) {
			assert.Equal(t, 0, days, "as of %s", asOf)
		}
		assert.GreaterOrEqual(t, days, previous)
		previous = days
	}
}

func TestComputeInterest(t *testing.T) {
	due := date("2024-01-01")

	tests := []struct {
		name     string
		amount   decimal.Decimal
		due      *time.Time
		asOf     time.Time
		rate     decimal.Decimal
		expected string
	}{
		{"thirty days at one percent", dec("1000"), &due, date("2024-01-31"), dec("0.01"), "10.00"},
		{"fifteen days prorated", dec("1000"), &due, date("2024-01-16"), dec("0.02"), "10.00"},
		{"not yet due", dec("1000"), &due, date("2023-12-31"), dec("0.01"), "0.00"},
		{"due today", dec("1000"), &due, due, dec("0.01"), "0.00"},
		{"missing due date", dec("1000"), nil, date("2024-02-01"), dec("0.01"), "0.00"},
		{"zero rate", dec("1000"), &due, date("2024-02-01"), decimal.Zero, "0.00"},
		{"rounded to cents", dec("333.33"), &due, date("2024-01-11"), dec("0.01"), "1.11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ledger.ComputeInterest(tt.amount, tt.due, tt.asOf, tt.rate)
			assert.Equal(t, tt.expected, got.StringFixed(2))
		})
	}
}

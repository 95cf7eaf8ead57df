package ledger_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
)

// mockContract creates a pending contract with default values
func mockContract(overrides func(c *models.Contract)) models.Contract {
	c := models.Contract{
		ID:               uuid.New(),
		ContractNumber:   "2024-0001",
		ClientID:         uuid.New(),
		TotalValue:       dec("1200.00"),
		DownPayment:      dec("200.00"),
		NumberOfPayments: 5,
		Status:           models.ContractStatusPending,
	}
	if overrides != nil {
		overrides(&c)
	}
	return c
}

func scheduleRequest(count int, first string) ledger.ScheduleRequest {
	d := date(first)
	return ledger.ScheduleRequest{InstallmentsCount: count, FirstDueDate: &d}
}

func TestGenerateInstallments_Scenario(t *testing.T) {
	c := mockContract(nil)

	schedule, err := ledger.GenerateInstallments(c, nil, scheduleRequest(5, "2024-01-15"), date("2024-01-01"))
	require.NoError(t, err)

	assert.Equal(t, 5, schedule.TotalInstallments)
	assert.Equal(t, "200.00", schedule.InstallmentAmount.StringFixed(2))
	assert.Equal(t, "1000.00", schedule.RemainingAmount.StringFixed(2))
	require.Len(t, schedule.Payments, 5)

	expectedDates := []string{"2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15", "2024-05-15"}
	for i, p := range schedule.Payments {
		assert.Equal(t, i+1, p.InstallmentNumber)
		assert.Equal(t, c.ID, p.ContractID)
		assert.Equal(t, "200.00", p.Amount.StringFixed(2))
		assert.Equal(t, expectedDates[i], p.DueDate.Format("2006-01-02"))
		assert.Equal(t, models.PaymentStatusPending, p.Status)
		assert.Equal(t, models.PaymentMethodBoleto, p.PaymentMethod)
		assert.False(t, p.AmountPaid.Valid)
		assert.Nil(t, p.PaidDate)
	}
}

func TestGenerateInstallments_SumWithinRoundingTolerance(t *testing.T) {
	totals := []string{"1000.00", "999.99", "1234.57", "0.10", "100000.01"}
	counts := []int{1, 3, 7, 11, 12, 36}

	for _, total := range totals {
		for _, n := range counts {
			t.Run(fmt.Sprintf("%s/%d", total, n), func(t *testing.T) {
				c := mockContract(func(c *models.Contract) {
					c.TotalValue = dec(total)
					c.DownPayment = decimal.Zero
				})

				schedule, err := ledger.GenerateInstallments(c, nil, scheduleRequest(n, "2024-03-10"), date("2024-03-01"))
				require.NoError(t, err)

				sum := decimal.Zero
				for _, p := range schedule.Payments {
					sum = sum.Add(p.Amount)
				}
				tolerance := dec("0.01").Mul(decimal.NewFromInt(int64(n)))
				diff := sum.Sub(schedule.RemainingAmount).Abs()
				assert.True(t, diff.LessThanOrEqual(tolerance), "sum %s remaining %s", sum, schedule.RemainingAmount)
			})
		}
	}
}

func TestGenerateInstallments_NoRemainderRedistribution(t *testing.T) {
	c := mockContract(func(c *models.Contract) {
		c.TotalValue = dec("1000")
		c.DownPayment = decimal.Zero
	})

	schedule, err := ledger.GenerateInstallments(c, nil, scheduleRequest(3, "2024-01-10"), date("2024-01-01"))
	require.NoError(t, err)

	for _, p := range schedule.Payments {
		assert.Equal(t, "333.33", p.Amount.StringFixed(2))
	}
}

func TestGenerateInstallments_ActiveContractAndMethod(t *testing.T) {
	c := mockContract(func(c *models.Contract) { c.Status = models.ContractStatusActive })
	req := scheduleRequest(2, "2024-01-31")
	req.PaymentMethod = models.PaymentMethodPix

	schedule, err := ledger.GenerateInstallments(c, nil, req, date("2024-01-01"))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentMethodPix, schedule.Payments[0].PaymentMethod)
	// Day-of-month overflow rolls into March
	assert.Equal(t, "2024-03-02", schedule.Payments[1].DueDate.Format("2006-01-02"))
}

func TestGenerateInstallments_Errors(t *testing.T) {
	tests := []struct {
		name     string
		contract models.Contract
		existing []models.Payment
		req      ledger.ScheduleRequest
		expected error
	}{
		{
			name:     "zero installments",
			contract: mockContract(nil),
			req:      scheduleRequest(0, "2024-01-15"),
			expected: models.ErrInvalidInstallmentCount,
		},
		{
			name:     "missing first due date",
			contract: mockContract(nil),
			req:      ledger.ScheduleRequest{InstallmentsCount: 3},
			expected: models.ErrMissingField,
		},
		{
			name:     "completed contract",
			contract: mockContract(func(c *models.Contract) { c.Status = models.ContractStatusCompleted }),
			req:      scheduleRequest(3, "2024-01-15"),
			expected: models.ErrInvalidContractStatus,
		},
		{
			name:     "draft contract",
			contract: mockContract(func(c *models.Contract) { c.Status = models.ContractStatusDraft }),
			req:      scheduleRequest(3, "2024-01-15"),
			expected: models.ErrInvalidContractStatus,
		},
		{
			name:     "schedule exists",
			contract: mockContract(nil),
			existing: []models.Payment{mockPayment(nil)},
			req:      scheduleRequest(3, "2024-01-15"),
			expected: models.ErrScheduleAlreadyExists,
		},
		{
			name: "down payment above total",
			contract: mockContract(func(c *models.Contract) {
				c.TotalValue = dec("100")
				c.DownPayment = dec("150")
			}),
			req:      scheduleRequest(3, "2024-01-15"),
			expected: models.ErrInvalidContractState,
		},
		{
			name:     "invalid payment method",
			contract: mockContract(nil),
			req: func() ledger.ScheduleRequest {
				req := scheduleRequest(3, "2024-01-15")
				req.PaymentMethod = "barter"
				return req
			}(),
			expected: models.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := ledger.GenerateInstallments(tt.contract, tt.existing, tt.req, date("2024-01-01"))
			require.Error(t, err)
			assert.Nil(t, schedule)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}
}

func TestChangeStatus_CompletionBlockedByBalance(t *testing.T) {
	c := mockContract(func(c *models.Contract) {
		c.TotalValue = dec("1000")
		c.DownPayment = decimal.Zero
		c.Status = models.ContractStatusActive
	})
	payments := []models.Payment{
		mockPayment(func(p *models.Payment) { p.Amount = dec("900"); p.Status = models.PaymentStatusPaid }),
		mockPayment(func(p *models.Payment) { p.Amount = dec("100") }),
	}

	_, err := ledger.ChangeStatus(c, payments, models.ContractStatusCompleted, nil, date("2024-06-01"))
	assert.True(t, errors.Is(err, models.ErrPendingPayments), "got %v", err)

	payments[1].Status = models.PaymentStatusPaid
	updated, err := ledger.ChangeStatus(c, payments, models.ContractStatusCompleted, nil, date("2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, date("2024-06-01"), *updated.CompletedAt)
	assert.Equal(t, models.ContractStatusActive, c.Status)
}

func TestChangeStatus_Cancel(t *testing.T) {
	reason := "client request"
	c := mockContract(nil)

	updated, err := ledger.ChangeStatus(c, nil, models.ContractStatusCancelled, &reason, date("2024-02-01"))
	require.NoError(t, err)

	assert.Equal(t, models.ContractStatusCancelled, updated.Status)
	require.NotNil(t, updated.CancelledAt)
	require.NotNil(t, updated.CancellationReason)
	assert.Equal(t, reason, *updated.CancellationReason)
}

func TestChangeStatus_SameStatusIsNoop(t *testing.T) {
	c := mockContract(func(c *models.Contract) { c.Status = models.ContractStatusCancelled })

	updated, err := ledger.ChangeStatus(c, nil, models.ContractStatusCancelled, nil, date("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, c, updated)
}

func TestChangeStatus_TerminalStatesAreFinal(t *testing.T) {
	terminal := []models.ContractStatus{models.ContractStatusCompleted, models.ContractStatusCancelled}

	for _, from := range terminal {
		for _, to := range models.ValidContractStatuses() {
			if to == from {
				continue
			}
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				c := mockContract(func(c *models.Contract) { c.Status = from })

				updated, err := ledger.ChangeStatus(c, nil, to, nil, date("2024-02-01"))
				assert.True(t, errors.Is(err, models.ErrInvalidTransition), "got %v", err)
				assert.Equal(t, from, updated.Status)
			})
		}
	}
}

func TestChangeStatus_NonTerminalMoves(t *testing.T) {
	c := mockContract(func(c *models.Contract) { c.Status = models.ContractStatusActive })

	updated, err := ledger.ChangeStatus(c, nil, models.ContractStatusInactive, nil, date("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusInactive, updated.Status)

	updated, err = ledger.ChangeStatus(updated, nil, models.ContractStatusActive, nil, date("2024-02-02"))
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusActive, updated.Status)
}

func TestChangeStatus_UnknownStatus(t *testing.T) {
	_, err := ledger.ChangeStatus(mockContract(nil), nil, "archived", nil, date("2024-02-01"))
	assert.True(t, errors.Is(err, models.ErrInvalidContractStatus))
}

func TestCheckDeletable(t *testing.T) {
	c := mockContract(nil)
	assert.NoError(t, ledger.CheckContractDeletable(c, nil))
	assert.True(t, errors.Is(ledger.CheckContractDeletable(c, []models.Payment{mockPayment(nil)}), models.ErrContractHasPayments))

	assert.NoError(t, ledger.CheckClientDeletable(c.ClientID, nil))
	assert.True(t, errors.Is(ledger.CheckClientDeletable(c.ClientID, []models.Contract{c}), models.ErrClientHasContracts))
}

func TestNextContractNumber(t *testing.T) {
	assert.Equal(t, "2024-0001", ledger.NextContractNumber(2024, nil))
	assert.Equal(t, "2024-0008", ledger.NextContractNumber(2024, []string{"2024-0003", "2024-0007", "2023-0042", "legacy-12"}))
	assert.Equal(t, "2025-0001", ledger.NextContractNumber(2025, []string{"2024-0099"}))
}

package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/money"
)

// ScheduleRequest describes the installment plan to generate.
type ScheduleRequest struct {
	InstallmentsCount int                  `json:"installments_count"`
	FirstDueDate      *time.Time           `json:"first_due_date"`
	PaymentMethod     models.PaymentMethod `json:"payment_method,omitempty"`
}

// Schedule is a generated installment plan plus its summary.
type Schedule struct {
	Payments          []models.Payment `json:"payments"`
	TotalInstallments int              `json:"total_installments"`
	InstallmentAmount decimal.Decimal  `json:"installment_amount"`
	RemainingAmount   decimal.Decimal  `json:"remaining_amount"`
}

// GenerateInstallments builds the one-time installment schedule of a
// contract. Every installment carries the same rounded amount; the cent-level
// remainder is not redistributed.
func GenerateInstallments(c models.Contract, existing []models.Payment, req ScheduleRequest, asOf time.Time) (*Schedule, error) {
	if req.InstallmentsCount < 1 {
		return nil, models.NewLedgerError(models.KindInvalidInstallmentCount, "installments_count", c.ID,
			fmt.Sprintf("installments count must be at least 1, got %d", req.InstallmentsCount))
	}

	if req.FirstDueDate == nil || req.FirstDueDate.IsZero() {
		return nil, models.NewLedgerError(models.KindMissingField, "first_due_date", c.ID, "first_due_date is required")
	}

	if c.Status != models.ContractStatusPending && c.Status != models.ContractStatusActive {
		return nil, models.NewLedgerError(models.KindInvalidContractStatus, "status", c.ID,
			fmt.Sprintf("cannot generate installments for a %s contract", c.Status))
	}

	if len(existing) > 0 {
		return nil, models.NewLedgerError(models.KindScheduleAlreadyExists, "", c.ID,
			fmt.Sprintf("contract already has %d payments", len(existing)))
	}

	remaining := c.TotalValue.Sub(c.DownPayment)
	if remaining.IsNegative() {
		return nil, models.NewLedgerError(models.KindInvalidContractState, "down_payment", c.ID, "down payment exceeds total value")
	}

	method := req.PaymentMethod
	if method == "" {
		method = models.DefaultPaymentMethod
	}
	if !method.IsValid() {
		return nil, models.NewLedgerError(models.KindInvalidInput, "payment_method", c.ID, "invalid payment method")
	}

	count := decimal.NewFromInt(int64(req.InstallmentsCount))
	installmentAmount := money.Round2(remaining.Div(count))

	payments := make([]models.Payment, req.InstallmentsCount)
	for i := 0; i < req.InstallmentsCount; i++ {
		payments[i] = models.Payment{
			ContractID:        c.ID,
			InstallmentNumber: i + 1,
			Amount:            installmentAmount,
			DueDate:           money.AddMonths(*req.FirstDueDate, i),
			Status:            models.PaymentStatusPending,
			PaymentMethod:     method,
			CreatedAt:         asOf,
			UpdatedAt:         asOf,
		}
	}

	return &Schedule{
		Payments:          payments,
		TotalInstallments: req.InstallmentsCount,
		InstallmentAmount: installmentAmount,
		RemainingAmount:   remaining,
	}, nil
}

// PaidTotal sums the scheduled amounts of settled installments.
func PaidTotal(payments []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Status == models.PaymentStatusPaid {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// ChangeStatus applies the contract transition table and returns the updated
// record. The input contract is never modified.
func ChangeStatus(c models.Contract, payments []models.Payment, requested models.ContractStatus, reason *string, asOf time.Time) (models.Contract, error) {
	if !requested.IsValid() {
		return c, models.NewLedgerError(models.KindInvalidContractStatus, "status", c.ID,
			fmt.Sprintf("unknown contract status %q", requested))
	}

	if requested == c.Status {
		return c, nil
	}

	if c.Status.IsTerminal() {
		return c, models.NewLedgerError(models.KindInvalidTransition, "status", c.ID,
			fmt.Sprintf("cannot change a %s contract to %s", c.Status, requested))
	}

	updated := c
	switch requested {
	case models.ContractStatusCompleted:
		paid := PaidTotal(payments)
		if paid.LessThan(c.TotalValue) {
			return c, models.NewLedgerError(models.KindPendingPayments, "status", c.ID,
				fmt.Sprintf("paid %s of %s", paid.StringFixed(money.Places), c.TotalValue.StringFixed(money.Places)))
		}
		completedAt := asOf
		updated.CompletedAt = &completedAt

	case models.ContractStatusCancelled:
		cancelledAt := asOf
		updated.CancelledAt = &cancelledAt
		if reason != nil && *reason != "" {
			r := *reason
			updated.CancellationReason = &r
		}
	}

	updated.Status = requested
	updated.UpdatedAt = asOf
	return updated, nil
}

// CheckContractDeletable allows deletion only for contracts without payments.
func CheckContractDeletable(c models.Contract, payments []models.Payment) error {
	if len(payments) > 0 {
		return models.NewLedgerError(models.KindContractHasPayments, "", c.ID,
			fmt.Sprintf("contract has %d payments", len(payments)))
	}
	return nil
}

// CheckClientDeletable allows deletion only for clients without contracts.
func CheckClientDeletable(clientID uuid.UUID, contracts []models.Contract) error {
	if len(contracts) > 0 {
		return models.NewLedgerError(models.KindClientHasContracts, "", clientID,
			fmt.Sprintf("client has %d contracts", len(contracts)))
	}
	return nil
}

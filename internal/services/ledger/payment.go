// Package ledger implements the contract and installment state machines and
// the installment schedule generator. Every function is a pure computation:
// inputs are never mutated and the as-of time is always passed in.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/money"
)

// interestDaysPerMonth prorates a monthly rate over overdue days.
var interestDaysPerMonth = decimal.NewFromInt(30)

// ConfirmRequest carries the settlement details for an installment.
type ConfirmRequest struct {
	PaymentDate   *time.Time           `json:"payment_date"`
	AmountPaid    decimal.NullDecimal  `json:"amount_paid"`
	PaymentMethod models.PaymentMethod `json:"payment_method,omitempty"`
	Notes         *string              `json:"notes,omitempty"`
}

// ConfirmPayment settles a pending installment and returns the updated record.
func ConfirmPayment(p models.Payment, req ConfirmRequest, asOf time.Time) (models.Payment, error) {
	switch p.Status {
	case models.PaymentStatusPaid:
		return p, models.NewLedgerError(models.KindAlreadyPaid, "status", p.ID, "payment is already paid")
	case models.PaymentStatusCancelled:
		return p, models.NewLedgerError(models.KindAlreadyCancelled, "status", p.ID, "cannot confirm a cancelled payment")
	}

	if req.PaymentDate == nil || req.PaymentDate.IsZero() {
		return p, models.NewLedgerError(models.KindMissingField, "payment_date", p.ID, "payment_date is required")
	}

	if req.PaymentMethod != "" && !req.PaymentMethod.IsValid() {
		return p, models.NewLedgerError(models.KindInvalidInput, "payment_method", p.ID, "invalid payment method")
	}

	if req.AmountPaid.Valid && !req.AmountPaid.Decimal.GreaterThan(decimal.Zero) {
		return p, models.NewLedgerError(models.KindInvalidInput, "amount_paid", p.ID, "amount_paid must be greater than zero")
	}

	updated := p
	paidDate := money.DateOnly(*req.PaymentDate)
	updated.Status = models.PaymentStatusPaid
	updated.PaidDate = &paidDate
	updated.AmountPaid = req.AmountPaid
	if !req.AmountPaid.Valid {
		updated.AmountPaid = decimal.NewNullDecimal(p.Amount)
	}
	if req.PaymentMethod != "" {
		updated.PaymentMethod = req.PaymentMethod
	}
	if req.Notes != nil {
		notes := *req.Notes
		updated.Notes = &notes
	}
	updated.UpdatedAt = asOf

	return updated, nil
}

// CancelPayment cancels a pending installment, overdue or not.
func CancelPayment(p models.Payment, reason *string, asOf time.Time) (models.Payment, error) {
	switch p.Status {
	case models.PaymentStatusCancelled:
		return p, models.NewLedgerError(models.KindAlreadyCancelled, "status", p.ID, "payment is already cancelled")
	case models.PaymentStatusPaid:
		return p, models.NewLedgerError(models.KindAlreadyPaid, "status", p.ID, "cannot cancel a paid payment")
	}

	updated := p
	updated.Status = models.PaymentStatusCancelled
	if reason != nil && *reason != "" {
		r := *reason
		updated.CancellationReason = &r
	}
	updated.UpdatedAt = asOf

	return updated, nil
}

// CheckPaymentDeletable rejects deletion of settled installments.
func CheckPaymentDeletable(p models.Payment) error {
	if p.Status == models.PaymentStatusPaid {
		return models.NewLedgerError(models.KindAlreadyPaid, "status", p.ID, "paid payments cannot be deleted")
	}
	return nil
}

// OverdueDays returns how many whole days a pending installment is past due.
func OverdueDays(p models.Payment, asOf time.Time) int {
	if p.Status != models.PaymentStatusPending {
		return 0
	}
	days := money.DaysBetween(p.DueDate, asOf)
	if days <= 0 {
		return 0
	}
	return days
}

// IsOverdue reports whether the installment is pending past its due date.
func IsOverdue(p models.Payment, asOf time.Time) bool {
	return OverdueDays(p, asOf) > 0
}

// EffectiveStatus returns the stored status, or the virtual overdue status.
func EffectiveStatus(p models.Payment, asOf time.Time) models.PaymentStatus {
	if IsOverdue(p, asOf) {
		return models.PaymentStatusOverdue
	}
	return p.Status
}

// ComputeInterest returns simple late interest prorated from a monthly rate:
// amount * monthlyRate * overdueDays / 30.
func ComputeInterest(amount decimal.Decimal, dueDate *time.Time, asOf time.Time, monthlyRate decimal.Decimal) decimal.Decimal {
	if dueDate == nil || dueDate.IsZero() || asOf.IsZero() {
		return decimal.Zero
	}
	if amount.IsZero() || monthlyRate.IsZero() {
		return decimal.Zero
	}

	overdueDays := money.DaysBetween(*dueDate, asOf)
	if overdueDays <= 0 {
		return decimal.Zero
	}

	days := decimal.NewFromInt(int64(overdueDays))
	return money.Round2(amount.Mul(monthlyRate).Mul(days).Div(interestDaysPerMonth))
}

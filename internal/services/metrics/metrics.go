// Package metrics derives per-contract financial metrics and portfolio
// rollups from contracts and their installments.
package metrics

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/money"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
)

var hundred = decimal.NewFromInt(100)

// ContractMetrics is the financial position of one contract.
type ContractMetrics struct {
	TotalAmount       decimal.Decimal `json:"total_amount"`
	DownPayment       decimal.Decimal `json:"down_payment"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	TotalPaid         decimal.Decimal `json:"amount_paid"`
	AmountRemaining   decimal.Decimal `json:"amount_remaining"`
	PercentagePaid    decimal.Decimal `json:"percentage_paid"`
	PaymentsMade      int             `json:"payments_made"`
	PaymentsRemaining int             `json:"payments_remaining"`
	IsFullyPaid       bool            `json:"is_fully_paid"`
}

// NextPayment describes the earliest pending installment of a contract.
type NextPayment struct {
	PaymentID         uuid.UUID       `json:"payment_id"`
	InstallmentNumber int             `json:"installment_number"`
	DueDate           time.Time       `json:"due_date"`
	Amount            decimal.Decimal `json:"amount"`
	DaysUntilDue      int             `json:"days_until_due"`
	IsOverdue         bool            `json:"is_overdue"`
	DaysOverdue       int             `json:"days_overdue"`
}

// AggregateStatistics is the portfolio-wide rollup of ContractMetrics.
type AggregateStatistics struct {
	TotalContracts           int             `json:"total_contracts"`
	TotalValue               decimal.Decimal `json:"total_value"`
	TotalPaid                decimal.Decimal `json:"total_paid"`
	TotalRemaining           decimal.Decimal `json:"total_remaining"`
	AveragePercentagePaid    decimal.Decimal `json:"average_percentage_paid"`
	FullyPaidContracts       int             `json:"fully_paid_contracts"`
	ContractsWithDownPayment int             `json:"contracts_with_down_payment"`
	PaymentCompletionRate    decimal.Decimal `json:"payment_completion_rate"`
}

// ComputeContractMetrics derives the financial position of a contract from
// its installments. Each derived amount is rounded to cents on its own.
func ComputeContractMetrics(c models.Contract, payments []models.Payment) ContractMetrics {
	if c.TotalValue.IsZero() {
		return ContractMetrics{
			TotalAmount:       decimal.Zero,
			DownPayment:       decimal.Zero,
			InstallmentAmount: decimal.Zero,
			TotalPaid:         decimal.Zero,
			AmountRemaining:   decimal.Zero,
			PercentagePaid:    decimal.Zero,
			PaymentsRemaining: c.NumberOfPayments,
		}
	}

	total := c.TotalValue
	down := c.DownPayment

	installmentAmount := decimal.Zero
	if c.NumberOfPayments > 0 {
		installmentAmount = money.Round2(total.Sub(down).Div(decimal.NewFromInt(int64(c.NumberOfPayments))))
	}

	paymentsMade := 0
	for _, p := range payments {
		if p.Status == models.PaymentStatusPaid {
			paymentsMade++
		}
	}

	totalPaid := money.Round2(down.Add(ledger.PaidTotal(payments)))
	percentagePaid := money.Round2(hundred.Mul(totalPaid).Div(total))
	remaining := money.Round2(total.Sub(totalPaid))

	paymentsRemaining := c.NumberOfPayments - paymentsMade
	if paymentsRemaining < 0 {
		paymentsRemaining = 0
	}

	return ContractMetrics{
		TotalAmount:       total,
		DownPayment:       down,
		InstallmentAmount: installmentAmount,
		TotalPaid:         totalPaid,
		AmountRemaining:   remaining,
		PercentagePaid:    percentagePaid,
		PaymentsMade:      paymentsMade,
		PaymentsRemaining: paymentsRemaining,
		IsFullyPaid:       percentagePaid.GreaterThanOrEqual(hundred),
	}
}

// NextPaymentDue returns the earliest pending installment, or nil when the
// contract has none. Ties on due date go to the lowest installment number.
func NextPaymentDue(payments []models.Payment, asOf time.Time) *NextPayment {
	var next *models.Payment
	for i := range payments {
		p := &payments[i]
		if p.Status != models.PaymentStatusPending {
			continue
		}
		if next == nil || earlier(p, next) {
			next = p
		}
	}
	if next == nil {
		return nil
	}

	daysUntil := money.DaysBetween(asOf, next.DueDate)
	daysOverdue := 0
	if daysUntil < 0 {
		daysOverdue = -daysUntil
	}

	return &NextPayment{
		PaymentID:         next.ID,
		InstallmentNumber: next.InstallmentNumber,
		DueDate:           money.DateOnly(next.DueDate),
		Amount:            next.Amount,
		DaysUntilDue:      daysUntil,
		IsOverdue:         daysUntil < 0,
		DaysOverdue:       daysOverdue,
	}
}

func earlier(a, b *models.Payment) bool {
	da, db := money.DateOnly(a.DueDate), money.DateOnly(b.DueDate)
	if !da.Equal(db) {
		return da.Before(db)
	}
	return a.InstallmentNumber < b.InstallmentNumber
}

// Aggregate rolls up the metrics of every contract. An empty portfolio
// yields zero totals and rates.
func Aggregate(items []models.ContractWithPayments) AggregateStatistics {
	stats := AggregateStatistics{
		TotalContracts:        len(items),
		TotalValue:            decimal.Zero,
		TotalPaid:             decimal.Zero,
		TotalRemaining:        decimal.Zero,
		AveragePercentagePaid: decimal.Zero,
		PaymentCompletionRate: decimal.Zero,
	}

	percentSum := decimal.Zero
	for _, item := range items {
		m := ComputeContractMetrics(item.Contract, item.Payments)

		stats.TotalValue = stats.TotalValue.Add(item.Contract.TotalValue)
		stats.TotalPaid = stats.TotalPaid.Add(m.TotalPaid)
		stats.TotalRemaining = stats.TotalRemaining.Add(m.AmountRemaining)
		percentSum = percentSum.Add(m.PercentagePaid)

		if m.IsFullyPaid {
			stats.FullyPaidContracts++
		}
		if item.Contract.HasDownPayment() {
			stats.ContractsWithDownPayment++
		}
	}

	stats.AveragePercentagePaid = money.SafeDiv(percentSum, decimal.NewFromInt(int64(len(items))))
	stats.PaymentCompletionRate = money.PercentOfCounts(stats.FullyPaidContracts, len(items))
	return stats
}

// GroupByContract associates each contract with its installments by
// contract_id. Installments are ordered by installment number; payments of
// unknown contracts are dropped.
func GroupByContract(contracts []models.Contract, payments []models.Payment) []models.ContractWithPayments {
	byContract := make(map[uuid.UUID][]models.Payment, len(contracts))
	for _, p := range payments {
		byContract[p.ContractID] = append(byContract[p.ContractID], p)
	}

	items := make([]models.ContractWithPayments, 0, len(contracts))
	for _, c := range contracts {
		ps := byContract[c.ID]
		sort.SliceStable(ps, func(i, j int) bool {
			return ps[i].InstallmentNumber < ps[j].InstallmentNumber
		})
		items = append(items, models.ContractWithPayments{Contract: c, Payments: ps})
	}
	return items
}

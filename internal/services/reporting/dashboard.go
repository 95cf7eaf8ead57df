// Package reporting builds the back office dashboard from full collections
// of clients, contracts and payments.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/money"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
	"github.com/viniciusnovato/finance-sub000/internal/services/metrics"
)

// DefaultPeriodDays is used when no reporting period is requested.
const DefaultPeriodDays = 30

// DashboardInput holds the unpaginated collections the report is built from.
type DashboardInput struct {
	Clients    []models.Client
	Contracts  []models.Contract
	Payments   []models.Payment
	PeriodDays int
	AsOf       time.Time
}

// Dashboard is the composed back office report.
type Dashboard struct {
	PeriodDays  int            `json:"period_days"`
	PeriodStart time.Time      `json:"period_start"`
	GeneratedAt time.Time      `json:"generated_at"`
	Clients     ClientStats    `json:"clients"`
	Contracts   ContractStats  `json:"contracts"`
	Payments    PaymentStats   `json:"payments"`
	Rates       Rates          `json:"rates"`
	Portfolio   PortfolioStats `json:"portfolio"`
}

// ClientStats counts clients by status and recency.
type ClientStats struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	Inactive      int `json:"inactive"`
	NewThisPeriod int `json:"new_this_period"`
}

// ContractStats counts contracts per status bucket.
type ContractStats struct {
	Total         int             `json:"total"`
	Draft         int             `json:"draft"`
	Pending       int             `json:"pending"`
	Active        int             `json:"active"`
	Inactive      int             `json:"inactive"`
	Completed     int             `json:"completed"`
	Cancelled     int             `json:"cancelled"`
	TotalValue    decimal.Decimal `json:"total_value"`
	AverageValue  decimal.Decimal `json:"average_value"`
	NewThisPeriod int             `json:"new_this_period"`
}

// Bucket is a count with its summed amount.
type Bucket struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

func (b *Bucket) add(amount decimal.Decimal) {
	b.Count++
	b.Amount = b.Amount.Add(amount)
}

// PaymentStats partitions installments by stored and virtual status.
type PaymentStats struct {
	Total             int             `json:"total"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Paid              Bucket          `json:"paid"`
	Pending           Bucket          `json:"pending"`
	Cancelled         Bucket          `json:"cancelled"`
	Overdue           Bucket          `json:"overdue"`
	RevenueThisPeriod decimal.Decimal `json:"revenue_this_period"`
	AverageValue      decimal.Decimal `json:"average_value"`
}

// Rates are the derived dashboard ratios, in percent.
type Rates struct {
	ConversionRate decimal.Decimal `json:"conversion_rate"`
	PaymentRate    decimal.Decimal `json:"payment_rate"`
}

// PortfolioStats merges the aggregate contract metrics into the report.
type PortfolioStats struct {
	metrics.AggregateStatistics
	PartiallyPaidContracts int `json:"partially_paid_contracts"`
}

// PeriodStart returns the first day included in a reporting period.
func PeriodStart(asOf time.Time, periodDays int) time.Time {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	return money.AddDays(asOf, -periodDays)
}

// BuildDashboard composes the dashboard report. It never fails: empty
// collections yield zero counts and rates.
func BuildDashboard(in DashboardInput) Dashboard {
	periodDays := in.PeriodDays
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	start := PeriodStart(in.AsOf, periodDays)

	d := Dashboard{
		PeriodDays:  periodDays,
		PeriodStart: start,
		GeneratedAt: in.AsOf,
		Clients:     clientStats(in.Clients, start),
		Contracts:   contractStats(in.Contracts, start),
		Payments:    paymentStats(in.Payments, start, in.AsOf),
	}

	d.Rates = Rates{
		ConversionRate: money.PercentOfCounts(d.Contracts.Total, d.Clients.Total),
		PaymentRate:    money.PercentOfCounts(d.Payments.Paid.Count, d.Payments.Total),
	}

	aggregate := metrics.Aggregate(metrics.GroupByContract(in.Contracts, in.Payments))
	d.Portfolio = PortfolioStats{
		AggregateStatistics:    aggregate,
		PartiallyPaidContracts: aggregate.TotalContracts - aggregate.FullyPaidContracts,
	}

	return d
}

func onOrAfter(t, start time.Time) bool {
	return !money.DateOnly(t).Before(start)
}

func clientStats(clients []models.Client, start time.Time) ClientStats {
	stats := ClientStats{Total: len(clients)}
	for _, c := range clients {
		switch c.Status {
		case models.ClientStatusActive:
			stats.Active++
		case models.ClientStatusInactive:
			stats.Inactive++
		}
		if onOrAfter(c.CreatedAt, start) {
			stats.NewThisPeriod++
		}
	}
	return stats
}

func contractStats(contracts []models.Contract, start time.Time) ContractStats {
	stats := ContractStats{Total: len(contracts), TotalValue: decimal.Zero}
	for _, c := range contracts {
		switch c.Status {
		case models.ContractStatusDraft:
			stats.Draft++
		case models.ContractStatusPending:
			stats.Pending++
		case models.ContractStatusActive:
			stats.Active++
		case models.ContractStatusInactive:
			stats.Inactive++
		case models.ContractStatusCompleted:
			stats.Completed++
		case models.ContractStatusCancelled:
			stats.Cancelled++
		}
		stats.TotalValue = stats.TotalValue.Add(c.TotalValue)
		if onOrAfter(c.CreatedAt, start) {
			stats.NewThisPeriod++
		}
	}
	stats.AverageValue = money.SafeDiv(stats.TotalValue, decimal.NewFromInt(int64(len(contracts))))
	return stats
}

func paymentStats(payments []models.Payment, start, asOf time.Time) PaymentStats {
	stats := PaymentStats{
		Total:             len(payments),
		TotalAmount:       decimal.Zero,
		Paid:              Bucket{Amount: decimal.Zero},
		Pending:           Bucket{Amount: decimal.Zero},
		Cancelled:         Bucket{Amount: decimal.Zero},
		Overdue:           Bucket{Amount: decimal.Zero},
		RevenueThisPeriod: decimal.Zero,
	}

	for _, p := range payments {
		stats.TotalAmount = stats.TotalAmount.Add(p.Amount)

		switch p.Status {
		case models.PaymentStatusPaid:
			stats.Paid.add(p.Amount)
			if p.PaidDate != nil && onOrAfter(*p.PaidDate, start) {
				stats.RevenueThisPeriod = stats.RevenueThisPeriod.Add(p.Amount)
			}
		case models.PaymentStatusPending:
			stats.Pending.add(p.Amount)
			if ledger.IsOverdue(p, asOf) {
				stats.Overdue.add(p.Amount)
			}
		case models.PaymentStatusCancelled:
			stats.Cancelled.add(p.Amount)
		}
	}

	stats.AverageValue = money.SafeDiv(stats.TotalAmount, decimal.NewFromInt(int64(len(payments))))
	return stats
}

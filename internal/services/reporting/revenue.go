package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/money"
)

// MaxMonths is the longest window MonthlyRevenue builds.
const MaxMonths = 120

// MonthRevenue is the paid amount collected in one calendar month.
type MonthRevenue struct {
	Month    string          `json:"month"`
	Revenue  decimal.Decimal `json:"revenue"`
	Payments int             `json:"payments"`
}

// MonthlyRevenue returns collected revenue for the last `months` calendar
// months up to asOf, oldest first. Months without payments are included.
func MonthlyRevenue(payments []models.Payment, months int, asOf time.Time) []MonthRevenue {
	if months <= 0 {
		months = 12
	}
	if months > MaxMonths {
		months = MaxMonths
	}

	current := money.MonthStart(asOf)
	first := current.AddDate(0, -(months - 1), 0)

	out := make([]MonthRevenue, months)
	index := make(map[string]int, months)
	for i := range out {
		key := first.AddDate(0, i, 0).Format("2006-01")
		out[i] = MonthRevenue{Month: key, Revenue: decimal.Zero}
		index[key] = i
	}

	for _, p := range payments {
		if p.Status != models.PaymentStatusPaid || p.PaidDate == nil {
			continue
		}
		i, ok := index[p.PaidDate.Format("2006-01")]
		if !ok {
			continue
		}
		out[i].Revenue = out[i].Revenue.Add(p.Amount)
		out[i].Payments++
	}

	return out
}

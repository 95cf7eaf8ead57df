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

// ContractSummary bundles a contract with its derived position.
type ContractSummary struct {
	Contract    models.Contract `json:"contract"`
	Metrics     ContractMetrics `json:"metrics"`
	NextPayment *NextPayment    `json:"next_payment"`
}

// Summarize computes metrics and next payment for one contract.
func Summarize(c models.Contract, payments []models.Payment, asOf time.Time) ContractSummary {
	return ContractSummary{
		Contract:    c,
		Metrics:     ComputeContractMetrics(c, payments),
		NextPayment: NextPaymentDue(payments, asOf),
	}
}

// OverdueInstallment is a pending installment past its due date.
type OverdueInstallment struct {
	Payment     models.Payment  `json:"payment"`
	DaysOverdue int             `json:"days_overdue"`
	Interest    decimal.Decimal `json:"interest"`
	AmountDue   decimal.Decimal `json:"amount_due"`
}

// OverdueInstallments lists overdue installments, most overdue first, with
// late interest accrued at monthlyRate.
func OverdueInstallments(payments []models.Payment, asOf time.Time, monthlyRate decimal.Decimal) []OverdueInstallment {
	var out []OverdueInstallment
	for _, p := range payments {
		days := ledger.OverdueDays(p, asOf)
		if days == 0 {
			continue
		}
		due := p.DueDate
		interest := ledger.ComputeInterest(p.Amount, &due, asOf, monthlyRate)
		out = append(out, OverdueInstallment{
			Payment:     p,
			DaysOverdue: days,
			Interest:    interest,
			AmountDue:   money.Round2(p.Amount.Add(interest)),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysOverdue != out[j].DaysOverdue {
			return out[i].DaysOverdue > out[j].DaysOverdue
		}
		return out[i].Payment.InstallmentNumber < out[j].Payment.InstallmentNumber
	})
	return out
}

// OverdueByContract groups overdue installments by contract_id.
func OverdueByContract(items []OverdueInstallment) map[uuid.UUID][]OverdueInstallment {
	grouped := make(map[uuid.UUID][]OverdueInstallment)
	for _, item := range items {
		grouped[item.Payment.ContractID] = append(grouped[item.Payment.ContractID], item)
	}
	return grouped
}

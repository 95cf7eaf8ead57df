package backoffice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/money"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
	"github.com/viniciusnovato/finance-sub000/internal/services/metrics"
)

// CreatePayment adds a single installment to a non-terminal contract.
func (s *Service) CreatePayment(ctx context.Context, in *models.PaymentCreate) (*models.Payment, error) {
	if err := models.ValidatePaymentCreate(in); err != nil {
		return nil, err
	}

	contract, err := s.stores.Contracts.GetByID(ctx, in.ContractID)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, models.NewLedgerError(models.KindNotFound, "contract_id", in.ContractID, "contract not found")
	}
	if contract.Status.IsTerminal() {
		return nil, models.NewLedgerError(models.KindInvalidContractStatus, "status", contract.ID,
			"cannot add payments to a "+string(contract.Status)+" contract")
	}

	payment, err := s.stores.Payments.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.invalidateReports(ctx)
	return s.withEffectiveStatus(*payment), nil
}

// GetPayment loads one installment with its effective status.
func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.stores.Payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, notFound("payment", id)
	}
	return s.withEffectiveStatus(*payment), nil
}

// ListPayments returns one page of installments. Filtering by the overdue
// status selects pending installments due before today.
func (s *Service) ListPayments(ctx context.Context, filter models.PaymentFilter, page models.Page) ([]models.Payment, models.Pagination, error) {
	asOf := s.now()
	filter = storedFilter(filter, asOf)

	payments, total, err := s.stores.Payments.List(ctx, filter, page)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	for i := range payments {
		payments[i].Status = ledger.EffectiveStatus(payments[i], asOf)
	}
	return payments, models.NewPagination(page, total), nil
}

// storedFilter rewrites the virtual overdue status into a stored-status query.
func storedFilter(filter models.PaymentFilter, asOf time.Time) models.PaymentFilter {
	if filter.Status != models.PaymentStatusOverdue {
		return filter
	}

	filter.Status = models.PaymentStatusPending
	yesterday := money.AddDays(asOf, -1)
	if filter.DueTo == nil || filter.DueTo.After(yesterday) {
		filter.DueTo = &yesterday
	}
	return filter
}

// ConfirmPayment settles a pending installment.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID, req ledger.ConfirmRequest) (*models.Payment, error) {
	updated, err := s.transitionPayment(ctx, id, func(p models.Payment) (models.Payment, error) {
		return ledger.ConfirmPayment(p, req, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment confirmed",
		zap.String("payment_id", id.String()),
		zap.String("contract_id", updated.ContractID.String()),
		zap.Int("installment", updated.InstallmentNumber),
	)
	s.invalidateReports(ctx)
	return updated, nil
}

// CancelPayment cancels a pending installment.
func (s *Service) CancelPayment(ctx context.Context, id uuid.UUID, reason *string) (*models.Payment, error) {
	updated, err := s.transitionPayment(ctx, id, func(p models.Payment) (models.Payment, error) {
		return ledger.CancelPayment(p, reason, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment cancelled", zap.String("payment_id", id.String()))
	s.invalidateReports(ctx)
	return updated, nil
}

// transitionPayment loads a payment, applies a lifecycle change and writes it
// back only if the stored status is unchanged. When another request got there
// first the payment is reloaded, so the change is judged against the state
// that won.
func (s *Service) transitionPayment(ctx context.Context, id uuid.UUID, apply func(models.Payment) (models.Payment, error)) (*models.Payment, error) {
	for attempt := 1; ; attempt++ {
		payment, err := s.stores.Payments.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			return nil, notFound("payment", id)
		}

		updated, err := apply(*payment)
		if err != nil {
			return nil, err
		}

		err = s.stores.Payments.Update(ctx, &updated, payment.Status)
		if errors.Is(err, models.ErrStaleRecord) && attempt < maxUpdateAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &updated, nil
	}
}

// DeletePayment removes an installment that has not been paid.
func (s *Service) DeletePayment(ctx context.Context, id uuid.UUID) error {
	if err := s.stores.Payments.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Payment deleted", zap.String("payment_id", id.String()))
	s.invalidateReports(ctx)
	return nil
}

// OverdueInstallments lists every overdue installment with accrued interest,
// most overdue first.
func (s *Service) OverdueInstallments(ctx context.Context) ([]metrics.OverdueInstallment, error) {
	asOf := s.now()
	pending, err := s.stores.Payments.ListAll(ctx, storedFilter(models.PaymentFilter{Status: models.PaymentStatusOverdue}, asOf))
	if err != nil {
		return nil, err
	}

	items := metrics.OverdueInstallments(pending, asOf, s.interestRate)
	for i := range items {
		items[i].Payment.Status = models.PaymentStatusOverdue
	}
	return items, nil
}

// ClientOverdue groups one client's overdue installments.
type ClientOverdue struct {
	Client    models.Client
	Contracts map[uuid.UUID]models.Contract
	Items     []metrics.OverdueInstallment
}

// OverdueByClient groups overdue installments by the owning client. Clients
// are ordered by their most overdue installment.
func (s *Service) OverdueByClient(ctx context.Context) ([]ClientOverdue, error) {
	items, err := s.OverdueInstallments(ctx)
	if err != nil {
		return nil, err
	}

	contracts := make(map[uuid.UUID]*models.Contract)
	byClient := make(map[uuid.UUID]*ClientOverdue)
	var out []*ClientOverdue

	for _, item := range items {
		contract, ok := contracts[item.Payment.ContractID]
		if !ok {
			contract, err = s.stores.Contracts.GetByID(ctx, item.Payment.ContractID)
			if err != nil {
				return nil, err
			}
			contracts[item.Payment.ContractID] = contract
		}
		if contract == nil {
			continue
		}

		group, ok := byClient[contract.ClientID]
		if !ok {
			client, err := s.stores.Clients.GetByID(ctx, contract.ClientID)
			if err != nil {
				return nil, err
			}
			if client == nil {
				continue
			}
			group = &ClientOverdue{Client: *client, Contracts: make(map[uuid.UUID]models.Contract)}
			byClient[contract.ClientID] = group
			out = append(out, group)
		}

		group.Contracts[contract.ID] = *contract
		group.Items = append(group.Items, item)
	}

	result := make([]ClientOverdue, len(out))
	for i, group := range out {
		result[i] = *group
	}
	return result, nil
}

func (s *Service) withEffectiveStatus(p models.Payment) *models.Payment {
	p.Status = ledger.EffectiveStatus(p, s.now())
	return &p
}

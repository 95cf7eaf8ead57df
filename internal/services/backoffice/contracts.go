package backoffice

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
	"github.com/viniciusnovato/finance-sub000/internal/services/metrics"
)

// CreateContract validates and stores a contract for an existing client.
func (s *Service) CreateContract(ctx context.Context, in *models.ContractCreate) (*models.Contract, error) {
	if err := models.ValidateContractCreate(in); err != nil {
		return nil, err
	}

	client, err := s.stores.Clients.GetByID(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, models.NewLedgerError(models.KindNotFound, "client_id", in.ClientID, "client not found")
	}

	contract, err := s.stores.Contracts.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Contract created",
		zap.String("contract_id", contract.ID.String()),
		zap.String("contract_number", contract.ContractNumber),
	)
	s.invalidateReports(ctx)
	return contract, nil
}

// GetContract loads one contract.
func (s *Service) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	contract, err := s.stores.Contracts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, notFound("contract", id)
	}
	return contract, nil
}

// contractPayments loads every installment of a contract.
func (s *Service) contractPayments(ctx context.Context, contractID uuid.UUID) ([]models.Payment, error) {
	id := contractID
	payments, err := s.stores.Payments.ListAll(ctx, models.PaymentFilter{ContractID: &id})
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	return payments, nil
}

// ContractSummary returns a contract with its metrics and next due installment.
func (s *Service) ContractSummary(ctx context.Context, id uuid.UUID) (*metrics.ContractSummary, error) {
	contract, err := s.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}

	payments, err := s.contractPayments(ctx, id)
	if err != nil {
		return nil, err
	}

	summary := metrics.Summarize(*contract, payments, s.now())
	return &summary, nil
}

// ListContracts returns one page of contracts, each with its metrics.
func (s *Service) ListContracts(ctx context.Context, filter models.ContractFilter, page models.Page) ([]metrics.ContractSummary, models.Pagination, error) {
	contracts, total, err := s.stores.Contracts.List(ctx, filter, page)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	asOf := s.now()
	summaries := make([]metrics.ContractSummary, 0, len(contracts))
	for _, c := range contracts {
		payments, err := s.contractPayments(ctx, c.ID)
		if err != nil {
			return nil, models.Pagination{}, err
		}
		summaries = append(summaries, metrics.Summarize(c, payments, asOf))
	}

	return summaries, models.NewPagination(page, total), nil
}

// ChangeContractStatus applies a status transition.
func (s *Service) ChangeContractStatus(ctx context.Context, id uuid.UUID, status models.ContractStatus, reason *string) (*models.Contract, error) {
	for attempt := 1; ; attempt++ {
		contract, err := s.GetContract(ctx, id)
		if err != nil {
			return nil, err
		}

		payments, err := s.contractPayments(ctx, id)
		if err != nil {
			return nil, err
		}

		updated, err := ledger.ChangeStatus(*contract, payments, status, reason, s.now())
		if err != nil {
			return nil, err
		}
		if updated.Status == contract.Status {
			return &updated, nil
		}

		err = s.stores.Contracts.Update(ctx, &updated, contract.Status)
		if errors.Is(err, models.ErrStaleRecord) && attempt < maxUpdateAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("Contract status changed",
			zap.String("contract_id", id.String()),
			zap.String("from", string(contract.Status)),
			zap.String("to", string(updated.Status)),
		)
		s.invalidateReports(ctx)
		return &updated, nil
	}
}

// DeleteContract removes a contract that has no installments.
func (s *Service) DeleteContract(ctx context.Context, id uuid.UUID) error {
	if err := s.stores.Contracts.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Contract deleted", zap.String("contract_id", id.String()))
	s.invalidateReports(ctx)
	return nil
}

// GenerateSchedule creates the one-time installment schedule of a contract.
// The store re-checks for existing installments inside its write so two
// concurrent requests cannot both succeed.
func (s *Service) GenerateSchedule(ctx context.Context, id uuid.UUID, req ledger.ScheduleRequest) (*ledger.Schedule, error) {
	contract, err := s.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}

	existing, err := s.contractPayments(ctx, id)
	if err != nil {
		return nil, err
	}

	schedule, err := ledger.GenerateInstallments(*contract, existing, req, s.now())
	if err != nil {
		return nil, err
	}

	stored, err := s.stores.Payments.InsertSchedule(ctx, id, schedule.Payments)
	if err != nil {
		return nil, err
	}
	schedule.Payments = stored

	s.logger.Info("Installment schedule generated",
		zap.String("contract_id", id.String()),
		zap.Int("installments", schedule.TotalInstallments),
		zap.String("installment_amount", schedule.InstallmentAmount.StringFixed(2)),
	)
	s.invalidateReports(ctx)
	return schedule, nil
}

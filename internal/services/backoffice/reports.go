package backoffice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/money"
	"github.com/viniciusnovato/finance-sub000/internal/services/reporting"
	s3service "github.com/viniciusnovato/finance-sub000/internal/services/s3"
)

// ExportResult points at an exported report.
type ExportResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MaxRevenueMonths bounds the revenue report window.
const MaxRevenueMonths = reporting.MaxMonths

// Dashboard builds the dashboard for the given period, serving it from the
// report cache when possible. A non-positive period uses the configured
// default.
func (s *Service) Dashboard(ctx context.Context, periodDays int) (*reporting.Dashboard, error) {
	if periodDays <= 0 {
		periodDays = s.periodDays
	}
	asOf := s.now()
	name := fmt.Sprintf("dashboard:%s:%d", money.FormatDate(asOf), periodDays)

	dashboard, err := cachedReport(ctx, s, name, func() (reporting.Dashboard, error) {
		in, err := s.loadAll(ctx)
		if err != nil {
			return reporting.Dashboard{}, err
		}
		in.PeriodDays = periodDays
		in.AsOf = asOf
		return reporting.BuildDashboard(in), nil
	})
	if err != nil {
		return nil, err
	}
	return &dashboard, nil
}

// MonthlyRevenue returns collected revenue per calendar month for the last
// months months, 12 when months is zero.
func (s *Service) MonthlyRevenue(ctx context.Context, months int) ([]reporting.MonthRevenue, error) {
	if months == 0 {
		months = 12
	}
	if months < 0 || months > MaxRevenueMonths {
		return nil, models.NewLedgerError(models.KindInvalidInput, "months", uuid.Nil,
			fmt.Sprintf("months must be between 1 and %d", MaxRevenueMonths))
	}
	asOf := s.now()
	name := fmt.Sprintf("revenue:%s:%d", money.FormatDate(asOf), months)

	return cachedReport(ctx, s, name, func() ([]reporting.MonthRevenue, error) {
		paid, err := s.stores.Payments.ListAll(ctx, models.PaymentFilter{Status: models.PaymentStatusPaid})
		if err != nil {
			return nil, fmt.Errorf("failed to load payments: %w", err)
		}
		return reporting.MonthlyRevenue(paid, months, asOf), nil
	})
}

// cachedReport serves the named report from the cache or builds and stores
// it. The cache key is resolved before building, so a report computed from
// data that a concurrent write replaced is stored under a generation that is
// no longer read. Cache failures are logged and never fail the report.
func cachedReport[T any](ctx context.Context, s *Service, name string, build func() (T, error)) (T, error) {
	key, err := s.cache.Key(ctx, name)
	if err != nil {
		s.logger.Warn("Report cache unavailable", zap.String("report", name), zap.Error(err))
		key = ""
	}

	if key != "" {
		var cached T
		if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
			s.logger.Warn("Report cache read failed", zap.String("report", name), zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	report, err := build()
	if err != nil {
		return report, err
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, report); err != nil {
			s.logger.Warn("Report cache write failed", zap.String("report", name), zap.Error(err))
		}
	}
	return report, nil
}

// ExportDashboard writes the dashboard as JSON to the report bucket and
// returns a presigned download link.
func (s *Service) ExportDashboard(ctx context.Context, periodDays int) (*ExportResult, error) {
	if s.exporter == nil {
		return nil, ErrExportDisabled
	}

	dashboard, err := s.Dashboard(ctx, periodDays)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(dashboard, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dashboard: %w", err)
	}

	key := s3service.ReportKey(fmt.Sprintf("dashboard_%dd", dashboard.PeriodDays), s.now())
	if err := s.exporter.UploadFile(ctx, key, data, "application/json"); err != nil {
		return nil, err
	}

	link, err := s.exporter.GeneratePresignedDownloadURL(ctx, key, s.presignExpiry)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Dashboard exported", zap.String("key", key))
	return &ExportResult{Key: key, URL: link.URL, ExpiresAt: link.ExpiresAt}, nil
}

// loadAll reads the unpaginated collections the dashboard is built from.
func (s *Service) loadAll(ctx context.Context) (reporting.DashboardInput, error) {
	clients, err := s.stores.Clients.ListAll(ctx)
	if err != nil {
		return reporting.DashboardInput{}, fmt.Errorf("failed to load clients: %w", err)
	}

	contracts, err := s.stores.Contracts.ListAll(ctx, models.ContractFilter{})
	if err != nil {
		return reporting.DashboardInput{}, fmt.Errorf("failed to load contracts: %w", err)
	}

	payments, err := s.stores.Payments.ListAll(ctx, models.PaymentFilter{})
	if err != nil {
		return reporting.DashboardInput{}, fmt.Errorf("failed to load payments: %w", err)
	}

	return reporting.DashboardInput{Clients: clients, Contracts: contracts, Payments: payments}, nil
}

// Package handlers provides the Lambda handlers and the shared wiring of the
// back office stack.
package handlers

import (
	"context"
	"fmt"

	appConfig "github.com/viniciusnovato/finance-sub000/internal/config"
	"github.com/viniciusnovato/finance-sub000/internal/services/backoffice"
	"github.com/viniciusnovato/finance-sub000/internal/services/cache"
	"github.com/viniciusnovato/finance-sub000/internal/services/database"
	s3service "github.com/viniciusnovato/finance-sub000/internal/services/s3"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

var (
	_ backoffice.ClientStore    = (*database.ClientRepository)(nil)
	_ backoffice.ContractStore  = (*database.ContractRepository)(nil)
	_ backoffice.PaymentStore   = (*database.PaymentRepository)(nil)
	_ backoffice.ReportCache    = (*cache.ReportCache)(nil)
	_ backoffice.ReportExporter = (*s3service.Service)(nil)
)

// Backend is a configured service plus the connections it holds.
type Backend struct {
	Service *backoffice.Service
	DB      *database.DB
	Cache   *cache.ReportCache
}

// DatabaseStores adapts the PostgreSQL repositories to the service stores.
func DatabaseStores(db *database.DB) backoffice.Stores {
	return backoffice.Stores{
		Clients:   database.NewClientRepository(db),
		Contracts: database.NewContractRepository(db),
		Payments:  database.NewPaymentRepository(db),
	}
}

// ServiceOptions translates configuration into service options. The report
// exporter is enabled only when a report bucket is configured.
func ServiceOptions(ctx context.Context, cfg *appConfig.Config, reportCache *cache.ReportCache) ([]backoffice.Option, error) {
	opts := []backoffice.Option{
		backoffice.WithLateInterestRate(cfg.LateInterestMonthlyRate),
		backoffice.WithReportPeriod(cfg.ReportPeriodDays),
	}
	if reportCache != nil {
		opts = append(opts, backoffice.WithCache(reportCache))
	}

	if cfg.S3ReportBucket != "" {
		exporter, err := s3service.NewService(ctx, cfg.AWSRegion, cfg.S3ReportBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to create report exporter: %w", err)
		}
		opts = append(opts, backoffice.WithExporter(exporter, int(cfg.PresignExpiry.Minutes())))
	}
	return opts, nil
}

// NewBackend connects to PostgreSQL and Redis and builds the service.
func NewBackend(ctx context.Context, cfg *appConfig.Config) (*Backend, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	reportCache := cache.Connect(ctx, cfg)

	opts, err := ServiceOptions(ctx, cfg, reportCache)
	if err != nil {
		db.Close()
		_ = reportCache.Close()
		return nil, err
	}

	utils.GetLogger().Info("Back office backend ready",
		utils.String("stage", cfg.Stage),
		utils.Bool("cache", reportCache != nil),
		utils.Bool("export", cfg.S3ReportBucket != ""),
	)

	return &Backend{
		Service: backoffice.New(DatabaseStores(db), opts...),
		DB:      db,
		Cache:   reportCache,
	}, nil
}

// Close releases the database pool and the Redis client.
func (b *Backend) Close() {
	if b == nil {
		return
	}
	if b.DB != nil {
		b.DB.Close()
	}
	_ = b.Cache.Close()
}

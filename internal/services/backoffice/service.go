// Package backoffice orchestrates the record stores, the ledger engine, the
// report cache and the report exporter behind one service used by the HTTP
// API, the Lambda handlers and the CLI.
package backoffice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/services/reporting"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

// ErrExportDisabled is returned when no report bucket is configured.
var ErrExportDisabled = errors.New("report export is not configured")

// maxUpdateAttempts bounds the reload-and-retry loop of a status change that
// lost a race with a concurrent write.
const maxUpdateAttempts = 3

// DefaultLateInterestRate is the monthly rate applied to overdue installments.
var DefaultLateInterestRate = decimal.RequireFromString("0.01")

// Service implements the back office operations.
type Service struct {
	stores        Stores
	cache         ReportCache
	exporter      ReportExporter
	now           func() time.Time
	interestRate  decimal.Decimal
	periodDays    int
	presignExpiry int
	logger        *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Every engine call receives its
// result as the as-of instant.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCache enables report caching.
func WithCache(c ReportCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithExporter enables report export.
func WithExporter(e ReportExporter, presignExpiryMinutes int) Option {
	return func(s *Service) {
		s.exporter = e
		s.presignExpiry = presignExpiryMinutes
	}
}

// WithLateInterestRate sets the monthly late interest rate.
func WithLateInterestRate(rate decimal.Decimal) Option {
	return func(s *Service) { s.interestRate = rate }
}

// WithReportPeriod sets the default dashboard period in days.
func WithReportPeriod(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.periodDays = days
		}
	}
}

// New creates a Service over the given stores.
func New(stores Stores, opts ...Option) *Service {
	s := &Service{
		stores:       stores,
		cache:        noCache{},
		now:          func() time.Time { return time.Now().UTC() },
		interestRate: DefaultLateInterestRate,
		periodDays:   reporting.DefaultPeriodDays,
		logger:       utils.Named("backoffice"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current instant.
func (s *Service) Now() time.Time {
	return s.now()
}

// invalidateReports drops cached reports after a write. Failures are logged
// and do not fail the write.
func (s *Service) invalidateReports(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("Failed to invalidate report cache", zap.Error(err))
	}
}

func notFound(record string, id uuid.UUID) error {
	return models.NewLedgerError(models.KindNotFound, "", id, record+" not found")
}

type noCache struct{}

func (noCache) Key(context.Context, string) (string, error)            { return "", nil }
func (noCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (noCache) Set(context.Context, string, interface{}) error         { return nil }
func (noCache) Invalidate(context.Context) error                       { return nil }

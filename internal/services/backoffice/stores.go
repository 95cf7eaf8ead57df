package backoffice

import (
	"context"

	"github.com/google/uuid"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	s3service "github.com/viniciusnovato/finance-sub000/internal/services/s3"
)

// ClientStore persists clients. GetByID returns nil, nil for a missing row.
type ClientStore interface {
	Create(ctx context.Context, in *models.ClientCreate) (*models.Client, error)
	BulkInsert(ctx context.Context, clients []*models.ClientCreate, batchID string) (*models.BulkInsertResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
	List(ctx context.Context, filter models.ClientFilter, page models.Page) ([]models.Client, int, error)
	ListAll(ctx context.Context) ([]models.Client, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ContractStore persists contracts.
type ContractStore interface {
	Create(ctx context.Context, in *models.ContractCreate) (*models.Contract, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	List(ctx context.Context, filter models.ContractFilter, page models.Page) ([]models.Contract, int, error)
	ListAll(ctx context.Context, filter models.ContractFilter) ([]models.Contract, error)
	// Update writes c only while the stored status is still expected,
	// returning models.ErrStaleRecord otherwise.
	Update(ctx context.Context, c *models.Contract, expected models.ContractStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentStore persists installments. InsertSchedule must reject a contract
// that already has payments atomically with the insert.
type PaymentStore interface {
	Create(ctx context.Context, in *models.PaymentCreate) (*models.Payment, error)
	InsertSchedule(ctx context.Context, contractID uuid.UUID, payments []models.Payment) ([]models.Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter, page models.Page) ([]models.Payment, int, error)
	ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
	// Update writes p only while the stored status is still expected,
	// returning models.ErrStaleRecord otherwise.
	Update(ctx context.Context, p *models.Payment, expected models.PaymentStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Stores groups the three record stores.
type Stores struct {
	Clients   ClientStore
	Contracts ContractStore
	Payments  PaymentStore
}

// ReportCache caches computed reports. A nil *cache.ReportCache satisfies it
// and never hits.
type ReportCache interface {
	// Key resolves a report name to its key in the current cache generation.
	// An empty key disables caching for that call.
	Key(ctx context.Context, name string) (string, error)
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Invalidate(ctx context.Context) error
}

// ReportExporter uploads report documents and signs download links.
type ReportExporter interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) error
	GeneratePresignedDownloadURL(ctx context.Context, key string, expiryMinutes int) (*s3service.PresignedURLResult, error)
}

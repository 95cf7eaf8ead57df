package backoffice

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

// maxReportedImportErrors caps the row errors returned from an import.
const maxReportedImportErrors = 10

// ImportResult summarizes a client CSV import.
type ImportResult struct {
	BatchID  string   `json:"batch_id"`
	Source   string   `json:"source,omitempty"`
	Inserted int      `json:"inserted"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// CreateClient validates and stores a client.
func (s *Service) CreateClient(ctx context.Context, in *models.ClientCreate) (*models.Client, error) {
	if err := models.ValidateClientCreate(in); err != nil {
		return nil, err
	}

	client, err := s.stores.Clients.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.invalidateReports(ctx)
	return client, nil
}

// GetClient loads one client.
func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	client, err := s.stores.Clients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, notFound("client", id)
	}
	return client, nil
}

// ListClients returns one page of clients.
func (s *Service) ListClients(ctx context.Context, filter models.ClientFilter, page models.Page) ([]models.Client, models.Pagination, error) {
	clients, total, err := s.stores.Clients.List(ctx, filter, page)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return clients, models.NewPagination(page, total), nil
}

// DeleteClient removes a client that owns no contracts.
func (s *Service) DeleteClient(ctx context.Context, id uuid.UUID) error {
	if err := s.stores.Clients.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Client deleted", zap.String("client_id", id.String()))
	s.invalidateReports(ctx)
	return nil
}

// ImportClients parses a client CSV and bulk inserts the valid rows.
func (s *Service) ImportClients(ctx context.Context, content, source string) (*ImportResult, error) {
	batchID := uuid.New().String()

	parser := utils.NewCSVParser()
	clients, parseErrors := parser.ParseClients(content)

	result := &ImportResult{BatchID: batchID, Source: source, Failed: len(parseErrors)}
	for _, e := range parseErrors {
		result.Errors = append(result.Errors, e.Error())
	}

	s.logger.Info("Parsed client CSV",
		zap.String("batch_id", batchID),
		zap.String("source", source),
		zap.Int("valid", len(clients)),
		zap.Int("parse_errors", len(parseErrors)),
	)

	if len(clients) > 0 {
		inserted, err := s.stores.Clients.BulkInsert(ctx, clients, batchID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert clients: %w", err)
		}
		result.Inserted = inserted.InsertedCount
		result.Failed += inserted.FailedCount
		result.Errors = append(result.Errors, inserted.Errors...)
		s.invalidateReports(ctx)
	}

	if len(result.Errors) > maxReportedImportErrors {
		result.Errors = result.Errors[:maxReportedImportErrors]
	}

	return result, nil
}

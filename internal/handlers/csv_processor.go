package handlers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"

	appConfig "github.com/viniciusnovato/finance-sub000/internal/config"
	"github.com/viniciusnovato/finance-sub000/internal/services/backoffice"
	s3service "github.com/viniciusnovato/finance-sub000/internal/services/s3"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

// ObjectStore reads and archives uploaded files.
type ObjectStore interface {
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	MoveFile(ctx context.Context, sourceKey, destKey string) error
}

// ClientImporter imports a client CSV.
type ClientImporter interface {
	ImportClients(ctx context.Context, content, source string) (*backoffice.ImportResult, error)
}

// ClientImportHandler handles S3 events for uploaded client CSV files.
type ClientImportHandler struct {
	objects  func(bucket string) ObjectStore
	importer ClientImporter
	backend  *Backend
}

// NewClientImportHandler creates the handler from environment configuration.
func NewClientImportHandler(ctx context.Context) (*ClientImportHandler, error) {
	cfg, err := appConfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}

	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s3Svc, err := s3service.NewService(ctx, cfg.AWSRegion, cfg.S3ImportBucket)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &ClientImportHandler{
		objects:  func(bucket string) ObjectStore { return s3Svc.ForBucket(bucket) },
		importer: backend.Service,
		backend:  backend,
	}, nil
}

// NewClientImportHandlerWith creates a handler over explicit dependencies.
func NewClientImportHandlerWith(objects func(bucket string) ObjectStore, importer ClientImporter) *ClientImportHandler {
	return &ClientImportHandler{objects: objects, importer: importer}
}

// ClientImportResult is the result of processing one S3 event.
type ClientImportResult struct {
	Message  string                    `json:"message"`
	Files    []backoffice.ImportResult `json:"files,omitempty"`
	Skipped  []string                  `json:"skipped,omitempty"`
	Inserted int                       `json:"inserted"`
	Failed   int                       `json:"failed"`
}

// Handle imports every CSV in the event. Files outside uploads/ are skipped
// so archiving does not retrigger the import.
func (h *ClientImportHandler) Handle(ctx context.Context, s3Event events.S3Event) (ClientImportResult, error) {
	logger := utils.Named("client-import")

	if len(s3Event.Records) == 0 {
		return ClientImportResult{Message: "No records to process"}, nil
	}

	var out ClientImportResult
	for _, record := range s3Event.Records {
		bucket := record.S3.Bucket.Name
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return out, fmt.Errorf("failed to decode S3 key: %w", err)
		}

		if !s3service.IsImportKey(key) {
			out.Skipped = append(out.Skipped, key)
			continue
		}

		logger.Info("Processing client CSV", utils.String("bucket", bucket), utils.String("key", key))

		objects := h.objects(bucket)
		content, err := objects.DownloadFile(ctx, key)
		if err != nil {
			return out, fmt.Errorf("failed to download CSV: %w", err)
		}

		result, err := h.importer.ImportClients(ctx, string(content), key)
		if err != nil {
			logger.Error("Client import failed", utils.String("key", key), utils.Error(err))
			return out, fmt.Errorf("failed to import %s: %w", key, err)
		}

		logger.Info("Imported clients",
			utils.String("batchID", result.BatchID),
			utils.Int("inserted", result.Inserted),
			utils.Int("failed", result.Failed),
		)

		if err := objects.MoveFile(ctx, key, s3service.ArchiveKey(key)); err != nil {
			logger.Warn("Failed to archive file", utils.String("key", key), utils.Error(err))
		}

		out.Files = append(out.Files, *result)
		out.Inserted += result.Inserted
		out.Failed += result.Failed
	}

	out.Message = fmt.Sprintf("Processed %d file(s)", len(out.Files))
	return out, nil
}

// Close cleans up resources.
func (h *ClientImportHandler) Close() {
	h.backend.Close()
}

// Package s3service provides S3 operations for client imports and report exports.
package s3service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

const (
	defaultPresignMinutes = 15

	// MaxObjectBytes caps downloads; client CSV uploads are well below it.
	MaxObjectBytes = 10 << 20
)

// Object key prefixes. Uploads land under uploads/ and are archived under
// processed/ once imported, so archiving never matches the upload trigger.
const (
	UploadPrefix  = "uploads/"
	ArchivePrefix = "processed/"
	ReportPrefix  = "reports/"
)

// Service handles S3 operations on a single bucket.
type Service struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	logger    *zap.Logger
}

// PresignedURLResult contains the presigned URL details
type PresignedURLResult struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewService creates a new S3 service for bucket
func NewService(ctx context.Context, region, bucket string) (*Service, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &Service{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		logger:    utils.Named("s3").With(zap.String("bucket", bucket)),
	}, nil
}

// Bucket returns the bucket this service operates on.
func (s *Service) Bucket() string {
	return s.bucket
}

// ForBucket returns a service sharing the same client for another bucket.
// Import events name their bucket, which may differ from the configured one.
func (s *Service) ForBucket(bucket string) *Service {
	if bucket == "" || bucket == s.bucket {
		return s
	}
	return &Service{
		client:    s.client,
		presigner: s.presigner,
		bucket:    bucket,
		logger:    utils.Named("s3").With(zap.String("bucket", bucket)),
	}
}

// GeneratePresignedUploadURL signs a PUT of contentType to key.
func (s *Service) GeneratePresignedUploadURL(ctx context.Context, key string, contentType string, expiryMinutes int) (*PresignedURLResult, error) {
	return s.presign(key, expiryMinutes, func(opts func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			ContentType: aws.String(contentType),
		}, opts)
	})
}

// GeneratePresignedDownloadURL signs a GET of key. Report exports hand this
// link to the caller instead of streaming the object.
func (s *Service) GeneratePresignedDownloadURL(ctx context.Context, key string, expiryMinutes int) (*PresignedURLResult, error) {
	return s.presign(key, expiryMinutes, func(opts func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, opts)
	})
}

type presignFunc func(opts func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)

func (s *Service) presign(key string, expiryMinutes int, sign presignFunc) (*PresignedURLResult, error) {
	if expiryMinutes <= 0 {
		expiryMinutes = defaultPresignMinutes
	}
	expiry := time.Duration(expiryMinutes) * time.Minute

	req, err := sign(func(opts *s3.PresignOptions) { opts.Expires = expiry })
	if err != nil {
		s.logger.Error("Failed to presign object URL", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to presign %s: %w", key, err)
	}

	s.logger.Debug("Presigned object URL",
		zap.String("method", req.Method),
		zap.String("key", key),
		zap.Int("expiry_minutes", expiryMinutes),
	)

	return &PresignedURLResult{
		URL:       req.URL,
		Key:       key,
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

// DownloadFile reads an object of at most MaxObjectBytes.
func (s *Service) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("Failed to download object", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if len(data) > MaxObjectBytes {
		return nil, fmt.Errorf("object %s exceeds %d bytes", key, MaxObjectBytes)
	}

	s.logger.Info("Downloaded object", zap.String("key", key), zap.Int("size", len(data)))
	return data, nil
}

// UploadFile writes data to key.
func (s *Service) UploadFile(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("Failed to upload object", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.Info("Uploaded object", zap.String("key", key), zap.Int("size", len(data)))
	return nil
}

// MoveFile copies sourceKey to destKey and deletes the source.
func (s *Service) MoveFile(ctx context.Context, sourceKey, destKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + sourceKey),
		Key:        aws.String(destKey),
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", sourceKey, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(sourceKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", sourceKey, err)
	}

	s.logger.Info("Moved object", zap.String("source", sourceKey), zap.String("destination", destKey))
	return nil
}

// ImportKey builds a unique object key for an uploaded client CSV.
func ImportKey(filename string, now time.Time) string {
	return UploadPrefix + now.UTC().Format("2006/01/02") + "/" + uuid.New().String() + "_" + SanitizeFilename(filename)
}

// IsImportKey reports whether key is a client CSV waiting to be imported.
func IsImportKey(key string) bool {
	return strings.HasPrefix(key, UploadPrefix) && strings.HasSuffix(strings.ToLower(key), ".csv")
}

// ReportKey builds the object key of an exported report.
func ReportKey(name string, now time.Time) string {
	return path.Join(ReportPrefix, now.UTC().Format("2006/01/02"), name+"_"+now.UTC().Format("150405")+".json")
}

// ArchiveKey is where a processed upload is moved.
func ArchiveKey(key string) string {
	return ArchivePrefix + strings.TrimPrefix(key, UploadPrefix)
}

// SanitizeFilename keeps letters, digits, dot, dash and underscore, capped at
// 100 bytes.
func SanitizeFilename(filename string) string {
	var b strings.Builder
	for _, r := range filename {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	safe := b.String()
	if len(safe) > 100 {
		safe = safe[:100]
	}
	return safe
}

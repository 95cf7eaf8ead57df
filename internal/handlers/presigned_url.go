package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	appConfig "github.com/viniciusnovato/finance-sub000/internal/config"
	s3service "github.com/viniciusnovato/finance-sub000/internal/services/s3"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

// uploadURLExpiryMinutes is how long an import upload link stays valid.
const uploadURLExpiryMinutes = 60

// UploadSigner signs object upload URLs.
type UploadSigner interface {
	GeneratePresignedUploadURL(ctx context.Context, key string, contentType string, expiryMinutes int) (*s3service.PresignedURLResult, error)
}

// PresignedURLHandler issues upload URLs for client import CSV files.
type PresignedURLHandler struct {
	signer UploadSigner
	now    func() time.Time
}

// NewPresignedURLHandler creates a new presigned URL handler.
func NewPresignedURLHandler(ctx context.Context) (*PresignedURLHandler, error) {
	cfg, err := appConfig.Load()
	if err != nil {
		return nil, err
	}

	s3Svc, err := s3service.NewService(ctx, cfg.AWSRegion, cfg.S3ImportBucket)
	if err != nil {
		return nil, err
	}

	return NewPresignedURLHandlerWith(s3Svc), nil
}

// NewPresignedURLHandlerWith creates a handler over an explicit signer.
func NewPresignedURLHandlerWith(signer UploadSigner) *PresignedURLHandler {
	return &PresignedURLHandler{signer: signer, now: time.Now}
}

// PresignedURLResponse is the response structure for presigned URL requests.
type PresignedURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	S3Key     string `json:"s3Key"`
	ExpiresIn int    `json:"expiresIn"`
}

// Handle processes the API Gateway request for generating presigned URLs.
func (h *PresignedURLHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := utils.Named("import-upload-url")
	headers := jsonHeaders("GET,OPTIONS")

	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, nil
	}

	filename := request.QueryStringParameters["filename"]
	if filename == "" {
		filename = "clients_" + uuid.New().String()[:8] + ".csv"
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return errorResponse(headers, http.StatusBadRequest, "Only CSV files are allowed")
	}

	key := s3service.ImportKey(filename, h.now())
	link, err := h.signer.GeneratePresignedUploadURL(ctx, key, "text/csv", uploadURLExpiryMinutes)
	if err != nil {
		logger.Error("Failed to generate presigned URL", utils.Error(err))
		return errorResponse(headers, http.StatusInternalServerError, "Failed to generate upload URL")
	}

	body, _ := json.Marshal(PresignedURLResponse{
		UploadURL: link.URL,
		S3Key:     key,
		ExpiresIn: uploadURLExpiryMinutes * 60,
	})

	logger.Info("Generated import upload URL", utils.String("s3Key", key))

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// errorResponse creates an error response.
func errorResponse(headers map[string]string, statusCode int, message string) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"success": false,
		"error":   message,
	})

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

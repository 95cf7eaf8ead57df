package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"

	appConfig "github.com/viniciusnovato/finance-sub000/internal/config"
	"github.com/viniciusnovato/finance-sub000/internal/services/database"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

// Pinger reports store connectivity.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db      Pinger
	closer  func()
	version string
	stage   string
	now     func() time.Time
}

// NewHealthHandler creates a health handler. A database that cannot be
// reached is reported as not configured rather than failing the cold start.
func NewHealthHandler() *HealthHandler {
	h := &HealthHandler{
		version: getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
		stage:   getEnvOrDefault("STAGE", "unknown"),
		now:     time.Now,
	}

	cfg, err := appConfig.Load()
	if err != nil || !cfg.HasDatabase() {
		return h
	}

	db, err := database.New(cfg)
	if err != nil {
		utils.GetLogger().Warn("Health check running without database", utils.Error(err))
		return h
	}

	h.db = db
	h.closer = db.Close
	return h
}

// NewHealthHandlerWith creates a health handler over an existing store.
func NewHealthHandlerWith(db Pinger, version, stage string) *HealthHandler {
	return &HealthHandler{db: db, version: version, stage: stage, now: time.Now}
}

// HealthResponse is the response structure for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Stage     string `json:"stage"`
	Database  string `json:"database,omitempty"`
}

// Handle processes health check requests.
func (h *HealthHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Service:   "finance-backoffice",
		Version:   h.version,
		Stage:     h.stage,
		Database:  "not configured",
	}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			response.Database = "disconnected"
			response.Status = "degraded"
		} else {
			response.Database = "connected"
		}
	}

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	body, _ := json.Marshal(response)
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    jsonHeaders("GET,OPTIONS"),
		Body:       string(body),
	}, nil
}

// Close cleans up resources.
func (h *HealthHandler) Close() {
	if h.closer != nil {
		h.closer()
	}
}

func jsonHeaders(methods string) map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,Authorization",
		"Access-Control-Allow-Methods": methods,
		"Content-Type":                 "application/json",
	}
}

// getEnvOrDefault returns environment variable or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

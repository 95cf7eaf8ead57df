// Package api exposes the back office over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/viniciusnovato/finance-sub000/internal/auth"
	"github.com/viniciusnovato/finance-sub000/internal/services/backoffice"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options wires the router's dependencies. Auth may be nil, in which case
// every route is open; the server only allows that in demo mode.
type Options struct {
	Service *backoffice.Service
	Auth    *auth.Authenticator
	Health  HealthChecker
	Version string
	Stage   string
}

// Server holds the handler dependencies.
type Server struct {
	svc     *backoffice.Service
	auth    *auth.Authenticator
	health  HealthChecker
	version string
	stage   string
	logger  *zap.Logger
}

var (
	readRoles  = []auth.Role{auth.RoleAdmin, auth.RoleAnalyst, auth.RoleViewer}
	writeRoles = []auth.Role{auth.RoleAdmin, auth.RoleAnalyst}
	adminRoles = []auth.Role{auth.RoleAdmin}
)

// NewRouter builds the HTTP routes.
func NewRouter(opts Options) http.Handler {
	s := &Server{
		svc:     opts.Service,
		auth:    opts.Auth,
		health:  opts.Health,
		version: opts.Version,
		stage:   opts.Stage,
		logger:  utils.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			if s.auth != nil {
				r.Use(s.auth.Middleware)
			}

			r.Route("/clients", func(r chi.Router) {
				r.With(s.allow(readRoles...)).Get("/", s.handleListClients)
				r.With(s.allow(writeRoles...)).Post("/", s.handleCreateClient)
				r.With(s.allow(adminRoles...)).Post("/import", s.handleImportClients)
				r.With(s.allow(readRoles...)).Get("/{id}", s.handleGetClient)
				r.With(s.allow(adminRoles...)).Delete("/{id}", s.handleDeleteClient)
			})

			r.Route("/contracts", func(r chi.Router) {
				r.With(s.allow(readRoles...)).Get("/", s.handleListContracts)
				r.With(s.allow(writeRoles...)).Post("/", s.handleCreateContract)
				r.With(s.allow(readRoles...)).Get("/{id}", s.handleGetContract)
				r.With(s.allow(adminRoles...)).Delete("/{id}", s.handleDeleteContract)
				r.With(s.allow(writeRoles...)).Patch("/{id}/status", s.handleChangeContractStatus)
				r.With(s.allow(writeRoles...)).Post("/{id}/schedule", s.handleGenerateSchedule)
				r.With(s.allow(readRoles...)).Get("/{id}/payments", s.handleContractPayments)
			})

			r.Route("/payments", func(r chi.Router) {
				r.With(s.allow(readRoles...)).Get("/", s.handleListPayments)
				r.With(s.allow(writeRoles...)).Post("/", s.handleCreatePayment)
				r.With(s.allow(readRoles...)).Get("/overdue", s.handleOverduePayments)
				r.With(s.allow(readRoles...)).Get("/{id}", s.handleGetPayment)
				r.With(s.allow(adminRoles...)).Delete("/{id}", s.handleDeletePayment)
				r.With(s.allow(writeRoles...)).Post("/{id}/confirm", s.handleConfirmPayment)
				r.With(s.allow(writeRoles...)).Post("/{id}/cancel", s.handleCancelPayment)
			})

			r.Route("/reports", func(r chi.Router) {
				r.With(s.allow(readRoles...)).Get("/dashboard", s.handleDashboard)
				r.With(s.allow(readRoles...)).Get("/revenue", s.handleMonthlyRevenue)
				r.With(s.allow(writeRoles...)).Post("/export", s.handleExportDashboard)
			})
		})
	})

	return r
}

// allow restricts a route to roles when authentication is enabled.
func (s *Server) allow(roles ...auth.Role) func(http.Handler) http.Handler {
	if s.auth == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return auth.RequireRole(roles...)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Stage     string `json:"stage"`
	Database  string `json:"database"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "finance-backoffice",
		Version:   s.version,
		Stage:     s.stage,
		Database:  "not configured",
	}

	if s.health != nil {
		if err := s.health.HealthCheck(r.Context()); err != nil {
			response.Status = "degraded"
			response.Database = "disconnected"
		} else {
			response.Database = "connected"
		}
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

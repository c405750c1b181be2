package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"kharcha/internal/auth"
	"kharcha/internal/config"
	applog "kharcha/internal/log"
	"kharcha/internal/middleware/trace"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

// Server is the API server. It owns no business state: identity comes
// from the token service, data from the ledger service and repository.
type Server struct {
	http.Server
	cfg    *config.Config
	store  *storage.SQLiteRepository
	ledger *services.LedgerService
	tokens *auth.TokenService
	logger *applog.Logger

	started time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg *config.Config, store *storage.SQLiteRepository, ledger *services.LedgerService, tokens *auth.TokenService, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		cfg:     cfg,
		store:   store,
		ledger:  ledger,
		tokens:  tokens,
		logger:  logger,
		started: time.Now(),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)

	mux.HandleFunc("GET /api/v1/categories", s.handleListCategories)
	mux.HandleFunc("GET /api/v1/categories/{id}", s.handleGetCategory)

	mux.HandleFunc("GET /api/v1/expenses", s.requireAuth(s.handleListExpenses))
	mux.HandleFunc("POST /api/v1/expenses", s.requireAuth(s.handleCreateExpense))
	mux.HandleFunc("GET /api/v1/expenses/{id}", s.requireAuth(s.handleGetExpense))
	mux.HandleFunc("PUT /api/v1/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	tracer := trace.NewMiddleware(trace.ExtractClientIP)
	handler := applog.Middleware(logger)(tracer.Middleware(s.withCORS(s.withSecurityHeaders(mux))))

	s.Server = http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 16,
	}

	return s
}

// internalError logs the fault and writes the opaque 500 envelope.
func (s *Server) internalError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	applog.FromContext(ctx).WithComponent(applog.ComponentHTTP).ErrorContext(ctx, "Request failed",
		applog.FieldOperation, operation,
		applog.FieldError, err)
	InternalServerError().Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if err := s.store.Ping(ctx); err != nil {
		checks["database"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}

package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/printing"
	"hisab/internal/services"
	"hisab/internal/storage"
)

// Deps are the collaborators the handlers drive. Backups may be nil, in
// which case db-backup writes into BackupDir directly.
type Deps struct {
	Book      *services.AccountingService
	Renderer  *printing.Renderer
	Data      *storage.DataStore
	Backups   *services.BackupScheduler
	BackupDir string
	Logger    *log.Logger
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
}

type Server struct {
	http.Server
	deps Deps
	now  func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires the router and returns a ready-to-run server.
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 120
	}

	s := &Server{deps: deps, now: time.Now}
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middleware.RequestID,
		log.Middleware(s.deps.Logger),
		log.RequestIDMiddleware(func(r *http.Request) string { return middleware.GetReqID(r.Context()) }),
		log.AccessLog,
		middleware.Recoverer,
		middleware.Timeout(cfg.RequestTimeout),
		securityHeaders(),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter(cfg.RateLimitPerMinute), requireJSON)

		r.Post("/db-query", s.handleDBQuery)
		r.Post("/db-update", s.handleDBUpdate)
		r.Post("/db-backup", s.handleDBBackup)
		r.Post("/db-restore", s.handleDBRestore)
		r.Post("/save-data", s.handleSaveData)
		r.Post("/load-data", s.handleLoadData)
		r.Post("/print-to-pdf", s.handlePrint)

		r.Route("/customers", s.partyRoutes(core.Customer))
		r.Route("/suppliers", s.partyRoutes(core.Supplier))
		r.Get("/parties/{kind}/{id}/ledger", s.handleLedger)

		r.Route("/services", func(r chi.Router) {
			r.Get("/", s.handleListServices)
			r.Post("/", s.handleCreateService)
			r.Get("/{id}", s.handleGetService)
			r.Put("/{id}", s.handleUpdateService)
			r.Delete("/{id}", s.handleDeleteService)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Get("/next-number", s.handleNextNumber)
			r.Get("/{id}", s.handleGetTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/aging", s.handleAging)
			r.Get("/summary", s.handleSummary)
			r.Get("/daybook", s.handleDayBook)
			r.Get("/profit-loss", s.handleProfitLoss)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/top-services", s.handleTopServices)
		})

		r.Get("/activity", s.handleActivity)
		r.Get("/settings", s.handleSettings)
		r.Put("/settings/{key}", s.handleSetSetting)
	})
	return r
}

func (s *Server) partyRoutes(kind core.PartyKind) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", s.handleListParties(kind))
		r.Post("/", s.handleCreateParty(kind))
		r.Get("/{id}", s.handleGetParty(kind))
		r.Put("/{id}", s.handleUpdateParty(kind))
		r.Delete("/{id}", s.handleDeleteParty(kind))
		r.Get("/{id}/ledger", s.handlePartyLedger(kind))
	}
}

// Shutdown gracefully shuts down the server. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/finhealth/internal/api/handlers"
	"github.com/dvloznov/finhealth/internal/api/middleware"
	"github.com/dvloznov/finhealth/internal/gcs"
	"github.com/dvloznov/finhealth/internal/logger"
	"github.com/dvloznov/finhealth/internal/store"
	storeBQ "github.com/dvloznov/finhealth/internal/store/bigquery"
	"github.com/dvloznov/finhealth/internal/store/memory"
	"github.com/dvloznov/finhealth/internal/vision"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	var (
		port    = flag.String("port", envOr("PORT", "8080"), "HTTP server port")
		project = flag.String("project", os.Getenv("GCP_PROJECT"), "GCP project ID (or set GCP_PROJECT env)")
		dataset = flag.String("dataset", os.Getenv("BQ_DATASET"), "BigQuery dataset (or set BQ_DATASET env)")
		bucket  = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for receipt archival (or set GCS_BUCKET env)")
		model   = flag.String("model", os.Getenv("GEMINI_MODEL"), "Gemini model for receipt scanning (or set GEMINI_MODEL env)")
	)
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	// Storage backend: BigQuery when configured, in-memory demo mode
	// otherwise.
	var st store.Store
	if *project != "" && *dataset != "" {
		bq, err := storeBQ.New(ctx, *project, *dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery store")
		}
		defer bq.Close()
		st = bq
		log.Info().Str("project", *project).Str("dataset", *dataset).Msg("Using BigQuery storage")
	} else {
		st = memory.New()
		log.Warn().Msg("No BigQuery dataset configured - using in-memory storage, data will not survive restarts")
	}

	// Receipt scanning is optional; the endpoint reports 503 when the
	// extractor is unavailable.
	var extractor handlers.TransactionExtractor
	if ext, err := vision.NewExtractor(ctx, *model); err != nil {
		log.Warn().Err(err).Msg("Receipt scanning disabled")
	} else {
		extractor = ext
	}

	var archiver gcs.Archiver
	if *bucket != "" {
		arc, err := gcs.NewBucketArchiver(ctx, *bucket)
		if err != nil {
			log.Warn().Err(err).Msg("Receipt archival disabled")
		} else {
			defer arc.Close()
			archiver = arc
		}
	} else {
		log.Warn().Msg("No GCS bucket configured - receipt images will not be archived")
	}

	// Initialize handlers
	router := newRouter(routerHandlers{
		transactions: handlers.NewTransactionsHandler(st, extractor, archiver, log),
		budgets:      handlers.NewBudgetsHandler(st, log),
		goals:        handlers.NewGoalsHandler(st, log),
		bills:        handlers.NewBillsHandler(st, log),
		healthScore:  handlers.NewHealthScoreHandler(st, log),
		reports:      handlers.NewReportsHandler(st, log),
		imports:      handlers.NewImportsHandler(st, log),
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(router),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

type routerHandlers struct {
	transactions *handlers.TransactionsHandler
	budgets      *handlers.BudgetsHandler
	goals        *handlers.GoalsHandler
	bills        *handlers.BillsHandler
	healthScore  *handlers.HealthScoreHandler
	reports      *handlers.ReportsHandler
	imports      *handlers.ImportsHandler
}

// newRouter builds the route table: /health is public, everything under
// /api/ sits behind the X-User-ID gate.
func newRouter(h routerHandlers) http.Handler {
	api := http.NewServeMux()

	// Transactions endpoints
	api.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.transactions.List(w, r)
		case http.MethodPost:
			h.transactions.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/transactions/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.transactions.Scan(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/transactions/detail/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/transactions/detail/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}
		h.transactions.Get(w, r, id)
	})

	api.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.transactions.Get(w, r, id)
		case http.MethodPut, http.MethodPatch:
			h.transactions.Update(w, r, id)
		case http.MethodDelete:
			h.transactions.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Budgets endpoints
	api.HandleFunc("/api/budgets", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.budgets.List(w, r)
		case http.MethodPost:
			h.budgets.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/budgets/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/budgets/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Budget ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.budgets.Get(w, r, id)
		case http.MethodPut, http.MethodPatch:
			h.budgets.Update(w, r, id)
		case http.MethodDelete:
			h.budgets.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Goals endpoints
	api.HandleFunc("/api/goals", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.goals.List(w, r)
		case http.MethodPost:
			h.goals.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/goals/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/goals/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Goal ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.goals.Get(w, r, id)
		case http.MethodPut, http.MethodPatch:
			h.goals.Update(w, r, id)
		case http.MethodDelete:
			h.goals.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Bills endpoints
	api.HandleFunc("/api/bills", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.bills.List(w, r)
		case http.MethodPost:
			h.bills.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/bills/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/bills/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Bill ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.bills.Get(w, r, id)
		case http.MethodPut, http.MethodPatch:
			h.bills.Update(w, r, id)
		case http.MethodDelete:
			h.bills.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health score endpoint
	api.HandleFunc("/api/health-score", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.healthScore.Get(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Imports endpoints
	api.HandleFunc("/api/imports/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.imports.Transactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Reports endpoints
	api.HandleFunc("/api/reports/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.reports.Transactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/reports/budgets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.reports.Budgets(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.RequireUser(api))

	// Liveness endpoint, outside the user gate.
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

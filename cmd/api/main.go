package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"snapledger/internal/api/handlers"
	"snapledger/internal/api/middleware"
	"snapledger/internal/config"
	"snapledger/internal/extract"
	"snapledger/internal/fx"
	"snapledger/internal/imagestore"
	"snapledger/internal/pipeline"
	"snapledger/internal/storage"
	"snapledger/internal/users"

	"snapledger/internal/logger"
)

func main() {
	log := logger.New()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.GCSBucket == "" {
		log.Warn().Msg("No GCS bucket configured - receipt uploads will fail")
	}
	if cfg.RatesAPIKey == "" {
		log.Warn().Msg("No exchange-rate API key configured - conversions will be skipped")
	}

	// Record store.
	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer repo.Close()

	// Pipeline collaborators.
	images := imagestore.NewGCS(cfg.GCSBucket)
	engine := extract.NewEngine(cfg.ModelName, cfg.ExtractTimeout, cfg.ExtractPlace, log)
	rates := fx.NewClient(cfg.RatesBaseURL, cfg.RatesAPIKey, cfg.RatesTimeout, log)

	orchestrator := pipeline.New(repo, images, engine, rates, pipeline.Options{
		DefaultTargetCurrency: cfg.DefaultTargetCurrency,
		PerUserCurrency:       cfg.PerUserCurrency,
		StorePlace:            cfg.ExtractPlace,
	}, log)

	registrar := users.NewService(repo, cfg.DefaultTargetCurrency, log)

	// Handlers.
	receiptsHandler := handlers.NewReceiptsHandler(orchestrator, log)
	expensesHandler := handlers.NewExpensesHandler(repo, orchestrator, log)
	dashboardHandler := handlers.NewDashboardHandler(repo, cfg.WatchedCategory, log)
	usersHandler := handlers.NewUsersHandler(registrar, repo, log)

	// Authenticated routes.
	api := http.NewServeMux()

	api.HandleFunc("/api/receipts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			receiptsHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/expenses", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			expensesHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/expenses/", func(w http.ResponseWriter, r *http.Request) {
		expenseID := strings.TrimPrefix(r.URL.Path, "/api/expenses/")
		if expenseID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Expense ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			expensesHandler.Get(w, r, expenseID)
		case http.MethodPut:
			expensesHandler.Update(w, r, expenseID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			dashboardHandler.Get(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/preference", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			usersHandler.GetPreference(w, r)
		case http.MethodPut:
			usersHandler.UpdatePreference(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Public routes: registration happens before a user ID exists.
	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.Auth(api))

	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			usersHandler.Register(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(mux),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // uploads wait for the model call
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

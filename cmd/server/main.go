package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/streamwatch/streamwatch-backend/internal/api/middleware"
	"github.com/streamwatch/streamwatch-backend/internal/api/rest"
	"github.com/streamwatch/streamwatch-backend/internal/api/websocket"
	"github.com/streamwatch/streamwatch-backend/internal/config"
	"github.com/streamwatch/streamwatch-backend/internal/detector"
	"github.com/streamwatch/streamwatch-backend/internal/dispatch"
	"github.com/streamwatch/streamwatch-backend/internal/pkg/logger"
	"github.com/streamwatch/streamwatch-backend/internal/repository"
	"github.com/streamwatch/streamwatch-backend/internal/rules"
	"github.com/streamwatch/streamwatch-backend/internal/service"
	"github.com/streamwatch/streamwatch-backend/internal/suggest"
	"github.com/streamwatch/streamwatch-backend/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	log.Info("streamwatch backend starting", "port", cfg.Port, "db", cfg.DatabasePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := repository.NewSQLiteRepository(cfg.DatabasePath, cfg.SignatureCacheSize)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := applyMigrations(repo); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("database migrations completed")

	provider := rules.NewProvider(cfg.RulesPath, log)

	hub := websocket.NewHub(ctx)
	go hub.Run()

	dispatcher := dispatch.New(hub, dispatch.Config{
		ImmediateAlertCritical: cfg.ImmediateAlertCritical,
		RecurrenceThreshold:    int64(cfg.RecurrenceThreshold),
	}, log)
	go dispatcher.Run(ctx)

	suggester := suggest.NewEngine(log)
	engine := detector.NewEngine(provider, repo, suggester, dispatcher, log)

	detectionService := service.NewDetectionService(engine, provider)
	resolutionService := service.NewResolutionService(repo, repo)
	suggestionService := service.NewSuggestionService(repo, repo)
	summaryService := service.NewSummaryService(repo)

	router := mux.NewRouter()
	router.Use(middleware.CorrelationID)
	router.Use(middleware.RequestLog(log))

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	handler := rest.NewHandler(
		detectionService, resolutionService, suggestionService, summaryService,
		repo, repo, repo, cfg.SummaryTopN,
	)
	rest.SetupRoutes(apiRouter, handler)

	wsHandler := websocket.NewHandler(ctx, hub, log)
	router.HandleFunc("/ws/alerts", wsHandler.ServeWS).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", middleware.CorrelationIDHeader},
		AllowCredentials: true,
	})

	requestTimeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  requestTimeout,
		WriteTimeout: requestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	// Stop accepting new work, then let the dispatcher flush queued alerts
	// before the hub closes.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", "error", err)
	}

	cancel()
	dispatcher.Wait(time.Duration(cfg.DispatchDrainSec) * time.Second)
	hub.Stop()

	log.Info("server exited")
}

// applyMigrations executes every embedded migration file in name order.
func applyMigrations(repo *repository.SQLiteRepository) error {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return err
		}
		if err := repo.RunMigrations(string(sql)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

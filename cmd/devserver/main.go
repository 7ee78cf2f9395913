// Package main provides a reference SDK-facing server: an in-memory control
// plane that serves streaming, polling, and events-ingestion endpoints so a
// client SDK can be exercised end to end without a real flag-management
// backend.
//
// Startup flow:
//  1. Load configuration from environment variables (config.Load)
//  2. Initialize the Prometheus registry (telemetry.Init)
//  3. Build the in-memory store and the admin authenticator
//  4. Start the webhook dispatcher, if a target is configured
//  5. Start the API server (streaming/polling/events/admin routes)
//  6. Start the metrics/pprof server
//  7. Wait for SIGINT/SIGTERM and shut both servers down gracefully
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flagshipsdk/flagship-go/internal/api"
	"github.com/flagshipsdk/flagship-go/internal/auth"
	"github.com/flagshipsdk/flagship-go/internal/config"
	"github.com/flagshipsdk/flagship-go/internal/store"
	"github.com/flagshipsdk/flagship-go/internal/telemetry"
	"github.com/flagshipsdk/flagship-go/internal/webhook"
	"github.com/flagshipsdk/flagship-go/ldlog"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	telemetry.Init()
	shutdownTracing := telemetry.InitTracing()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	st := store.New()
	log.Printf("[devserver] store ready: etag=%s", st.ETag())

	authenticator := auth.NewAuthenticator(cfg.AdminAPIKey, cfg.APIKeys)

	var dispatcher *webhook.Dispatcher
	if cfg.WebhookURL != "" {
		logger := ldlog.DefaultLoggers().General
		dispatcher = webhook.NewDispatcher([]webhook.Target{
			{URL: cfg.WebhookURL, Secret: cfg.WebhookSecret},
		}, logger)
		dispatcher.Start()
		defer dispatcher.Close()
	}

	apiSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewServer(st, authenticator, dispatcher, cfg.RateLimitPerIP).Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0, // keep SSE connections alive
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("[devserver] http server listening on %s", cfg.HTTPAddr)
		if err := apiSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", http.DefaultServeMux.ServeHTTP)

	metricsSrv := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("[devserver] metrics/pprof server listening on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics server: %v", err)
		}
	}()

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownSignal

	log.Println("[devserver] shutdown signal received, stopping servers...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[devserver] error during API server shutdown: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[devserver] error during metrics server shutdown: %v", err)
	}

	log.Println("[devserver] servers stopped successfully")
}

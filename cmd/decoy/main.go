package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/antoniostano/decoy/internal/audit"
	"github.com/antoniostano/decoy/internal/callback"
	"github.com/antoniostano/decoy/internal/config"
	"github.com/antoniostano/decoy/internal/httpapi"
	"github.com/antoniostano/decoy/internal/observability"
	"github.com/antoniostano/decoy/internal/persona"
	"github.com/antoniostano/decoy/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	auditLog, err := audit.New(cfg.AuditFilePath)
	if err != nil {
		log.Fatalf("audit log init failed: %v", err)
	}
	defer auditLog.Close()

	pools := persona.DefaultPools()
	if cfg.PersonaFile != "" {
		pools, err = persona.LoadPools(cfg.PersonaFile)
		if err != nil {
			log.Fatalf("persona load failed: %v", err)
		}
		log.Printf("persona templates loaded from %s", cfg.PersonaFile)
	}
	selector, err := persona.NewSelector(pools, persona.NewRandomPicker())
	if err != nil {
		log.Fatalf("persona selector init failed: %v", err)
	}

	ctx := context.Background()
	seen, err := report.NewSeenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("seen store init failed: %v", err)
	}
	defer seen.Close()

	gate := report.NewGate(seen, cfg.MinTurnsBeforeFinal)
	sink := callback.New(cfg.CallbackURL, cfg.CallbackAPIKey, cfg.CallbackTimeout, auditLog, metrics)
	if cfg.CallbackURL == "" {
		log.Printf("callback url not set; final reports will be audited only")
	}

	api := httpapi.New(cfg, selector, gate, sink, auditLog, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("decoy honeypot listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

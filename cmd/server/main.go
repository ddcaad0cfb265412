// DineHall Gateway — the safety and policy layer for the DineHall agent
// platform.
//
// This is the main entry point for the standalone gateway server. It
// provides:
//   - Safety Gateway (message checking, order risk, block requests)
//   - Tool invocation boundary with per-agent allowlists
//   - Incident Ledger and approvals queue
//   - Research fence for the sandboxed analyst agent
//   - Agent registration surface for a host runtime
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dinehall/dinehall/gateway/internal/backend"
	"github.com/dinehall/dinehall/gateway/pkg/server"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("🛡️ DineHall Gateway starting...")

	backendURL := os.Getenv("DINEHALL_BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://localhost:9000"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.New(ctx, backend.NewHTTPBackend(backendURL))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	defer srv.Store.Close()
	defer srv.ShutdownFunc(ctx)

	if srv.Janitor != nil {
		go srv.Janitor.Start(ctx)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.Port),
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("🛑 Shutting down gracefully...")
		cancel()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
		defer stop()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().
		Int("port", srv.Port).
		Str("backend", backendURL).
		Msg("🛡️ DineHall Gateway is watching the door")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

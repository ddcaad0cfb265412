// Package server provides the public entry point for initializing the
// DineHall agent gateway.
//
// This package exists in pkg/ (not internal/) so a hosting runtime can
// import it and compose the gateway with its own backend client:
//
//	srv, err := server.New(ctx, myBackend)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dinehall/dinehall/gateway/internal/agents"
	"github.com/dinehall/dinehall/gateway/internal/api"
	"github.com/dinehall/dinehall/gateway/internal/api/handlers"
	"github.com/dinehall/dinehall/gateway/internal/config"
	"github.com/dinehall/dinehall/gateway/internal/detect"
	"github.com/dinehall/dinehall/gateway/internal/fence"
	"github.com/dinehall/dinehall/gateway/internal/gateway"
	"github.com/dinehall/dinehall/gateway/internal/incident"
	"github.com/dinehall/dinehall/gateway/internal/limiter"
	"github.com/dinehall/dinehall/gateway/internal/notify"
	"github.com/dinehall/dinehall/gateway/internal/policy"
	"github.com/dinehall/dinehall/gateway/internal/retention"
	"github.com/dinehall/dinehall/gateway/internal/store"
	"github.com/dinehall/dinehall/gateway/internal/telemetry"
	"github.com/dinehall/dinehall/gateway/internal/tools"
	"github.com/dinehall/dinehall/gateway/pkg/contracts"
)

// Server holds the initialized DineHall gateway.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the incident/approval store. Exposed so a hosting runtime
	// can share it with its own components.
	Store store.Store

	// Plugin is the agent registration surface for a host runtime.
	Plugin *agents.Plugin

	// Janitor is the retention sweeper, nil when disabled. The process
	// entry point starts it with a cancelable context.
	Janitor *retention.Janitor

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush
	// telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes the gateway against the given backend client.
func New(ctx context.Context, backend contracts.Backend) (*Server, error) {
	return NewWithConfig(ctx, config.Load(), backend)
}

// NewWithConfig initializes the gateway with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config, backend contracts.Backend) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	overlay, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy overlay: %w", err)
	}

	detector, err := detect.New(overlay.DetectConfig())
	if err != nil {
		return nil, fmt.Errorf("compile detection patterns: %w", err)
	}

	// Store: Postgres when configured, memory otherwise.
	var dataStore store.Store
	if cfg.Database.URL != "" {
		dataStore, err = store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		log.Info().Msg("✅ Postgres store initialized")
	} else {
		dataStore = store.NewMemoryStore()
		log.Info().Msg("✅ In-memory store initialized")
	}

	// Session control: Redis when configured, in-process otherwise.
	var sessions contracts.SessionControl
	if cfg.Redis.Addr != "" {
		rc := limiter.NewRedisControl(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		rc.RatePerMinute = cfg.Limits.MessagesPerMinute
		rc.Burst = cfg.Limits.Burst
		if err := rc.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		sessions = rc
		log.Info().Str("addr", cfg.Redis.Addr).Msg("✅ Redis session control initialized")
	} else {
		sessions = limiter.NewMemoryControl(cfg.Limits.MessagesPerMinute, cfg.Limits.Burst)
		log.Info().Msg("✅ In-process session control initialized")
	}

	// Admin escalation channel.
	var notifier contracts.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret)
		log.Info().Msg("✅ Admin webhook notifier initialized")
	}

	ledger := incident.NewLedger(dataStore)
	engine := policy.NewEngine(ledger, sessions, notifier)
	gw := gateway.New(detector, engine, sessions, ledger, dataStore)

	plugin, err := agents.NewPlugin(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("build agent plugin: %w", err)
	}
	if err := plugin.OnInit(ctx); err != nil {
		return nil, fmt.Errorf("agent plugin init: %w", err)
	}

	registry := tools.NewRegistry(
		tools.NewAuditedBackend(backend),
		fence.New(overlay.FenceConfig()),
		plugin.Registry(),
	)
	gw.RegisterTools(registry)
	log.Info().Int("tools", len(registry.Tools())).Msg("✅ Tool registry initialized")

	var janitor *retention.Janitor
	if cfg.Retention.Enabled {
		janitor = retention.NewJanitor(dataStore,
			time.Duration(cfg.Retention.SweepInterval)*time.Minute,
			cfg.Retention.IncidentDays, cfg.Retention.ApprovalDays)
		if cfg.Retention.ArchivePath != "" {
			archiver := retention.NewLocalFileArchiver(cfg.Retention.ArchivePath, cfg.Retention.CompressArchive)
			if err := archiver.HealthCheck(ctx); err != nil {
				return nil, fmt.Errorf("archive path check: %w", err)
			}
			janitor.SetArchiver(archiver)
		}
	}

	h := handlers.New(gw, plugin, registry, ledger, dataStore)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Plugin:       plugin,
		Janitor:      janitor,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

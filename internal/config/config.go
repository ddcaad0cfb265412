// Package config loads gateway configuration from environment variables
// and an optional YAML policy overlay. Env vars configure the process;
// the overlay tunes the declarative policy tables (detection weights,
// thresholds, extra pattern families, the research fence).
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dinehall/dinehall/gateway/internal/detect"
	"github.com/dinehall/dinehall/gateway/internal/fence"
)

// Config holds all configuration for the DineHall gateway.
type Config struct {
	Port    int
	Version string

	Database  DatabaseConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Notify    NotifyConfig
	Limits    LimitsConfig
	Retention RetentionConfig

	// PolicyFile is the optional YAML overlay path. Empty means built-in
	// policy only.
	PolicyFile string
}

type DatabaseConfig struct {
	// URL empty means the in-memory store (local development).
	URL            string
	MaxConnections int
}

type RedisConfig struct {
	// Addr empty means the in-process session controller.
	Addr     string
	Password string
	DB       int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type NotifyConfig struct {
	// WebhookURL empty disables admin escalation delivery.
	WebhookURL    string
	WebhookSecret string
}

type LimitsConfig struct {
	MessagesPerMinute float64
	Burst             int
}

type RetentionConfig struct {
	// Enabled turns the background retention janitor on.
	Enabled         bool
	SweepInterval   int // minutes
	IncidentDays    int
	ApprovalDays    int
	ArchivePath     string // empty disables archiving: expired records are purged
	CompressArchive bool
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("DINEHALL_PORT", 8080),
		Version: envStr("DINEHALL_VERSION", "0.1.0"),
		Database: DatabaseConfig{
			URL:            envStr("DINEHALL_DATABASE_URL", ""),
			MaxConnections: envInt("DINEHALL_DATABASE_MAX_CONNECTIONS", 25),
		},
		Redis: RedisConfig{
			Addr:     envStr("DINEHALL_REDIS_ADDR", ""),
			Password: envStr("DINEHALL_REDIS_PASSWORD", ""),
			DB:       envInt("DINEHALL_REDIS_DB", 0),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "dinehall-gateway"),
		},
		Notify: NotifyConfig{
			WebhookURL:    envStr("DINEHALL_ADMIN_WEBHOOK_URL", ""),
			WebhookSecret: envStr("DINEHALL_ADMIN_WEBHOOK_SECRET", ""),
		},
		Limits: LimitsConfig{
			MessagesPerMinute: float64(envInt("DINEHALL_MESSAGES_PER_MINUTE", 30)),
			Burst:             envInt("DINEHALL_MESSAGE_BURST", 10),
		},
		Retention: RetentionConfig{
			Enabled:         envBool("DINEHALL_RETENTION_ENABLED", true),
			SweepInterval:   envInt("DINEHALL_RETENTION_SWEEP_MINUTES", 360),
			IncidentDays:    envInt("DINEHALL_RETENTION_INCIDENT_DAYS", 90),
			ApprovalDays:    envInt("DINEHALL_RETENTION_APPROVAL_DAYS", 30),
			ArchivePath:     envStr("DINEHALL_RETENTION_ARCHIVE_PATH", ""),
			CompressArchive: envBool("DINEHALL_RETENTION_ARCHIVE_COMPRESS", true),
		},
		PolicyFile: envStr("DINEHALL_POLICY_FILE", ""),
	}
}

// ── Policy overlay ──────────────────────────────────────────

// PolicyOverlay is the YAML-tunable portion of the policy tables. Every
// field is optional; zero values leave the built-in defaults untouched.
type PolicyOverlay struct {
	Detection struct {
		InjectionBase     float64 `yaml:"injection_base"`
		AbuseBase         float64 `yaml:"abuse_base"`
		WebContentBase    float64 `yaml:"web_content_base"`
		CrossTenantWeight float64 `yaml:"cross_tenant_weight"`

		MediumThreshold   float64 `yaml:"medium_threshold"`
		HighThreshold     float64 `yaml:"high_threshold"`
		CriticalThreshold float64 `yaml:"critical_threshold"`

		// Extra families extend the built-in lists; they cannot remove
		// or weaken built-in families.
		ExtraInjectionFamilies []OverlayFamily `yaml:"extra_injection_families"`
		ExtraAbuseFamilies     []OverlayFamily `yaml:"extra_abuse_families"`
		ExtraWebFamilies       []OverlayFamily `yaml:"extra_web_families"`
	} `yaml:"detection"`

	Fence struct {
		ExtraGeoTargets   []fence.GeoTarget `yaml:"extra_geo_targets"`
		ExtraDomains      []string          `yaml:"extra_domains"`
		ReplaceGeoTargets []fence.GeoTarget `yaml:"geo_targets"`
		ReplaceDomains    []string          `yaml:"allowlisted_domains"`
	} `yaml:"fence"`
}

// OverlayFamily mirrors detect.Family for YAML decoding.
type OverlayFamily struct {
	Trigger  string   `yaml:"trigger"`
	Weight   float64  `yaml:"weight"`
	Patterns []string `yaml:"patterns"`
}

// LoadPolicy reads the YAML overlay from path. An empty path returns an
// empty overlay.
func LoadPolicy(path string) (*PolicyOverlay, error) {
	overlay := &PolicyOverlay{}
	if path == "" {
		return overlay, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, overlay); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return overlay, nil
}

// DetectConfig merges the overlay onto the built-in detection config.
func (p *PolicyOverlay) DetectConfig() detect.Config {
	cfg := detect.DefaultConfig()
	d := p.Detection

	if d.InjectionBase > 0 {
		cfg.InjectionBase = d.InjectionBase
	}
	if d.AbuseBase > 0 {
		cfg.AbuseBase = d.AbuseBase
	}
	if d.WebContentBase > 0 {
		cfg.WebContentBase = d.WebContentBase
	}
	if d.CrossTenantWeight > 0 {
		cfg.CrossTenantWeight = d.CrossTenantWeight
	}
	if d.MediumThreshold > 0 {
		cfg.MediumThreshold = d.MediumThreshold
	}
	if d.HighThreshold > 0 {
		cfg.HighThreshold = d.HighThreshold
	}
	if d.CriticalThreshold > 0 {
		cfg.CriticalThreshold = d.CriticalThreshold
	}

	cfg.InjectionFamilies = append(cfg.InjectionFamilies, toFamilies(d.ExtraInjectionFamilies)...)
	cfg.AbuseFamilies = append(cfg.AbuseFamilies, toFamilies(d.ExtraAbuseFamilies)...)
	cfg.WebFamilies = append(cfg.WebFamilies, toFamilies(d.ExtraWebFamilies)...)
	return cfg
}

// FenceConfig merges the overlay onto the built-in fence config. Replace
// lists win over extend lists when both are present.
func (p *PolicyOverlay) FenceConfig() fence.Config {
	cfg := fence.DefaultConfig()
	f := p.Fence

	if len(f.ReplaceGeoTargets) > 0 {
		cfg.GeoTargets = f.ReplaceGeoTargets
	} else {
		cfg.GeoTargets = append(cfg.GeoTargets, f.ExtraGeoTargets...)
	}
	if len(f.ReplaceDomains) > 0 {
		cfg.AllowlistedDomains = f.ReplaceDomains
	} else {
		cfg.AllowlistedDomains = append(cfg.AllowlistedDomains, f.ExtraDomains...)
	}
	return cfg
}

func toFamilies(in []OverlayFamily) []detect.Family {
	out := make([]detect.Family, 0, len(in))
	for _, f := range in {
		out = append(out, detect.Family{Trigger: f.Trigger, Weight: f.Weight, Patterns: f.Patterns})
	}
	return out
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Database.URL != "" {
		t.Errorf("Database.URL = %q, want empty (memory store)", cfg.Database.URL)
	}
	if cfg.Limits.MessagesPerMinute != 30 || cfg.Limits.Burst != 10 {
		t.Errorf("Limits = %+v", cfg.Limits)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DINEHALL_PORT", "9090")
	t.Setenv("DINEHALL_REDIS_ADDR", "redis:6379")

	cfg := Load()
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
}

func TestLoadPolicy_EmptyPath(t *testing.T) {
	overlay, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("LoadPolicy(\"\") error = %v", err)
	}

	// Merging an empty overlay leaves the defaults intact.
	cfg := overlay.DetectConfig()
	if cfg.InjectionBase != 0.2 || cfg.HighThreshold != 0.7 {
		t.Errorf("empty overlay changed defaults: %+v", cfg)
	}
	fc := overlay.FenceConfig()
	if len(fc.GeoTargets) != 3 {
		t.Errorf("empty overlay changed geo targets: %d", len(fc.GeoTargets))
	}
}

func TestLoadPolicy_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	overlayYAML := `
detection:
  high_threshold: 0.65
  extra_injection_families:
    - trigger: jailbreak_persona
      weight: 0.5
      patterns:
        - '(?i)pretend\s+you\s+are\s+DAN'
fence:
  extra_domains:
    - standardmedia.co.ke
`
	if err := os.WriteFile(path, []byte(overlayYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	overlay, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() error = %v", err)
	}

	cfg := overlay.DetectConfig()
	if cfg.HighThreshold != 0.65 {
		t.Errorf("HighThreshold = %v, want 0.65", cfg.HighThreshold)
	}
	if cfg.MediumThreshold != 0.5 {
		t.Errorf("MediumThreshold changed without being set: %v", cfg.MediumThreshold)
	}
	found := false
	for _, fam := range cfg.InjectionFamilies {
		if fam.Trigger == "jailbreak_persona" {
			found = true
		}
	}
	if !found {
		t.Error("extra injection family not merged")
	}

	fc := overlay.FenceConfig()
	hasExtra := false
	for _, d := range fc.AllowlistedDomains {
		if d == "standardmedia.co.ke" {
			hasExtra = true
		}
	}
	if !hasExtra {
		t.Error("extra domain not merged")
	}
	if len(fc.AllowlistedDomains) < 9 {
		t.Error("extend dropped built-in domains")
	}
}

func TestLoadPolicy_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("detection: ["), 0o600)
	if _, err := LoadPolicy(path); err == nil {
		t.Error("LoadPolicy(bad yaml) should fail")
	}
}

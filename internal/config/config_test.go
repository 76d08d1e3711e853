package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"postline/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default("agency-1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Agency.ID != "agency-1" {
		t.Fatalf("agency id = %q", cfg.Agency.ID)
	}
	if cfg.Defaults.Currency == "" || cfg.Cutout.MaxSizeBytes <= 0 {
		t.Fatalf("defaults missing: %+v", cfg)
	}
	if len(cfg.Catalog.Countries) == 0 || len(cfg.Catalog.AnnouncementTypes) == 0 {
		t.Fatal("catalog missing")
	}
}

func TestFromYAMLRejectsIncomplete(t *testing.T) {
	_, err := config.FromYAML([]byte("agency:\n  id: agency-1\n"))
	if err == nil || !strings.Contains(err.Error(), "currency") {
		t.Fatalf("expected currency error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	workspace := t.TempDir()
	if _, err := config.Load(workspace); err == nil {
		t.Fatal("expected error for missing config")
	}
	opt, err := config.LoadOptional(workspace)
	if err != nil || opt != nil {
		t.Fatalf("optional load = %v, %v", opt, err)
	}

	path := filepath.Join(workspace, "postline.yml")
	if err := os.WriteFile(path, []byte(config.GenerateDefault("agency-1")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agency.ID != "agency-1" {
		t.Fatalf("agency id = %q", cfg.Agency.ID)
	}
}

func TestCountrySource(t *testing.T) {
	src := config.CountrySource{Cfg: config.Default("agency-1")}
	list, err := src.Countries(context.Background())
	if err != nil {
		t.Fatalf("countries: %v", err)
	}
	if len(list) == 0 {
		t.Fatal("empty country list")
	}

	empty := config.CountrySource{}
	if _, err := empty.Countries(context.Background()); err == nil {
		t.Fatal("expected error without a catalog")
	}
}

package config

import "testing"

func TestValidateAndSetDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{Root: "/srv/project"}
	if err := NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if cfg.MaxFileSize != defaultMaxFileSize {
		t.Fatalf("expected default max file size, got %d", cfg.MaxFileSize)
	}
	if cfg.DebounceMs != defaultDebounceMs {
		t.Fatalf("expected default debounce, got %d", cfg.DebounceMs)
	}
	if cfg.StalenessThresholdSec != defaultStalenessThresholdSec {
		t.Fatalf("expected default staleness threshold, got %d", cfg.StalenessThresholdSec)
	}
}

func TestValidateAndSetDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{Root: "/srv/project", MaxFileSize: 2048, DebounceMs: 100, StalenessThresholdSec: 30}
	if err := NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if cfg.MaxFileSize != 2048 || cfg.DebounceMs != 100 || cfg.StalenessThresholdSec != 30 {
		t.Fatalf("expected explicit values preserved, got %+v", cfg)
	}
}

func TestValidateAndSetDefaultsRejectsEmptyRoot(t *testing.T) {
	cfg := &Config{}
	if err := NewValidator().ValidateAndSetDefaults(cfg); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestValidateAndSetDefaultsRejectsNegativeMaxFileSize(t *testing.T) {
	cfg := &Config{Root: "/srv/project", MaxFileSize: -1}
	if err := NewValidator().ValidateAndSetDefaults(cfg); err == nil {
		t.Fatalf("expected error for negative max file size")
	}
}

func TestValidateAndSetDefaultsRejectsOversizedMaxFileSize(t *testing.T) {
	cfg := &Config{Root: "/srv/project", MaxFileSize: 200 * 1024 * 1024}
	if err := NewValidator().ValidateAndSetDefaults(cfg); err == nil {
		t.Fatalf("expected error for oversized max file size")
	}
}

func TestValidateAndSetDefaultsRejectsNegativeDebounce(t *testing.T) {
	cfg := &Config{Root: "/srv/project", DebounceMs: -5}
	if err := NewValidator().ValidateAndSetDefaults(cfg); err == nil {
		t.Fatalf("expected error for negative debounce_ms")
	}
}

func TestValidateAndSetDefaultsRejectsNegativeStalenessThreshold(t *testing.T) {
	cfg := &Config{Root: "/srv/project", StalenessThresholdSec: -1}
	if err := NewValidator().ValidateAndSetDefaults(cfg); err == nil {
		t.Fatalf("expected error for negative staleness_threshold_sec")
	}
}

func TestValidateConfigWrapsValidator(t *testing.T) {
	cfg := &Config{Root: "/srv/project"}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
}

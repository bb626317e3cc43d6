package config

import "fmt"

// Validator checks a Config's fields and fills in any that were left
// at their zero value with a sane default, in the teacher's
// validate-then-default style but scoped to the small field set this
// design carries. It returns the first field error it finds. Field errors are plain errors rather than
// errors.CodedError: the closed error vocabulary (internal/errors)
// covers path/parse/store/validation failures that cross the
// pipeline's boundary, not malformed configuration input, which the
// CLI reports directly.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

// ValidateAndSetDefaults returns the first validation failure found, or
// applies smart defaults and returns nil. Root must already be set by
// the caller (Load always does this); everything else can be zero.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if cfg.Root == "" {
		return fmt.Errorf("config: root must not be empty")
	}
	if cfg.MaxFileSize < 0 {
		return fmt.Errorf("config: max_file_size must not be negative, got %d", cfg.MaxFileSize)
	}
	if cfg.MaxFileSize > 100*1024*1024 {
		return fmt.Errorf("config: max_file_size should not exceed 100MB, got %d", cfg.MaxFileSize)
	}
	if cfg.DebounceMs < 0 {
		return fmt.Errorf("config: debounce_ms must not be negative, got %d", cfg.DebounceMs)
	}
	if cfg.StalenessThresholdSec < 0 {
		return fmt.Errorf("config: staleness_threshold_sec must not be negative, got %d", cfg.StalenessThresholdSec)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.DebounceMs == 0 {
		cfg.DebounceMs = defaultDebounceMs
	}
	if cfg.StalenessThresholdSec == 0 {
		cfg.StalenessThresholdSec = defaultStalenessThresholdSec
	}
}

// ValidateConfig is a convenience wrapper around Validator.
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}

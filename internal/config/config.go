// Package config loads process settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Settings are the knobs shared by both command-line tools. Flags override
// them where both exist.
type Settings struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	BarcodeStep int `env:"BARCODE_STEP" envDefault:"100000"`
	MaxAbort    int `env:"MAX_ABORT" envDefault:"10"`

	Seed                uint64  `env:"SEED" envDefault:"0"`
	FinalizeFailureRate float64 `env:"FINALIZE_FAILURE_RATE" envDefault:"0"`
	PhiRate             float64 `env:"PHI_RATE" envDefault:"0"`
	PhiMeanPt           float64 `env:"PHI_MEAN_PT" envDefault:"1.5"`

	MetricsFile string `env:"METRICS_FILE"`
}

// Prefix namespaces every variable read by Load.
const Prefix = "EVENTMIX_"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvPrefixed is ParseEnv with every variable name prefixed.
func ParseEnvPrefixed(target any, prefix string) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads Settings from EVENTMIX_* variables and validates them.
func Load() (Settings, error) {
	var s Settings
	if err := ParseEnvPrefixed(&s, Prefix); err != nil {
		return Settings{}, err
	}
	if s.BarcodeStep <= 0 {
		return Settings{}, fmt.Errorf("%sBARCODE_STEP must be positive, got %d", Prefix, s.BarcodeStep)
	}
	if s.MaxAbort <= 0 {
		return Settings{}, fmt.Errorf("%sMAX_ABORT must be positive, got %d", Prefix, s.MaxAbort)
	}
	return s, nil
}

package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Env carries process settings read from the environment.
type Env struct {
	DataDir     string `env:"BEAMSIM_DATA" envDefault:".beamsim"`
	LogLevel    string `env:"BEAMSIM_LOG_LEVEL" envDefault:"info"`
	MetricsFile string `env:"BEAMSIM_METRICS_FILE"`
}

func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// SlogLevel maps LogLevel onto a slog level, falling back to info.
func (e Env) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

package config

import (
	"log/slog"
	"os"
)

const defaultEnv = "development"

// LoadEnv loads config/envs/.env.<env> into the process environment.
// Variables already set in the OS environment take precedence.
func LoadEnv(env string) {
	if env == "" {
		env = defaultEnv
	}
	envFile := "config/envs/.env." + env
	if _, err := os.Stat(envFile); err != nil {
		slog.Warn("[Config] No .env file found, using OS environment", slog.String("file", envFile))
		return
	}
	if err := loadFile(envFile); err != nil {
		slog.Warn("[Config] Failed to load .env file, using OS environment",
			slog.String("file", envFile),
			slog.String("error", err.Error()))
	}
}

// Package config loads server configuration from a .env file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds all configuration for the server.
type Config struct {
	Port          int      `validate:"min=1,max=65535"`
	Store         string   `validate:"oneof=sqlite mongo memory"`
	SQLitePath    string   `validate:"required_if=Store sqlite"`
	MongoURI      string   `validate:"required_if=Store mongo"`
	MongoDatabase string   `validate:"required_if=Store mongo"`
	LogLevel      string   `validate:"oneof=debug info warn error"`
	LogFile       string
	Timezone      string   `validate:"required,timezone"`
	Concurrency   int      `validate:"min=1,max=64"`
	CORSOrigins   []string `validate:"dive,required"`
}

// Load reads .env (if present), then the environment, then args.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnvInt("PORT", 8080),
		Store:         getEnvString("STORE", StoreSQLite),
		SQLitePath:    getEnvString("SQLITE_PATH", "targets.db"),
		MongoURI:      getEnvString("MONGO_URI", ""),
		MongoDatabase: getEnvString("MONGO_DATABASE", "sales"),
		LogLevel:      getEnvString("LOG_LEVEL", "info"),
		LogFile:       getEnvString("LOG_FILE", ""),
		Timezone:      getEnvString("TIMEZONE", "UTC"),
		Concurrency:   getEnvInt("CONCURRENCY", 8),
		CORSOrigins:   getEnvStringSlice("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Store backend (sqlite, mongo, memory)")
	fs.StringVar(&cfg.SQLitePath, "db", cfg.SQLitePath, `SQLite database path (":memory:" for in-memory)`)
	fs.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "MongoDB connection URI")
	fs.StringVar(&cfg.MongoDatabase, "mongo-db", cfg.MongoDatabase, "MongoDB database name")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Rotated log file (stdout when empty)")
	fs.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "Business timezone for window resolution")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Per-agent fan-out limit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Store = strings.ToLower(cfg.Store)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Location returns the configured business timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// =============================================================================
// ENVIRONMENT HELPERS
// =============================================================================

func getEnvString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvStringSlice(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

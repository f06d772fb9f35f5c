package config

import (
	"log"
	"os"
)

const (
	defaultDBPath = "./dev.db"
	defaultPort   = "8080"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Port    string
	DBPath  string
	BaseURL string

	StripeSecretKey string

	StorageEndpoint   string
	StorageBucket     string
	StorageServiceKey string

	// RelayEndpoint is the lightweight upload relay tried first for small
	// payloads. Empty disables the relay path and uploads go straight to
	// object storage.
	RelayEndpoint string
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	_ = loadDotEnv(".env")

	cfg := Config{
		Port:              os.Getenv("PORT"),
		DBPath:            os.Getenv("DB_PATH"),
		BaseURL:           os.Getenv("BASE_URL"),
		StripeSecretKey:   os.Getenv("STRIPE_SECRET_KEY"),
		StorageEndpoint:   os.Getenv("STORAGE_ENDPOINT"),
		StorageBucket:     os.Getenv("STORAGE_BUCKET"),
		StorageServiceKey: os.Getenv("STORAGE_SERVICE_KEY"),
		RelayEndpoint:     os.Getenv("RELAY_ENDPOINT"),
	}

	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	if cfg.StorageBucket == "" {
		cfg.StorageBucket = "models"
	}

	if cfg.StripeSecretKey == "" {
		log.Print("warning: STRIPE_SECRET_KEY is not set; checkout will fail")
	}
	if cfg.StorageEndpoint == "" {
		log.Print("warning: STORAGE_ENDPOINT is not set; uploads will produce placeholders")
	}

	return cfg
}

// IsDev reports whether the process runs outside production.
func (c Config) IsDev() bool {
	return os.Getenv("APP_ENV") != "production"
}

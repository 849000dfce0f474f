package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values.
type Config struct {
	Secret         string
	TokenTTL       time.Duration
	DatabaseDriver string
	DatabaseDSN    string
	HTTPPort       string
	CORSOrigins    []string

	LogLevel  string
	LogFormat string

	NodeID int64

	InventorySeed string
	StoreSeed     string
	AdminUsername string
	AdminPassword string
}

// Load reads configuration from the environment (and an optional .env file) with reasonable defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SECRET", "dev_secret")
	v.SetDefault("TOKEN_TTL", time.Hour)
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:pharmadist.db")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("NODE_ID", 1)

	cfg := Config{
		Secret:         v.GetString("SECRET"),
		TokenTTL:       v.GetDuration("TOKEN_TTL"),
		DatabaseDriver: strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_DRIVER"))),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		HTTPPort:       strings.TrimSpace(v.GetString("HTTP_PORT")),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
		NodeID:         v.GetInt64("NODE_ID"),
		InventorySeed:  strings.TrimSpace(v.GetString("INVENTORY_SEED")),
		StoreSeed:      strings.TrimSpace(v.GetString("STORE_SEED")),
		AdminUsername:  strings.TrimSpace(v.GetString("ADMIN_USERNAME")),
		AdminPassword:  v.GetString("ADMIN_PASSWORD"),
	}

	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		return Config{}, fmt.Errorf("invalid HTTP_PORT value %q", cfg.HTTPPort)
	}
	switch cfg.DatabaseDriver {
	case "sqlite", "pgx":
	case "postgres":
		cfg.DatabaseDriver = "pgx"
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if cfg.Secret == "" {
		return Config{}, fmt.Errorf("SECRET must not be empty")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

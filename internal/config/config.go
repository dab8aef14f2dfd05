package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the TenantBridge server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Vendor   VendorConfig
	Session  SessionConfig
}

type ServerConfig struct {
	Port   int
	Env    string
	AppURL string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// VendorConfig describes how to reach the identity platform's management
// API. ClientID/ClientSecret are the vendor-level credential pair, not an
// end-user credential.
type VendorConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	ApplicationID string
	VendorHost    string
	Timeout       time.Duration
	HierarchyTTL  time.Duration
}

// SessionConfig covers verification of vendor-issued user access tokens.
type SessionConfig struct {
	JWTPublicKey string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:   envInt("TENANTBRIDGE_PORT", 8080),
			Env:    envString("TENANTBRIDGE_ENV", "development"),
			AppURL: envString("TENANTBRIDGE_APP_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Vendor: VendorConfig{
			BaseURL:       envString("VENDOR_BASE_URL", "https://api.frontegg.com"),
			ClientID:      os.Getenv("VENDOR_CLIENT_ID"),
			ClientSecret:  os.Getenv("VENDOR_CLIENT_SECRET"),
			ApplicationID: os.Getenv("VENDOR_APPLICATION_ID"),
			VendorHost:    os.Getenv("VENDOR_HOST"),
			Timeout:       envDuration("VENDOR_TIMEOUT", 30*time.Second),
			HierarchyTTL:  envDuration("VENDOR_HIERARCHY_TTL", 5*time.Minute),
		},
		Session: SessionConfig{
			JWTPublicKey: os.Getenv("SESSION_JWT_PUBLIC_KEY"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !strings.HasPrefix(c.Vendor.BaseURL, "http://") && !strings.HasPrefix(c.Vendor.BaseURL, "https://") {
		return fmt.Errorf("VENDOR_BASE_URL must start with http:// or https://, got %q", c.Vendor.BaseURL)
	}
	if c.Vendor.ClientID == "" {
		return fmt.Errorf("VENDOR_CLIENT_ID is required")
	}
	if c.Vendor.ClientSecret == "" {
		return fmt.Errorf("VENDOR_CLIENT_SECRET is required")
	}
	if c.Vendor.ApplicationID == "" {
		return fmt.Errorf("VENDOR_APPLICATION_ID is required")
	}
	if c.Vendor.VendorHost == "" {
		return fmt.Errorf("VENDOR_HOST is required")
	}

	if c.Session.JWTPublicKey == "" {
		return fmt.Errorf("SESSION_JWT_PUBLIC_KEY is required")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

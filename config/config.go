// Package config provides environment-backed configuration loading for the
// duty reconciliation services. It includes a prefix-aware environment
// variable loader and the application configuration assembled from it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig provides utilities for loading configuration from environment variables
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{
		prefix: prefix,
	}
}

// GetString retrieves a string value from environment with optional default
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		return value
	}
	return defaultValue
}

// MustGetString retrieves a required string value from environment or errors
func (ec *EnvConfig) MustGetString(key string) (string, error) {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", fullKey)
	}
	return value, nil
}

// GetInt retrieves an integer value from environment with optional default
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value from environment with optional default
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix == "" {
		return key
	}
	return strings.ToUpper(ec.prefix) + "_" + key
}

// Config is the assembled application configuration. Portal host constants
// are compiled in; only storage, persistence, and local paths come from the
// environment.
type Config struct {
	// Object store settings (required).
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string

	// Optional object store settings.
	Prefix     string
	PresignTTL time.Duration

	// Optional local/persistence settings.
	SessionsDir string
	PostgresDSN string
	GSBinary    string
}

// Load assembles a Config from the environment using the DUTYRECON prefix.
// The four object-store keys are required.
func Load() (*Config, error) {
	ec := NewEnvConfig("DUTYRECON")

	bucket, err := ec.MustGetString("S3_BUCKET")
	if err != nil {
		return nil, err
	}
	region, err := ec.MustGetString("S3_REGION")
	if err != nil {
		return nil, err
	}
	accessKey, err := ec.MustGetString("S3_ACCESS_KEY")
	if err != nil {
		return nil, err
	}
	secretKey, err := ec.MustGetString("S3_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	return &Config{
		Bucket:      bucket,
		Region:      region,
		AccessKey:   accessKey,
		SecretKey:   secretKey,
		Prefix:      ec.GetString("STORAGE_PREFIX", "netchb-duty"),
		PresignTTL:  time.Duration(ec.GetInt("URL_TTL_SECONDS", 3600)) * time.Second,
		SessionsDir: ec.GetString("SESSIONS_DIR", defaultSessionsDir()),
		PostgresDSN: ec.GetString("POSTGRES_DSN", ""),
		GSBinary:    ec.GetString("GS_BINARY", "gs"),
	}, nil
}

func defaultSessionsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sessions"
	}
	return home + string(os.PathSeparator) + ".dutyrecon" + string(os.PathSeparator) + "sessions"
}

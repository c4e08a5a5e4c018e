// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/competo/config.yaml",
	"/etc/competo/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults, applied first and then
// overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8470,
			Timeout:     30 * time.Second,
			Environment: EnvDevelopment,
		},
		Security: SecurityConfig{
			JWTSecret:          "",
			UserTokenTTL:       7 * 24 * time.Hour,
			PrivilegedTokenTTL: 30 * time.Minute,
			RotateThreshold:    10 * time.Minute,
			SessionTimeout:     30 * time.Minute,

			RateLimitRequests: 100,
			RateLimitWindow:   15 * time.Minute,

			LoginRateLimitRequests: 3,
			LoginRateLimitWindow:   15 * time.Minute,

			RateLimitDisabled: false,

			// Empty by default: unknown origins fail closed.
			CORSOrigins: []string{},
			DevCORSOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			},
			TrustedProxies:        []string{},
			PrivilegedIPAllowlist: []string{},
		},
		Database: DatabaseConfig{
			URL:             "",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			LookupTimeout:   2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1000,
			LogToStdout: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. built-in defaults
//  2. optional YAML config file
//  3. environment variables (highest priority)
//
// The returned config has passed Validate; callers can treat a non-nil
// error as fatal.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// COMPETO_JWT_SECRET -> security.jwt_secret, etc.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are config paths parsed as comma-separated lists when
// supplied through environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.dev_cors_origins",
	"security.trusted_proxies",
	"security.privileged_ip_allowlist",
}

// processSliceFields converts comma-separated env strings to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults).
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys return empty string so random environment variables do not
// pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Security
		"competo_jwt_secret":        "security.jwt_secret",
		"user_token_ttl":            "security.user_token_ttl",
		"privileged_token_ttl":      "security.privileged_token_ttl",
		"token_rotate_threshold":    "security.rotate_threshold",
		"session_timeout":           "security.session_timeout",
		"rate_limit_requests":       "security.rate_limit_requests",
		"rate_limit_window":         "security.rate_limit_window",
		"login_rate_limit_requests": "security.login_rate_limit_requests",
		"login_rate_limit_window":   "security.login_rate_limit_window",
		"disable_rate_limit":        "security.rate_limit_disabled",
		"cors_origins":              "security.cors_origins",
		"dev_cors_origins":          "security.dev_cors_origins",
		"trusted_proxies":           "security.trusted_proxies",
		"privileged_ip_allowlist":   "security.privileged_ip_allowlist",

		// Database
		"database_url":            "database.url",
		"database_max_open_conns": "database.max_open_conns",
		"database_max_idle_conns": "database.max_idle_conns",
		"database_conn_lifetime":  "database.conn_max_lifetime",
		"database_lookup_timeout": "database.lookup_timeout",

		// Audit
		"audit_enabled":       "audit.enabled",
		"audit_buffer_size":   "audit.buffer_size",
		"audit_log_to_stdout": "audit.log_to_stdout",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package config

import (
	"fmt"
	"strings"
	"time"
)

// Environment values recognized by the security validation.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// minSecretLen is the minimum accepted signing secret length.
const minSecretLen = 32

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Database DatabaseConfig `koanf:"database"`
	Audit    AuditConfig    `koanf:"audit"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// SecurityConfig holds everything the security pipeline and token codec need.
type SecurityConfig struct {
	// JWTSecret signs bearer tokens. Required; at least 32 characters.
	// There is deliberately no development fallback value.
	JWTSecret string `koanf:"jwt_secret"`

	// UserTokenTTL is the lifetime of end-user tokens.
	UserTokenTTL time.Duration `koanf:"user_token_ttl"`

	// PrivilegedTokenTTL is the lifetime of admin-tier tokens. Kept short:
	// with no revocation list, expiry bounds the blast radius of a leak.
	PrivilegedTokenTTL time.Duration `koanf:"privileged_token_ttl"`

	// RotateThreshold triggers opportunistic re-issue when a verified
	// token's remaining lifetime falls below it.
	RotateThreshold time.Duration `koanf:"rotate_threshold"`

	// SessionTimeout is the inactivity window for privileged sessions.
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// RateLimitRequests / RateLimitWindow bound general API traffic
	// per client address.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// LoginRateLimitRequests / LoginRateLimitWindow bound the privileged
	// login endpoints with a much stricter window.
	LoginRateLimitRequests int           `koanf:"login_rate_limit_requests"`
	LoginRateLimitWindow   time.Duration `koanf:"login_rate_limit_window"`

	// RateLimitDisabled turns the limiter off (tests only).
	RateLimitDisabled bool `koanf:"rate_limit_disabled"`

	// CORSOrigins is the explicit allow-list. Empty means no cross-origin
	// access: unknown origins fail closed.
	CORSOrigins []string `koanf:"cors_origins"`

	// DevCORSOrigins are appended to the allow-list only when
	// Environment is development.
	DevCORSOrigins []string `koanf:"dev_cors_origins"`

	// TrustedProxies are addresses whose X-Forwarded-For is believed.
	TrustedProxies []string `koanf:"trusted_proxies"`

	// PrivilegedIPAllowlist, when non-empty, restricts admin routes to
	// the listed client addresses.
	PrivilegedIPAllowlist []string `koanf:"privileged_ip_allowlist"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`

	// LookupTimeout bounds per-request principal lookups so a stalled
	// store cannot exhaust worker capacity.
	LookupTimeout time.Duration `koanf:"lookup_timeout"`
}

// AuditConfig holds audit recorder settings.
type AuditConfig struct {
	Enabled     bool `koanf:"enabled"`
	BufferSize  int  `koanf:"buffer_size"`
	LogToStdout bool `koanf:"log_to_stdout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ConfigError reports a missing or invalid configuration value. It is the
// only error class allowed to be fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, EnvProduction)
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, EnvDevelopment)
}

// AllowedOrigins returns the effective CORS allow-list for the current
// environment. Development origins never leak into production.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return append(append([]string{}, c.Security.CORSOrigins...), c.Security.DevCORSOrigins...)
	}
	return c.Security.CORSOrigins
}

// Validate checks the configuration. All findings are *ConfigError.
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return &ConfigError{Field: "security.jwt_secret", Reason: "signing secret is required"}
	}
	if len(c.Security.JWTSecret) < minSecretLen {
		return &ConfigError{
			Field:  "security.jwt_secret",
			Reason: fmt.Sprintf("secret must be at least %d characters", minSecretLen),
		}
	}
	if c.Security.UserTokenTTL <= 0 || c.Security.PrivilegedTokenTTL <= 0 {
		return &ConfigError{Field: "security", Reason: "token TTLs must be positive"}
	}
	if c.Security.PrivilegedTokenTTL > c.Security.UserTokenTTL {
		return &ConfigError{
			Field:  "security.privileged_token_ttl",
			Reason: "privileged tokens must not outlive end-user tokens",
		}
	}
	if c.Security.SessionTimeout <= 0 {
		return &ConfigError{Field: "security.session_timeout", Reason: "must be positive"}
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitRequests <= 0 || c.Security.LoginRateLimitRequests <= 0 {
			return &ConfigError{Field: "security.rate_limit_requests", Reason: "must be positive"}
		}
		if c.Security.RateLimitWindow <= 0 || c.Security.LoginRateLimitWindow <= 0 {
			return &ConfigError{Field: "security.rate_limit_window", Reason: "must be positive"}
		}
	}

	if c.IsProduction() {
		for _, origin := range c.Security.CORSOrigins {
			if origin == "*" {
				return &ConfigError{
					Field:  "security.cors_origins",
					Reason: "wildcard origin is not allowed in production",
				}
			}
		}
		if c.Security.RateLimitDisabled {
			return &ConfigError{
				Field:  "security.rate_limit_disabled",
				Reason: "rate limiting cannot be disabled in production",
			}
		}
		if c.Database.URL == "" {
			return &ConfigError{Field: "database.url", Reason: "required in production"}
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Reason: "port out of range"}
	}

	return nil
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	"codeberg.org/oliverandrich/token-checkin/internal/tokens"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server    ServerConfig
	Log       LogConfig
	Tokens    TokensConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	Metrics   MetricsConfig
	TLS       TLSConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int  // in MB
	TrustProxy  bool // take the client address from X-Forwarded-For
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type TokensConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Count        int           // number of tokens issued at startup
	DataDir      string        // directory for tokens-*.txt and records-*.txt
	ConfirmDelay time.Duration // how long the confirm button stays disabled
}

type RateLimitConfig struct {
	Window   time.Duration
	RedisURL string // empty uses the in-memory limiter
}

type DatabaseConfig struct {
	DSN string // empty disables the SQLite mirror
}

type MetricsConfig struct {
	Enabled bool
}

type TLSConfig struct {
	Mode     string // auto, acme, selfsigned, manual, off
	CertDir  string // Directory for auto-generated certificates
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
			TrustProxy:  cmd.Bool("trust-proxy"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Tokens: TokensConfig{
			Count:        int(cmd.Int("tokens")),
			DataDir:      cmd.String("data-dir"),
			ConfirmDelay: cmd.Duration("confirm-delay"),
		},
		RateLimit: RateLimitConfig{
			Window:   cmd.Duration("rate-limit-window"),
			RedisURL: cmd.String("rate-limit-redis-url"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Metrics: MetricsConfig{
			Enabled: cmd.Bool("metrics"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// Validate checks values that would otherwise fail late or silently.
func (c *Config) Validate() error {
	if c.Tokens.Count < 1 || c.Tokens.Count > tokens.MaxCount {
		return fmt.Errorf("tokens must be between 1 and %d, got %d", tokens.MaxCount, c.Tokens.Count)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate-limit-window must be positive, got %s", c.RateLimit.Window)
	}
	if c.Tokens.ConfirmDelay < 0 {
		return fmt.Errorf("confirm-delay must not be negative, got %s", c.Tokens.ConfirmDelay)
	}
	if c.Server.MaxBodySize < 1 {
		return fmt.Errorf("max-body-size must be at least 1 MB, got %d", c.Server.MaxBodySize)
	}
	return nil
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if shouldUseTLS(mode, host) {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "selfsigned", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "0.0.0.0",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8888,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.BoolFlag{
			Name:    "trust-proxy",
			Usage:   "Rate limit by X-Forwarded-For instead of the connection address",
			Sources: source("TRUST_PROXY", "server.trust_proxy"),
		},
		&cli.IntFlag{
			Name:    "tokens",
			Value:   50,
			Usage:   "Number of tokens to issue at startup",
			Sources: source("TOKENS", "tokens.count"),
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Value:   ".",
			Usage:   "Directory for the issued token list and the redemption record",
			Sources: source("DATA_DIR", "tokens.data_dir"),
		},
		&cli.DurationFlag{
			Name:    "confirm-delay",
			Value:   3 * time.Second,
			Usage:   "How long the confirm button stays disabled",
			Sources: source("CONFIRM_DELAY", "tokens.confirm_delay"),
		},
		&cli.DurationFlag{
			Name:    "rate-limit-window",
			Value:   10 * time.Second,
			Usage:   "Minimum time between token validation attempts per client",
			Sources: source("RATE_LIMIT_WINDOW", "rate_limit.window"),
		},
		&cli.StringFlag{
			Name:    "rate-limit-redis-url",
			Usage:   "Redis URL for the rate limiter (empty uses memory)",
			Sources: source("RATE_LIMIT_REDIS_URL", "rate_limit.redis_url"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Usage:   "SQLite DSN for mirroring redemptions (empty disables)",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		&cli.BoolFlag{
			Name:    "metrics",
			Value:   true,
			Usage:   "Expose Prometheus metrics on /metrics",
			Sources: source("METRICS", "metrics.enabled"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "off",
			Usage:   "TLS mode (auto, acme, selfsigned, manual, off)",
			Sources: source("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for auto-generated certificates",
			Sources: source("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: source("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: source("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: source("TLS_KEY_FILE", "tls.key_file"),
		},
	}
}

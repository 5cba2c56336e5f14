// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Auth     AuthConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Database DatabaseConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

// AuthConfig covers token signing and the ephemeral store TTLs.
type AuthConfig struct { //nolint:govet // fieldalignment not critical
	Secret          string // signing secret for issued tokens
	SigningMethod   string // HS256, HS384, HS512
	SessionTTLDays  int    // session lifetime in days
	OTPTTL          int    // one-time code lifetime in seconds
	EmailTokenHours int    // email verification token lifetime in hours
	OTPLength       int    // digits per one-time code
}

// SessionTTL returns the session lifetime as a duration.
func (c *AuthConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLDays) * 24 * time.Hour
}

// OTPTTLDuration returns the one-time code lifetime as a duration.
func (c *AuthConfig) OTPTTLDuration() time.Duration {
	return time.Duration(c.OTPTTL) * time.Second
}

// EmailTokenTTL returns the email token lifetime as a duration.
func (c *AuthConfig) EmailTokenTTL() time.Duration {
	return time.Duration(c.EmailTokenHours) * time.Hour
}

type RedisConfig struct { //nolint:govet // fieldalignment not critical
	Addr     string
	Password string
	DB       int
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	From     string
	FromName string
	Username string
	Password string
	TLS      bool
}

type DatabaseConfig struct {
	DSN string
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Auth: AuthConfig{
			Secret:          cmd.String("auth-secret"),
			SigningMethod:   cmd.String("auth-signing-method"),
			SessionTTLDays:  int(cmd.Int("auth-session-ttl-days")),
			OTPTTL:          int(cmd.Int("auth-otp-ttl")),
			EmailTokenHours: int(cmd.Int("auth-email-token-hours")),
			OTPLength:       int(cmd.Int("auth-otp-length")),
		},
		Redis: RedisConfig{
			Addr:     cmd.String("redis-addr"),
			Password: cmd.String("redis-password"),
			DB:       int(cmd.Int("redis-db")),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	return cfg
}

// Validate rejects configurations the server cannot safely start with.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	if c.Auth.SessionTTLDays <= 0 {
		return fmt.Errorf("auth session TTL must be positive")
	}
	if c.Auth.OTPTTL <= 0 {
		return fmt.Errorf("auth OTP TTL must be positive")
	}
	switch c.Auth.SigningMethod {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported signing method %q", c.Auth.SigningMethod)
	}
	return nil
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL used in verification links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "auth-secret",
			Usage:   "Secret key used to sign issued tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_SECRET"), toml.TOML("auth.secret", configFile)),
		},
		&cli.StringFlag{
			Name:    "auth-signing-method",
			Value:   "HS256",
			Usage:   "Token signing method (HS256, HS384, HS512)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_SIGNING_METHOD"), toml.TOML("auth.signing_method", configFile)),
		},
		&cli.IntFlag{
			Name:    "auth-session-ttl-days",
			Value:   30,
			Usage:   "Session lifetime in days",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_SESSION_TTL_DAYS"), toml.TOML("auth.session_ttl_days", configFile)),
		},
		&cli.IntFlag{
			Name:    "auth-otp-ttl",
			Value:   300,
			Usage:   "One-time code lifetime in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_OTP_TTL"), toml.TOML("auth.otp_ttl", configFile)),
		},
		&cli.IntFlag{
			Name:    "auth-email-token-hours",
			Value:   24,
			Usage:   "Email verification token lifetime in hours",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_EMAIL_TOKEN_HOURS"), toml.TOML("auth.email_token_hours", configFile)),
		},
		&cli.IntFlag{
			Name:    "auth-otp-length",
			Value:   5,
			Usage:   "Digits per one-time code",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_OTP_LENGTH"), toml.TOML("auth.otp_length", configFile)),
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Value:   "localhost:6379",
			Usage:   "Redis address (host:port)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_ADDR"), toml.TOML("redis.addr", configFile)),
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_PASSWORD"), toml.TOML("redis.password", configFile)),
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Value:   0,
			Usage:   "Redis database index",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_DB"), toml.TOML("redis.db", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host for outbound mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "From address for outbound mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "From display name for outbound mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for outbound mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
	}
}

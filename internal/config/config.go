package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth" validate:"required"`
	Bot      BotConfig      `mapstructure:"bot" yaml:"bot" validate:"required"`
	IDGen    IDGenConfig    `mapstructure:"idgen" yaml:"idgen"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify" validate:"required"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level" validate:"required,oneof=debug info warn error"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains Postgres connection settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" yaml:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// AuthConfig contains bearer token and password settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret" yaml:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes" yaml:"token_lifetime_minutes" validate:"gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" yaml:"refresh_token_lifetime_minutes" validate:"gtfield=TokenLifetimeMinutes"`
	BcryptCost                  int    `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost" validate:"min=4,max=31"`
}

// BotConfig contains the shared secret and callback URL of the chat bot.
type BotConfig struct {
	InternalToken string `mapstructure:"internal_token" yaml:"internal_token" validate:"required,min=16"`
	NotifyURL     string `mapstructure:"notify_url" yaml:"notify_url" validate:"required,url"`
}

// IDGenConfig selects the worker id embedded in allocated ids. Every process
// writing to the same database needs its own value.
type IDGenConfig struct {
	WorkerID int `mapstructure:"worker_id" yaml:"worker_id" validate:"min=0,max=1023"`
}

// NotifyConfig tunes the due-notification executor.
type NotifyConfig struct {
	Sink            string        `mapstructure:"sink" yaml:"sink" validate:"required,oneof=webhook pulsar"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"gt=0"`
	BatchSize       int           `mapstructure:"batch_size" yaml:"batch_size" validate:"gt=0"`
	WorkerCount     int           `mapstructure:"worker_count" yaml:"worker_count" validate:"gt=0"`
	QueueSize       int           `mapstructure:"queue_size" yaml:"queue_size" validate:"gt=0"`
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gt=0"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" validate:"gte=0"`
	PortTimeout     time.Duration `mapstructure:"port_timeout" yaml:"port_timeout" validate:"gt=0"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout" yaml:"delivery_timeout" validate:"gt=0"`
	StuckTimeout    time.Duration `mapstructure:"stuck_timeout" yaml:"stuck_timeout" validate:"gt=0"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval" validate:"gte=0"`
	PulsarURL       string        `mapstructure:"pulsar_url" yaml:"pulsar_url" validate:"required_if=Sink pulsar"`
	PulsarTopic     string        `mapstructure:"pulsar_topic" yaml:"pulsar_topic" validate:"required_if=Sink pulsar"`
}

const masked = "********"

// Redacted returns a copy with secrets and credentials replaced, for display.
func (c Config) Redacted() Config {
	out := c
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = masked
	}
	if out.Bot.InternalToken != "" {
		out.Bot.InternalToken = masked
	}
	out.Database.URL = redactURLPassword(out.Database.URL)
	return out
}

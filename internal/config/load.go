package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// TASKAPI_DATABASE_URL for database.url.
const EnvPrefix = "TASKAPI"

// defaults lists every key with its default. Keys must be registered here
// for environment overrides to reach Unmarshal.
var defaults = map[string]interface{}{
	"server.port":             8000,
	"server.log_level":        "info",
	"server.metrics_enabled":  true,
	"server.shutdown_timeout": 10 * time.Second,

	"database.url":               "",
	"database.max_open_conns":    10,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": 5 * time.Minute,

	"auth.jwt_secret":                     "",
	"auth.token_lifetime_minutes":         60,
	"auth.refresh_token_lifetime_minutes": 7 * 24 * 60,
	"auth.bcrypt_cost":                    10,

	"bot.internal_token": "",
	"bot.notify_url":     "http://bot:8080/internal/notify-due",

	"idgen.worker_id": 1,

	"notify.sink":             "webhook",
	"notify.poll_interval":    time.Second,
	"notify.batch_size":       50,
	"notify.worker_count":     4,
	"notify.queue_size":       100,
	"notify.max_attempts":     3,
	"notify.retry_delay":      30 * time.Second,
	"notify.port_timeout":     3 * time.Second,
	"notify.delivery_timeout": 5 * time.Second,
	"notify.stuck_timeout":    5 * time.Minute,
	"notify.sweep_interval":   5 * time.Minute,
	"notify.pulsar_url":       "",
	"notify.pulsar_topic":     "task-due-notifications",
}

// Load reads configuration from an optional config.yaml in the working
// directory and from TASKAPI_* environment variables, which take precedence.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory for config.yaml and tolerates its absence; an explicit
// path must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func redactURLPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), masked)
	return u.String()
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "QUEUE_ADMIN"

type Settings struct {
	Database      DbSettings        `mapstructure:"database"`
	Broker        BrokerSettings    `mapstructure:"broker"`
	HTTP          HTTPSettings      `mapstructure:"http"`
	Dashboard     DashboardSettings `mapstructure:"dashboard"`
	Logging       LoggingSettings   `mapstructure:"logging"`
	Observability Observability     `mapstructure:"observability"`
}

func (c *Settings) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(c)
}

// envKeys are bound explicitly so they resolve even when no file mentions them.
var envKeys = []string{
	"database.driver",
	"database.dsn",
	"database.schema",
	"database.max_open_conns",
	"database.max_idle_conns",
	"database.conn_max_idle_time",
	"broker.type",
	"broker.url",
	"broker.exchange",
	"broker.project_id",
	"broker.topic",
	"broker.pool_size",
	"http.addr",
	"http.route_prefix",
	"http.allowed_origins",
	"http.read_timeout",
	"http.write_timeout",
	"dashboard.title",
	"dashboard.auto_refresh",
	"dashboard.refresh_interval",
	"dashboard.default_page_size",
	"logging.level",
	"logging.format",
	"observability.enabled",
	"observability.service_name",
	"observability.tracing_url",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("broker.type", "none")
	v.SetDefault("broker.pool_size", 2)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.route_prefix", "/api/wolverine")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("dashboard.title", "Wolverine Dashboard")
	v.SetDefault("dashboard.auto_refresh", true)
	v.SetDefault("dashboard.refresh_interval", "30s")
	v.SetDefault("dashboard.default_page_size", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("observability.service_name", "queue-admin")
}

// LoadFromFile reads admin.yaml from dir, merges admin.<ENVIRONMENT>.yaml over it when present,
// then lets QUEUE_ADMIN_* environment variables override both. A missing base file is not an
// error: the environment alone may carry the whole configuration.
func LoadFromFile(dir string) (*Settings, error) {
	env := getEnvWithDefaultLookup("ENVIRONMENT", "development")

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := mergeConfig(v, dir, "admin"); err != nil {
		return nil, err
	}
	if err := mergeConfig(v, dir, "admin."+env); err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // env vars like QUEUE_ADMIN_DATABASE_DSN
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfg := &Settings{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// mergeConfig merges name.yaml from path. A file that does not exist is skipped.
func mergeConfig(v *viper.Viper, path string, name string) error {
	v.SetConfigName(name)
	v.AddConfigPath(path)
	err := v.MergeInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("merge %s config: %w", name, err)
	}
	return nil
}

func getEnvWithDefaultLookup(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

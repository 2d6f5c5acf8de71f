package config

import "time"

// DbSettings holds the connection to the database that stores the queue tables.
type DbSettings struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres pgx"`
	DSN    string `mapstructure:"dsn" validate:"required"`
	// Schema qualifies every table name when set.
	Schema          string        `mapstructure:"schema"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

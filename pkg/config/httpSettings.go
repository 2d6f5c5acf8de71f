package config

import "time"

type HTTPSettings struct {
	Addr           string        `mapstructure:"addr" validate:"required"`
	RoutePrefix    string        `mapstructure:"route_prefix" validate:"required,startswith=/"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

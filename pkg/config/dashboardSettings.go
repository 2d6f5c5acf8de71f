package config

import "time"

// DashboardSettings are served to the dashboard front end and drive the summary reporter.
type DashboardSettings struct {
	Title           string        `mapstructure:"title"`
	AutoRefresh     bool          `mapstructure:"auto_refresh"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"min=1s"`
	DefaultPageSize int           `mapstructure:"default_page_size" validate:"min=1,max=1000"`
}

// RefreshIntervalSeconds is the refresh interval as the front end expects it.
func (d DashboardSettings) RefreshIntervalSeconds() int {
	return int(d.RefreshInterval.Seconds())
}

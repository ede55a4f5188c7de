// Package config provides configuration management for the WOMS rules engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified YAML file and environment variables.
// Environment variables take precedence over file values.
// Environment variable format: WOMS_<SECTION>_<KEY> (e.g., WOMS_STORAGE_DSN)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("WOMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "./woms.db")
	v.SetDefault("storage.max_open_conns", 1)
	v.SetDefault("storage.busy_timeout", 5*time.Second)

	v.SetDefault("classification.unknown_bucket", false)

	// Cascade defaults
	v.SetDefault("cascade.enabled", true)
	v.SetDefault("cascade.auto_assign", true)

	// Notification defaults
	v.SetDefault("notify.min_urgency", "URGENT")
	v.SetDefault("notify.log", true)
	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("notify.webhook.timeout", 10*time.Second)
	v.SetDefault("notify.kafka.enabled", false)
	v.SetDefault("notify.kafka.topic", "woms.alerts")
	v.SetDefault("notify.kafka.write_timeout", 10*time.Second)

	// Report defaults
	v.SetDefault("report.output_dir", "./reports")
	v.SetDefault("report.formats", []string{"excel", "html"})
	v.SetDefault("report.filename_template", "woms_report_{{.Date}}")
	v.SetDefault("report.timezone", "Africa/Algiers")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile_path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// HTTP retry defaults
	v.SetDefault("http.retry.max_retries", 3)
	v.SetDefault("http.retry.base_delay", 1*time.Second)
}

// Package config provides configuration management for the WOMS rules engine.
package config

import "time"

// Config is the root configuration structure for the rules engine.
type Config struct {
	Storage        StorageConfig        `mapstructure:"storage"`
	Classification ClassificationConfig `mapstructure:"classification"`
	Cascade        CascadeConfig        `mapstructure:"cascade"`
	Notify         NotifyConfig         `mapstructure:"notify"`
	Report         ReportConfig         `mapstructure:"report"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	HTTP           HTTPConfig           `mapstructure:"http"`
}

// StorageConfig selects and configures the repository backend.
type StorageConfig struct {
	Driver       string        `mapstructure:"driver" validate:"oneof=sqlite postgres memory"`
	DSN          string        `mapstructure:"dsn"` // file path for sqlite, URL for postgres
	MaxOpenConns int           `mapstructure:"max_open_conns" validate:"gte=0,lte=100"`
	BusyTimeout  time.Duration `mapstructure:"busy_timeout"`
}

// ClassificationConfig tunes bucket selection.
type ClassificationConfig struct {
	// UnknownBucket classifies records with an undefined percentage as INCONNU
	// instead of the neutral MOYEN.
	UnknownBucket bool `mapstructure:"unknown_bucket"`
}

// CascadeConfig controls automatic alert creation.
type CascadeConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	AutoAssign bool `mapstructure:"auto_assign"`
}

// NotifyConfig configures the AlertRaised hook.
type NotifyConfig struct {
	MinUrgency string        `mapstructure:"min_urgency" validate:"oneof=INFO ATTENTION URGENT CRITIQUE"`
	Log        bool          `mapstructure:"log"`
	Webhook    WebhookConfig `mapstructure:"webhook"`
	Kafka      KafkaConfig   `mapstructure:"kafka"`
}

// WebhookConfig contains configuration for the HTTP webhook notifier.
type WebhookConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// KafkaConfig contains configuration for the Kafka notifier.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ReportConfig contains configurations for report generation.
type ReportConfig struct {
	OutputDir        string   `mapstructure:"output_dir"`
	Formats          []string `mapstructure:"formats" validate:"dive,oneof=excel html"`
	FilenameTemplate string   `mapstructure:"filename_template"`
	HTMLTemplate     string   `mapstructure:"html_template"`
	Timezone         string   `mapstructure:"timezone"`
}

// MetricsConfig controls Prometheus counters export.
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	TextfilePath string `mapstructure:"textfile_path"` // node_exporter textfile collector target
}

// LoggingConfig contains configurations for logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// HTTPConfig contains HTTP client configurations including retry settings.
type HTTPConfig struct {
	Retry RetryConfig `mapstructure:"retry"`
}

// RetryConfig defines retry behavior for HTTP requests.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

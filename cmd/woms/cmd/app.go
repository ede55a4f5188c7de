package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"woms-rules/internal/config"
	"woms-rules/internal/metrics"
	"woms-rules/internal/model"
	"woms-rules/internal/notify"
	"woms-rules/internal/service"
	"woms-rules/internal/store"
)

// app wires the configured store, notifiers and services for one command run.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	timezone  *time.Location
	store     store.Store
	metrics   *metrics.Metrics
	notifier  *notify.MultiNotifier
	registry  *service.AlertRegistry
	processor *service.Processor
}

// newApp loads the configuration and opens every dependency.
// Callers must call close.
func newApp() (*app, error) {
	configPath := GetConfigFile()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}

	level := cfg.Logging.Level
	if GetLogLevel() != "" {
		level = GetLogLevel()
	}

	tz, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		tz = time.UTC
	}

	logger := setupLogger(level, cfg.Logging.Format, tz)
	logger.Debug().
		Str("config_path", configPath).
		Str("log_level", level).
		Str("storage", cfg.Storage.Driver).
		Msg("configuration loaded successfully")

	st, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, err
	}

	notifier, err := notify.New(cfg.Notify, cfg.HTTP.Retry, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	opts := []service.Option{
		service.WithMetrics(m),
		service.WithNotifier(notifier, model.Urgency(cfg.Notify.MinUrgency)),
	}
	registry := service.NewAlertRegistry(st, logger, opts...)
	engine := service.NewDerivationEngine(service.NewClassifier(cfg.Classification))
	cascade := service.NewAlertCascade(service.DefaultCascadeRules(), registry, cfg.Cascade, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		timezone:  tz,
		store:     st,
		metrics:   m,
		notifier:  notifier,
		registry:  registry,
		processor: service.NewProcessor(st, engine, cascade, logger, opts...),
	}, nil
}

// close flushes metrics and releases the store and notifiers.
func (a *app) close() {
	var errs []error
	if a.cfg.Metrics.Enabled {
		errs = append(errs, a.metrics.WriteTextfile(a.cfg.Metrics.TextfilePath))
	}
	errs = append(errs, a.notifier.Close(), a.store.Close())
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn().Err(err).Msg("shutdown incomplete")
	}
}

// setupLogger creates a zerolog logger with the specified level and format.
// Timestamps use tz.
func setupLogger(level string, format string, tz *time.Location) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if tz == nil {
		tz = time.Local
	}
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().In(tz)
	}

	var output io.Writer
	if format == "json" {
		output = os.Stderr
	} else {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// mustApp builds the app or exits with the error.
func mustApp() *app {
	a, err := newApp()
	if err != nil {
		fail("%v", err)
	}
	return a
}

// withApp runs fn with a fresh app, closes it, then exits on error.
func withApp(fn func(ctx context.Context, a *app) error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := mustApp()
	err := fn(ctx, a)
	a.close()
	if err != nil {
		stop()
		fail("%v", err)
	}
}

// fail prints a user-facing error and exits.
func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "❌ "+format+"\n", args...)
	os.Exit(1)
}

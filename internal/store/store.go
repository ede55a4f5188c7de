// Package store persists metric records and alerts.
package store

import (
	"context"
	"errors"
	"fmt"

	"woms-rules/internal/config"
	"woms-rules/internal/model"
)

// ErrStatusConflict is returned by UpdateAlert when the stored status no longer
// matches the expected one.
var ErrStatusConflict = errors.New("alert status changed concurrently")

// Repository is the set of persistence operations used by the rules engine.
// Implementations return model.ErrMetricNotFound / model.ErrAlertNotFound for
// missing rows and model.ErrDuplicateOpenAlert when an insert would break the
// one-open-alert-per-(subject, type, title) constraint.
type Repository interface {
	SaveMetric(ctx context.Context, record *model.MetricRecord) error
	GetMetric(ctx context.Context, id string) (*model.MetricRecord, error)
	// ListMetrics returns matching records, most recently measured first.
	ListMetrics(ctx context.Context, filter model.MetricFilter) ([]*model.MetricRecord, error)
	// LatestAnalyst returns the analyst of the most recently updated record on
	// the subject other than excludeID, or "" when there is none.
	LatestAnalyst(ctx context.Context, subjectID, excludeID string) (string, error)

	InsertAlert(ctx context.Context, alert *model.Alert) error
	// UpdateAlert writes the alert only if its stored status still equals from.
	UpdateAlert(ctx context.Context, alert *model.Alert, from model.AlertStatus) error
	GetAlert(ctx context.Context, id string) (*model.Alert, error)
	// ListAlerts returns matching alerts, most recent first.
	ListAlerts(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error)
}

// Store is a Repository with transactional units of work.
type Store interface {
	Repository

	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Repository) error) error
	Close() error
}

// Open creates the store selected by the storage configuration.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(cfg.DSN, cfg.BusyTimeout)
	case "postgres":
		return OpenPostgres(cfg.DSN, cfg.MaxOpenConns)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func limitAlerts(alerts []*model.Alert, limit int) []*model.Alert {
	if limit > 0 && len(alerts) > limit {
		return alerts[:limit]
	}
	return alerts
}

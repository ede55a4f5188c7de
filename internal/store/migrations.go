package store

import (
	"context"
	"database/sql"
	"strings"
)

// Column types differ per dialect; {{decimal}} and {{int64}} are substituted
// before a migration runs.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS metric_records (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		subject_name TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		period TEXT NOT NULL DEFAULT '',
		analyst TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		planned_value {{decimal}},
		actual_value {{decimal}},
		previous_value {{decimal}},
		target_value {{decimal}},
		absolute_delta {{decimal}},
		percentage_delta {{decimal}},
		percentage_attained {{decimal}},
		percentage_evolution {{decimal}},
		classification TEXT NOT NULL,
		measured_at {{int64}} NOT NULL,
		updated_at {{int64}} NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metric_records_subject ON metric_records(subject_id, updated_at);`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		metric_id TEXT NOT NULL DEFAULT '',
		alert_type TEXT NOT NULL,
		urgency TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		triggering_value {{decimal}},
		reference_threshold {{decimal}},
		source TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at {{int64}} NOT NULL,
		acknowledged_by TEXT NOT NULL DEFAULT '',
		acknowledged_at {{int64}},
		assignee TEXT NOT NULL DEFAULT '',
		started_at {{int64}},
		resolved_by TEXT NOT NULL DEFAULT '',
		resolved_at {{int64}},
		actions_taken TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_subject ON alerts(subject_id, created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS uq_alerts_open ON alerts(subject_id, alert_type, title)
		WHERE status IN ('NEW', 'ACKNOWLEDGED', 'IN_PROGRESS');`,
}

func runMigrations(ctx context.Context, db *sql.DB, d dialect) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	types := strings.NewReplacer("{{decimal}}", d.decimalType, "{{int64}}", d.int64Type)
	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, types.Replace(migrations[i])); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, d.rebind("INSERT INTO schema_version (version) VALUES (?)"), i+1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

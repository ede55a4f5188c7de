package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"woms-rules/internal/model"
)

type dialect struct {
	name        string
	decimalType string
	int64Type   string
	numbered    bool // $1, $2 ... placeholders
}

var (
	sqliteDialect   = dialect{name: "sqlite", decimalType: "TEXT", int64Type: "INTEGER"}
	postgresDialect = dialect{name: "postgres", decimalType: "NUMERIC", int64Type: "BIGINT", numbered: true}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is a Store backed by database/sql (SQLite or Postgres).
type SQLStore struct {
	*sqlRepository
	db *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database and runs migrations.
func OpenSQLite(path string, busyTimeout time.Duration) (*SQLStore, error) {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer
	return newSQLStore(db, sqliteDialect)
}

// OpenPostgres connects to Postgres through the pgx stdlib driver and runs migrations.
func OpenPostgres(url string, maxOpenConns int) (*SQLStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLStore(db, postgresDialect)
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	if err := runMigrations(context.Background(), db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLStore{sqlRepository: &sqlRepository{q: db, d: d}, db: db}, nil
}

// WithTx runs fn inside a database transaction.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&sqlRepository{q: tx, d: s.d}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type sqlRepository struct {
	q queryer
	d dialect
}

const metricColumns = `id, subject_id, subject_name, kind, name, category, unit, period, analyst, comment,
	planned_value, actual_value, previous_value, target_value,
	absolute_delta, percentage_delta, percentage_attained, percentage_evolution,
	classification, measured_at, updated_at`

const alertColumns = `id, subject_id, metric_id, alert_type, urgency, title, description,
	triggering_value, reference_threshold, source, status, active, created_at,
	acknowledged_by, acknowledged_at, assignee, started_at, resolved_by, resolved_at, actions_taken`

func (r *sqlRepository) SaveMetric(ctx context.Context, m *model.MetricRecord) error {
	_, err := r.q.ExecContext(ctx, r.d.rebind(`
INSERT INTO metric_records (`+metricColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	subject_id = excluded.subject_id,
	subject_name = excluded.subject_name,
	kind = excluded.kind,
	name = excluded.name,
	category = excluded.category,
	unit = excluded.unit,
	period = excluded.period,
	analyst = excluded.analyst,
	comment = excluded.comment,
	planned_value = excluded.planned_value,
	actual_value = excluded.actual_value,
	previous_value = excluded.previous_value,
	target_value = excluded.target_value,
	absolute_delta = excluded.absolute_delta,
	percentage_delta = excluded.percentage_delta,
	percentage_attained = excluded.percentage_attained,
	percentage_evolution = excluded.percentage_evolution,
	classification = excluded.classification,
	measured_at = excluded.measured_at,
	updated_at = excluded.updated_at`),
		m.ID, m.SubjectID, m.SubjectName, string(m.Kind), m.Name, m.Category, m.Unit, m.Period, m.Analyst, m.Comment,
		m.PlannedValue, m.ActualValue, m.PreviousValue, m.TargetValue,
		m.AbsoluteDelta, m.PercentageDelta, m.PercentageAttained, m.PercentageEvolution,
		string(m.Classification), toUnix(m.MeasuredAt), toUnix(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save metric %s: %w", m.ID, err)
	}
	return nil
}

func (r *sqlRepository) GetMetric(ctx context.Context, id string) (*model.MetricRecord, error) {
	row := r.q.QueryRowContext(ctx, r.d.rebind(`SELECT `+metricColumns+` FROM metric_records WHERE id = ?`), id)
	m, err := scanMetric(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrMetricNotFound, id)
	}
	return m, err
}

func (r *sqlRepository) ListMetrics(ctx context.Context, filter model.MetricFilter) ([]*model.MetricRecord, error) {
	var conds []string
	var args []any
	if filter.SubjectID != "" {
		conds = append(conds, "subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Classification != "" {
		conds = append(conds, "classification = ?")
		args = append(args, string(filter.Classification))
	}

	query := `SELECT ` + metricColumns + ` FROM metric_records`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY measured_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.q.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	defer rows.Close()

	var result []*model.MetricRecord
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (r *sqlRepository) LatestAnalyst(ctx context.Context, subjectID, excludeID string) (string, error) {
	var analyst string
	err := r.q.QueryRowContext(ctx, r.d.rebind(`
SELECT analyst FROM metric_records
WHERE subject_id = ? AND id <> ? AND analyst <> ''
ORDER BY updated_at DESC, id DESC
LIMIT 1`), subjectID, excludeID).Scan(&analyst)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest analyst for %s: %w", subjectID, err)
	}
	return analyst, nil
}

func (r *sqlRepository) InsertAlert(ctx context.Context, a *model.Alert) error {
	// The conflict target names the partial unique index, so a concurrent
	// duplicate is skipped without aborting the surrounding transaction.
	res, err := r.q.ExecContext(ctx, r.d.rebind(`
INSERT INTO alerts (`+alertColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (subject_id, alert_type, title) WHERE status IN ('NEW', 'ACKNOWLEDGED', 'IN_PROGRESS') DO NOTHING`),
		a.ID, a.SubjectID, a.MetricID, string(a.Type), string(a.Urgency), a.Title, a.Description,
		a.TriggeringValue, a.ReferenceThreshold, a.Source, string(a.Status), boolToInt(a.Active), toUnix(a.CreatedAt),
		a.AcknowledgedBy, nullableUnix(a.AcknowledgedAt), a.Assignee, nullableUnix(a.StartedAt),
		a.ResolvedBy, nullableUnix(a.ResolvedAt), a.ActionsTaken,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s / %s / %s", model.ErrDuplicateOpenAlert, a.SubjectID, a.Type, a.Title)
	}
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s / %s / %s", model.ErrDuplicateOpenAlert, a.SubjectID, a.Type, a.Title)
	}
	return nil
}

func (r *sqlRepository) UpdateAlert(ctx context.Context, a *model.Alert, from model.AlertStatus) error {
	res, err := r.q.ExecContext(ctx, r.d.rebind(`
UPDATE alerts SET
	status = ?, active = ?, acknowledged_by = ?, acknowledged_at = ?, assignee = ?,
	started_at = ?, resolved_by = ?, resolved_at = ?, actions_taken = ?
WHERE id = ? AND status = ?`),
		string(a.Status), boolToInt(a.Active), a.AcknowledgedBy, nullableUnix(a.AcknowledgedAt), a.Assignee,
		nullableUnix(a.StartedAt), a.ResolvedBy, nullableUnix(a.ResolvedAt), a.ActionsTaken,
		a.ID, string(from),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", model.ErrDuplicateOpenAlert, a.ID)
	}
	if err != nil {
		return fmt.Errorf("update alert %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alert %s: %w", a.ID, err)
	}
	if n == 0 {
		if _, err := r.GetAlert(ctx, a.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrStatusConflict, a.ID)
	}
	return nil
}

func (r *sqlRepository) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	row := r.q.QueryRowContext(ctx, r.d.rebind(`SELECT `+alertColumns+` FROM alerts WHERE id = ?`), id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrAlertNotFound, id)
	}
	return a, err
}

func (r *sqlRepository) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	var conds []string
	var args []any
	if filter.SubjectID != "" {
		conds = append(conds, "subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.Type != "" {
		conds = append(conds, "alert_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Urgency != "" {
		conds = append(conds, "urgency = ?")
		args = append(args, string(filter.Urgency))
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.OpenOnly {
		conds = append(conds, "status IN ('NEW', 'ACKNOWLEDGED', 'IN_PROGRESS')")
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	// Title matching is case-insensitive on non-ASCII text, which SQLite's
	// LOWER() does not handle, so it runs in Go.
	if filter.Limit > 0 && filter.TitleContains == "" {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.q.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var result []*model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		if filter.Matches(a) {
			result = append(result, a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return limitAlerts(result, filter.Limit), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetric(row rowScanner) (*model.MetricRecord, error) {
	var m model.MetricRecord
	var kind, classification string
	var measuredAt, updatedAt int64
	if err := row.Scan(
		&m.ID, &m.SubjectID, &m.SubjectName, &kind, &m.Name, &m.Category, &m.Unit, &m.Period, &m.Analyst, &m.Comment,
		&m.PlannedValue, &m.ActualValue, &m.PreviousValue, &m.TargetValue,
		&m.AbsoluteDelta, &m.PercentageDelta, &m.PercentageAttained, &m.PercentageEvolution,
		&classification, &measuredAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	m.Kind = model.MetricKind(kind)
	m.Classification = model.Classification(classification)
	m.MeasuredAt = fromUnix(measuredAt)
	m.UpdatedAt = fromUnix(updatedAt)
	return &m, nil
}

func scanAlert(row rowScanner) (*model.Alert, error) {
	var a model.Alert
	var alertType, urgency, status string
	var createdAt int64
	var acknowledgedAt, startedAt, resolvedAt sql.NullInt64
	if err := row.Scan(
		&a.ID, &a.SubjectID, &a.MetricID, &alertType, &urgency, &a.Title, &a.Description,
		&a.TriggeringValue, &a.ReferenceThreshold, &a.Source, &status, &a.Active, &createdAt,
		&a.AcknowledgedBy, &acknowledgedAt, &a.Assignee, &startedAt, &a.ResolvedBy, &resolvedAt, &a.ActionsTaken,
	); err != nil {
		return nil, err
	}
	a.Type = model.AlertType(alertType)
	a.Urgency = model.Urgency(urgency)
	a.Status = model.AlertStatus(status)
	a.CreatedAt = fromUnix(createdAt)
	a.AcknowledgedAt = timePtr(acknowledgedAt)
	a.StartedAt = timePtr(startedAt)
	a.ResolvedAt = timePtr(resolvedAt)
	return &a, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

// Timestamps are stored as Unix microseconds.
func toUnix(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromUnix(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnix(v.Int64)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

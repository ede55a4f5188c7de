package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"woms-rules/internal/model"
)

// MemoryStore is an in-process Store used for tests and dry runs.
// Transactions are serialized and work on a copy that is swapped in on commit.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

type memoryState struct {
	metrics map[string]*model.MetricRecord
	alerts  map[string]*model.Alert
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		metrics: make(map[string]*model.MetricRecord),
		alerts:  make(map[string]*model.Alert),
	}}
}

// WithTx runs fn against a working copy and publishes it only if fn succeeds.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(working); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) SaveMetric(ctx context.Context, record *model.MetricRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SaveMetric(ctx, record)
}

func (s *MemoryStore) GetMetric(ctx context.Context, id string) (*model.MetricRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetMetric(ctx, id)
}

func (s *MemoryStore) ListMetrics(ctx context.Context, filter model.MetricFilter) ([]*model.MetricRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListMetrics(ctx, filter)
}

func (s *MemoryStore) LatestAnalyst(ctx context.Context, subjectID, excludeID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LatestAnalyst(ctx, subjectID, excludeID)
}

func (s *MemoryStore) InsertAlert(ctx context.Context, alert *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.InsertAlert(ctx, alert)
}

func (s *MemoryStore) UpdateAlert(ctx context.Context, alert *model.Alert, from model.AlertStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateAlert(ctx, alert, from)
}

func (s *MemoryStore) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetAlert(ctx, id)
}

func (s *MemoryStore) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListAlerts(ctx, filter)
}

func (st *memoryState) clone() *memoryState {
	c := &memoryState{
		metrics: make(map[string]*model.MetricRecord, len(st.metrics)),
		alerts:  make(map[string]*model.Alert, len(st.alerts)),
	}
	for id, m := range st.metrics {
		c.metrics[id] = copyMetric(m)
	}
	for id, a := range st.alerts {
		c.alerts[id] = copyAlert(a)
	}
	return c
}

func (st *memoryState) SaveMetric(_ context.Context, record *model.MetricRecord) error {
	st.metrics[record.ID] = copyMetric(record)
	return nil
}

func (st *memoryState) GetMetric(_ context.Context, id string) (*model.MetricRecord, error) {
	m, ok := st.metrics[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrMetricNotFound, id)
	}
	return copyMetric(m), nil
}

func (st *memoryState) ListMetrics(_ context.Context, filter model.MetricFilter) ([]*model.MetricRecord, error) {
	var result []*model.MetricRecord
	for _, m := range st.metrics {
		if filter.Matches(m) {
			result = append(result, copyMetric(m))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].MeasuredAt.Equal(result[j].MeasuredAt) {
			return result[i].MeasuredAt.After(result[j].MeasuredAt)
		}
		return result[i].ID > result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (st *memoryState) LatestAnalyst(_ context.Context, subjectID, excludeID string) (string, error) {
	var latest *model.MetricRecord
	for _, m := range st.metrics {
		if m.SubjectID != subjectID || m.ID == excludeID || m.Analyst == "" {
			continue
		}
		if latest == nil || m.UpdatedAt.After(latest.UpdatedAt) ||
			(m.UpdatedAt.Equal(latest.UpdatedAt) && m.ID > latest.ID) {
			latest = m
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.Analyst, nil
}

func (st *memoryState) InsertAlert(_ context.Context, alert *model.Alert) error {
	if _, ok := st.alerts[alert.ID]; ok {
		return fmt.Errorf("insert alert: id %s already exists", alert.ID)
	}
	if alert.IsOpen() && st.hasOpenAlert(alert, "") {
		return fmt.Errorf("%w: %s / %s / %s", model.ErrDuplicateOpenAlert, alert.SubjectID, alert.Type, alert.Title)
	}
	st.alerts[alert.ID] = copyAlert(alert)
	return nil
}

func (st *memoryState) UpdateAlert(_ context.Context, alert *model.Alert, from model.AlertStatus) error {
	current, ok := st.alerts[alert.ID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrAlertNotFound, alert.ID)
	}
	if current.Status != from {
		return fmt.Errorf("%w: %s", ErrStatusConflict, alert.ID)
	}
	if alert.IsOpen() && st.hasOpenAlert(alert, alert.ID) {
		return fmt.Errorf("%w: %s", model.ErrDuplicateOpenAlert, alert.ID)
	}
	st.alerts[alert.ID] = copyAlert(alert)
	return nil
}

func (st *memoryState) GetAlert(_ context.Context, id string) (*model.Alert, error) {
	a, ok := st.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrAlertNotFound, id)
	}
	return copyAlert(a), nil
}

func (st *memoryState) ListAlerts(_ context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	var result []*model.Alert
	for _, a := range st.alerts {
		if filter.Matches(a) {
			result = append(result, copyAlert(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return limitAlerts(result, filter.Limit), nil
}

// hasOpenAlert reports whether another open alert shares the (subject, type, title) key.
func (st *memoryState) hasOpenAlert(alert *model.Alert, skipID string) bool {
	for id, a := range st.alerts {
		if id == skipID || !a.IsOpen() {
			continue
		}
		if a.SubjectID == alert.SubjectID && a.Type == alert.Type && a.Title == alert.Title {
			return true
		}
	}
	return false
}

func copyMetric(m *model.MetricRecord) *model.MetricRecord {
	c := *m
	return &c
}

func copyAlert(a *model.Alert) *model.Alert {
	c := *a
	c.AcknowledgedAt = copyTime(a.AcknowledgedAt)
	c.StartedAt = copyTime(a.StartedAt)
	c.ResolvedAt = copyTime(a.ResolvedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

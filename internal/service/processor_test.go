package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"woms-rules/internal/config"
	"woms-rules/internal/metrics"
	"woms-rules/internal/model"
	"woms-rules/internal/notify"
	"woms-rules/internal/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.AlertRaised
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, event notify.AlertRaised) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

type harness struct {
	store     store.Store
	registry  *AlertRegistry
	processor *Processor
	notifier  *recordingNotifier
	metrics   *metrics.Metrics
}

func newHarness(t *testing.T, st store.Store, cascadeCfg config.CascadeConfig, minUrgency model.Urgency) *harness {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore()
	}
	h := &harness{
		store:    st,
		notifier: &recordingNotifier{},
		metrics:  metrics.New(),
	}
	opts := []Option{
		WithClock(newStepClock()),
		WithMetrics(h.metrics),
		WithNotifier(h.notifier, minUrgency),
	}
	h.registry = NewAlertRegistry(st, zerolog.Nop(), opts...)
	cascade := NewAlertCascade(DefaultCascadeRules(), h.registry, cascadeCfg, zerolog.Nop())
	h.processor = NewProcessor(st, newEngine(false), cascade, zerolog.Nop(), opts...)
	return h
}

func defaultHarness(t *testing.T) *harness {
	return newHarness(t, nil, config.CascadeConfig{Enabled: true, AutoAssign: true}, "")
}

func varianceSubmission(subject, planned, actual string) *model.MetricSubmission {
	return &model.MetricSubmission{
		SubjectID: subject,
		Kind:      model.MetricKindVariance,
		Category:  "COUT",
		Values:    model.RawValues{Planned: planned, Actual: actual},
	}
}

func kpiSubmission(subject, actual, target string) *model.MetricSubmission {
	return &model.MetricSubmission{
		SubjectID: subject,
		Kind:      model.MetricKindAttainment,
		Name:      "Taux de forage",
		Category:  "PRODUCTION",
		Values:    model.RawValues{Actual: actual, Target: target},
	}
}

func TestSubmitMetric_CriticalVarianceRaisesAlert(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()

	res, err := h.processor.SubmitMetric(ctx, varianceSubmission("PUITS-07", "100", "50"))
	require.NoError(t, err)

	assertDecimal(t, "-50", res.Record.AbsoluteDelta)
	assertDecimal(t, "-50.0", res.Record.PercentageDelta)
	assert.Equal(t, model.ClassificationCritique, res.Record.Classification)
	assert.Equal(t, OutcomeCreated, res.Outcome)

	alerts, err := h.registry.List(ctx, model.AlertFilter{SubjectID: "PUITS-07"})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	alert := alerts[0]
	assert.Equal(t, model.UrgencyUrgent, alert.Urgency)
	assert.Equal(t, model.AlertTypeEcartImportant, alert.Type)
	assert.Equal(t, "Écart critique détecté - COUT", alert.Title)
	assert.Equal(t, "Un écart de -50% a été détecté sur COUT pour PUITS-07.", alert.Description)
	assert.Equal(t, "Analyse d'écart - PUITS-07", alert.Source)
	assert.Equal(t, res.Record.ID, alert.MetricID)
	assertDecimal(t, "50", alert.TriggeringValue)
	assertDecimal(t, "100", alert.ReferenceThreshold)

	stored, err := h.store.GetMetric(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClassificationCritique, stored.Classification)

	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, alert.ID, h.notifier.events[0].Alert.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CascadeOutcomesTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SubmissionsTotal.WithLabelValues("VARIANCE", "ok")))
}

func TestSubmitMetric_SatisfactoryKPINoAlert(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()

	sub := kpiSubmission("PUITS-07", "950", "1000")
	sub.Values.Previous = "900"
	res, err := h.processor.SubmitMetric(ctx, sub)
	require.NoError(t, err)

	assertDecimal(t, "95.0", res.Record.PercentageAttained)
	assertDecimal(t, "5.56", res.Record.PercentageEvolution)
	assert.Equal(t, model.ClassificationSatisfaisant, res.Record.Classification)
	assert.Equal(t, OutcomeNone, res.Outcome)
	assert.Nil(t, res.Alert)

	alerts, err := h.registry.List(ctx, model.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Empty(t, h.notifier.events)
}

func TestSubmitMetric_DuplicateSuppressed(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()

	first, err := h.processor.SubmitMetric(ctx, kpiSubmission("PUITS-07", "20", "100"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, first.Outcome)

	second, err := h.processor.SubmitMetric(ctx, kpiSubmission("PUITS-07", "20", "100"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuppressed, second.Outcome)
	require.NotNil(t, second.Alert)
	assert.Equal(t, first.Alert.ID, second.Alert.ID)

	alerts, err := h.registry.List(ctx, model.AlertFilter{SubjectID: "PUITS-07", OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.UrgencyCritique, alerts[0].Urgency)
	assert.Equal(t, model.AlertTypePerformanceDegradee, alerts[0].Type)
	assert.Equal(t, "Performance critique - Taux de forage", alerts[0].Title)
	assert.Equal(t, "Tableau de bord KPI - PRODUCTION", alerts[0].Source)

	assert.Len(t, h.notifier.events, 1, "suppressed alerts are not notified")

	metricsList, err := h.store.ListMetrics(ctx, model.MetricFilter{SubjectID: "PUITS-07"})
	require.NoError(t, err)
	assert.Len(t, metricsList, 2, "both records are kept")
}

func TestSubmitMetric_NewAlertAfterResolve(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()

	first, err := h.processor.SubmitMetric(ctx, varianceSubmission("P1", "100", "200"))
	require.NoError(t, err)
	_, err = h.registry.Resolve(ctx, first.Alert.ID, "ops", "replanifié")
	require.NoError(t, err)

	second, err := h.processor.SubmitMetric(ctx, varianceSubmission("P1", "100", "200"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, second.Outcome)
	assert.NotEqual(t, first.Alert.ID, second.Alert.ID)
}

func TestSubmitMetric_AlertLifecycle(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()

	res, err := h.processor.SubmitMetric(ctx, varianceSubmission("P1", "100", "50"))
	require.NoError(t, err)
	id := res.Alert.ID

	_, err = h.registry.Acknowledge(ctx, id, "chef")
	require.NoError(t, err)
	_, err = h.registry.StartProcessing(ctx, id, "chef")
	require.NoError(t, err)
	resolved, err := h.registry.Resolve(ctx, id, "chef", "Moyens supplémentaires")
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = h.registry.Acknowledge(ctx, id, "chef")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TransitionsTotal.WithLabelValues("acknowledge", "error")))
}

func TestSubmitMetric_InvalidInputNotPersisted(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()

	_, err := h.processor.SubmitMetric(ctx, varianceSubmission("P1", "", "50"))
	assert.ErrorIs(t, err, model.ErrInvalidMetricInput)

	records, err := h.store.ListMetrics(ctx, model.MetricFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SubmissionsTotal.WithLabelValues("VARIANCE", "invalid")))
}

func TestSubmitMetric_DivisionByZeroStoresNeutralBucket(t *testing.T) {
	h := defaultHarness(t)

	res, err := h.processor.SubmitMetric(context.Background(), varianceSubmission("P1", "0", "120"))
	require.NoError(t, err)
	assert.False(t, res.Record.PercentageDelta.Valid)
	assert.Equal(t, model.ClassificationMoyen, res.Record.Classification)
	assert.Equal(t, OutcomeNone, res.Outcome)
}

func TestSubmitMetric_AutoAssign(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()

	earlier := kpiSubmission("P1", "100", "100")
	earlier.Analyst = "n.haddad"
	_, err := h.processor.SubmitMetric(ctx, earlier)
	require.NoError(t, err)

	critical := varianceSubmission("P1", "100", "10")
	critical.Analyst = "s.mansouri"
	res, err := h.processor.SubmitMetric(ctx, critical)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "n.haddad", res.Alert.Assignee, "the triggering record is excluded")

	lone, err := h.processor.SubmitMetric(ctx, varianceSubmission("P2", "100", "10"))
	require.NoError(t, err)
	assert.Empty(t, lone.Alert.Assignee)
}

type failingLookupRepo struct {
	store.Repository
}

func (failingLookupRepo) LatestAnalyst(context.Context, string, string) (string, error) {
	return "", errors.New("connection reset")
}

type wrapTxStore struct {
	*store.MemoryStore
	wrap func(store.Repository) store.Repository
}

func (s wrapTxStore) WithTx(ctx context.Context, fn func(tx store.Repository) error) error {
	return s.MemoryStore.WithTx(ctx, func(tx store.Repository) error {
		return fn(s.wrap(tx))
	})
}

func TestSubmitMetric_AutoAssignFailureIgnored(t *testing.T) {
	st := wrapTxStore{
		MemoryStore: store.NewMemoryStore(),
		wrap:        func(tx store.Repository) store.Repository { return failingLookupRepo{tx} },
	}
	h := newHarness(t, st, config.CascadeConfig{Enabled: true, AutoAssign: true}, "")

	res, err := h.processor.SubmitMetric(context.Background(), varianceSubmission("P1", "100", "10"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Empty(t, res.Alert.Assignee)
}

type failingInsertRepo struct {
	store.Repository
}

func (failingInsertRepo) InsertAlert(context.Context, *model.Alert) error {
	return errors.New("disk full")
}

func TestSubmitMetric_RollsBackOnCascadeFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	st := wrapTxStore{
		MemoryStore: mem,
		wrap:        func(tx store.Repository) store.Repository { return failingInsertRepo{tx} },
	}
	h := newHarness(t, st, config.CascadeConfig{Enabled: true}, "")

	_, err := h.processor.SubmitMetric(context.Background(), varianceSubmission("P1", "100", "10"))
	require.Error(t, err)

	records, err := mem.ListMetrics(context.Background(), model.MetricFilter{})
	require.NoError(t, err)
	assert.Empty(t, records, "the record is not kept without its cascade")
	assert.Empty(t, h.notifier.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SubmissionsTotal.WithLabelValues("VARIANCE", "error")))
}

func TestSubmitMetric_KPIJustBelowCriticalBoundRaisesAlert(t *testing.T) {
	h := defaultHarness(t)

	res, err := h.processor.SubmitMetric(context.Background(), kpiSubmission("PUITS-09", "49.999", "100"))
	require.NoError(t, err)

	assertDecimal(t, "50", res.Record.PercentageAttained)
	assert.Equal(t, model.ClassificationCritique, res.Record.Classification)
	require.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, model.AlertTypePerformanceDegradee, res.Alert.Type)
}

func TestSubmitMetric_VarianceJustBelowCriticalBoundNoAlert(t *testing.T) {
	h := defaultHarness(t)

	res, err := h.processor.SubmitMetric(context.Background(), varianceSubmission("PUITS-07", "100000", "149999.96"))
	require.NoError(t, err)

	assertDecimal(t, "50", res.Record.PercentageDelta)
	assert.Equal(t, model.ClassificationEleve, res.Record.Classification)
	assert.Equal(t, OutcomeNone, res.Outcome)
	assert.Nil(t, res.Alert)
}

// concurrentWriterRepo behaves as if another transaction raised the same alert
// between the dedup lookup and the insert.
type concurrentWriterRepo struct {
	store.Repository
	lookups      int
	winnerClosed bool
}

func (r *concurrentWriterRepo) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	r.lookups++
	if r.lookups == 1 || r.winnerClosed {
		return nil, nil
	}
	return r.Repository.ListAlerts(ctx, filter)
}

func (r *concurrentWriterRepo) InsertAlert(context.Context, *model.Alert) error {
	return model.ErrDuplicateOpenAlert
}

func seedOpenVarianceAlert(t *testing.T, mem *store.MemoryStore, subject string) *model.Alert {
	t.Helper()
	winner := &model.Alert{
		ID:        "winner",
		SubjectID: subject,
		Type:      model.AlertTypeEcartImportant,
		Urgency:   model.UrgencyUrgent,
		Title:     "Écart critique détecté - COUT",
		Status:    model.AlertStatusNew,
		Active:    true,
		CreatedAt: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, mem.InsertAlert(context.Background(), winner))
	return winner
}

func TestSubmitMetric_ConcurrentDuplicateSuppressed(t *testing.T) {
	mem := store.NewMemoryStore()
	winner := seedOpenVarianceAlert(t, mem, "P1")
	st := wrapTxStore{
		MemoryStore: mem,
		wrap:        func(tx store.Repository) store.Repository { return &concurrentWriterRepo{Repository: tx} },
	}
	h := newHarness(t, st, config.CascadeConfig{Enabled: true}, "")
	ctx := context.Background()

	res, err := h.processor.SubmitMetric(ctx, varianceSubmission("P1", "100", "10"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuppressed, res.Outcome)
	require.NotNil(t, res.Alert)
	assert.Equal(t, winner.ID, res.Alert.ID)

	alerts, err := mem.ListAlerts(ctx, model.AlertFilter{SubjectID: "P1"})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
	records, err := mem.ListMetrics(ctx, model.MetricFilter{SubjectID: "P1"})
	require.NoError(t, err)
	assert.Len(t, records, 1, "the record commits with a suppressed cascade")
	assert.Empty(t, h.notifier.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CascadeOutcomesTotal.WithLabelValues("suppressed")))
}

func TestSubmitMetric_ConcurrentDuplicateWithoutWinnerFails(t *testing.T) {
	mem := store.NewMemoryStore()
	st := wrapTxStore{
		MemoryStore: mem,
		wrap: func(tx store.Repository) store.Repository {
			return &concurrentWriterRepo{Repository: tx, winnerClosed: true}
		},
	}
	h := newHarness(t, st, config.CascadeConfig{Enabled: true}, "")
	ctx := context.Background()

	res, err := h.processor.SubmitMetric(ctx, varianceSubmission("P1", "100", "10"))
	require.ErrorIs(t, err, model.ErrDuplicateOpenAlert)
	assert.Nil(t, res)

	records, err := mem.ListMetrics(ctx, model.MetricFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSubmitMetric_NotificationFailureKeepsAlert(t *testing.T) {
	h := defaultHarness(t)
	h.notifier.err = errors.New("webhook down")
	ctx := context.Background()

	res, err := h.processor.SubmitMetric(ctx, varianceSubmission("P1", "100", "10"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)

	stored, err := h.registry.Get(ctx, res.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusNew, stored.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.NotificationsTotal.WithLabelValues("error")))
}

func TestSubmitMetric_MinUrgencyFiltersNotifications(t *testing.T) {
	h := newHarness(t, nil, config.CascadeConfig{Enabled: true}, model.UrgencyCritique)
	ctx := context.Background()

	_, err := h.processor.SubmitMetric(ctx, varianceSubmission("P1", "100", "10"))
	require.NoError(t, err)
	assert.Empty(t, h.notifier.events, "URGENT is below CRITIQUE")

	_, err = h.processor.SubmitMetric(ctx, kpiSubmission("P1", "10", "100"))
	require.NoError(t, err)
	assert.Len(t, h.notifier.events, 1)
}

func TestSubmitMetric_CascadeDisabled(t *testing.T) {
	h := newHarness(t, nil, config.CascadeConfig{Enabled: false}, "")

	res, err := h.processor.SubmitMetric(context.Background(), varianceSubmission("P1", "100", "10"))
	require.NoError(t, err)
	assert.Equal(t, model.ClassificationCritique, res.Record.Classification)
	assert.Equal(t, OutcomeNone, res.Outcome)
}

func TestUpdateMetric(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()

	created, err := h.processor.SubmitMetric(ctx, kpiSubmission("P1", "100", "100"))
	require.NoError(t, err)
	require.Equal(t, OutcomeNone, created.Outcome)

	updated, err := h.processor.UpdateMetric(ctx, created.Record.ID, kpiSubmission("P1", "30", "100"))
	require.NoError(t, err)
	assert.Equal(t, created.Record.ID, updated.Record.ID)
	assert.Equal(t, created.Record.MeasuredAt, updated.Record.MeasuredAt)
	assert.True(t, updated.Record.UpdatedAt.After(created.Record.UpdatedAt))
	assert.Equal(t, model.ClassificationCritique, updated.Record.Classification)
	assert.Equal(t, OutcomeCreated, updated.Outcome)

	again, err := h.processor.UpdateMetric(ctx, created.Record.ID, kpiSubmission("P1", "30", "100"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuppressed, again.Outcome)

	_, err = h.processor.UpdateMetric(ctx, "missing", kpiSubmission("P1", "30", "100"))
	assert.ErrorIs(t, err, model.ErrMetricNotFound)
}

func TestSubjectSummary(t *testing.T) {
	h := defaultHarness(t)
	ctx := context.Background()

	for _, sub := range []*model.MetricSubmission{
		kpiSubmission("P1", "130", "100"),
		kpiSubmission("P1", "20", "100"),
		varianceSubmission("P1", "100", "40"),
		kpiSubmission("P2", "100", "100"),
	} {
		_, err := h.processor.SubmitMetric(ctx, sub)
		require.NoError(t, err)
	}

	summary, err := h.registry.SubjectSummary(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalRecords)
	assert.Equal(t, 1, summary.ExcellentKPIs)
	assert.Equal(t, 1, summary.CriticalKPIs)
	assert.Equal(t, 1, summary.CriticalVariance)
	assert.Equal(t, 2, summary.OpenAlerts)
	assertDecimal(t, "75", summary.MeanAttainment)

	counts, err := h.registry.CountByClassification(ctx, model.MetricFilter{Kind: model.MetricKindAttainment})
	require.NoError(t, err)
	got := map[model.Classification]int{}
	for _, c := range counts {
		got[c.Classification] = c.Count
	}
	assert.Equal(t, 1, got[model.ClassificationExcellent])
	assert.Equal(t, 1, got[model.ClassificationBon])
	assert.Equal(t, 1, got[model.ClassificationCritique])
}

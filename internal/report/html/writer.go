// Package html provides HTML report generation for the rules engine.
// It implements the report.ReportWriter interface to generate .html files
// with the overview, subject summaries, alerts and measured records.
package html

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"woms-rules/internal/model"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

const timeLayout = "2006-01-02 15:04:05"

// Writer implements report.ReportWriter for HTML format.
type Writer struct {
	timezone     *time.Location
	templatePath string // User-defined template path (optional)
}

// TemplateData holds all data passed to the HTML template.
type TemplateData struct {
	Title           string
	GeneratedAt     string
	AlertSummary    *model.AlertSummary
	MeanResolution  string
	Classifications []ClassificationData
	Subjects        []*SubjectData
	Alerts          []*AlertData
	Records         []*RecordData
	Version         string
}

// ClassificationData is one bucket count.
type ClassificationData struct {
	Kind      string
	Label     string
	Count     int
	ToneClass string
}

// SubjectData represents a subject summary formatted for template rendering.
type SubjectData struct {
	SubjectID        string
	SubjectName      string
	TotalRecords     int
	ExcellentKPIs    int
	CriticalKPIs     int
	CriticalVariance int
	OpenAlerts       int
	MeanAttainment   string
	LastMeasuredAt   string
}

// AlertData represents alert data formatted for template rendering.
type AlertData struct {
	SubjectID    string
	Type         string
	Urgency      string
	UrgencyClass string
	Status       string
	Title        string
	Description  string
	Value        string
	Reference    string
	Assignee     string
	CreatedAt    string
	ResolvedAt   string
	priority     int
	created      time.Time
}

// RecordData represents a metric record formatted for template rendering.
type RecordData struct {
	SubjectID      string
	Kind           string
	Name           string
	Period         string
	Planned        string
	Actual         string
	Target         string
	Delta          string
	Percentage     string
	Evolution      string
	Classification string
	ToneClass      string
	MeasuredAt     string
}

// NewWriter creates a new HTML report writer.
// If timezone is nil, it defaults to Africa/Algiers.
// If templatePath is empty, the embedded default template will be used.
func NewWriter(timezone *time.Location, templatePath string) *Writer {
	if timezone == nil {
		timezone, _ = time.LoadLocation("Africa/Algiers")
	}
	return &Writer{
		timezone:     timezone,
		templatePath: templatePath,
	}
}

// Format returns the format identifier for this writer.
func (w *Writer) Format() string {
	return "html"
}

// Write generates an HTML report.
func (w *Writer) Write(report *model.Report, outputPath string) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	if !strings.HasSuffix(strings.ToLower(outputPath), ".html") {
		outputPath = outputPath + ".html"
	}

	tmpl, err := w.loadTemplate()
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	data := w.prepareTemplateData(report)

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := tmpl.Execute(file, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// loadTemplate loads the HTML template.
// It first tries to load a user-defined template, then falls back to the embedded default.
func (w *Writer) loadTemplate() (*template.Template, error) {
	funcMap := template.FuncMap{
		"formatDuration": formatDuration,
	}

	if w.templatePath != "" {
		if _, err := os.Stat(w.templatePath); err == nil {
			tmpl, err := template.New(filepath.Base(w.templatePath)).Funcs(funcMap).ParseFiles(w.templatePath)
			if err != nil {
				return nil, fmt.Errorf("failed to parse user template: %w", err)
			}
			return tmpl, nil
		}
		// User template not found, fall through to default
	}

	tmpl, err := template.New("default.html").Funcs(funcMap).ParseFS(embeddedTemplates, "templates/default.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded template: %w", err)
	}
	return tmpl, nil
}

// prepareTemplateData converts a Report to TemplateData for template rendering.
func (w *Writer) prepareTemplateData(report *model.Report) *TemplateData {
	summary := report.AlertSummary
	if summary == nil {
		summary = model.NewAlertSummary(report.Alerts)
	}

	classifications := make([]ClassificationData, 0, len(report.Classifications))
	for _, c := range report.Classifications {
		classifications = append(classifications, ClassificationData{
			Kind:      c.Kind.Label(),
			Label:     c.Classification.Label(),
			Count:     c.Count,
			ToneClass: toneClass(c.Classification.Tone()),
		})
	}

	subjects := make([]*SubjectData, 0, len(report.Subjects))
	for _, s := range report.Subjects {
		subjects = append(subjects, &SubjectData{
			SubjectID:        s.SubjectID,
			SubjectName:      s.SubjectName,
			TotalRecords:     s.TotalRecords,
			ExcellentKPIs:    s.ExcellentKPIs,
			CriticalKPIs:     s.CriticalKPIs,
			CriticalVariance: s.CriticalVariance,
			OpenAlerts:       s.OpenAlerts,
			MeanAttainment:   formatPercent(s.MeanAttainment),
			LastMeasuredAt:   w.formatTime(s.LastMeasuredAt),
		})
	}

	return &TemplateData{
		Title:           "Rapport de performance WOMS",
		GeneratedAt:     w.formatTime(report.GeneratedAt),
		AlertSummary:    summary,
		MeanResolution:  formatDuration(summary.MeanResolutionTime),
		Classifications: classifications,
		Subjects:        subjects,
		Alerts:          w.convertAlerts(report.Alerts),
		Records:         w.convertRecords(report.Records),
		Version:         report.Version,
	}
}

// convertAlerts converts alerts and sorts them by urgency (most urgent first), then newest first.
func (w *Writer) convertAlerts(alerts []*model.Alert) []*AlertData {
	result := make([]*AlertData, 0, len(alerts))
	for _, a := range alerts {
		if a == nil {
			continue
		}
		resolved := ""
		if a.ResolvedAt != nil {
			resolved = w.formatTime(*a.ResolvedAt)
		}
		result = append(result, &AlertData{
			SubjectID:    a.SubjectID,
			Type:         a.Type.Label(),
			Urgency:      a.Urgency.Label(),
			UrgencyClass: urgencyClass(a.Urgency),
			Status:       a.Status.Label(),
			Title:        a.Title,
			Description:  a.Description,
			Value:        formatDecimal(a.TriggeringValue),
			Reference:    formatDecimal(a.ReferenceThreshold),
			Assignee:     a.Assignee,
			CreatedAt:    w.formatTime(a.CreatedAt),
			ResolvedAt:   resolved,
			priority:     a.Urgency.Priority(),
			created:      a.CreatedAt,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].priority != result[j].priority {
			return result[i].priority > result[j].priority
		}
		return result[i].created.After(result[j].created)
	})
	return result
}

// convertRecords converts records sorted by subject then measurement time.
func (w *Writer) convertRecords(records []*model.MetricRecord) []*RecordData {
	sorted := make([]*model.MetricRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SubjectID != sorted[j].SubjectID {
			return sorted[i].SubjectID < sorted[j].SubjectID
		}
		return sorted[i].MeasuredAt.Before(sorted[j].MeasuredAt)
	})

	result := make([]*RecordData, 0, len(sorted))
	for _, r := range sorted {
		percentage := r.PercentageDelta
		if r.Kind == model.MetricKindAttainment {
			percentage = r.PercentageAttained
		}
		result = append(result, &RecordData{
			SubjectID:      r.SubjectID,
			Kind:           r.Kind.Label(),
			Name:           r.DisplayName(),
			Period:         r.Period,
			Planned:        formatDecimal(r.PlannedValue),
			Actual:         formatDecimal(r.ActualValue),
			Target:         formatDecimal(r.TargetValue),
			Delta:          formatDecimal(r.AbsoluteDelta),
			Percentage:     formatPercent(percentage),
			Evolution:      formatPercent(r.PercentageEvolution),
			Classification: r.Classification.Label(),
			ToneClass:      toneClass(r.Classification.Tone()),
			MeasuredAt:     w.formatTime(r.MeasuredAt),
		})
	}
	return result
}

func (w *Writer) formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(w.timezone).Format(timeLayout)
}

func formatDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return "N/A"
	}
	return d.Decimal.String()
}

func formatPercent(d decimal.NullDecimal) string {
	if !d.Valid {
		return "N/A"
	}
	return d.Decimal.StringFixed(2) + " %"
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "N/A"
	case d < time.Minute:
		return fmt.Sprintf("%.0f s", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1f min", d.Minutes())
	case d < 48*time.Hour:
		return fmt.Sprintf("%.1f h", d.Hours())
	default:
		return fmt.Sprintf("%.1f j", d.Hours()/24)
	}
}

// toneClass returns the CSS class for a classification tone.
func toneClass(tone model.Tone) string {
	switch tone {
	case model.ToneCritical:
		return "status-critical"
	case model.ToneWarning:
		return "status-warning"
	case model.ToneNormal:
		return "status-normal"
	default:
		return ""
	}
}

// urgencyClass returns the CSS class for an alert urgency.
func urgencyClass(u model.Urgency) string {
	switch u {
	case model.UrgencyCritique:
		return "alert-critical"
	case model.UrgencyUrgent:
		return "alert-warning"
	default:
		return "alert-info"
	}
}

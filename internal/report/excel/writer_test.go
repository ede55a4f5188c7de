package excel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"woms-rules/internal/model"
)

func TestNewWriter(t *testing.T) {
	tests := []struct {
		name     string
		timezone *time.Location
		wantTZ   string
	}{
		{
			name:     "nil timezone defaults to Africa/Algiers",
			timezone: nil,
			wantTZ:   "Africa/Algiers",
		},
		{
			name:     "custom timezone",
			timezone: time.UTC,
			wantTZ:   "UTC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(tt.timezone)
			if w == nil {
				t.Fatal("NewWriter returned nil")
			}
			if w.timezone.String() != tt.wantTZ {
				t.Errorf("timezone = %v, want %v", w.timezone.String(), tt.wantTZ)
			}
		})
	}
}

func TestWriter_Format(t *testing.T) {
	w := NewWriter(nil)
	if got := w.Format(); got != "excel" {
		t.Errorf("Format() = %v, want %v", got, "excel")
	}
}

func TestWriter_Write_NilReport(t *testing.T) {
	w := NewWriter(nil)
	if err := w.Write(nil, "test.xlsx"); err == nil {
		t.Error("Write() with nil report should return error")
	}
}

func writeAndOpen(t *testing.T, report *model.Report) *excelize.File {
	t.Helper()
	outputPath := filepath.Join(t.TempDir(), "test_report.xlsx")

	w := NewWriter(time.UTC)
	if err := w.Write(report, outputPath); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to open Excel file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriter_Write_Success(t *testing.T) {
	f := writeAndOpen(t, createTestReport())

	sheets := f.GetSheetList()
	for _, expected := range []string{sheetSummary, sheetRecords, sheetAlerts, sheetSubjects} {
		found := false
		for _, s := range sheets {
			if s == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Sheet %q not found in Excel file", expected)
		}
	}

	for _, s := range sheets {
		if s == "Sheet1" {
			t.Error("Default Sheet1 should have been removed")
		}
	}
}

func TestWriter_Write_AddsXlsxExtension(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "test_report")

	w := NewWriter(nil)
	if err := w.Write(createTestReport(), outputPath); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if _, err := os.Stat(outputPath + ".xlsx"); os.IsNotExist(err) {
		t.Error("Output file should have .xlsx extension added")
	}
}

func TestWriter_SummarySheet(t *testing.T) {
	f := writeAndOpen(t, createTestReport())

	title, _ := f.GetCellValue(sheetSummary, "A1")
	if title != "Rapport de performance WOMS" {
		t.Errorf("Title = %q", title)
	}

	generated, _ := f.GetCellValue(sheetSummary, "B3")
	if generated != "2026-03-14 08:00:00" {
		t.Errorf("Generated at = %q, want %q", generated, "2026-03-14 08:00:00")
	}

	label, _ := f.GetCellValue(sheetSummary, "A4")
	value, _ := f.GetCellValue(sheetSummary, "B4")
	if label != "Mesures" || value != "3" {
		t.Errorf("Records row = %q/%q, want Mesures/3", label, value)
	}

	openLabel, _ := f.GetCellValue(sheetSummary, "A7")
	openValue, _ := f.GetCellValue(sheetSummary, "B7")
	if openLabel != "Alertes ouvertes" || openValue != "1" {
		t.Errorf("Open alerts row = %q/%q, want Alertes ouvertes/1", openLabel, openValue)
	}
}

func TestWriter_RecordsSheet(t *testing.T) {
	f := writeAndOpen(t, createTestReport())

	header, _ := f.GetCellValue(sheetRecords, "A1")
	if header != "Sujet" {
		t.Errorf("Header A1 = %q, want %q", header, "Sujet")
	}

	// Rows are sorted by subject then measurement time.
	first, _ := f.GetCellValue(sheetRecords, "A2")
	if first != "PUITS-07" {
		t.Errorf("First subject = %q, want PUITS-07", first)
	}
	classification, _ := f.GetCellValue(sheetRecords, "N2")
	if classification != "Critique" {
		t.Errorf("Classification = %q, want Critique", classification)
	}
	attainment, _ := f.GetCellValue(sheetRecords, "L2")
	if attainment != "N/A" {
		t.Errorf("Attainment of a variance record = %q, want N/A", attainment)
	}

	kpi, _ := f.GetCellValue(sheetRecords, "L3")
	if kpi != "95" {
		t.Errorf("Attainment = %q, want 95", kpi)
	}
}

func TestWriter_AlertsSheet(t *testing.T) {
	f := writeAndOpen(t, createTestReport())

	// CRITIQUE sorts before URGENT.
	urgency, _ := f.GetCellValue(sheetAlerts, "C2")
	if urgency != "Critique" {
		t.Errorf("First urgency = %q, want Critique", urgency)
	}
	status, _ := f.GetCellValue(sheetAlerts, "D3")
	if status != "Résolue" {
		t.Errorf("Second status = %q, want Résolue", status)
	}
	resolved, _ := f.GetCellValue(sheetAlerts, "K3")
	if resolved == "" {
		t.Error("Resolved alert should show its resolution time")
	}
}

func TestWriter_EmptyReport(t *testing.T) {
	report := model.NewReport(time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), nil, nil)
	f := writeAndOpen(t, report)

	value, _ := f.GetCellValue(sheetSummary, "B6")
	if value != "0" {
		t.Errorf("Alert count = %q, want 0", value)
	}
	row2, _ := f.GetCellValue(sheetAlerts, "A2")
	if row2 != "" {
		t.Errorf("Alerts sheet should be empty, got %q", row2)
	}
}

func createTestReport() *model.Report {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	dec := func(s string) decimal.NullDecimal {
		return decimal.NewNullDecimal(decimal.RequireFromString(s))
	}
	resolvedAt := base.Add(2 * time.Hour)

	records := []*model.MetricRecord{
		{
			ID: "m-2", SubjectID: "PUITS-09", Kind: model.MetricKindAttainment, Name: "Taux de forage",
			ActualValue: dec("80"), TargetValue: dec("100"), PercentageAttained: dec("80"),
			Classification: model.ClassificationMoyen, MeasuredAt: base,
		},
		{
			ID: "m-1", SubjectID: "PUITS-07", Kind: model.MetricKindVariance, Category: "COUT",
			PlannedValue: dec("100"), ActualValue: dec("50"), AbsoluteDelta: dec("-50"), PercentageDelta: dec("-50"),
			Classification: model.ClassificationCritique, MeasuredAt: base.Add(-time.Hour),
		},
		{
			ID: "m-3", SubjectID: "PUITS-07", Kind: model.MetricKindAttainment, Name: "Rendement",
			ActualValue: dec("950"), TargetValue: dec("1000"), PercentageAttained: dec("95"),
			Classification: model.ClassificationSatisfaisant, MeasuredAt: base,
		},
	}
	alerts := []*model.Alert{
		{
			ID: "a-1", SubjectID: "PUITS-07", Type: model.AlertTypeEcartImportant, Urgency: model.UrgencyUrgent,
			Title: "Écart critique détecté - COUT", Status: model.AlertStatusResolved,
			CreatedAt: base, ResolvedAt: &resolvedAt, ActionsTaken: "Budget révisé",
		},
		{
			ID: "a-2", SubjectID: "PUITS-09", Type: model.AlertTypePerformanceDegradee, Urgency: model.UrgencyCritique,
			Title: "Performance critique - Taux de forage", Status: model.AlertStatusNew, Active: true,
			CreatedAt: base.Add(-time.Hour),
		},
	}
	return model.NewReport(base, records, alerts)
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{1, "A"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{703, "AAA"},
	}
	for _, tt := range tests {
		if got := columnName(tt.index); got != tt.want {
			t.Errorf("columnName(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "N/A"},
		{30 * time.Second, "30 s"},
		{90 * time.Second, "1.5 min"},
		{3 * time.Hour, "3.0 h"},
		{72 * time.Hour, "3.0 j"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestCellValue(t *testing.T) {
	if got := cellValue(decimal.NullDecimal{}); got != "N/A" {
		t.Errorf("cellValue(undefined) = %v, want N/A", got)
	}
	if got := cellValue(decimal.NewNullDecimal(decimal.RequireFromString("5.56"))); got != 5.56 {
		t.Errorf("cellValue(5.56) = %v", got)
	}
}

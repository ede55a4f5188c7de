// Package excel provides Excel report generation for the rules engine.
// It implements the report.ReportWriter interface to generate .xlsx files
// with an overview, the measured records, the alerts and per-subject summaries.
package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"woms-rules/internal/model"
)

const (
	// Sheet names
	sheetSummary  = "Synthèse"
	sheetRecords  = "Mesures"
	sheetAlerts   = "Alertes"
	sheetSubjects = "Sujets"

	// Default sheet to remove
	defaultSheet = "Sheet1"

	// Colors for conditional formatting (RGB without #)
	colorWarningBg  = "FFEB9C"
	colorWarningFg  = "9C6500"
	colorCriticalBg = "FFC7CE"
	colorCriticalFg = "9C0006"
	colorHeaderBg   = "4472C4"
	colorHeaderFg   = "FFFFFF"
	colorNormalBg   = "C6EFCE"
	colorNormalFg   = "006100"
)

const timeLayout = "2006-01-02 15:04:05"

// Writer implements report.ReportWriter for Excel format.
type Writer struct {
	timezone *time.Location
}

// NewWriter creates a new Excel report writer.
// If timezone is nil, it defaults to Africa/Algiers.
func NewWriter(timezone *time.Location) *Writer {
	if timezone == nil {
		timezone, _ = time.LoadLocation("Africa/Algiers")
	}
	return &Writer{
		timezone: timezone,
	}
}

// Format returns the format identifier for this writer.
func (w *Writer) Format() string {
	return "excel"
}

// Write generates an Excel report.
func (w *Writer) Write(report *model.Report, outputPath string) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}

	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}

	if err := w.createSummarySheet(f, st, report); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := w.createRecordsSheet(f, st, report); err != nil {
		return fmt.Errorf("failed to create records sheet: %w", err)
	}
	if err := w.createAlertsSheet(f, st, report); err != nil {
		return fmt.Errorf("failed to create alerts sheet: %w", err)
	}
	if err := w.createSubjectsSheet(f, st, report); err != nil {
		return fmt.Errorf("failed to create subjects sheet: %w", err)
	}

	// Sheet1 only exists on a fresh file; a failure here is harmless.
	_ = f.DeleteSheet(defaultSheet)

	idx, _ := f.GetSheetIndex(sheetSummary)
	f.SetActiveSheet(idx)

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

type styles struct {
	title, label, value, header int
	normal, warning, critical   int
}

func newStyles(f *excelize.File) (*styles, error) {
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
	}

	st := &styles{}
	defs := []struct {
		target *int
		style  *excelize.Style
	}{
		{&st.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 18}, Alignment: center}},
		{&st.label, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 12, Color: colorHeaderFg}, Fill: fill(colorHeaderBg), Alignment: center}},
		{&st.value, &excelize.Style{Font: &excelize.Font{Size: 12}, Alignment: center}},
		{&st.header, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 11, Color: colorHeaderFg}, Fill: fill(colorHeaderBg), Alignment: center}},
		{&st.normal, &excelize.Style{Font: &excelize.Font{Color: colorNormalFg}, Fill: fill(colorNormalBg), Alignment: center}},
		{&st.warning, &excelize.Style{Font: &excelize.Font{Color: colorWarningFg}, Fill: fill(colorWarningBg), Alignment: center}},
		{&st.critical, &excelize.Style{Font: &excelize.Font{Color: colorCriticalFg}, Fill: fill(colorCriticalBg), Alignment: center}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return nil, err
		}
		*d.target = id
	}
	return st, nil
}

func (st *styles) forTone(tone model.Tone) int {
	switch tone {
	case model.ToneCritical:
		return st.critical
	case model.ToneWarning:
		return st.warning
	case model.ToneNormal:
		return st.normal
	default:
		return 0
	}
}

func (st *styles) forUrgency(u model.Urgency) int {
	switch u {
	case model.UrgencyCritique:
		return st.critical
	case model.UrgencyUrgent:
		return st.warning
	default:
		return 0
	}
}

// createSummarySheet creates the overview worksheet.
func (w *Writer) createSummarySheet(f *excelize.File, st *styles, report *model.Report) error {
	idx, err := f.NewSheet(sheetSummary)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	f.SetColWidth(sheetSummary, "A", "A", 28)
	f.SetColWidth(sheetSummary, "B", "B", 30)

	f.MergeCell(sheetSummary, "A1", "B1")
	f.SetCellValue(sheetSummary, "A1", "Rapport de performance WOMS")
	f.SetCellStyle(sheetSummary, "A1", "B1", st.title)
	f.SetRowHeight(sheetSummary, 1, 30)

	summary := report.AlertSummary
	if summary == nil {
		summary = model.NewAlertSummary(report.Alerts)
	}

	summaryData := []struct {
		label string
		value interface{}
	}{
		{"Date de génération", report.GeneratedAt.In(w.timezone).Format(timeLayout)},
		{"Mesures", len(report.Records)},
		{"Sujets", len(report.Subjects)},
		{"Alertes", summary.TotalAlerts},
		{"Alertes ouvertes", summary.OpenAlerts},
		{"Alertes urgentes ou critiques", summary.CriticalOrUrgent},
		{"Alertes non prises en compte", summary.Unacknowledged},
		{"Délai moyen de résolution", formatDuration(summary.MeanResolutionTime)},
	}
	for _, c := range report.Classifications {
		summaryData = append(summaryData, struct {
			label string
			value interface{}
		}{fmt.Sprintf("%s / %s", c.Kind.Label(), c.Classification.Label()), c.Count})
	}
	if report.Version != "" {
		summaryData = append(summaryData, struct {
			label string
			value interface{}
		}{"Version", report.Version})
	}

	for i, item := range summaryData {
		row := i + 3
		a, b := fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row)
		f.SetCellValue(sheetSummary, a, item.label)
		f.SetCellValue(sheetSummary, b, item.value)
		f.SetCellStyle(sheetSummary, a, a, st.label)
		f.SetCellStyle(sheetSummary, b, b, st.value)
		f.SetRowHeight(sheetSummary, row, 22)
	}
	return nil
}

// createRecordsSheet lists every measured record.
func (w *Writer) createRecordsSheet(f *excelize.File, st *styles, report *model.Report) error {
	headers := []string{
		"Sujet", "Type", "Indicateur", "Catégorie", "Période", "Prévu", "Réalisé",
		"Objectif", "Précédent", "Écart", "Écart %", "Atteinte %", "Évolution %",
		"Classification", "Analyste", "Mesuré le",
	}
	widths := []float64{18, 22, 28, 14, 12, 12, 12, 12, 12, 12, 10, 12, 12, 16, 16, 20}
	if err := w.newTableSheet(f, st, sheetRecords, headers, widths); err != nil {
		return err
	}

	records := make([]*model.MetricRecord, 0, len(report.Records))
	for _, r := range report.Records {
		if r != nil {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].SubjectID != records[j].SubjectID {
			return records[i].SubjectID < records[j].SubjectID
		}
		return records[i].MeasuredAt.Before(records[j].MeasuredAt)
	})

	for i, r := range records {
		row := fmt.Sprintf("%d", i+2)
		values := []interface{}{
			r.SubjectID,
			r.Kind.Label(),
			r.DisplayName(),
			r.Category,
			r.Period,
			cellValue(r.PlannedValue),
			cellValue(r.ActualValue),
			cellValue(r.TargetValue),
			cellValue(r.PreviousValue),
			cellValue(r.AbsoluteDelta),
			cellValue(r.PercentageDelta),
			cellValue(r.PercentageAttained),
			cellValue(r.PercentageEvolution),
			r.Classification.Label(),
			r.Analyst,
			r.MeasuredAt.In(w.timezone).Format(timeLayout),
		}
		for col, v := range values {
			f.SetCellValue(sheetRecords, columnName(col+1)+row, v)
		}
		if style := st.forTone(r.Classification.Tone()); style > 0 {
			cell := "N" + row
			f.SetCellStyle(sheetRecords, cell, cell, style)
		}
	}
	return nil
}

// createAlertsSheet lists alerts, most urgent first.
func (w *Writer) createAlertsSheet(f *excelize.File, st *styles, report *model.Report) error {
	headers := []string{
		"Sujet", "Type", "Urgence", "Statut", "Titre", "Valeur", "Référence",
		"Source", "Responsable", "Créée le", "Résolue le", "Actions menées",
	}
	widths := []float64{18, 22, 12, 22, 40, 12, 12, 30, 16, 20, 20, 40}
	if err := w.newTableSheet(f, st, sheetAlerts, headers, widths); err != nil {
		return err
	}

	alerts := make([]*model.Alert, 0, len(report.Alerts))
	for _, a := range report.Alerts {
		if a != nil {
			alerts = append(alerts, a)
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		if pi, pj := alerts[i].Urgency.Priority(), alerts[j].Urgency.Priority(); pi != pj {
			return pi > pj
		}
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})

	for i, a := range alerts {
		row := fmt.Sprintf("%d", i+2)
		resolved := ""
		if a.ResolvedAt != nil {
			resolved = a.ResolvedAt.In(w.timezone).Format(timeLayout)
		}
		values := []interface{}{
			a.SubjectID,
			a.Type.Label(),
			a.Urgency.Label(),
			a.Status.Label(),
			a.Title,
			cellValue(a.TriggeringValue),
			cellValue(a.ReferenceThreshold),
			a.Source,
			a.Assignee,
			a.CreatedAt.In(w.timezone).Format(timeLayout),
			resolved,
			a.ActionsTaken,
		}
		for col, v := range values {
			f.SetCellValue(sheetAlerts, columnName(col+1)+row, v)
		}
		if style := st.forUrgency(a.Urgency); style > 0 {
			cell := "C" + row
			f.SetCellStyle(sheetAlerts, cell, cell, style)
		}
	}
	return nil
}

// createSubjectsSheet writes one row per subject summary.
func (w *Writer) createSubjectsSheet(f *excelize.File, st *styles, report *model.Report) error {
	headers := []string{
		"Sujet", "Nom", "Mesures", "KPI excellents", "KPI critiques",
		"Écarts critiques", "Alertes ouvertes", "Atteinte moyenne %", "Dernière mesure",
	}
	widths := []float64{18, 24, 10, 14, 14, 16, 16, 18, 20}
	if err := w.newTableSheet(f, st, sheetSubjects, headers, widths); err != nil {
		return err
	}

	for i, s := range report.Subjects {
		row := fmt.Sprintf("%d", i+2)
		values := []interface{}{
			s.SubjectID,
			s.SubjectName,
			s.TotalRecords,
			s.ExcellentKPIs,
			s.CriticalKPIs,
			s.CriticalVariance,
			s.OpenAlerts,
			cellValue(s.MeanAttainment),
			s.LastMeasuredAt.In(w.timezone).Format(timeLayout),
		}
		for col, v := range values {
			f.SetCellValue(sheetSubjects, columnName(col+1)+row, v)
		}
		if s.CriticalKPIs > 0 || s.CriticalVariance > 0 {
			f.SetCellStyle(sheetSubjects, "A"+row, "A"+row, st.critical)
		}
	}
	return nil
}

// newTableSheet creates a sheet with a styled, frozen header row.
func (w *Writer) newTableSheet(f *excelize.File, st *styles, sheet string, headers []string, widths []float64) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	for i, width := range widths {
		col := columnName(i + 1)
		f.SetColWidth(sheet, col, col, width)
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%s1", columnName(i+1))
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, st.header)
	}
	f.SetRowHeight(sheet, 1, 25)

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// cellValue returns a float for defined decimals and "N/A" otherwise.
func cellValue(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return "N/A"
	}
	v, _ := d.Decimal.Float64()
	return v
}

// columnName converts a 1-based column index to Excel column name (A, B, ..., Z, AA, AB, ...).
func columnName(index int) string {
	result := ""
	for index > 0 {
		index--
		result = string(rune('A'+index%26)) + result
		index /= 26
	}
	return result
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

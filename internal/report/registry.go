package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"woms-rules/internal/model"
	"woms-rules/internal/report/excel"
	"woms-rules/internal/report/html"
)

// Registry manages report writers for different formats.
type Registry struct {
	writers map[string]ReportWriter
}

// NewRegistry creates a new report registry with pre-registered Excel and HTML writers.
// If timezone is nil, defaults to Africa/Algiers.
// htmlTemplatePath is optional; if empty, the HTML writer uses the embedded default template.
func NewRegistry(timezone *time.Location, htmlTemplatePath string) *Registry {
	if timezone == nil {
		timezone, _ = time.LoadLocation("Africa/Algiers")
	}

	excelWriter := excel.NewWriter(timezone)
	htmlWriter := html.NewWriter(timezone, htmlTemplatePath)

	r := &Registry{
		writers: make(map[string]ReportWriter),
	}
	r.writers[excelWriter.Format()] = excelWriter
	r.writers[htmlWriter.Format()] = htmlWriter
	return r
}

// Get returns a writer for the specified format.
// Format names are case-insensitive (e.g., "Excel", "EXCEL", "excel" all work).
func (r *Registry) Get(format string) (ReportWriter, error) {
	normalizedFormat := strings.ToLower(strings.TrimSpace(format))

	writer, ok := r.writers[normalizedFormat]
	if !ok {
		return nil, fmt.Errorf("unsupported report format %q, supported formats: %s",
			format, strings.Join(r.GetAll(), ", "))
	}
	return writer, nil
}

// GetAll returns all supported format names in sorted order.
func (r *Registry) GetAll() []string {
	formats := make([]string, 0, len(r.writers))
	for format := range r.writers {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// Has checks if the specified format is supported.
func (r *Registry) Has(format string) bool {
	_, ok := r.writers[strings.ToLower(strings.TrimSpace(format))]
	return ok
}

// WriteAll renders report in every format concurrently into outputDir, naming
// files filenameBase plus the format extension. It returns the written paths
// in format order.
func (r *Registry) WriteAll(ctx context.Context, report *model.Report, formats []string, outputDir, filenameBase string) ([]string, error) {
	writers := make([]ReportWriter, 0, len(formats))
	for _, format := range formats {
		w, err := r.Get(format)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, len(writers))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for i, w := range writers {
		i, w := i, w
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(outputDir, filenameBase+extension(w.Format()))
			if err := w.Write(report, path); err != nil {
				return fmt.Errorf("%s report: %w", w.Format(), err)
			}
			mu.Lock()
			paths[i] = path
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// GenerateFilename expands the {{.Date}} placeholder of template with the
// current date in tz (YYYYMMDD_HHMMSS).
func GenerateFilename(template string, now time.Time, tz *time.Location) string {
	if template == "" {
		template = "woms_report_{{.Date}}"
	}
	if tz == nil {
		tz = time.UTC
	}
	dateStr := now.In(tz).Format("20060102_150405")
	filename := strings.ReplaceAll(template, "{{.Date}}", dateStr)
	filename = strings.ReplaceAll(filename, "{{ .Date }}", dateStr)
	return filename
}

func extension(format string) string {
	switch format {
	case "excel":
		return ".xlsx"
	case "html":
		return ".html"
	default:
		return "." + format
	}
}

// Package report provides report generation for the rules engine.
// It defines the ReportWriter interface and a registry of the Excel and HTML writers.
package report

import (
	"woms-rules/internal/model"
)

// ReportWriter renders a report to a file in one format.
type ReportWriter interface {
	// Write renders report to outputPath. Implementations add their own
	// extension when outputPath lacks it.
	Write(report *model.Report, outputPath string) error

	// Format returns the format identifier ("excel", "html").
	Format() string
}

//go:build ignore
// +build ignore

// This script runs the sample submissions through an in-memory engine and
// writes Excel and HTML reports for manual verification.
// Run with: go run scripts/verify_report.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"woms-rules/internal/config"
	"woms-rules/internal/model"
	"woms-rules/internal/report"
	"woms-rules/internal/service"
	"woms-rules/internal/store"
)

func main() {
	ctx := context.Background()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	submissions, err := config.LoadSubmissions("configs/submissions.example.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading submissions: %v\n", err)
		os.Exit(1)
	}

	st := store.NewMemoryStore()
	registry := service.NewAlertRegistry(st, logger)
	engine := service.NewDerivationEngine(service.NewClassifier(config.ClassificationConfig{}))
	cascade := service.NewAlertCascade(service.DefaultCascadeRules(), registry, config.CascadeConfig{Enabled: true, AutoAssign: true}, logger)
	processor := service.NewProcessor(st, engine, cascade, logger)

	for _, s := range submissions {
		res, err := processor.SubmitMetric(ctx, s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error submitting %s: %v\n", s.SubjectID, err)
			os.Exit(1)
		}
		fmt.Printf("  %-10s %-24s %-14s %s\n", res.Record.SubjectID, res.Record.DisplayName(), res.Record.Classification, res.Outcome)
	}

	// Walk one alert through its lifecycle so the report shows a resolution time
	open, _ := registry.List(ctx, model.AlertFilter{OpenOnly: true, Limit: 1})
	if len(open) > 0 {
		id := open[0].ID
		registry.Acknowledge(ctx, id, "superviseur")
		registry.StartProcessing(ctx, id, "ingenieur")
		registry.Resolve(ctx, id, "ingenieur", "Budget révisé")
	}

	records, _ := st.ListMetrics(ctx, model.MetricFilter{})
	alerts, _ := st.ListAlerts(ctx, model.AlertFilter{})
	rep := model.NewReport(time.Now(), records, alerts)
	rep.Version = "sample"

	tz, _ := time.LoadLocation("Africa/Algiers")
	paths, err := report.NewRegistry(tz, "").WriteAll(ctx, rep, []string{"excel", "html"}, ".", "sample_woms_report")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}
	for _, p := range paths {
		fmt.Printf("✅ Report generated: %s\n", p)
	}

	fmt.Println("\nPlease open the files to verify:")
	fmt.Println("  - Times are in Africa/Algiers timezone")
	fmt.Println("  - CRITIQUE records have a red background")
	fmt.Println("  - The resolved alert shows its resolution time")
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"woms-rules/internal/model"
	"woms-rules/internal/report"
)

// Report flags
var (
	reportFormats   []string
	reportOutputDir string
	reportSubject   string
)

// reportCmd represents the report command.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Générer un rapport Excel/HTML",
	Long: `Génère un rapport à partir des mesures et alertes enregistrées.

Exemples:
  woms report
  woms report --format excel --output ./rapports
  woms report --subject PUITS-07 --format html`,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(runReport)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringSliceVar(&reportFormats, "format", nil, "formats de sortie (excel, html); par défaut ceux de la configuration")
	reportCmd.Flags().StringVarP(&reportOutputDir, "output", "o", "", "répertoire de sortie")
	reportCmd.Flags().StringVar(&reportSubject, "subject", "", "limiter le rapport à un sujet")
}

func runReport(ctx context.Context, a *app) error {
	cfg := a.cfg.Report

	formats := cfg.Formats
	if len(reportFormats) > 0 {
		formats = reportFormats
	}
	if len(formats) == 0 {
		formats = []string{"excel", "html"}
	}
	outputDir := cfg.OutputDir
	if reportOutputDir != "" {
		outputDir = reportOutputDir
	}
	if outputDir == "" {
		outputDir = "."
	}

	records, err := a.store.ListMetrics(ctx, model.MetricFilter{SubjectID: reportSubject})
	if err != nil {
		return fmt.Errorf("list metrics: %w", err)
	}
	alerts, err := a.store.ListAlerts(ctx, model.AlertFilter{SubjectID: reportSubject})
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}

	now := time.Now()
	rep := model.NewReport(now, records, alerts)
	rep.Version = Version

	a.logger.Info().
		Int("records", len(records)).
		Int("alerts", len(alerts)).
		Strs("formats", formats).
		Msg("generating report")

	registry := report.NewRegistry(a.timezone, cfg.HTMLTemplate)
	paths, err := registry.WriteAll(ctx, rep, formats, outputDir, report.GenerateFilename(cfg.FilenameTemplate, now, a.timezone))
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Printf("✅ Rapport généré: %s\n", p)
	}
	return nil
}

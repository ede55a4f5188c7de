package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"woms-rules/internal/model"
)

var summaryJSON bool

// summaryCmd represents the summary command.
var summaryCmd = &cobra.Command{
	Use:   "summary <subject-id>",
	Short: "Synthèse de performance d'un sujet",
	Long:  "Affiche la répartition des mesures d'un sujet par classification et ses alertes ouvertes.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			subject := args[0]
			summary, err := a.registry.SubjectSummary(ctx, subject)
			if err != nil {
				return err
			}
			counts, err := a.registry.CountByClassification(ctx, model.MetricFilter{SubjectID: subject})
			if err != nil {
				return err
			}
			if summaryJSON {
				return printJSON(struct {
					*model.SubjectSummary
					Classifications []model.ClassificationCount `json:"classifications"`
				}{summary, counts})
			}

			if summary.TotalRecords == 0 {
				fmt.Printf("Aucune mesure pour %s.\n", subject)
				return nil
			}
			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			fmt.Printf("   Sujet:               %s\n", subject)
			fmt.Printf("   Mesures:             %d\n", summary.TotalRecords)
			fmt.Printf("   KPI excellents:      %d\n", summary.ExcellentKPIs)
			fmt.Printf("   KPI critiques:       %d\n", summary.CriticalKPIs)
			fmt.Printf("   Écarts critiques:    %d\n", summary.CriticalVariance)
			fmt.Printf("   Atteinte moyenne:    %s\n", formatPercent(summary.MeanAttainment))
			fmt.Printf("   Alertes ouvertes:    %d\n", summary.OpenAlerts)
			fmt.Printf("   Dernière mesure:     %s\n", summary.LastMeasuredAt.In(a.timezone).Format(timeLayout))
			fmt.Println()
			for _, c := range counts {
				if c.Count == 0 {
					continue
				}
				fmt.Printf("   %-10s %-14s %d\n", c.Kind.Label(), c.Classification.Label(), c.Count)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "sortie JSON")
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"woms-rules/internal/config"
	"woms-rules/internal/model"
	"woms-rules/internal/service"
)

// Submission flags
var (
	submissionsFile string
	submitJSON      bool
	sub             model.MetricSubmission
	subKind         string
)

// submitCmd represents the submit command.
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Enregistrer une mesure",
	Long: `Enregistre une mesure, calcule ses valeurs dérivées, la classe et lève une
alerte si elle atteint le niveau critique. Le tout est fait dans une seule
transaction.

Exemples:
  # Analyse d'écart
  woms submit --subject PUITS-07 --kind VARIANCE --category COUT --planned 100 --actual 50

  # KPI de tableau de bord
  woms submit --subject PUITS-07 --kind ATTAINMENT --name "Taux de forage" --actual 950 --target 1000 --previous 900

  # Lot de mesures depuis un fichier YAML
  woms submit -f mesures.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			if submissionsFile != "" {
				return submitBatch(ctx, a, submissionsFile)
			}
			s := flagSubmission()
			res, err := a.processor.SubmitMetric(ctx, &s)
			if err != nil {
				return err
			}
			return printResult(res)
		})
	},
}

// updateCmd represents the update command.
var updateCmd = &cobra.Command{
	Use:   "update <metric-id>",
	Short: "Mettre à jour une mesure",
	Long:  "Remplace les valeurs brutes d'une mesure existante puis relance la dérivation et la cascade d'alertes.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			s := flagSubmission()
			res, err := a.processor.UpdateMetric(ctx, args[0], &s)
			if err != nil {
				return err
			}
			return printResult(res)
		})
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(updateCmd)

	submitCmd.Flags().StringVarP(&submissionsFile, "file", "f", "", "fichier YAML de mesures (submissions: [...])")
	for _, c := range []*cobra.Command{submitCmd, updateCmd} {
		flags := c.Flags()
		flags.StringVar(&sub.SubjectID, "subject", "", "identifiant du sujet (puits, phase, opération)")
		flags.StringVar(&sub.SubjectName, "subject-name", "", "libellé du sujet")
		flags.StringVar(&subKind, "kind", "", "type de mesure (VARIANCE, ATTAINMENT)")
		flags.StringVar(&sub.Name, "name", "", "nom de l'indicateur")
		flags.StringVar(&sub.Category, "category", "", "catégorie (TEMPS, COUT, PRODUCTION...)")
		flags.StringVar(&sub.Unit, "unit", "", "unité")
		flags.StringVar(&sub.Period, "period", "", "période de mesure")
		flags.StringVar(&sub.Analyst, "analyst", "", "analyste")
		flags.StringVar(&sub.Comment, "comment", "", "commentaire")
		flags.StringVar(&sub.Values.Planned, "planned", "", "valeur prévue")
		flags.StringVar(&sub.Values.Actual, "actual", "", "valeur réalisée")
		flags.StringVar(&sub.Values.Previous, "previous", "", "valeur précédente")
		flags.StringVar(&sub.Values.Target, "target", "", "objectif")
		flags.BoolVar(&submitJSON, "json", false, "sortie JSON")
	}
}

func flagSubmission() model.MetricSubmission {
	s := sub
	s.Kind = model.MetricKind(strings.ToUpper(strings.TrimSpace(subKind)))
	return s
}

// submitBatch submits every entry of a YAML file. Invalid entries are reported
// and skipped; any other error stops the batch.
func submitBatch(ctx context.Context, a *app, path string) error {
	submissions, err := config.LoadSubmissions(path)
	if err != nil {
		return err
	}

	var created, suppressed, rejected int
	for i, s := range submissions {
		res, err := a.processor.SubmitMetric(ctx, s)
		if errors.Is(err, model.ErrInvalidMetricInput) {
			rejected++
			fmt.Fprintf(os.Stderr, "⚠️  mesure #%d (%s) rejetée: %v\n", i+1, s.SubjectID, err)
			continue
		}
		if err != nil {
			return fmt.Errorf("submission #%d: %w", i+1, err)
		}
		switch res.Outcome {
		case service.OutcomeCreated:
			created++
		case service.OutcomeSuppressed:
			suppressed++
		}
		if !submitJSON {
			printRecordLine(res)
		}
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("   Mesures enregistrées: %d\n", len(submissions)-rejected)
	fmt.Printf("   Mesures rejetées:     %d\n", rejected)
	fmt.Printf("   Alertes levées:       %d\n", created)
	fmt.Printf("   Doublons supprimés:   %d\n", suppressed)
	if rejected > 0 {
		return fmt.Errorf("%d submission(s) rejected", rejected)
	}
	return nil
}

func printResult(res *service.SubmitResult) error {
	if submitJSON {
		return printJSON(res)
	}
	r := res.Record
	fmt.Printf("✅ Mesure enregistrée: %s\n", r.ID)
	fmt.Printf("   Sujet:          %s\n", r.SubjectID)
	fmt.Printf("   Type:           %s\n", r.Kind.Label())
	fmt.Printf("   Indicateur:     %s\n", r.DisplayName())
	if r.Kind == model.MetricKindVariance {
		fmt.Printf("   Écart:          %s (%s)\n", formatValue(r.AbsoluteDelta), formatPercent(r.PercentageDelta))
	} else {
		fmt.Printf("   Atteinte:       %s\n", formatPercent(r.PercentageAttained))
	}
	if r.PercentageEvolution.Valid {
		fmt.Printf("   Évolution:      %s\n", formatPercent(r.PercentageEvolution))
	}
	fmt.Printf("   Classification: %s\n", r.Classification.Label())

	if res.Alert == nil {
		return nil
	}
	switch res.Outcome {
	case service.OutcomeCreated:
		fmt.Printf("🚨 Alerte levée: %s [%s] %s\n", res.Alert.ID, res.Alert.Urgency.Label(), res.Alert.Title)
		if res.Alert.Assignee != "" {
			fmt.Printf("   Assignée à: %s\n", res.Alert.Assignee)
		}
	case service.OutcomeSuppressed:
		fmt.Printf("ℹ️  Alerte déjà ouverte: %s (%s)\n", res.Alert.ID, res.Alert.Status.Label())
	}
	return nil
}

func printRecordLine(res *service.SubmitResult) {
	r := res.Record
	fmt.Printf("   %-36s %-12s %-24s %-14s %s\n", r.ID, r.SubjectID, r.DisplayName(), r.Classification.Label(), res.Outcome)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValue(d decimal.NullDecimal) string {
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

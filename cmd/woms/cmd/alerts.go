package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"woms-rules/internal/model"
)

// Alert flags
var (
	alertFilter  model.AlertFilter
	alertType    string
	alertUrgency string
	alertStatus  string
	alertActor   string
	alertActions string
	alertsJSON   bool
)

// alertsCmd groups the alert lifecycle commands.
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Consulter et traiter les alertes",
	Long: `Consulte les alertes et fait avancer leur cycle de vie:
NEW → ACKNOWLEDGED → IN_PROGRESS → RESOLVED.

Exemples:
  woms alerts list --subject PUITS-07 --open
  woms alerts ack 3f1c... --actor superviseur
  woms alerts start 3f1c... --actor ingenieur
  woms alerts resolve 3f1c... --actor ingenieur --actions "Budget révisé"`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lister les alertes",
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			alerts, err := a.registry.List(ctx, buildAlertFilter())
			if err != nil {
				return err
			}
			if alertsJSON {
				return printJSON(alerts)
			}
			if len(alerts) == 0 {
				fmt.Println("Aucune alerte.")
				return nil
			}
			for _, al := range alerts {
				fmt.Printf("%-36s %-12s %-10s %-24s %s\n",
					al.ID, al.SubjectID, al.Urgency.Label(), al.Status.Label(), al.Title)
			}
			return nil
		})
	},
}

var alertsShowCmd = &cobra.Command{
	Use:   "show <alert-id>",
	Short: "Afficher une alerte",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			alert, err := a.registry.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if alertsJSON {
				return printJSON(alert)
			}
			printAlert(a, alert)
			return nil
		})
	},
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Prendre en compte une alerte (NEW → ACKNOWLEDGED)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTransition(args[0], func(ctx context.Context, a *app) (*model.Alert, error) {
			return a.registry.Acknowledge(ctx, args[0], alertActor)
		})
	},
}

var alertsStartCmd = &cobra.Command{
	Use:   "start <alert-id>",
	Short: "Démarrer le traitement d'une alerte (→ IN_PROGRESS)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTransition(args[0], func(ctx context.Context, a *app) (*model.Alert, error) {
			return a.registry.StartProcessing(ctx, args[0], alertActor)
		})
	},
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Résoudre une alerte (→ RESOLVED)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTransition(args[0], func(ctx context.Context, a *app) (*model.Alert, error) {
			return a.registry.Resolve(ctx, args[0], alertActor, alertActions)
		})
	},
}

var alertsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Statistiques des alertes",
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			stats, err := a.registry.Statistics(ctx, buildAlertFilter())
			if err != nil {
				return err
			}
			if alertsJSON {
				return printJSON(stats)
			}
			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			fmt.Printf("   Alertes:                  %d\n", stats.TotalAlerts)
			fmt.Printf("   Ouvertes:                 %d\n", stats.OpenAlerts)
			fmt.Printf("   Urgentes ou critiques:    %d\n", stats.CriticalOrUrgent)
			fmt.Printf("   Non prises en compte:     %d\n", stats.Unacknowledged)
			if stats.ResolvedAlertsSample > 0 {
				fmt.Printf("   Délai moyen de résolution: %s\n", stats.MeanResolutionTime.Round(1e9))
			}
			fmt.Println()
			for _, u := range []model.Urgency{model.UrgencyCritique, model.UrgencyUrgent, model.UrgencyAttention, model.UrgencyInfo} {
				fmt.Printf("   %-12s %d\n", u.Label(), stats.ByUrgency[u])
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd, alertsShowCmd, alertsAckCmd, alertsStartCmd, alertsResolveCmd, alertsStatsCmd)

	alertsCmd.PersistentFlags().BoolVar(&alertsJSON, "json", false, "sortie JSON")

	for _, c := range []*cobra.Command{alertsListCmd, alertsStatsCmd} {
		flags := c.Flags()
		flags.StringVar(&alertFilter.SubjectID, "subject", "", "filtrer par sujet")
		flags.StringVar(&alertType, "type", "", "filtrer par type (ECART_IMPORTANT, PERFORMANCE_DEGRADEE...)")
		flags.StringVar(&alertUrgency, "urgency", "", "filtrer par urgence (INFO, ATTENTION, URGENT, CRITIQUE)")
		flags.StringVar(&alertStatus, "status", "", "filtrer par statut (NEW, ACKNOWLEDGED, IN_PROGRESS, RESOLVED)")
		flags.StringVar(&alertFilter.TitleContains, "title", "", "filtrer par fragment de titre")
		flags.BoolVar(&alertFilter.OpenOnly, "open", false, "uniquement les alertes ouvertes")
	}
	alertsListCmd.Flags().IntVar(&alertFilter.Limit, "limit", 50, "nombre maximum d'alertes")

	for _, c := range []*cobra.Command{alertsAckCmd, alertsStartCmd, alertsResolveCmd} {
		c.Flags().StringVar(&alertActor, "actor", "", "utilisateur qui effectue l'action")
	}
	alertsResolveCmd.Flags().StringVar(&alertActions, "actions", "", "actions menées")
}

func buildAlertFilter() model.AlertFilter {
	f := alertFilter
	f.Type = model.AlertType(strings.ToUpper(alertType))
	f.Urgency = model.Urgency(strings.ToUpper(alertUrgency))
	f.Status = model.AlertStatus(strings.ToUpper(alertStatus))
	return f
}

func runTransition(id string, fn func(ctx context.Context, a *app) (*model.Alert, error)) {
	withApp(func(ctx context.Context, a *app) error {
		alert, err := fn(ctx, a)
		if err != nil {
			return err
		}
		if alertsJSON {
			return printJSON(alert)
		}
		fmt.Printf("✅ Alerte %s: %s\n", id, alert.Status.Label())
		return nil
	})
}

const timeLayout = "2006-01-02 15:04:05"

func printAlert(a *app, al *model.Alert) {
	line := func(label, value string) {
		if value != "" {
			fmt.Printf("   %-16s %s\n", label, value)
		}
	}
	at := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.In(a.timezone).Format(timeLayout)
	}

	fmt.Println(al.Title)
	line("ID", al.ID)
	line("Sujet", al.SubjectID)
	line("Mesure", al.MetricID)
	line("Type", al.Type.Label())
	line("Urgence", al.Urgency.Label())
	line("Statut", al.Status.Label())
	line("Valeur", formatValue(al.TriggeringValue))
	line("Référence", formatValue(al.ReferenceThreshold))
	line("Source", al.Source)
	line("Responsable", al.Assignee)
	line("Créée le", at(&al.CreatedAt))
	if al.AcknowledgedAt != nil {
		line("Prise en compte", at(al.AcknowledgedAt)+" par "+al.AcknowledgedBy)
	}
	line("Démarrée le", at(al.StartedAt))
	if al.ResolvedAt != nil {
		line("Résolue le", at(al.ResolvedAt)+" par "+al.ResolvedBy)
	}
	line("Actions", al.ActionsTaken)
	if al.Description != "" {
		fmt.Printf("\n%s\n", al.Description)
	}
}

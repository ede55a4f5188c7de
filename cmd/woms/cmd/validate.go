package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"woms-rules/internal/config"
	"woms-rules/internal/service"
)

var validateSubmissions string

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Valider la configuration",
	Long: `Charge et valide le fichier de configuration: format, champs obligatoires,
plages de valeurs et cohérence des seuils de classification.

Avec --submissions, valide aussi un fichier de mesures sans rien enregistrer.`,
	Run: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateSubmissions, "submissions", "", "fichier YAML de mesures à valider")
}

// runValidate executes the validate command logic.
func runValidate(cmd *cobra.Command, args []string) {
	configPath := GetConfigFile()

	// Load calls Validate
	if _, err := config.Load(configPath); err != nil {
		fail("Configuration invalide: %v", err)
	}
	fmt.Printf("✅ Configuration valide: %s\n", configPath)

	if validateSubmissions == "" {
		return
	}

	submissions, err := config.LoadSubmissions(validateSubmissions)
	if err != nil {
		fail("Fichier de mesures invalide: %v", err)
	}
	invalid := 0
	for i, s := range submissions {
		if _, err := service.ParseSubmission(s); err != nil {
			invalid++
			fmt.Fprintf(os.Stderr, "⚠️  mesure #%d (%s): %v\n", i+1, s.SubjectID, err)
		}
	}
	if invalid > 0 {
		fail("%d mesure(s) invalide(s) sur %d", invalid, len(submissions))
	}
	fmt.Printf("✅ Mesures valides: %d (%s)\n", len(submissions), validateSubmissions)
}

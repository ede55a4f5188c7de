// Package cmd provides CLI commands for the WOMS rules engine.
package cmd

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, injected at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Global flags
var (
	cfgFile  string // Config file path
	logLevel string // Log level
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "woms",
	Short: "Moteur de règles WOMS - classification des indicateurs et cascade d'alertes",
	Long: `Le moteur de règles WOMS enregistre les mesures d'indicateurs (analyses d'écart
et KPI), calcule les valeurs dérivées, les classe et lève automatiquement une
alerte lorsqu'une mesure atteint le niveau critique.

Flux: mesure → dérivation → classification → cascade d'alertes → notification

Fonctions principales:
  - Enregistrer et mettre à jour des mesures (commande ou fichier YAML)
  - Suivre le cycle de vie des alertes (prise en compte, traitement, résolution)
  - Consulter la synthèse de performance d'un sujet
  - Générer des rapports Excel et HTML`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "chemin du fichier de configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "niveau de journalisation (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// GetConfigFile returns the config file path from command line flag.
func GetConfigFile() string {
	return cfgFile
}

// GetLogLevel returns the log level from command line flag, empty when unset.
func GetLogLevel() string {
	return logLevel
}

// GetVersionInfo returns formatted version information.
func GetVersionInfo() string {
	return Version + "\n" +
		"Build Time: " + BuildTime + "\n" +
		"Git Commit: " + GitCommit + "\n" +
		"Go Version: " + runtime.Version() + "\n" +
		"OS/Arch: " + runtime.GOOS + "/" + runtime.GOARCH
}

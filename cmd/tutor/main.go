package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/arturoeanton/go-english-tutor/pkg/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "Conversational English tutor",
	Long: `tutor answers learner questions with retrieval-grounded, role-specific
responses: grammar, vocabulary, exercises and free conversation.

Configuration comes from the environment (and .env), optionally overlaid by a
YAML file passed with --config or TUTOR_CONFIG.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load() // .env is optional

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = "debug"
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

		path := configPath
		if path == "" {
			path = os.Getenv("TUTOR_CONFIG")
		}
		if path != "" {
			if err := cfg.ApplyFile(path); err != nil {
				return err
			}
			slog.Debug("config file applied", "path", path)
		}
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML file with tutor settings")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, ingestCmd, askCmd, routeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

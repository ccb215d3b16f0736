package main

import (
	"fmt"

	"github.com/arturoeanton/go-english-tutor/internal/app"
	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Rebuild the knowledge index from the corpus and print per-kind counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tutor, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer tutor.Close()

		stats, err := tutor.Knowledge.Rebuild(cmd.Context(), func(stage string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s...\n", stage)
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Loaded %d documents from %s\n", stats.Total, cfg.DataDir)
		for _, kind := range domain.SourceKinds {
			fmt.Fprintf(out, "  - %-10s %d\n", kind, stats.ByKind[kind])
		}
		return nil
	},
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arturoeanton/go-english-tutor/internal/app"
	"github.com/arturoeanton/go-english-tutor/internal/sanitize"
	"github.com/arturoeanton/go-english-tutor/internal/service"
	"github.com/spf13/cobra"
)

var (
	askReflect bool
	askJSON    bool
	askUser    string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question through the full tutoring pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var routeCmd = &cobra.Command{
	Use:   "route [question]",
	Short: "Print which role would answer a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clean := sanitize.Sanitize(strings.Join(args, " "))
		if err := clean.Err(); err != nil {
			return err
		}
		decision := service.Route(clean.Text)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(decision)
	},
}

func init() {
	askCmd.Flags().BoolVar(&askReflect, "reflect", false, "Run the answer quality check")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full reply as JSON")
	askCmd.Flags().StringVar(&askUser, "user", "cli", "Learner ID recorded in progress")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tutor, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer tutor.Close()

	if _, err := tutor.Knowledge.Rebuild(ctx, nil); err != nil {
		return err
	}

	session, err := tutor.Sessions.Open(ctx, askUser)
	if err != nil {
		return err
	}
	defer tutor.Sessions.Close(session.ID)

	opts := service.AskOptions{}
	if cmd.Flags().Changed("reflect") {
		opts.Reflect = &askReflect
	}
	reply, err := tutor.Tutor.Ask(ctx, session.ID, strings.Join(args, " "), opts)
	if err != nil {
		if warning, ok := sanitize.Warning(err); ok {
			return fmt.Errorf("%s", warning)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	}

	fmt.Fprintf(out, "[%s]\n%s\n", reply.RoleName, reply.Answer)
	for _, w := range reply.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	if reply.Reflection != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "reflection: confidence %.2f, rewritten %t\n", reply.Reflection.ConfidenceScore, reply.Rewritten)
	}
	return nil
}

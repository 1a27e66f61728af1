package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stackpilot-go/internal/store"
)

var sessionsLimit int

// newSessionsCommand returns the sessions command for the root command.
func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent sessions and their outcomes",
		Long: `List recent sessions from the run history, most recent first.

Examples:
  stackpilot sessions
  stackpilot sessions --limit=50`,
		RunE: runSessions,
	}
	cmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum number of sessions to list")
	return cmd
}

func runSessions(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sessions, err := store.Open(cfg.DataDir, zap.NewNop().Sugar())
	if err != nil {
		return fmt.Errorf("failed to open session history: %w", err)
	}
	defer func() {
		_ = sessions.Close()
	}()

	list, err := sessions.List(sessionsLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No sessions recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTARTED\tDURATION\tOUTCOME\tERROR")
	for _, s := range list {
		duration := "-"
		if !s.EndedAt.IsZero() {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		errMsg := ""
		if s.Error != "" {
			errMsg = s.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.StartedAt.Format(time.RFC3339),
			duration,
			s.Outcome,
			errMsg)
	}
	return w.Flush()
}

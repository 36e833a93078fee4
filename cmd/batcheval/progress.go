package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/batch-eval/internal/progress"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

func newProgressCmd(st *cliState) *cobra.Command {
	var sessionID int64

	cmd := &cobra.Command{
		Use:     "progress",
		Short:   "Show live batch progress for a session",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID <= 0 {
				return fmt.Errorf("progress: session must be > 0 (got %d)", sessionID)
			}

			s, err := store.Open(st.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			reporter, err := progress.NewReporter(s, st.cfg)
			if err != nil {
				return err
			}

			groups, err := reporter.SessionProgress(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), progress.Render(groups))
			return nil
		},
	}

	cmd.Flags().Int64Var(&sessionID, "session", 0, "test session id")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

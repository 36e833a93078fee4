package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/batch-eval/internal/report"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

func newReportCmd(st *cliState) *cobra.Command {
	var sessionID int64

	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Print a session's ranked scores per benchmark",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID <= 0 {
				return fmt.Errorf("report: session must be > 0 (got %d)", sessionID)
			}

			s, err := store.Open(st.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := report.New(s, st.cfg)
			if err != nil {
				return err
			}

			entries, err := r.SessionReport(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Render(entries))
			return nil
		},
	}

	cmd.Flags().Int64Var(&sessionID, "session", 0, "test session id")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

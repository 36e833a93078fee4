package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/batch-eval/internal/driver"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

func newCancelCmd(st *cliState) *cobra.Command {
	var sessionID int64

	cmd := &cobra.Command{
		Use:     "cancel",
		Short:   "Cancel a session's outstanding batches",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID <= 0 {
				return fmt.Errorf("cancel: session must be > 0 (got %d)", sessionID)
			}

			s, err := store.Open(st.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := driver.New(s, st.cfg)
			if err != nil {
				return err
			}
			if err := d.CancelSession(cmd.Context(), sessionID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cancellation requested")
			return nil
		},
	}

	cmd.Flags().Int64Var(&sessionID, "session", 0, "test session id")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func newListCmd(st *cliState) *cobra.Command {
	var (
		modelName string
		limit     int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List a model's recent remote batches",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(st.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := driver.New(s, st.cfg)
			if err != nil {
				return err
			}

			infos, err := d.ListBatches(cmd.Context(), modelName, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "no batches")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(out, "%s\t%s\t%d/%d completed, %d failed\n",
					info.ID, info.Status, info.Counts.Completed, info.Counts.Total, info.Counts.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "configured model name")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum batches to list")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

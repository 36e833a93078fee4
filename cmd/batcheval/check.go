package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/batch-eval/internal/driver"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

type checkOptions struct {
	sessionID int64
	benchmark string
}

func newCheckCmd(st *cliState) *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:     "check",
		Short:   "Poll outstanding batches and reconcile finished results",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkBatches(cmd, st, &opts)
		},
	}

	cmd.Flags().Int64Var(&opts.sessionID, "session", 0, "test session id")
	cmd.Flags().StringVar(&opts.benchmark, "benchmark", "", "restrict the sweep to one benchmark")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func checkBatches(cmd *cobra.Command, st *cliState, opts *checkOptions) error {
	if opts.sessionID <= 0 {
		return fmt.Errorf("check: session must be > 0 (got %d)", opts.sessionID)
	}
	cfg, err := scopedConfig(st.cfg, opts.benchmark)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	s, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := driver.New(s, cfg)
	if err != nil {
		return err
	}

	done, results := d.CheckSession(cmd.Context(), opts.sessionID)
	out := cmd.OutOrStdout()
	for _, res := range results {
		switch {
		case res.Err != nil:
			fmt.Fprintf(out, "%s / %s: error: %v\n", res.BenchmarkName, res.ModelName, res.Err)
		case res.Reconciled:
			fmt.Fprintf(out, "%s / %s: reconciled\n", res.BenchmarkName, res.ModelName)
		default:
			fmt.Fprintf(out, "%s / %s: still in progress\n", res.BenchmarkName, res.ModelName)
		}
	}
	if done {
		fmt.Fprintln(out, "all batches reconciled")
	} else {
		fmt.Fprintln(out, "batches still outstanding; run check again later")
	}
	return nil
}

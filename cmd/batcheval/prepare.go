package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/batch-eval/internal/benchmark"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

type prepareOptions struct {
	sessionID  int64
	benchmark  string
	dataDir    string
	sampleSize int
}

func newPrepareCmd(st *cliState) *cobra.Command {
	var opts prepareOptions

	cmd := &cobra.Command{
		Use:     "prepare",
		Short:   "Load benchmark datasets and prepare a session's questions",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return prepareQuestions(cmd, st, &opts)
		},
	}

	cmd.Flags().Int64Var(&opts.sessionID, "session", 0, "test session id")
	cmd.Flags().StringVar(&opts.benchmark, "benchmark", "", "prepare only one benchmark")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", benchmark.DefaultDataDir, "directory holding dataset files")
	cmd.Flags().IntVar(&opts.sampleSize, "sample", 0, "cap questions per category (0 loads everything)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func prepareQuestions(cmd *cobra.Command, st *cliState, opts *prepareOptions) error {
	if opts.sessionID <= 0 {
		return fmt.Errorf("prepare: session must be > 0 (got %d)", opts.sessionID)
	}

	names := benchmark.Names()
	if b := strings.ToLower(strings.TrimSpace(opts.benchmark)); b != "" {
		names = []string{b}
	}
	sort.Strings(names)

	s, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	dsOpts := benchmark.Options{DataDir: opts.dataDir, SampleSize: opts.sampleSize}
	out := cmd.OutOrStdout()
	for _, name := range names {
		ds, err := benchmark.ForName(name, dsOpts)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}

		n, err := benchmark.Seed(cmd.Context(), s, ds, opts.sessionID)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		if n == 0 {
			fmt.Fprintf(out, "%s: already prepared\n", name)
			continue
		}
		fmt.Fprintf(out, "%s: prepared %d questions\n", name, n)
	}
	return nil
}

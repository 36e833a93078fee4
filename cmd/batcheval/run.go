package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/batch-eval/internal/config"
	"github.com/stellarlinkco/batch-eval/internal/driver"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

type runOptions struct {
	sessionID int64
	benchmark string
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Submit benchmark batches for a session",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatches(cmd, st, &opts)
		},
	}

	cmd.Flags().Int64Var(&opts.sessionID, "session", 0, "test session id")
	cmd.Flags().StringVar(&opts.benchmark, "benchmark", "", "restrict the sweep to one benchmark")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runBatches(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	if opts.sessionID <= 0 {
		return fmt.Errorf("run: session must be > 0 (got %d)", opts.sessionID)
	}
	cfg, err := scopedConfig(st.cfg, opts.benchmark)
	if err != nil {
		return fmt.Errorf("run: %w", err)
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

	results := d.RunSession(cmd.Context(), opts.sessionID)
	out := cmd.OutOrStdout()
	failures := 0
	for _, res := range results {
		switch {
		case res.Err != nil:
			failures++
			fmt.Fprintf(out, "%s / %s: error: %v\n", res.BenchmarkName, res.ModelName, res.Err)
		case len(res.BatchIDs) == 0:
			fmt.Fprintf(out, "%s / %s: nothing to submit\n", res.BenchmarkName, res.ModelName)
		default:
			fmt.Fprintf(out, "%s / %s: submitted %s\n", res.BenchmarkName, res.ModelName, strings.Join(res.BatchIDs, ", "))
		}
	}
	if failures > 0 {
		return fmt.Errorf("run: %d of %d pairs failed", failures, len(results))
	}
	return nil
}

// scopedConfig narrows the sweep to one benchmark when requested.
func scopedConfig(cfg *config.Config, benchmark string) (*config.Config, error) {
	benchmark = strings.ToLower(strings.TrimSpace(benchmark))
	if benchmark == "" {
		return cfg, nil
	}

	b, ok := cfg.Benchmarks[benchmark]
	if !ok {
		return nil, fmt.Errorf("unknown benchmark %q", benchmark)
	}

	scoped := *cfg
	scoped.Benchmarks = map[string]config.BenchmarkConfig{benchmark: b}
	return &scoped, nil
}

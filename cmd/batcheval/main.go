package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/batch-eval/internal/config"
)

type cliState struct {
	configPath string
	cfg        *config.Config
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "batch-eval",
		Short:         "Evaluate LLM providers against benchmarks via their batch APIs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newPrepareCmd(st))
	root.AddCommand(newRunCmd(st))
	root.AddCommand(newCheckCmd(st))
	root.AddCommand(newProgressCmd(st))
	root.AddCommand(newReportCmd(st))
	root.AddCommand(newCancelCmd(st))
	root.AddCommand(newListCmd(st))
	root.AddCommand(newServeCmd(st))
	return root
}

// loadConfig is the shared PreRunE for every subcommand.
func loadConfig(st *cliState) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(st.configPath)
		if err != nil {
			return err
		}
		st.cfg = cfg
		return nil
	}
}

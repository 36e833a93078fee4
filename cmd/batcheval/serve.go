package main

import (
	"github.com/spf13/cobra"

	"github.com/stellarlinkco/batch-eval/api"
	"github.com/stellarlinkco/batch-eval/internal/store"
)

func newServeCmd(st *cliState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the read-only batch status API",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(st.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			srv, err := api.NewServer(st.cfg, s)
			if err != nil {
				return err
			}
			return srv.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

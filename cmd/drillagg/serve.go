package main

import (
	"github.com/spf13/cobra"

	"drillagg/internal/app"
)

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			a, err := app.NewApplication(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			colorGreen.Printf("Listening on http://%s\n", cfg.Server.Addr())
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port")
	return cmd
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/config"
	srv "github.com/Sanchay-T/influencer-platform-app-sub009/internal/server"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if serveAddr == "" {
				serveAddr = os.Getenv("REELAGENT_HTTP_ADDR")
			}
			if serveAddr == "" {
				serveAddr = ":8080"
			}
			return srv.Run(cfg, serveAddr)
		},
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address")
	return cmd
}

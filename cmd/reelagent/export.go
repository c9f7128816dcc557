package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/config"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/master"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
)

func exportCMD() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the master dataset as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger := log.New(os.Stderr, "[EXPORT] ", log.LstdFlags)

			var store master.Store
			switch cfg.Master.Backend {
			case "csv":
				store, err = master.NewCSVStore(cfg.Master.CSVPath)
			case "postgres":
				store, err = master.NewPostgresStore(cfg.Master.Postgres.ConnString())
			default:
				return fmt.Errorf("unsupported master backend: %s", cfg.Master.Backend)
			}
			if err != nil {
				return err
			}

			rows, err := store.Load()
			if err != nil {
				return err
			}

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			w := csv.NewWriter(out)
			if err := w.Write(reel.CSVHeader); err != nil {
				return err
			}
			for _, r := range rows {
				if err := w.Write(reel.EncodeCSV(r)); err != nil {
					return err
				}
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return err
			}
			logger.Printf("exported %d rows", len(rows))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	return cmd
}

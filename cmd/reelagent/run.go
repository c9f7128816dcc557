package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/config"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/core"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/telemetry"
)

func runCMD() *cobra.Command {
	var audit bool
	cmd := &cobra.Command{
		Use:   "run <keyword>",
		Short: "Run the discovery agent for a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			logger := log.New(os.Stderr, "[ORCH] ", log.LstdFlags)
			tele := telemetry.New(cfg.Telemetry)

			llm := core.NewOpenAIProvider(cfg.LLM)
			searcher, err := core.NewSearchProvider(cfg.Search)
			if err != nil {
				return err
			}
			scraper, err := core.NewScrapeClient(cfg.Scraping)
			if err != nil {
				return err
			}
			sessions, err := core.NewSessionStore(cfg.Session)
			if err != nil {
				return err
			}
			merger, masterPath, err := core.NewMasterEngine(cfg.Master, logger)
			if err != nil {
				return err
			}

			orch := core.NewOrchestrator(cfg, llm, searcher, scraper, sessions, merger, masterPath, tele, logger)
			res, err := orch.Run(context.Background(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("session %s: %d results\n", res.SessionID, len(res.Results))
			for _, r := range res.Results {
				fmt.Printf("  %-40s %-20s %-8s %s\n", r.URL, r.OwnerHandle, r.USDecision, r.Relevance)
			}
			fmt.Printf("merge: %d added, %d updated, %d skipped\n",
				res.MergeStats.Added, res.MergeStats.Updated, res.MergeStats.Skipped)
			fmt.Println(core.ReportJSON(res.Cost))

			if audit {
				groups, err := merger.Audit()
				if err != nil {
					return err
				}
				if len(groups) == 0 {
					fmt.Println("master dataset audit: clean")
				} else {
					for _, g := range groups {
						fmt.Printf("duplicate url %s appears %d times\n", g.URL, g.Count)
					}
					return fmt.Errorf("master dataset audit found %d duplicated urls", len(groups))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&audit, "audit", false, "verify master dataset dedup invariant after merging")
	return cmd
}

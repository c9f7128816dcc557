package core

import (
	"fmt"
	"log"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/config"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/master"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session/file"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session/inmemory"
	redissession "github.com/Sanchay-T/influencer-platform-app-sub009/internal/session/redis"
	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/scrape"
	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/search"
)

// NewSessionStore creates the configured session store backend.
func NewSessionStore(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case "memory":
		return inmemory.NewStore(), nil
	case "file":
		return file.NewStore(cfg.DataDir)
	case "redis":
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		return redissession.NewStore(addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}

// NewMasterEngine creates the merge engine over the configured master
// backend. The returned path points at the CSV dataset when one exists; it
// is what sandboxed analysis gets to read, and is empty for Postgres.
func NewMasterEngine(cfg config.MasterConfig, logger *log.Logger) (*master.Engine, string, error) {
	switch cfg.Backend {
	case "csv":
		store, err := master.NewCSVStore(cfg.CSVPath)
		if err != nil {
			return nil, "", err
		}
		return master.NewEngine(store, logger), cfg.CSVPath, nil
	case "postgres":
		store, err := master.NewPostgresStore(cfg.Postgres.ConnString())
		if err != nil {
			return nil, "", err
		}
		return master.NewEngine(store, logger), "", nil
	default:
		return nil, "", fmt.Errorf("unsupported master backend: %s", cfg.Backend)
	}
}

// NewSearchProvider creates the configured search vendor.
func NewSearchProvider(cfg config.SearchConfig) (search.Searcher, error) {
	return search.New(search.Provider(cfg.Provider), cfg.APIKey)
}

// NewScrapeClient creates the configured scraping vendor.
func NewScrapeClient(cfg config.ScrapingConfig) (scrape.Client, error) {
	return scrape.New(scrape.Provider(cfg.Provider), cfg.APIKey)
}

// Package scrape defines the hydration collaborator: batch enrichment of
// bare reel URLs and owner handles via a paid scraping vendor.
package scrape

import (
	"context"
	"fmt"

	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/scrape/models"
	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/scrape/scrapecreators"
)

// Client is implemented by scraping vendors. Responses are parallel to the
// request slice; an item with all-nil fields means the vendor had nothing.
type Client interface {
	FetchPosts(ctx context.Context, urls []string) (models.Batch[models.Post], error)
	FetchTranscripts(ctx context.Context, urls []string) (models.Batch[models.Transcript], error)
	FetchProfiles(ctx context.Context, handles []string) (models.Batch[models.Profile], error)
}

// Provider selects a vendor backend.
type Provider string

const (
	ScrapeCreatorsProvider Provider = "scrapecreators"
)

// New constructs the configured backend.
func New(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ScrapeCreatorsProvider:
		return scrapecreators.New(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported scrape provider: %s", provider)
	}
}

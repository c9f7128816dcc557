// Package search defines the discovery collaborator: given a query, return
// candidate content URLs. Batching multiple queries is the caller's job.
package search

import (
	"context"
	"fmt"

	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/search/serper"
)

// Searcher is implemented by paid search vendors.
type Searcher interface {
	// Discover returns up to k content URLs for the query.
	Discover(ctx context.Context, q string, k int) ([]string, error)
}

// Provider selects a vendor backend.
type Provider string

const (
	SerperProvider Provider = "serper"
)

// New constructs the configured backend.
func New(provider Provider, apiKey string) (Searcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{APIKey: apiKey}, nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", provider)
	}
}

package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Search struct {
	APIKey string
}

// Discover queries site-scoped Instagram reel results and returns bare URLs.
func (s Search) Discover(ctx context.Context, q string, k int) ([]string, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": fmt.Sprintf("site:instagram.com/reel %s", q), "num": k}

	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", "https://google.serper.dev/search", strings.NewReader(string(body)))
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper: unexpected status %d", resp.StatusCode)
	}
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []string
	if items, ok := raw["organic"].([]any); ok {
		for _, it := range items {
			if len(out) >= k {
				break
			}
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			link, _ := m["link"].(string)
			if link = Canonicalize(link); link != "" {
				out = append(out, link)
			}
		}
	}
	return out, nil
}

// Canonicalize strips query strings and fragments and drops non-reel links.
func Canonicalize(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if !strings.Contains(u.Path, "/reel") {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/") + "/"
	return u.String()
}

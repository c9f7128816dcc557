package scrapecreators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/scrape/models"
)

const baseURL = "https://api.scrapecreators.com"

// Client talks to the ScrapeCreators REST API. The API serves one item per
// request, so batch calls fan out sequentially and keep the response slice
// parallel to the input.
type Client struct {
	APIKey string
	HTTP   *http.Client
}

func New(apiKey string) *Client {
	return &Client{APIKey: apiKey, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

type postEnvelope struct {
	Data struct {
		ShortcodeMedia struct {
			Owner struct {
				Username string `json:"username"`
				FullName string `json:"full_name"`
			} `json:"owner"`
			EdgeMediaToCaption struct {
				Edges []struct {
					Node struct {
						Text string `json:"text"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"edge_media_to_caption"`
			VideoViewCount   *int64 `json:"video_view_count"`
			DisplayURL       string `json:"display_url"`
			TakenAtTimestamp *int64 `json:"taken_at_timestamp"`
		} `json:"shortcode_media"`
	} `json:"data"`
	CreditsRemaining *float64 `json:"credits_remaining"`
}

func (c *Client) FetchPosts(ctx context.Context, urls []string) (models.Batch[models.Post], error) {
	out := models.Batch[models.Post]{Items: make([]models.Post, 0, len(urls))}
	for _, u := range urls {
		var env postEnvelope
		if err := c.get(ctx, "/v1/instagram/post", url.Values{"url": {u}}, &env); err != nil {
			return models.Batch[models.Post]{}, fmt.Errorf("posts %s: %w", u, err)
		}
		media := env.Data.ShortcodeMedia
		p := models.Post{URL: u}
		if media.Owner.Username != "" {
			p.OwnerHandle = strPtr(media.Owner.Username)
		}
		if media.Owner.FullName != "" {
			p.OwnerName = strPtr(media.Owner.FullName)
		}
		if len(media.EdgeMediaToCaption.Edges) > 0 {
			p.Caption = strPtr(media.EdgeMediaToCaption.Edges[0].Node.Text)
		}
		p.Views = media.VideoViewCount
		if media.DisplayURL != "" {
			p.Thumbnail = strPtr(media.DisplayURL)
		}
		if media.TakenAtTimestamp != nil {
			t := time.Unix(*media.TakenAtTimestamp, 0).UTC()
			p.TakenAt = &t
		}
		out.Items = append(out.Items, p)
		if env.CreditsRemaining != nil {
			out.Credits = env.CreditsRemaining
		}
	}
	return out, nil
}

type transcriptEnvelope struct {
	Transcripts []struct {
		Text string `json:"transcript"`
	} `json:"transcripts"`
	CreditsRemaining *float64 `json:"credits_remaining"`
}

func (c *Client) FetchTranscripts(ctx context.Context, urls []string) (models.Batch[models.Transcript], error) {
	out := models.Batch[models.Transcript]{Items: make([]models.Transcript, 0, len(urls))}
	for _, u := range urls {
		var env transcriptEnvelope
		if err := c.get(ctx, "/v2/instagram/media/transcript", url.Values{"url": {u}}, &env); err != nil {
			return models.Batch[models.Transcript]{}, fmt.Errorf("transcripts %s: %w", u, err)
		}
		t := models.Transcript{URL: u}
		if len(env.Transcripts) > 0 && env.Transcripts[0].Text != "" {
			t.Text = strPtr(env.Transcripts[0].Text)
		}
		out.Items = append(out.Items, t)
		if env.CreditsRemaining != nil {
			out.Credits = env.CreditsRemaining
		}
	}
	return out, nil
}

type profileEnvelope struct {
	Data struct {
		User struct {
			FullName        string `json:"full_name"`
			Biography       string `json:"biography"`
			BusinessAddress string `json:"business_address_json"`
		} `json:"user"`
	} `json:"data"`
	CreditsRemaining *float64 `json:"credits_remaining"`
}

func (c *Client) FetchProfiles(ctx context.Context, handles []string) (models.Batch[models.Profile], error) {
	out := models.Batch[models.Profile]{Items: make([]models.Profile, 0, len(handles))}
	for _, h := range handles {
		var env profileEnvelope
		if err := c.get(ctx, "/v1/instagram/profile", url.Values{"handle": {h}}, &env); err != nil {
			return models.Batch[models.Profile]{}, fmt.Errorf("profiles %s: %w", h, err)
		}
		user := env.Data.User
		p := models.Profile{Handle: h}
		if user.FullName != "" {
			p.FullName = strPtr(user.FullName)
		}
		if user.Biography != "" {
			p.Biography = strPtr(user.Biography)
		}
		if loc := parseBusinessAddress(user.BusinessAddress); loc != "" {
			p.LocationName = strPtr(loc)
		}
		out.Items = append(out.Items, p)
		if env.CreditsRemaining != nil {
			out.Credits = env.CreditsRemaining
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.APIKey)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scrapecreators %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

// parseBusinessAddress extracts city_name from the profile's embedded
// address JSON, which arrives double-encoded as a string.
func parseBusinessAddress(raw string) string {
	if raw == "" {
		return ""
	}
	var addr struct {
		CityName string `json:"city_name"`
	}
	if err := json.Unmarshal([]byte(raw), &addr); err != nil {
		return ""
	}
	return addr.CityName
}

func strPtr(s string) *string { return &s }

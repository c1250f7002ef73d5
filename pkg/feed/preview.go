package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	maxFeedBody    = 5 << 20
	previewTimeout = 30 * time.Second
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Preview describes a candidate feed before subscribing.
type Preview struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SiteURL     string `json:"site_url"`
	ItemCount   int    `json:"item_count"`
}

// Previewer fetches and parses a feed URL to validate it and extract
// metadata shown to the user before the subscription is registered.
type Previewer struct {
	http   HTTPClient
	parser *gofeed.Parser
}

// NewPreviewer creates a Previewer.
func NewPreviewer(httpClient HTTPClient) *Previewer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: previewTimeout}
	}
	return &Previewer{http: httpClient, parser: gofeed.NewParser()}
}

// Fetch downloads and parses the feed at feedURL. The body is capped at 5 MB.
func (p *Previewer) Fetch(ctx context.Context, feedURL string) (*Preview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", feedURL, err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: status %d", feedURL, resp.StatusCode)
	}

	parsed, err := p.parser.Parse(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	return &Preview{
		Title:       parsed.Title,
		Description: parsed.Description,
		SiteURL:     parsed.Link,
		ItemCount:   len(parsed.Items),
	}, nil
}

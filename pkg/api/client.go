// Package api is a typed client for the feedquest backend REST API.
// The backend owns feed discovery, RSS polling and YouTube metadata
// resolution; this client only speaks its JSON contract.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// ErrSessionExpired signals a 401 from the backend; callers should drop the
// stored token and redirect to login.
var ErrSessionExpired = errors.New("session expired")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Item is a single content item as served by the backend.
type Item struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	ItemType       string    `json:"item_type"` // "news" or "videos"
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Thumbnail      string    `json:"thumbnail"`
	Source         string    `json:"source"`
	PublishedAt    time.Time `json:"published_at"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// Subscription is a remote subscription record.
type Subscription struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"` // "site" or "youtube"
	Title   string    `json:"title"`
	FeedURL string    `json:"feed_url"`
	AddedAt time.Time `json:"added_at"`
}

// BookmarkPayload mirrors the bookmark sync wire shape.
type BookmarkPayload struct {
	ID           string    `json:"id"`
	ItemType     string    `json:"item_type"`
	Title        string    `json:"title"`
	Thumbnail    string    `json:"thumbnail"`
	Source       string    `json:"source"`
	URL          string    `json:"url"`
	BookmarkedAt time.Time `json:"bookmarked_at"`
}

// ReadItemPayload mirrors the read-item sync wire shape.
type ReadItemPayload struct {
	ID       string    `json:"id"`
	ItemType string    `json:"item_type"`
	ReadAt   time.Time `json:"read_at"`
}

// BookmarkSyncRequest pushes the full local bookmark list to /bookmarks/sync.
type BookmarkSyncRequest struct {
	Items      []BookmarkPayload `json:"items"`
	LastSyncAt string            `json:"last_sync_at,omitempty"`
}

// BookmarkSyncResponse returns bookmarks the server knows about that the
// client may not.
type BookmarkSyncResponse struct {
	Items []BookmarkPayload `json:"items"`
}

// ReadItemSyncRequest pushes the full local read-item list to /read-items/sync.
type ReadItemSyncRequest struct {
	Items      []ReadItemPayload `json:"items"`
	LastSyncAt string            `json:"last_sync_at,omitempty"`
}

// ReadItemSyncResponse returns read markers the server knows about that the
// client may not.
type ReadItemSyncResponse struct {
	Items []ReadItemPayload `json:"items"`
}

// Client talks to the backend with bearer-token auth and client-side rate
// limiting.
type Client struct {
	baseURL string
	http    HTTPClient
	limiter *rate.Limiter
	token   func() string
}

// New creates a Client. token is consulted per request so a re-login takes
// effect without rebuilding the client.
func New(baseURL string, httpClient HTTPClient, token func() string, rps float64, burst int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		token:   token,
	}
}

// Login authenticates and returns a bearer token. Unlike the other
// operations, its error message is normalized for direct display.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	return c.authenticate(ctx, "/auth/login", email, password)
}

// Register creates an account and returns a bearer token.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	return c.authenticate(ctx, "/auth/register", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// ListSubscriptions returns all remote subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var out []Subscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddSubscription registers a new subscription with the backend.
func (c *Client) AddSubscription(ctx context.Context, kind, feedURL, title string) (*Subscription, error) {
	body := map[string]string{"kind": kind, "feed_url": feedURL, "title": title}
	var out Subscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveSubscription deletes a subscription.
func (c *Client) RemoveSubscription(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(id), nil, nil, nil)
}

// ListItems fetches one page of items for a subscription.
func (c *Client) ListItems(ctx context.Context, subscriptionID string, page, pageSize int) ([]Item, error) {
	q := url.Values{}
	q.Set("subscription_id", subscriptionID)
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var out []Item
	if err := c.do(ctx, http.MethodGet, "/items", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddBookmark pushes a bookmark to the backend.
func (c *Client) AddBookmark(ctx context.Context, b BookmarkPayload) error {
	return c.do(ctx, http.MethodPost, "/bookmarks", nil, b, nil)
}

// RemoveBookmark deletes a bookmark on the backend.
func (c *Client) RemoveBookmark(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/bookmarks/"+url.PathEscape(id), nil, nil, nil)
}

// MarkRead pushes a read marker to the backend.
func (c *Client) MarkRead(ctx context.Context, r ReadItemPayload) error {
	return c.do(ctx, http.MethodPost, "/read-items", nil, r, nil)
}

// MarkUnread deletes a read marker on the backend.
func (c *Client) MarkUnread(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/read-items/"+url.PathEscape(id), nil, nil, nil)
}

// SyncBookmarks pushes the full local bookmark list and returns server-only
// bookmarks.
func (c *Client) SyncBookmarks(ctx context.Context, req BookmarkSyncRequest) (*BookmarkSyncResponse, error) {
	var out BookmarkSyncResponse
	if err := c.do(ctx, http.MethodPost, "/bookmarks/sync", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncReadItems pushes the full local read-item list and returns server-only
// read markers.
func (c *Client) SyncReadItems(ctx context.Context, req ReadItemSyncRequest) (*ReadItemSyncResponse, error) {
	var out ReadItemSyncResponse
	if err := c.do(ctx, http.MethodPost, "/read-items/sync", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, path, errorMessage(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts a best-effort human-readable message from an error
// response body.
func errorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(data) > 0 {
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil {
			if body.Error != "" {
				return body.Error
			}
			if body.Message != "" {
				return body.Message
			}
		}
	}
	return "status " + strconv.Itoa(resp.StatusCode)
}

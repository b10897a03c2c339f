package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// googleEndpoint is the Custom Search JSON API.
const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleProvider queries the Google Custom Search JSON API. It needs an
// API key and a search-engine id; without both the provider is simply
// not configured.
type GoogleProvider struct {
	apiKey     string
	engineID   string
	httpClient *http.Client
	endpoint   string
}

func NewGoogleProvider(apiKey, engineID string) *GoogleProvider {
	return &GoogleProvider{
		apiKey:     apiKey,
		engineID:   engineID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   googleEndpoint,
	}
}

// SetEndpoint points the provider at a different base URL. Test hook.
func (g *GoogleProvider) SetEndpoint(endpoint string) {
	g.endpoint = endpoint
}

func (g *GoogleProvider) Name() string {
	return "google"
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (g *GoogleProvider) Query(ctx context.Context, text string, limit int) ([]ProviderResult, error) {
	if limit > 10 {
		limit = 10 // API page cap
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", text)
	params.Set("num", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("google: failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("google: failed to read response: %w", err)
	}

	var decoded googleResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("google: failed to decode response: %w", err)
	}

	results := make([]ProviderResult, 0, len(decoded.Items))
	for i, item := range decoded.Items {
		results = append(results, ProviderResult{
			URL:     item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
			Rank:    i + 1,
		})
	}
	return results, nil
}

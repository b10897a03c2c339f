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

// bingEndpoint is the Bing Web Search v7 API.
const bingEndpoint = "https://api.bing.microsoft.com/v7.0/search"

// BingProvider queries the Bing Web Search API with a subscription key.
type BingProvider struct {
	apiKey     string
	httpClient *http.Client
	endpoint   string
}

func NewBingProvider(apiKey string) *BingProvider {
	return &BingProvider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   bingEndpoint,
	}
}

// SetEndpoint points the provider at a different base URL. Test hook.
func (b *BingProvider) SetEndpoint(endpoint string) {
	b.endpoint = endpoint
}

func (b *BingProvider) Name() string {
	return "bing"
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

func (b *BingProvider) Query(ctx context.Context, text string, limit int) ([]ProviderResult, error) {
	if limit > 50 {
		limit = 50
	}

	params := url.Values{}
	params.Set("q", text)
	params.Set("count", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("bing: failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bing: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bing: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("bing: failed to read response: %w", err)
	}

	var decoded bingResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("bing: failed to decode response: %w", err)
	}

	results := make([]ProviderResult, 0, len(decoded.WebPages.Value))
	for i, item := range decoded.WebPages.Value {
		results = append(results, ProviderResult{
			URL:     item.URL,
			Title:   item.Name,
			Snippet: item.Snippet,
			Rank:    i + 1,
		})
	}
	return results, nil
}

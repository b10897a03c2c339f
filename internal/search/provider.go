package search

import "context"

// Provider is the adapter contract every search engine implements.
// Providers are interchangeable: the dispatcher only sees ranked
// results and never engine-specific payloads.
type Provider interface {
	Name() string
	// Query returns up to limit results. Rank starts at 1 for the
	// engine's best hit.
	Query(ctx context.Context, text string, limit int) ([]ProviderResult, error)
}

// ProviderResult is one raw hit from an engine.
type ProviderResult struct {
	URL     string
	Title   string
	Snippet string
	Rank    int
}

// trust weights per engine feed the relevance blend. Unknown engines
// get a neutral weight.
var providerTrust = map[string]float64{
	"google": 1.0,
	"bing":   0.9,
}

func trustFor(name string) float64 {
	if t, ok := providerTrust[name]; ok {
		return t
	}
	return 0.7
}

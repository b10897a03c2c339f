package search_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rohmanhakim/lore-crawler/internal/logging"
	"github.com/rohmanhakim/lore-crawler/internal/search"
)

// mockProvider returns scripted results, optionally erroring or hanging.
type mockProvider struct {
	name    string
	results []search.ProviderResult
	err     error
	delay   time.Duration
	calls   int
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Query(ctx context.Context, text string, limit int) ([]search.ProviderResult, error) {
	m.calls++
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) > limit {
		return m.results[:limit], nil
	}
	return m.results, nil
}

func newDispatcher(providers ...search.Provider) *search.Dispatcher {
	opts := search.DefaultDispatcherOptions()
	opts.Deadline = 1 * time.Second
	return search.NewDispatcher(providers, nil, logging.Nop(), opts)
}

func TestSearch_NoProvidersIsFallbackNotFailure(t *testing.T) {
	d := newDispatcher()

	response, err := d.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatalf("fallback mode must not fail: %v", err)
	}
	if len(response.Results) != 0 {
		t.Errorf("results = %d, want 0", len(response.Results))
	}
	if response.Reason != "no providers" {
		t.Errorf("reason = %q, want %q", response.Reason, "no providers")
	}
}

func TestSearch_EmptyQueryIsBadInput(t *testing.T) {
	d := newDispatcher(&mockProvider{name: "google"})
	if _, err := d.Search(context.Background(), "   ", 10); err == nil {
		t.Fatal("blank query must be rejected")
	}
}

func TestSearch_DedupAcrossProviders(t *testing.T) {
	google := &mockProvider{
		name: "google",
		results: []search.ProviderResult{
			{URL: "http://x.test/a", Title: "A on google", Snippet: "anything from google", Rank: 1},
		},
	}
	bing := &mockProvider{
		name: "bing",
		results: []search.ProviderResult{
			{URL: "http://x.test/a", Title: "A on bing", Snippet: "anything from bing", Rank: 2},
			{URL: "http://x.test/b", Title: "B on bing", Snippet: "anything about b", Rank: 1},
		},
	}

	d := newDispatcher(google, bing)
	response, err := d.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatal(err)
	}

	if len(response.Results) != 2 {
		t.Fatalf("results = %d, want 2 after dedup", len(response.Results))
	}

	// No two results share a canonical URL.
	seen := map[string]bool{}
	for _, r := range response.Results {
		if seen[r.URL] {
			t.Errorf("duplicate URL %q survived dedup", r.URL)
		}
		seen[r.URL] = true
	}

	// The duplicate kept the better (google, rank 1) entry and merged
	// the other engine's snippet.
	for _, r := range response.Results {
		if r.URL == "http://x.test/a" {
			if r.Rank != 1 {
				t.Errorf("kept rank = %d, want 1", r.Rank)
			}
			if r.Snippet == "anything from google" {
				t.Error("bing snippet was not merged")
			}
		}
	}
}

func TestSearch_ThresholdFiltersWeakResults(t *testing.T) {
	provider := &mockProvider{
		name: "google",
		results: []search.ProviderResult{
			// Strong: rank 1, full token overlap.
			{URL: "http://x.test/strong", Title: "golang concurrency guide", Snippet: "golang concurrency", Rank: 1},
			// Weak: deep rank, zero overlap.
			{URL: "http://x.test/weak", Title: "unrelated", Snippet: "nothing relevant", Rank: 50},
		},
	}

	opts := search.DefaultDispatcherOptions()
	opts.FilterThreshold = 0.4
	d := search.NewDispatcher([]search.Provider{provider}, nil, logging.Nop(), opts)

	response, err := d.Search(context.Background(), "golang concurrency", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(response.Results) != 1 {
		t.Fatalf("results = %d, want 1 (weak result filtered)", len(response.Results))
	}
	if response.Results[0].URL != "http://x.test/strong" {
		t.Errorf("kept %q, want the strong result", response.Results[0].URL)
	}
}

func TestSearch_PartialResultsWhenOneProviderFails(t *testing.T) {
	good := &mockProvider{
		name: "google",
		results: []search.ProviderResult{
			{URL: "http://x.test/a", Title: "anything a", Snippet: "anything", Rank: 1},
		},
	}
	bad := &mockProvider{name: "bing", err: errors.New("boom")}

	d := newDispatcher(good, bad)
	response, err := d.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(response.Results) != 1 {
		t.Errorf("results = %d, want 1 from the healthy provider", len(response.Results))
	}
	if response.Reason != "" {
		t.Errorf("reason = %q, want empty (partial success is success)", response.Reason)
	}
}

func TestSearch_AllProvidersFailing(t *testing.T) {
	d := newDispatcher(
		&mockProvider{name: "google", err: errors.New("boom")},
		&mockProvider{name: "bing", err: errors.New("boom")},
	)
	response, err := d.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatal(err)
	}
	if response.Reason != "all providers failed" {
		t.Errorf("reason = %q", response.Reason)
	}
}

func TestSearch_DeadlineYieldsPartialResults(t *testing.T) {
	fast := &mockProvider{
		name: "google",
		results: []search.ProviderResult{
			{URL: "http://x.test/fast", Title: "anything fast", Snippet: "anything", Rank: 1},
		},
	}
	slow := &mockProvider{name: "bing", delay: 5 * time.Second}

	opts := search.DefaultDispatcherOptions()
	opts.Deadline = 100 * time.Millisecond
	d := search.NewDispatcher([]search.Provider{fast, slow}, nil, logging.Nop(), opts)

	start := time.Now()
	response, err := d.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("dispatch took %v, deadline was not enforced", elapsed)
	}
	if len(response.Results) != 1 {
		t.Errorf("results = %d, want the fast provider's result", len(response.Results))
	}
}

func TestSearch_QuotaExhaustionDropsProvider(t *testing.T) {
	provider := &mockProvider{
		name: "google",
		results: []search.ProviderResult{
			{URL: "http://x.test/a", Title: "anything", Snippet: "anything", Rank: 1},
		},
	}

	opts := search.DefaultDispatcherOptions()
	opts.HourlyLimit = 2
	d := search.NewDispatcher([]search.Provider{provider}, nil, logging.Nop(), opts)

	for i := 0; i < 2; i++ {
		if _, err := d.Search(context.Background(), "anything", 10); err != nil {
			t.Fatal(err)
		}
	}

	response, err := d.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatal(err)
	}
	if response.Reason != "all providers out of quota" {
		t.Errorf("reason = %q, want quota exhaustion", response.Reason)
	}
	if provider.calls != 2 {
		t.Errorf("provider called %d times, want 2", provider.calls)
	}
}

func TestSearch_TruncatesToMaxResults(t *testing.T) {
	var results []search.ProviderResult
	for i := 1; i <= 8; i++ {
		results = append(results, search.ProviderResult{
			URL:     "http://x.test/" + string(rune('a'+i)),
			Title:   "anything result",
			Snippet: "anything",
			Rank:    i,
		})
	}
	d := newDispatcher(&mockProvider{name: "google", results: results})

	response, err := d.Search(context.Background(), "anything", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(response.Results) != 3 {
		t.Errorf("results = %d, want 3", len(response.Results))
	}
}

package frontier_test

import (
	"net/url"
	"testing"

	"github.com/rohmanhakim/lore-crawler/internal/frontier"
)

func u(t *testing.T, raw string) url.URL {
	t.Helper()
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return *parsed
}

func TestFrontier_BFSOrderByDepth(t *testing.T) {
	f := frontier.NewCrawlFrontier()

	// Submitted out of order on purpose.
	f.Submit(u(t, "http://example.test/deep"), 2)
	f.Submit(u(t, "http://example.test/"), 0)
	f.Submit(u(t, "http://example.test/mid"), 1)

	depths := []int{}
	for {
		token, ok := f.Next()
		if !ok {
			break
		}
		depths = append(depths, token.Depth())
	}

	want := []int{0, 1, 2}
	if len(depths) != len(want) {
		t.Fatalf("visited %d URLs, want %d", len(depths), len(want))
	}
	for i := range want {
		if depths[i] != want[i] {
			t.Errorf("visit %d at depth %d, want %d", i, depths[i], want[i])
		}
	}
}

func TestFrontier_DeterministicWithinDepth(t *testing.T) {
	order := func(submitOrder []string) []string {
		f := frontier.NewCrawlFrontier()
		for _, raw := range submitOrder {
			f.Submit(u(t, raw), 1)
		}
		var visited []string
		for {
			token, ok := f.Next()
			if !ok {
				break
			}
			urlCopy := token.URL()
			visited = append(visited, urlCopy.String())
		}
		return visited
	}

	urls := []string{
		"http://example.test/a",
		"http://example.test/b",
		"http://example.test/c",
	}
	reversed := []string{urls[2], urls[1], urls[0]}

	first := order(urls)
	second := order(reversed)

	if len(first) != len(second) {
		t.Fatalf("visit counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("position %d differs: %q vs %q (order must not depend on submission order)", i, first[i], second[i])
		}
	}
}

func TestFrontier_DoesNotAllowDuplicateURL(t *testing.T) {
	f := frontier.NewCrawlFrontier()

	if !f.Submit(u(t, "http://example.test/a"), 0) {
		t.Fatal("first submit rejected")
	}
	if f.Submit(u(t, "http://example.test/a"), 1) {
		t.Error("duplicate URL admitted")
	}
	// Equivalent spellings collapse to one canonical entry.
	if f.Submit(u(t, "HTTP://EXAMPLE.test/a#frag"), 1) {
		t.Error("canonically equal URL admitted")
	}

	if f.Len() != 1 {
		t.Errorf("queue length = %d, want 1", f.Len())
	}
}

func TestFrontier_ContentDedup(t *testing.T) {
	f := frontier.NewCrawlFrontier()

	if f.ContentSeen("hash-1") {
		t.Error("fresh hash reported as seen")
	}
	f.MarkContentSeen("hash-1")
	if !f.ContentSeen("hash-1") {
		t.Error("marked hash not reported as seen")
	}
}

func TestFrontier_VisitedCount(t *testing.T) {
	f := frontier.NewCrawlFrontier()
	f.Submit(u(t, "http://example.test/a"), 0)
	f.Submit(u(t, "http://example.test/b"), 0)

	f.Next()
	if f.VisitedCount() != 1 {
		t.Errorf("visited = %d, want 1", f.VisitedCount())
	}
	f.Next()
	if f.VisitedCount() != 2 {
		t.Errorf("visited = %d, want 2", f.VisitedCount())
	}
}

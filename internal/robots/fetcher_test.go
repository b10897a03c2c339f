package robots_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/rohmanhakim/lore-crawler/internal/logging"
	"github.com/rohmanhakim/lore-crawler/internal/robots"
)

func target(t *testing.T, server *httptest.Server, path string) url.URL {
	t.Helper()
	u, err := url.Parse(server.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	return *u
}

func TestDecide_AllowAndDisallow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /admin\nAllow: /\n")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	robot := robots.NewCachedRobot(logging.Nop())
	robot.Init("lore-crawler/1.0")

	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/docs/page", true},
		{"/admin", false},
		{"/admin/users", false},
	}

	for _, tt := range tests {
		decision, err := robot.Decide(context.Background(), target(t, server, tt.path))
		if err != nil {
			t.Fatalf("Decide(%q) error: %v", tt.path, err)
		}
		if decision.Allowed != tt.want {
			t.Errorf("Decide(%q) = %v, want %v", tt.path, decision.Allowed, tt.want)
		}
	}
}

func TestDecide_CrawlDelayDirective(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nCrawl-delay: 2\n")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	robot := robots.NewCachedRobot(logging.Nop())
	robot.Init("lore-crawler/1.0")

	decision, err := robot.Decide(context.Background(), target(t, server, "/page"))
	if err != nil {
		t.Fatal(err)
	}
	if decision.CrawlDelay.Seconds() != 2 {
		t.Errorf("crawl delay = %v, want 2s", decision.CrawlDelay)
	}
}

func TestDecide_CachesPolicyPerHost(t *testing.T) {
	var robotsHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		robotsHits.Add(1)
		fmt.Fprint(w, "User-agent: *\nAllow: /\n")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	robot := robots.NewCachedRobot(logging.Nop())
	robot.Init("lore-crawler/1.0")

	for i := 0; i < 5; i++ {
		if _, err := robot.Decide(context.Background(), target(t, server, fmt.Sprintf("/p%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	if robotsHits.Load() != 1 {
		t.Errorf("robots.txt fetched %d times, want 1 (cached)", robotsHits.Load())
	}
}

func TestDecide_MissingRobotsAllowsAll(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	robot := robots.NewCachedRobot(logging.Nop())
	robot.Init("lore-crawler/1.0")

	decision, err := robot.Decide(context.Background(), target(t, server, "/anything"))
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed {
		t.Error("404 robots.txt should allow everything")
	}
}

func TestDecide_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	robot := robots.NewCachedRobot(logging.Nop())
	robot.Init("lore-crawler/1.0")

	_, err := robot.Decide(context.Background(), target(t, server, "/page"))
	if err == nil {
		t.Fatal("expected error on 5xx robots fetch")
	}
	if !err.IsRetryable() {
		t.Error("5xx robots failure should be retryable")
	}
}

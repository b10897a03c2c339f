package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/lore-crawler/internal/categorize"
	"github.com/rohmanhakim/lore-crawler/internal/crawler"
	"github.com/rohmanhakim/lore-crawler/internal/fetcher"
	"github.com/rohmanhakim/lore-crawler/internal/logging"
	"github.com/rohmanhakim/lore-crawler/internal/robots"
	"github.com/rohmanhakim/lore-crawler/internal/score"
	"github.com/rohmanhakim/lore-crawler/internal/store"
	"github.com/rohmanhakim/lore-crawler/pkg/failure"
	"github.com/rohmanhakim/lore-crawler/pkg/hashutil"
	"github.com/rohmanhakim/lore-crawler/pkg/urlutil"
)

func newTestCrawler(t *testing.T) (*crawler.Crawler, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "crawl.db"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine := categorize.NewEngine(logging.Nop())
	scorer := score.NewScorer(st, logging.Nop())
	robot := robots.NewCachedRobot(logging.Nop())
	robot.Init("test-agent")

	c := crawler.New(st, engine, scorer, robot, logging.Nop(), "test-agent", fetcher.DefaultOptions())
	return c, st
}

func jobConfig(maxPages, maxDepth int) crawler.CrawlConfig {
	return crawler.CrawlConfig{
		MaxPages:      maxPages,
		MaxDepth:      maxDepth,
		FollowLinks:   true,
		CrawlDelay:    0,
		RespectRobots: false,
		SameHostOnly:  true,
	}
}

func htmlPage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}
}

func pageIDFor(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	canonical := urlutil.Canonicalize(*u)
	return hashutil.PageID(canonical.String())
}

func TestRun_SinglePageCrawl(t *testing.T) {
	server := httptest.NewServer(htmlPage("<html><body><h1>Alpha</h1><p>Definition of Alpha.</p></body></html>"))
	defer server.Close()

	c, st := newTestCrawler(t)
	ctx := context.Background()

	metrics, err := c.Run(ctx, "job-1", server.URL+"/one", jobConfig(1, 0))
	require.Nil(t, err)
	require.Equal(t, 1, metrics.PagesFetched)
	require.Equal(t, 1, metrics.BitsEmitted)

	page, getErr := st.GetPage(ctx, pageIDFor(t, server.URL+"/one"))
	require.NoError(t, getErr)
	require.Equal(t, "Alpha", page.Title)
	require.Equal(t, store.PageStatusFetched, page.Status)

	bits, queryErr := st.QueryBits(ctx, store.BitFilter{})
	require.NoError(t, queryErr)
	require.Len(t, bits, 1)

	bit := bits[0]
	require.Equal(t, store.ContentTypeConcept, bit.ContentType)
	require.Equal(t, "uncategorized", bit.Category)
	require.GreaterOrEqual(t, bit.ImportanceScore, 0.3)
	require.LessOrEqual(t, bit.ImportanceScore, 0.7)
	require.GreaterOrEqual(t, bit.ConfidenceScore, 0.5)
	require.LessOrEqual(t, bit.ConfidenceScore, 1.0)
}

func TestRun_TwoPageBFSWithDedup(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	var seedHits atomic.Int32
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		seedHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>Seed</h1><p>Seed page content paragraph.</p>
			<a href="/a">a</a><a href="/b">b</a></body></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>A</h1><p>Page A content paragraph here.</p>
			<a href="/">back</a></body></html>`)
	})
	mux.HandleFunc("/b", htmlPage(`<html><body><h1>B</h1><p>Page B content paragraph here.</p></body></html>`))

	c, st := newTestCrawler(t)
	metrics, err := c.Run(context.Background(), "job-2", server.URL+"/", jobConfig(10, 2))
	require.Nil(t, err)

	require.Equal(t, 3, metrics.PagesFetched, "three distinct pages, seed not re-fetched")
	require.Equal(t, int32(1), seedHits.Load(), "the link back to the seed must not re-fetch it")

	stats, statsErr := st.Statistics(context.Background())
	require.NoError(t, statsErr)
	require.Equal(t, 3, stats.TotalPages)
}

func TestRun_MaxDepthZeroDoesNotFollowLinks(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	var childHits atomic.Int32
	mux.HandleFunc("/", htmlPage(`<html><body><h1>Root</h1><p>Root paragraph with a link below.</p>
		<a href="/child">child</a></body></html>`))
	mux.HandleFunc("/child", func(w http.ResponseWriter, r *http.Request) {
		childHits.Add(1)
	})

	c, _ := newTestCrawler(t)
	metrics, err := c.Run(context.Background(), "job-3", server.URL+"/", jobConfig(10, 0))
	require.Nil(t, err)

	require.Equal(t, 1, metrics.PagesFetched)
	require.Equal(t, int32(0), childHits.Load(), "max_depth=0 must not traverse outbound links")
}

func TestRun_PageBudgetBound(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>Page %s</h1><p>Unique paragraph for %s page.</p>
			<a href="/l1">1</a><a href="/l2">2</a><a href="/l3">3</a><a href="/l4">4</a></body></html>`,
			r.URL.Path, r.URL.Path)
	})

	c, _ := newTestCrawler(t)
	metrics, err := c.Run(context.Background(), "job-4", server.URL+"/", jobConfig(2, 3))
	require.Nil(t, err)
	require.LessOrEqual(t, metrics.PagesFetched, 2)
}

func TestRun_EmptySeedIsBadInput(t *testing.T) {
	c, _ := newTestCrawler(t)
	_, err := c.Run(context.Background(), "job-5", "   ", jobConfig(1, 0))
	require.NotNil(t, err)
	require.Equal(t, failure.KindBadInput, failure.KindOf(err))
}

func TestRun_RobotsDenialOfSeed(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	var pageHits atomic.Int32
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
	})

	c, st := newTestCrawler(t)
	cfg := jobConfig(5, 1)
	cfg.RespectRobots = true

	metrics, err := c.Run(context.Background(), "job-6", server.URL+"/", cfg)
	require.Nil(t, err, "a robots denial completes the job, it does not fail it")
	require.Equal(t, 0, metrics.PagesFetched)
	require.Equal(t, int32(0), pageHits.Load())

	page, getErr := st.GetPage(context.Background(), pageIDFor(t, server.URL+"/"))
	require.NoError(t, getErr)
	require.Equal(t, store.PageStatusSkippedRobot, page.Status)
}

func TestRun_IdenticalContentDedup(t *testing.T) {
	sameBody := `<html><body><h1>Mirror</h1><p>The very same paragraph on two URLs.</p></body></html>`
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", htmlPage(`<html><body><h1>Index</h1><p>Index page linking two mirrors.</p>
		<a href="/a">a</a><a href="/b">b</a></body></html>`))
	mux.HandleFunc("/a", htmlPage(sameBody))
	mux.HandleFunc("/b", htmlPage(sameBody))

	c, st := newTestCrawler(t)
	ctx := context.Background()
	_, err := c.Run(ctx, "job-7", server.URL+"/", jobConfig(10, 1))
	require.Nil(t, err)

	// The second mirror is recorded but produces no bits: the bit set of
	// a document ingested twice is identical, with no duplicate bit ids.
	bits, queryErr := st.QueryBits(ctx, store.BitFilter{Limit: 100})
	require.NoError(t, queryErr)

	seen := map[string]bool{}
	mirrorBits := 0
	for _, b := range bits {
		require.False(t, seen[b.BitID], "duplicate bit_id %s", b.BitID)
		seen[b.BitID] = true
		if b.Content == "The very same paragraph on two URLs." {
			mirrorBits++
		}
	}
	require.Equal(t, 1, mirrorBits, "identical content must be ingested once")
}

func TestRun_RepeatedCrawlIsIdempotent(t *testing.T) {
	server := httptest.NewServer(htmlPage(`<html><body><h1>Stable</h1><p>Stable paragraph that never changes.</p></body></html>`))
	defer server.Close()

	c, st := newTestCrawler(t)
	ctx := context.Background()

	_, err := c.Run(ctx, "job-8a", server.URL+"/", jobConfig(1, 0))
	require.Nil(t, err)
	_, err = c.Run(ctx, "job-8b", server.URL+"/", jobConfig(1, 0))
	require.Nil(t, err)

	bits, queryErr := st.QueryBits(ctx, store.BitFilter{Limit: 100})
	require.NoError(t, queryErr)
	require.Len(t, bits, 1, "re-crawling the same document must not duplicate bits")

	stats, statsErr := st.Statistics(ctx)
	require.NoError(t, statsErr)
	require.Equal(t, 1, stats.TotalPages)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	server := httptest.NewServer(htmlPage(`<html><body><h1>X</h1><p>Paragraph text goes here now.</p></body></html>`))
	defer server.Close()

	c, _ := newTestCrawler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	metrics, err := c.Run(ctx, "job-9", server.URL+"/", jobConfig(5, 1))
	require.NotNil(t, err)
	require.Equal(t, failure.KindCancelled, failure.KindOf(err))
	require.Equal(t, 0, metrics.PagesFetched)
}

func TestRun_SameHostOnlyIgnoresForeignLinks(t *testing.T) {
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("foreign host must not be fetched")
	}))
	defer foreign.Close()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/", htmlPage(fmt.Sprintf(
		`<html><body><h1>Home</h1><p>Home paragraph with a foreign link.</p>
		<a href="%s/out">out</a></body></html>`, foreign.URL)))

	c, _ := newTestCrawler(t)
	metrics, err := c.Run(context.Background(), "job-10", server.URL+"/", jobConfig(10, 2))
	require.Nil(t, err)
	require.Equal(t, 1, metrics.PagesFetched)
}

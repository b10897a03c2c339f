package tools_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/lore-crawler/internal/categorize"
	"github.com/rohmanhakim/lore-crawler/internal/config"
	"github.com/rohmanhakim/lore-crawler/internal/crawler"
	"github.com/rohmanhakim/lore-crawler/internal/fetcher"
	"github.com/rohmanhakim/lore-crawler/internal/logging"
	"github.com/rohmanhakim/lore-crawler/internal/robots"
	"github.com/rohmanhakim/lore-crawler/internal/scheduler"
	"github.com/rohmanhakim/lore-crawler/internal/score"
	"github.com/rohmanhakim/lore-crawler/internal/search"
	"github.com/rohmanhakim/lore-crawler/internal/store"
	"github.com/rohmanhakim/lore-crawler/internal/tools"
)

// newCore builds an isolated Core on a temp store, with no search
// providers and a scheduler that is not started (queued jobs stay
// queued, which is all these tests need).
func newCore(t *testing.T) *tools.Core {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "core.db"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine := categorize.NewEngine(logging.Nop())
	scorer := score.NewScorer(st, logging.Nop())
	robot := robots.NewCachedRobot(logging.Nop())
	robot.Init("test-agent")
	crawl := crawler.New(st, engine, scorer, robot, logging.Nop(), "test-agent", fetcher.DefaultOptions())
	sched := scheduler.New(st, crawl, logging.Nop(), scheduler.DefaultOptions())
	dispatcher := search.NewDispatcher(nil, st, logging.Nop(), search.DefaultDispatcherOptions())

	return tools.NewCore(st, crawl, sched, dispatcher, config.Default(), logging.Nop())
}

func seedBit(t *testing.T, core *tools.Core, id, content string) {
	t.Helper()
	ctx := context.Background()
	page := store.Page{
		PageID:      "page-" + id,
		URL:         "http://example.test/" + id,
		Domain:      "example.test",
		FetchedAt:   time.Now(),
		ContentHash: "hash-" + id,
		Status:      store.PageStatusFetched,
	}
	require.NoError(t, core.Store.UpsertPage(ctx, page))
	_, err := core.Store.InsertBits(ctx, []store.LearningBit{{
		BitID:           "bit-" + id,
		PageID:          page.PageID,
		Content:         content,
		ContentType:     store.ContentTypeConcept,
		Category:        "programming",
		ComplexityLevel: store.ComplexityBeginner,
		ImportanceScore: 0.6,
		ConfidenceScore: 0.7,
		ExtractedAt:     time.Now(),
	}})
	require.NoError(t, err)
}

func TestCrawlWebsite_RequiresURL(t *testing.T) {
	core := newCore(t)
	_, err := core.CrawlWebsite(context.Background(), tools.Args{})
	require.Error(t, err)
}

func TestStartBackgroundCrawl_QueuedAck(t *testing.T) {
	core := newCore(t)

	result, err := core.StartBackgroundCrawl(context.Background(), tools.Args{
		"seed_url": "http://example.test/",
	})
	require.NoError(t, err)
	require.Equal(t, "queued", result["status"])
	require.NotEmpty(t, result["job_id"])

	// The ack is visible through the status surface.
	status, err := core.GetBackgroundCrawlStatus(context.Background(), tools.Args{
		"job_id": result["job_id"].(string),
	})
	require.NoError(t, err)
	require.Equal(t, 1, status["count"])
}

func TestStopBackgroundCrawl_QueuedJobCancels(t *testing.T) {
	core := newCore(t)

	started, err := core.StartBackgroundCrawl(context.Background(), tools.Args{
		"seed_url": "http://example.test/",
	})
	require.NoError(t, err)
	jobID := started["job_id"].(string)

	_, err = core.StopBackgroundCrawl(context.Background(), tools.Args{"job_id": jobID})
	require.NoError(t, err)

	status, err := core.GetBackgroundCrawlStatus(context.Background(), tools.Args{"job_id": jobID})
	require.NoError(t, err)
	job := status["job"].(map[string]any)
	require.Equal(t, string(store.JobStateCancelled), job["state"])
}

func TestGetLearningBits_TruncatesLongContent(t *testing.T) {
	core := newCore(t)
	long := strings.Repeat("a", 600)
	seedBit(t, core, "long", long)

	result, err := core.GetLearningBits(context.Background(), tools.Args{})
	require.NoError(t, err)

	bits := result["learning_bits"].([]map[string]any)
	require.Len(t, bits, 1)
	content := bits[0]["content"].(string)
	require.Len(t, content, 503, "500 chars plus ellipsis")
	require.True(t, strings.HasSuffix(content, "..."))
}

func TestGetLearningBits_BumpsReferenceCounts(t *testing.T) {
	core := newCore(t)
	seedBit(t, core, "ref", "content to be retrieved")

	_, err := core.GetLearningBits(context.Background(), tools.Args{})
	require.NoError(t, err)

	bits, err := core.Store.QueryBits(context.Background(), store.BitFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, bits[0].ReferenceCount)
}

func TestGetLearningBits_RejectsBadMinImportance(t *testing.T) {
	core := newCore(t)
	_, err := core.GetLearningBits(context.Background(), tools.Args{"min_importance": 1.5})
	require.Error(t, err)
}

func TestSearchLearningBits(t *testing.T) {
	core := newCore(t)
	seedBit(t, core, "gc", "goroutines communicate over channels")
	seedBit(t, core, "other", "unrelated gardening material")

	result, err := core.SearchLearningBits(context.Background(), tools.Args{"query": "goroutines"})
	require.NoError(t, err)
	require.Equal(t, 1, result["count"])

	_, err = core.SearchLearningBits(context.Background(), tools.Args{})
	require.Error(t, err, "missing query is bad input")
}

func TestAddCategorizationRule_RoundTrip(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()

	_, err := core.AddCategorizationRule(ctx, tools.Args{
		"rule_name": "my-rule",
		"rule_type": "keyword",
		"pattern":   "kubernetes",
		"category":  "devops",
	})
	require.NoError(t, err)

	listed, err := core.GetCategorizationRules(ctx, nil)
	require.NoError(t, err)
	rules := listed["rules"].([]map[string]any)
	require.Len(t, rules, 1)
	require.Equal(t, "my-rule", rules[0]["rule_name"])
	require.Equal(t, true, rules[0]["active"])

	// Same name again must fail.
	_, err = core.AddCategorizationRule(ctx, tools.Args{
		"rule_name": "my-rule",
		"rule_type": "keyword",
		"pattern":   "other",
		"category":  "devops",
	})
	require.Error(t, err)
}

func TestAddCategorizationRule_Validation(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()

	cases := []tools.Args{
		{"rule_type": "keyword", "pattern": "x", "category": "c"},                            // missing name
		{"rule_name": "r", "rule_type": "telepathy", "pattern": "x", "category": "c"},        // unknown type
		{"rule_name": "r", "rule_type": "keyword", "category": "c"},                          // missing pattern
		{"rule_name": "r", "rule_type": "keyword", "pattern": "x"},                           // missing category
		{"rule_name": "r", "rule_type": "keyword", "pattern": "x", "category": "c", "confidence_boost": 2.0}, // boost range
	}
	for i, args := range cases {
		if _, err := core.AddCategorizationRule(ctx, args); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestSearchWeb_FallbackWithoutProviders(t *testing.T) {
	core := newCore(t)

	result, err := core.SearchWeb(context.Background(), tools.Args{"query": "anything", "max_results": 10})
	require.NoError(t, err)
	require.Equal(t, 0, result["count"])
	require.Equal(t, "no providers", result["reason"])
}

func TestGetLearningStatistics(t *testing.T) {
	core := newCore(t)
	seedBit(t, core, "s1", "first seeded content bit")

	result, err := core.GetLearningStatistics(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, result["total_learning_bits"])
	require.Equal(t, 1, result["total_crawled_pages"])
}

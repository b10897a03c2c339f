package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/lore-crawler/internal/logging"
	"github.com/rohmanhakim/lore-crawler/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testPage(id string) store.Page {
	return store.Page{
		PageID:      "page-" + id,
		URL:         "http://example.test/" + id,
		Domain:      "example.test",
		Depth:       1,
		FetchedAt:   time.Now(),
		ContentHash: "hash-" + id,
		Status:      store.PageStatusFetched,
		Title:       "Page " + id,
		Language:    "en",
		ByteLength:  128,
	}
}

func testBit(id, pageID string) store.LearningBit {
	return store.LearningBit{
		BitID:           "bit-" + id,
		PageID:          pageID,
		Content:         "content about topic " + id,
		Context:         "context " + id,
		ContentType:     store.ContentTypeConcept,
		Category:        "programming",
		Subcategory:     "go",
		ComplexityLevel: store.ComplexityBeginner,
		ImportanceScore: 0.6,
		ConfidenceScore: 0.7,
		Tags:            []string{"tag-a"},
		ExtractedAt:     time.Now(),
	}
}

func TestOpen_MigrationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")

	first, err := store.Open(path, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := store.Open(path, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestUpsertPage_SameHashOnlyTouchesLastSeen(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	page := testPage("a")
	require.NoError(t, s.UpsertPage(ctx, page))

	later := page
	later.FetchedAt = page.FetchedAt.Add(time.Hour)
	later.Title = "Changed Title That Must Not Stick"
	require.NoError(t, s.UpsertPage(ctx, later))

	got, err := s.GetPage(ctx, page.PageID)
	require.NoError(t, err)
	require.Equal(t, "Page a", got.Title, "unchanged content must not rewrite the row")
	require.True(t, got.LastSeen.After(got.FetchedAt), "last_seen should advance")
}

func TestUpsertPage_ChangedHashUpdatesRow(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	page := testPage("a")
	require.NoError(t, s.UpsertPage(ctx, page))

	changed := page
	changed.ContentHash = "different"
	changed.Title = "New Title"
	require.NoError(t, s.UpsertPage(ctx, changed))

	got, err := s.GetPage(ctx, page.PageID)
	require.NoError(t, err)
	require.Equal(t, "New Title", got.Title)
	require.Equal(t, "different", got.ContentHash)
}

func TestInsertBits_IdempotentOnBitID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	page := testPage("a")
	require.NoError(t, s.UpsertPage(ctx, page))

	bits := []store.LearningBit{testBit("1", page.PageID), testBit("2", page.PageID)}

	inserted, err := s.InsertBits(ctx, bits)
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	again, err := s.InsertBits(ctx, bits)
	require.NoError(t, err)
	require.Equal(t, 0, again, "re-inserting the same bits must be a no-op")

	count, err := s.BitCountForPage(ctx, page.PageID)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestInsertBits_RejectsOutOfRangeScores(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertPage(ctx, testPage("a")))

	bad := testBit("1", "page-a")
	bad.ImportanceScore = 1.5
	_, err := s.InsertBits(ctx, []store.LearningBit{bad})
	require.Error(t, err)

	bad = testBit("2", "page-a")
	bad.Content = ""
	_, err = s.InsertBits(ctx, []store.LearningBit{bad})
	require.Error(t, err)
}

func TestQueryBits_Filters(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	page := testPage("a")
	require.NoError(t, s.UpsertPage(ctx, page))

	goBit := testBit("1", page.PageID)
	pyBit := testBit("2", page.PageID)
	pyBit.Subcategory = "python"
	pyBit.ContentType = store.ContentTypeCode
	pyBit.ImportanceScore = 0.9
	_, err := s.InsertBits(ctx, []store.LearningBit{goBit, pyBit})
	require.NoError(t, err)

	bits, err := s.QueryBits(ctx, store.BitFilter{Category: "programming"})
	require.NoError(t, err)
	require.Len(t, bits, 2)
	// Importance DESC ordering.
	require.Equal(t, "bit-2", bits[0].BitID)

	bits, err = s.QueryBits(ctx, store.BitFilter{ContentType: "code"})
	require.NoError(t, err)
	require.Len(t, bits, 1)

	bits, err = s.QueryBits(ctx, store.BitFilter{MinImportance: 0.8})
	require.NoError(t, err)
	require.Len(t, bits, 1)

	bits, err = s.QueryBits(ctx, store.BitFilter{Category: "nonexistent"})
	require.NoError(t, err)
	require.Empty(t, bits)
}

func TestSearchBits_FullText(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	page := testPage("a")
	require.NoError(t, s.UpsertPage(ctx, page))

	goroutines := testBit("1", page.PageID)
	goroutines.Content = "goroutines are lightweight threads managed by the runtime"
	channels := testBit("2", page.PageID)
	channels.Content = "channels synchronize goroutines by passing values"
	unrelated := testBit("3", page.PageID)
	unrelated.Content = "completely different gardening subject matter"
	_, err := s.InsertBits(ctx, []store.LearningBit{goroutines, channels, unrelated})
	require.NoError(t, err)

	hits, err := s.SearchBits(ctx, "goroutines", "", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	hits, err = s.SearchBits(ctx, "gardening", "", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	_, err = s.SearchBits(ctx, "   ", "", 10)
	require.Error(t, err, "blank query is bad input")
}

func TestSoftDeleteHidesBit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	page := testPage("a")
	require.NoError(t, s.UpsertPage(ctx, page))

	bit := testBit("1", page.PageID)
	_, err := s.InsertBits(ctx, []store.LearningBit{bit})
	require.NoError(t, err)

	require.NoError(t, s.SoftDeleteBit(ctx, bit.BitID))

	bits, err := s.QueryBits(ctx, store.BitFilter{})
	require.NoError(t, err)
	require.Empty(t, bits)

	hits, err := s.SearchBits(ctx, "content", "", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestIncrementBitReferences(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	page := testPage("a")
	require.NoError(t, s.UpsertPage(ctx, page))

	bit := testBit("1", page.PageID)
	_, err := s.InsertBits(ctx, []store.LearningBit{bit})
	require.NoError(t, err)

	require.NoError(t, s.IncrementBitReferences(ctx, []string{bit.BitID}))
	require.NoError(t, s.IncrementBitReferences(ctx, []string{bit.BitID}))

	bits, err := s.QueryBits(ctx, store.BitFilter{})
	require.NoError(t, err)
	require.Len(t, bits, 1)
	require.Equal(t, 2, bits[0].ReferenceCount)
}

func TestCrossRefs_IdempotentOnTriple(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	page := testPage("a")
	require.NoError(t, s.UpsertPage(ctx, page))
	_, err := s.InsertBits(ctx, []store.LearningBit{testBit("1", page.PageID), testBit("2", page.PageID)})
	require.NoError(t, err)

	ref := store.CrossReference{
		SourceBitID:  "bit-1",
		TargetBitID:  "bit-2",
		RelationType: store.RelationRelated,
		Strength:     0.5,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, s.InsertCrossRefs(ctx, []store.CrossReference{ref, ref}))

	refs, err := s.ListCrossRefs(ctx, "bit-1")
	require.NoError(t, err)
	require.Len(t, refs, 1)
}

func TestRules_InsertListDeactivate(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	rule := store.CategorizationRule{
		RuleName:        "py",
		RuleType:        store.RuleTypeKeyword,
		Pattern:         "python",
		Category:        "programming",
		Subcategory:     "python",
		ConfidenceBoost: 0.1,
		Priority:        2,
		Active:          true,
	}
	require.NoError(t, s.InsertRule(ctx, rule))

	// Round-trip: the created rule is listed.
	rules, err := s.ListRules(ctx, true)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, "py", rules[0].RuleName)
	require.True(t, rules[0].Active)

	// Duplicate names are rejected.
	err = s.InsertRule(ctx, rule)
	require.Error(t, err)
	var storeErr *store.StoreError
	require.True(t, errors.As(err, &storeErr))
	require.Equal(t, store.ErrCauseConstraint, storeErr.Cause)

	// Deactivation hides from active listing, keeps history.
	require.NoError(t, s.DeactivateRule(ctx, "py"))
	active, err := s.ListRules(ctx, true)
	require.NoError(t, err)
	require.Empty(t, active)
	all, err := s.ListRules(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestRules_OrderedByPriorityThenAge(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, r := range []store.CategorizationRule{
		{RuleName: "low", RuleType: store.RuleTypeKeyword, Pattern: "a", Category: "c", Priority: 9, Active: true},
		{RuleName: "high", RuleType: store.RuleTypeKeyword, Pattern: "b", Category: "c", Priority: 1, Active: true},
		{RuleName: "mid", RuleType: store.RuleTypeKeyword, Pattern: "c", Category: "c", Priority: 5, Active: true},
	} {
		require.NoError(t, s.UpsertRule(ctx, r))
	}

	rules, err := s.ListRules(ctx, true)
	require.NoError(t, err)
	require.Equal(t, []string{"high", "mid", "low"},
		[]string{rules[0].RuleName, rules[1].RuleName, rules[2].RuleName})
}

func TestJobs_RecordUpdateList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	job := store.CrawlJob{
		JobID:     "job-1",
		SeedURL:   "http://example.test/",
		State:     store.JobStateQueued,
		Priority:  store.PriorityNormal,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.RecordJob(ctx, job))

	// Duplicate ids are rejected.
	require.Error(t, s.RecordJob(ctx, job))

	job.State = store.JobStateCompleted
	job.Metrics = store.JobMetrics{
		PagesFetched: 3, BitsEmitted: 7, BytesDownloaded: 1024,
		ErrorsByKind: map[string]int{"transient-network": 2},
	}
	require.NoError(t, s.UpdateJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, store.JobStateCompleted, got.State)
	require.Equal(t, 3, got.Metrics.PagesFetched)
	require.Equal(t, 2, got.Metrics.ErrorsByKind["transient-network"])

	completed, err := s.ListJobs(ctx, store.JobStateCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)

	queued, err := s.ListJobs(ctx, store.JobStateQueued)
	require.NoError(t, err)
	require.Empty(t, queued)
}

func TestThresholds_DefaultsAndRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	defaults, err := s.GetThresholds(ctx)
	require.NoError(t, err)
	require.InDelta(t, 0.3, defaults.MinImportance, 0.001)

	updated := store.Thresholds{
		MinImportance:   0.35,
		MinConfidence:   0.4,
		CategoryBonuses: map[string]float64{"programming": 0.05},
	}
	require.NoError(t, s.SetThresholds(ctx, updated))

	got, err := s.GetThresholds(ctx)
	require.NoError(t, err)
	require.InDelta(t, 0.35, got.MinImportance, 0.001)
	require.InDelta(t, 0.05, got.CategoryBonuses["programming"], 0.001)

	require.Error(t, s.SetThresholds(ctx, store.Thresholds{MinImportance: 1.5}))
}

func TestStatistics(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	page := testPage("a")
	require.NoError(t, s.UpsertPage(ctx, page))
	bitA := testBit("1", page.PageID)
	bitB := testBit("2", page.PageID)
	bitB.Category = "databases"
	bitB.ContentType = store.ContentTypeCode
	_, err := s.InsertBits(ctx, []store.LearningBit{bitA, bitB})
	require.NoError(t, err)

	stats, err := s.Statistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalBits)
	require.Equal(t, 1, stats.TotalPages)
	require.Equal(t, 1, stats.CategoryCounts["programming"])
	require.Equal(t, 1, stats.CategoryCounts["databases"])
	require.Equal(t, 2, stats.TopDomains["example.test"])
	require.Equal(t, 2, stats.BitsLastSevenDays)
	require.InDelta(t, 0.6, stats.AvgImportance, 0.001)
}

func TestSearchLog(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	queryID, err := s.RecordSearchQuery(ctx, store.SearchQueryLog{
		Query:     "go concurrency",
		Engine:    "google",
		QueriedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Positive(t, queryID)

	require.NoError(t, s.RecordSearchResults(ctx, queryID, []store.SearchResultLog{
		{QueryID: queryID, URL: "http://example.test/a", Rank: 1, RelevanceScore: 0.9},
	}))

	seen, err := s.SeenSearchURL(ctx, "http://example.test/a")
	require.NoError(t, err)
	require.True(t, seen)

	seen, err = s.SeenSearchURL(ctx, "http://example.test/never")
	require.NoError(t, err)
	require.False(t, seen)
}

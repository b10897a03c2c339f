package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rohmanhakim/lore-crawler/internal/config"
	"github.com/rohmanhakim/lore-crawler/internal/crawler"
	"github.com/rohmanhakim/lore-crawler/internal/scheduler"
	"github.com/rohmanhakim/lore-crawler/internal/search"
	"github.com/rohmanhakim/lore-crawler/internal/store"
)

/*
Core is the explicit wiring of the pipeline: store, crawler, scheduler,
and search dispatcher held as plain references. Every tool operation
takes the Core it acts on, so tests construct an isolated Core per case
and nothing reaches for process-global state.

This package is the only layer allowed to know about all components.
*/
type Core struct {
	Store      *store.Store
	Crawler    *crawler.Crawler
	Scheduler  *scheduler.Scheduler
	Dispatcher *search.Dispatcher
	Config     config.Config

	log zerolog.Logger
}

func NewCore(
	st *store.Store,
	cr *crawler.Crawler,
	sched *scheduler.Scheduler,
	dispatcher *search.Dispatcher,
	cfg config.Config,
	log zerolog.Logger,
) *Core {
	return &Core{
		Store:      st,
		Crawler:    cr,
		Scheduler:  sched,
		Dispatcher: dispatcher,
		Config:     cfg,
		log:        log,
	}
}

// contentPreviewLimit truncates returned bit content past this length.
const contentPreviewLimit = 500

// CrawlWebsite runs a crawl synchronously, blocking until done, and
// returns page count, bit count, duration, and the job id.
func (c *Core) CrawlWebsite(ctx context.Context, args Args) (map[string]any, error) {
	seedURL := args.str("url", "")
	if seedURL == "" {
		return nil, badInput("url is required")
	}

	cfg := crawler.ConfigFrom(c.Config)
	cfg.MaxPages = args.integer("max_pages", cfg.MaxPages)
	cfg.MaxDepth = args.integer("max_depth", cfg.MaxDepth)
	cfg.FollowLinks = args.boolean("follow_links", cfg.FollowLinks)
	cfg.RespectRobots = args.boolean("respect_robots", cfg.RespectRobots)
	if delay := args.float("crawl_delay", -1); delay >= 0 {
		cfg.CrawlDelay = time.Duration(delay * float64(time.Second))
	}

	jobID := "crawl_" + uuid.NewString()
	configJSON, err := cfg.ToJSON()
	if err != nil {
		return nil, badInput("config encode failed: %v", err)
	}

	now := time.Now()
	if err := c.Store.RecordJob(ctx, store.CrawlJob{
		JobID:     jobID,
		SeedURL:   seedURL,
		Config:    configJSON,
		State:     store.JobStateRunning,
		Priority:  store.PriorityNormal,
		CreatedAt: now,
		StartedAt: now,
		Attempts:  1,
	}); err != nil {
		return nil, err
	}

	metrics, runErr := c.Crawler.Run(ctx, jobID, seedURL, cfg)
	ended := time.Now()

	state := store.JobStateCompleted
	errText := ""
	if runErr != nil {
		state = store.JobStateFailed
		errText = runErr.Error()
	}
	if err := c.Store.UpdateJob(ctx, store.CrawlJob{
		JobID:     jobID,
		SeedURL:   seedURL,
		State:     state,
		Priority:  store.PriorityNormal,
		CreatedAt: now,
		StartedAt: now,
		EndedAt:   ended,
		Attempts:  1,
		Error:     errText,
		Metrics:   metrics,
	}); err != nil {
		c.log.Warn().Err(err).Str("job_id", jobID).Msg("job finalization failed")
	}

	if runErr != nil {
		return nil, runErr
	}

	return map[string]any{
		"job_id":           jobID,
		"url":              seedURL,
		"pages_crawled":    metrics.PagesFetched,
		"bits_extracted":   metrics.BitsEmitted,
		"bytes_downloaded": metrics.BytesDownloaded,
		"duration_seconds": ended.Sub(now).Seconds(),
		"status":           string(state),
	}, nil
}

// StartBackgroundCrawl enqueues a job and acks immediately.
func (c *Core) StartBackgroundCrawl(ctx context.Context, args Args) (map[string]any, error) {
	seedURL := args.str("seed_url", "")
	if seedURL == "" {
		return nil, badInput("seed_url is required")
	}

	cfg := crawler.ConfigFrom(c.Config)
	cfg.MaxPages = args.integer("max_pages", cfg.MaxPages)
	cfg.MaxDepth = args.integer("max_depth", cfg.MaxDepth)
	cfg.FollowLinks = args.boolean("follow_links", cfg.FollowLinks)
	cfg.RespectRobots = args.boolean("respect_robots", cfg.RespectRobots)
	if delay := args.float("crawl_delay", -1); delay >= 0 {
		cfg.CrawlDelay = time.Duration(delay * float64(time.Second))
	}

	priority := store.JobPriority(args.integer("priority", int(store.PriorityNormal)))

	jobID, err := c.Scheduler.Submit(ctx, scheduler.JobSpec{
		JobID:    args.str("job_id", ""),
		SeedURL:  seedURL,
		Priority: priority,
		Config:   cfg,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"job_id": jobID,
		"status": "queued",
	}, nil
}

// GetBackgroundCrawlStatus reports one job or all jobs.
func (c *Core) GetBackgroundCrawlStatus(_ context.Context, args Args) (map[string]any, error) {
	jobID := args.str("job_id", "")
	statuses, err := c.Scheduler.Status(jobID)
	if err != nil {
		return nil, err
	}

	jobs := make([]map[string]any, 0, len(statuses))
	for _, st := range statuses {
		jobs = append(jobs, jobStatusMap(st))
	}

	result := map[string]any{"jobs": jobs, "count": len(jobs)}
	if jobID != "" && len(jobs) == 1 {
		result["job"] = jobs[0]
	}
	return result, nil
}

// StopBackgroundCrawl requests cooperative cancellation.
func (c *Core) StopBackgroundCrawl(_ context.Context, args Args) (map[string]any, error) {
	jobID := args.str("job_id", "")
	if jobID == "" {
		return nil, badInput("job_id is required")
	}
	if err := c.Scheduler.Cancel(jobID); err != nil {
		return nil, err
	}
	return map[string]any{
		"job_id": jobID,
		"status": "cancellation requested",
	}, nil
}

// GetLearningBits retrieves bits by attribute filters. Returned content
// is truncated with an ellipsis past the preview limit, and every
// returned bit has its reference count bumped.
func (c *Core) GetLearningBits(ctx context.Context, args Args) (map[string]any, error) {
	minImportance := args.float("min_importance", 0)
	if minImportance < 0 || minImportance > 1 {
		return nil, badInput("min_importance must be in [0,1], got %f", minImportance)
	}

	filter := store.BitFilter{
		Category:      args.str("category", ""),
		Subcategory:   args.str("subcategory", ""),
		ContentType:   args.str("content_type", ""),
		Complexity:    args.str("complexity_level", ""),
		MinImportance: minImportance,
		Limit:         args.integer("limit", 20),
		Offset:        args.integer("offset", 0),
	}

	bits, err := c.Store.QueryBits(ctx, filter)
	if err != nil {
		return nil, err
	}
	c.bumpReferences(ctx, bits)

	return map[string]any{
		"learning_bits": bitMaps(bits),
		"count":         len(bits),
	}, nil
}

// SearchLearningBits runs full-text search over the corpus.
func (c *Core) SearchLearningBits(ctx context.Context, args Args) (map[string]any, error) {
	query := args.str("query", "")
	if query == "" {
		return nil, badInput("query is required")
	}

	bits, err := c.Store.SearchBits(ctx, query, args.str("category", ""), args.integer("limit", 10))
	if err != nil {
		return nil, err
	}
	c.bumpReferences(ctx, bits)

	return map[string]any{
		"query":         query,
		"learning_bits": bitMaps(bits),
		"count":         len(bits),
	}, nil
}

// GetLearningStatistics returns the aggregate corpus statistics.
func (c *Core) GetLearningStatistics(ctx context.Context, _ Args) (map[string]any, error) {
	stats, err := c.Store.Statistics(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"total_learning_bits":       stats.TotalBits,
		"total_crawled_pages":       stats.TotalPages,
		"category_distribution":     stats.CategoryCounts,
		"content_type_distribution": stats.ContentTypeCounts,
		"complexity_distribution":   stats.ComplexityCounts,
		"top_source_domains":        stats.TopDomains,
		"average_scores": map[string]any{
			"importance": round3(stats.AvgImportance),
			"confidence": round3(stats.AvgConfidence),
			"references": round3(stats.AvgReferences),
		},
		"recent_activity": map[string]any{
			"bits_last_7_days": stats.BitsLastSevenDays,
		},
		"jobs_by_state":  stats.JobCountsByState,
		"search_queries": stats.SearchQueriesLogged,
	}, nil
}

// AddCategorizationRule creates a rule; the name must be new.
func (c *Core) AddCategorizationRule(ctx context.Context, args Args) (map[string]any, error) {
	ruleName := args.str("rule_name", "")
	ruleType := args.str("rule_type", "")
	pattern := args.str("pattern", "")
	category := args.str("category", "")

	switch {
	case ruleName == "":
		return nil, badInput("rule_name is required")
	case pattern == "":
		return nil, badInput("pattern is required")
	case category == "":
		return nil, badInput("category is required")
	case !store.ValidRuleType(ruleType):
		return nil, badInput("unknown rule_type %q", ruleType)
	}

	boost := args.float("confidence_boost", 0.1)
	if boost < -1 || boost > 1 {
		return nil, badInput("confidence_boost must be in [-1,1], got %f", boost)
	}

	rule := store.CategorizationRule{
		RuleName:        ruleName,
		RuleType:        store.RuleType(ruleType),
		Pattern:         pattern,
		Category:        category,
		Subcategory:     args.str("subcategory", ""),
		ConfidenceBoost: boost,
		Priority:        args.integer("priority", 5),
		Active:          true,
	}
	if err := c.Store.InsertRule(ctx, rule); err != nil {
		return nil, err
	}

	return map[string]any{
		"rule_name": ruleName,
		"message":   fmt.Sprintf("rule %q created", ruleName),
	}, nil
}

// GetCategorizationRules lists every rule with its active flag.
func (c *Core) GetCategorizationRules(ctx context.Context, _ Args) (map[string]any, error) {
	rules, err := c.Store.ListRules(ctx, false)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(rules))
	for _, r := range rules {
		out = append(out, map[string]any{
			"rule_name":        r.RuleName,
			"rule_type":        string(r.RuleType),
			"pattern":          r.Pattern,
			"category":         r.Category,
			"subcategory":      r.Subcategory,
			"confidence_boost": r.ConfidenceBoost,
			"priority":         r.Priority,
			"active":           r.Active,
			"created_at":       r.CreatedAt,
		})
	}
	return map[string]any{"rules": out, "count": len(out)}, nil
}

// SearchWeb fans the query out to the configured providers. Discovered
// URLs optionally enqueue as low-priority background crawls.
func (c *Core) SearchWeb(ctx context.Context, args Args) (map[string]any, error) {
	query := args.str("query", "")
	if query == "" {
		return nil, badInput("query is required")
	}
	maxResults := args.integer("max_results", 10)

	response, err := c.Dispatcher.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	c.Dispatcher.LogResults(ctx, query, response.Results)

	if c.Config.EnqueueDiscovered() && c.Scheduler != nil {
		for _, r := range response.Results {
			_, submitErr := c.Scheduler.Submit(ctx, scheduler.JobSpec{
				SeedURL:  r.URL,
				Priority: store.PriorityLow,
				Config:   crawler.ConfigFrom(c.Config),
			})
			if submitErr != nil {
				c.log.Debug().Err(submitErr).Str("url", r.URL).Msg("discovered URL not enqueued")
			}
		}
	}

	results := make([]map[string]any, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, map[string]any{
			"url":       r.URL,
			"title":     r.Title,
			"snippet":   r.Snippet,
			"engine":    r.Engine,
			"relevance": round3(r.Relevance),
		})
	}

	out := map[string]any{
		"query":   query,
		"results": results,
		"count":   len(results),
	}
	if response.Reason != "" {
		out["reason"] = response.Reason
	}
	return out, nil
}

func (c *Core) bumpReferences(ctx context.Context, bits []store.LearningBit) {
	if len(bits) == 0 {
		return
	}
	ids := make([]string, 0, len(bits))
	for _, b := range bits {
		ids = append(ids, b.BitID)
	}
	if err := c.Store.IncrementBitReferences(ctx, ids); err != nil {
		c.log.Debug().Err(err).Msg("reference count bump failed")
	}
}

func bitMaps(bits []store.LearningBit) []map[string]any {
	out := make([]map[string]any, 0, len(bits))
	for _, b := range bits {
		content := b.Content
		if len(content) > contentPreviewLimit {
			content = content[:contentPreviewLimit] + "..."
		}
		out = append(out, map[string]any{
			"bit_id":           b.BitID,
			"page_id":          b.PageID,
			"content":          content,
			"context":          b.Context,
			"content_type":     string(b.ContentType),
			"category":         b.Category,
			"subcategory":      b.Subcategory,
			"complexity_level": string(b.ComplexityLevel),
			"importance_score": round3(b.ImportanceScore),
			"confidence_score": round3(b.ConfidenceScore),
			"tags":             b.Tags,
			"extracted_at":     b.ExtractedAt,
			"reference_count":  b.ReferenceCount,
		})
	}
	return out
}

func jobStatusMap(st scheduler.JobStatus) map[string]any {
	return map[string]any{
		"job_id":           st.JobID,
		"seed_url":         st.SeedURL,
		"state":            string(st.State),
		"priority":         int(st.Priority),
		"created_at":       st.CreatedAt,
		"started_at":       st.StartedAt,
		"elapsed_seconds":  st.Elapsed.Seconds(),
		"attempts":         st.Attempts,
		"error":            st.Error,
		"pages_fetched":    st.Metrics.PagesFetched,
		"bits_emitted":     st.Metrics.BitsEmitted,
		"bytes_downloaded": st.Metrics.BytesDownloaded,
		"errors_by_kind":   st.Metrics.ErrorsByKind,
	}
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}

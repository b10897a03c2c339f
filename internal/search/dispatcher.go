package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rohmanhakim/lore-crawler/internal/store"
	"github.com/rohmanhakim/lore-crawler/pkg/urlutil"

	neturl "net/url"
)

/*
Dispatcher fans one query out to every eligible provider under a single
deadline, merges what comes back, and returns a unified, deduplicated,
relevance-scored list.

- Providers out of hourly budget are dropped from the dispatch.
- Partial results are acceptable when the deadline fires.
- Duplicates across engines keep the best rank and merge snippets.
- Relevance = w1·(1/rank) + w2·token_overlap(query, title+snippet)
  + w3·provider trust, normalized to [0,1].
- With no provider configured or all budgets exhausted, the dispatcher
  returns an empty list with a diagnostic reason. It never fails.

Every dispatch is logged to the store for dedupe history and metrics.
*/

// Relevance blend weights.
const (
	weightRank    = 0.5
	weightOverlap = 0.3
	weightTrust   = 0.2
)

// Result is one merged, scored search hit.
type Result struct {
	URL       string
	Title     string
	Snippet   string
	Engine    string
	Rank      int
	Relevance float64
}

// Response carries the result list plus the fallback diagnostic.
type Response struct {
	Results []Result
	// Reason is set when the dispatcher degraded: "no providers",
	// "all providers out of quota", or "all providers failed".
	Reason string
}

type Dispatcher struct {
	providers []Provider
	quota     *hourlyQuota
	threshold float64
	deadline  time.Duration
	store     *store.Store
	log       zerolog.Logger
}

type DispatcherOptions struct {
	// Minimum relevance for a result to be returned.
	FilterThreshold float64
	// Per-provider hourly request cap; 0 disables quotas.
	HourlyLimit int
	// Single deadline for the whole fan-out.
	Deadline time.Duration
}

func DefaultDispatcherOptions() DispatcherOptions {
	return DispatcherOptions{
		FilterThreshold: 0.2,
		HourlyLimit:     100,
		Deadline:        5 * time.Second,
	}
}

func NewDispatcher(providers []Provider, st *store.Store, log zerolog.Logger, opts DispatcherOptions) *Dispatcher {
	if opts.Deadline <= 0 {
		opts.Deadline = 5 * time.Second
	}
	return &Dispatcher{
		providers: providers,
		quota:     newHourlyQuota(opts.HourlyLimit),
		threshold: opts.FilterThreshold,
		deadline:  opts.Deadline,
		store:     st,
		log:       log,
	}
}

// Search dispatches the query and returns merged results. The error is
// reserved for bad input; provider trouble degrades into Response.Reason.
func (d *Dispatcher) Search(ctx context.Context, query string, maxResults int) (Response, error) {
	if strings.TrimSpace(query) == "" {
		return Response{}, &SearchError{Message: "query is empty", Cause: ErrCauseBadQuery}
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	if len(d.providers) == 0 {
		return Response{Reason: "no providers"}, nil
	}

	eligible := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if d.quota.allow(p.Name()) {
			eligible = append(eligible, p)
		} else {
			d.log.Debug().Str("provider", p.Name()).Msg("provider out of hourly quota")
		}
	}
	if len(eligible) == 0 {
		return Response{Reason: "all providers out of quota"}, nil
	}

	fanCtx, cancel := context.WithTimeout(ctx, d.deadline)
	defer cancel()

	var mu sync.Mutex
	collected := make(map[string]Result) // canonical URL -> best result
	failures := 0

	g, gctx := errgroup.WithContext(fanCtx)
	for _, provider := range eligible {
		g.Go(func() error {
			started := time.Now()
			hits, err := provider.Query(gctx, query, maxResults)
			d.logDispatch(query, provider.Name(), started, len(hits))
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				if gctx.Err() == nil {
					d.log.Warn().Str("provider", provider.Name()).Err(err).Msg("provider query failed")
				}
				return nil // partial results beat a failed dispatch
			}

			mu.Lock()
			defer mu.Unlock()
			for _, hit := range hits {
				d.mergeHit(collected, query, provider.Name(), hit)
			}
			return nil
		})
	}
	g.Wait()

	if len(collected) == 0 && failures == len(eligible) {
		return Response{Reason: "all providers failed"}, nil
	}

	results := make([]Result, 0, len(collected))
	for _, r := range collected {
		if r.Relevance >= d.threshold {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].URL < results[j].URL
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	return Response{Results: results}, nil
}

// mergeHit folds one provider hit into the collected set, deduplicating
// by canonical URL. The better rank wins; snippets merge.
func (d *Dispatcher) mergeHit(collected map[string]Result, query, engine string, hit ProviderResult) {
	key := canonicalKey(hit.URL)
	if key == "" {
		return
	}

	score := relevance(query, engine, hit)
	existing, seen := collected[key]
	if !seen {
		collected[key] = Result{
			URL:       hit.URL,
			Title:     hit.Title,
			Snippet:   hit.Snippet,
			Engine:    engine,
			Rank:      hit.Rank,
			Relevance: score,
		}
		return
	}

	// Duplicate across engines: keep the better-ranked entry, merge the
	// other engine's snippet when it adds text.
	if hit.Rank < existing.Rank || (hit.Rank == existing.Rank && score > existing.Relevance) {
		merged := existing.Snippet
		if hit.Snippet != "" && !strings.Contains(merged, hit.Snippet) {
			merged = strings.TrimSpace(hit.Snippet + " " + merged)
		}
		collected[key] = Result{
			URL:       hit.URL,
			Title:     hit.Title,
			Snippet:   merged,
			Engine:    engine,
			Rank:      hit.Rank,
			Relevance: score,
		}
		return
	}

	if hit.Snippet != "" && !strings.Contains(existing.Snippet, hit.Snippet) {
		existing.Snippet = strings.TrimSpace(existing.Snippet + " " + hit.Snippet)
		collected[key] = existing
	}
}

func canonicalKey(raw string) string {
	parsed, err := neturl.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	canonical := urlutil.Canonicalize(*parsed)
	return canonical.String()
}

// relevance blends rank, token overlap, and provider trust into [0,1].
func relevance(query, engine string, hit ProviderResult) float64 {
	rankScore := 0.0
	if hit.Rank > 0 {
		rankScore = 1.0 / float64(hit.Rank)
	}

	overlap := tokenOverlap(query, hit.Title+" "+hit.Snippet)

	score := weightRank*rankScore + weightOverlap*overlap + weightTrust*trustFor(engine)
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// tokenOverlap is the fraction of query tokens present in the text.
func tokenOverlap(query, text string) float64 {
	queryTokens := strings.Fields(strings.ToLower(query))
	if len(queryTokens) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, token := range queryTokens {
		if strings.Contains(lower, token) {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

// logDispatch records the query in the search log. Failure to log never
// affects the dispatch.
func (d *Dispatcher) logDispatch(query, engine string, started time.Time, resultCount int) {
	if d.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := d.store.RecordSearchQuery(ctx, store.SearchQueryLog{
		Query:       query,
		Engine:      engine,
		QueriedAt:   started,
		ResultCount: resultCount,
		DurationMs:  time.Since(started).Milliseconds(),
	})
	if err != nil {
		d.log.Debug().Err(err).Msg("search log write failed")
	}
}

// LogResults persists the merged result list for a query. Callers invoke
// it after a successful dispatch; it is separated from Search so the
// caller controls whether history is kept.
func (d *Dispatcher) LogResults(ctx context.Context, query string, results []Result) {
	if d.store == nil || len(results) == 0 {
		return
	}
	queryID, err := d.store.RecordSearchQuery(ctx, store.SearchQueryLog{
		Query:       query,
		Engine:      "merged",
		QueriedAt:   time.Now(),
		ResultCount: len(results),
	})
	if err != nil {
		d.log.Debug().Err(err).Msg("search log write failed")
		return
	}
	logs := make([]store.SearchResultLog, 0, len(results))
	for _, r := range results {
		logs = append(logs, store.SearchResultLog{
			QueryID:        queryID,
			URL:            r.URL,
			Title:          r.Title,
			Snippet:        r.Snippet,
			Rank:           r.Rank,
			RelevanceScore: r.Relevance,
		})
	}
	if err := d.store.RecordSearchResults(ctx, queryID, logs); err != nil {
		d.log.Debug().Err(err).Msg("search result log write failed")
	}
}

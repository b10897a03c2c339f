package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rohmanhakim/lore-crawler/internal/categorize"
	"github.com/rohmanhakim/lore-crawler/internal/extractor"
	"github.com/rohmanhakim/lore-crawler/internal/fetcher"
	"github.com/rohmanhakim/lore-crawler/internal/frontier"
	"github.com/rohmanhakim/lore-crawler/internal/metrics"
	"github.com/rohmanhakim/lore-crawler/internal/robots"
	"github.com/rohmanhakim/lore-crawler/internal/score"
	"github.com/rohmanhakim/lore-crawler/internal/store"
	"github.com/rohmanhakim/lore-crawler/pkg/failure"
	"github.com/rohmanhakim/lore-crawler/pkg/hashutil"
	"github.com/rohmanhakim/lore-crawler/pkg/limiter"
	"github.com/rohmanhakim/lore-crawler/pkg/urlutil"
)

/*
Crawler drives the frontier for one job:

- depth-limited BFS with deterministic within-depth ordering
- per-host politeness, delegated to the fetcher's rate limiter
- content-hash dedup inside the job; URL dedup inside the frontier
- candidate spans classified, scored, and persisted when kept
- a per-host blacklist after repeated consecutive failures

A single URL failure is local: logged, counted, never terminal for the
job. The job ends when the frontier drains, the page budget is hit, or
the context is cancelled. On cancellation the partial metrics survive.
*/
type Crawler struct {
	store      *store.Store
	engine     *categorize.Engine
	scorer     *score.Scorer
	robot      robots.Robot
	httpClient *http.Client
	log        zerolog.Logger
	userAgent  string
	fetchOpts  fetcher.Options

	// newFetcher builds the per-job fetcher; tests swap it for a fake.
	newFetcher func(rl limiter.RateLimiter) fetcher.Fetcher
}

func New(
	st *store.Store,
	engine *categorize.Engine,
	scorer *score.Scorer,
	robot robots.Robot,
	log zerolog.Logger,
	userAgent string,
	fetchOpts fetcher.Options,
) *Crawler {
	c := &Crawler{
		store:      st,
		engine:     engine,
		scorer:     scorer,
		robot:      robot,
		httpClient: fetcher.NewPooledClient(fetchOpts),
		log:        log,
		userAgent:  userAgent,
		fetchOpts:  fetchOpts,
	}
	c.newFetcher = func(rl limiter.RateLimiter) fetcher.Fetcher {
		return fetcher.NewHtmlFetcherWithClient(c.httpClient, rl, robot, log, fetchOpts)
	}
	return c
}

// SetFetcherFactory replaces the per-job fetcher constructor. Test hook.
func (c *Crawler) SetFetcherFactory(f func(rl limiter.RateLimiter) fetcher.Fetcher) {
	c.newFetcher = f
}

// Run executes one crawl job to completion and returns its metrics.
// The returned metrics are valid even when the error is non-nil.
func (c *Crawler) Run(ctx context.Context, jobID, seedURL string, cfg CrawlConfig) (store.JobMetrics, failure.ClassifiedError) {
	rec := metrics.NewRecorder()
	log := c.log.With().Str("job_id", jobID).Logger()

	seed, badSeed := parseSeed(seedURL)
	if badSeed != nil {
		return rec.Snapshot(), badSeed
	}
	if cfg.MaxPages < 1 || cfg.MaxDepth < 0 {
		return rec.Snapshot(), &CrawlError{
			Message:   fmt.Sprintf("max_pages=%d max_depth=%d", cfg.MaxPages, cfg.MaxDepth),
			Retryable: false,
			Cause:     ErrCauseBadConfig,
		}
	}

	if err := ctx.Err(); err != nil {
		return rec.Snapshot(), &CrawlError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseCancelled,
		}
	}

	// Rules and thresholds refresh at job start so mid-run surface edits
	// apply from the next job onward.
	if err := c.loadRules(ctx); err != nil {
		return rec.Snapshot(), &CrawlError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseStoreFailure,
		}
	}

	// Per-job politeness state: the shared connection pool stays global,
	// the timing bookkeeping belongs to this job.
	rl := limiter.NewConcurrentRateLimiter()
	rl.SetBaseDelay(cfg.CrawlDelay)
	jobFetcher := c.newFetcher(rl)

	front := frontier.NewCrawlFrontier()
	front.Submit(seed, 0)

	allow := hostSet(cfg.AllowHosts)
	deny := hostSet(cfg.DenyHosts)
	if cfg.SameHostOnly {
		allow = map[string]struct{}{seed.Host: {}}
	}

	hostFailures := make(map[string]int)
	blacklisted := make(map[string]struct{})

	log.Info().
		Str("seed", seed.String()).
		Int("max_pages", cfg.MaxPages).
		Int("max_depth", cfg.MaxDepth).
		Msg("crawl started")

	for rec.PagesFetched() < cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			log.Debug().Msg("crawl cancelled; recording partial metrics")
			return rec.Snapshot(), &CrawlError{
				Message:   err.Error(),
				Retryable: false,
				Cause:     ErrCauseCancelled,
			}
		}

		token, ok := front.Next()
		if !ok {
			break
		}
		if token.Depth() > cfg.MaxDepth {
			continue
		}

		pageURL := token.URL()
		if _, banned := blacklisted[pageURL.Host]; banned {
			rec.RecordError(failure.KindPolicyBlocked)
			continue
		}

		result, fetchErr := jobFetcher.Fetch(ctx,
			fetcher.NewFetchParam(pageURL, c.userAgent, cfg.RespectRobots))
		if fetchErr != nil {
			c.handleFetchFailure(ctx, log, rec, token, fetchErr, hostFailures, blacklisted)
			if failure.KindOf(fetchErr) == failure.KindCancelled {
				return rec.Snapshot(), &CrawlError{
					Message:   fetchErr.Error(),
					Retryable: false,
					Cause:     ErrCauseCancelled,
				}
			}
			continue
		}
		hostFailures[pageURL.Host] = 0

		rec.RecordPage()
		rec.RecordBytes(result.SizeByte())

		body := result.Body()
		contentHash := hashutil.ContentHash(body)
		canonical := urlutil.Canonicalize(pageURL)
		pageID := hashutil.PageID(canonical.String())

		if front.ContentSeen(contentHash) {
			c.persistPage(ctx, log, store.Page{
				PageID:      pageID,
				URL:         canonical.String(),
				Domain:      canonical.Host,
				Depth:       token.Depth(),
				FetchedAt:   result.FetchedAt(),
				ContentHash: contentHash,
				Status:      store.PageStatusSkippedDedup,
				ByteLength:  result.SizeByte(),
			})
			continue
		}
		front.MarkContentSeen(contentHash)

		extraction, extractErr := c.extract(result)
		if extractErr != nil {
			rec.RecordError(failure.KindOf(extractErr))
			c.persistPage(ctx, log, store.Page{
				PageID:      pageID,
				URL:         canonical.String(),
				Domain:      canonical.Host,
				Depth:       token.Depth(),
				FetchedAt:   result.FetchedAt(),
				ContentHash: contentHash,
				Status:      store.PageStatusParseFailed,
				ByteLength:  result.SizeByte(),
			})
			continue
		}

		c.persistPage(ctx, log, store.Page{
			PageID:      pageID,
			URL:         canonical.String(),
			Domain:      canonical.Host,
			Depth:       token.Depth(),
			FetchedAt:   result.FetchedAt(),
			ContentHash: contentHash,
			Status:      store.PageStatusFetched,
			Title:       extraction.Title,
			Language:    extraction.Language,
			ByteLength:  result.SizeByte(),
			Markdown:    extraction.Markdown,
		})

		kept := c.ingestCandidates(ctx, log, rec, pageID, token.Depth(), extraction)
		c.crossReference(ctx, log, kept)

		if cfg.FollowLinks && token.Depth()+1 <= cfg.MaxDepth {
			for _, link := range extraction.Links {
				if !urlutil.HostAllowed(link.Host, allow, deny) {
					continue
				}
				if _, banned := blacklisted[link.Host]; banned {
					continue
				}
				front.Submit(link, token.Depth()+1)
			}
		}
	}

	snapshot := rec.Snapshot()
	log.Info().
		Int("pages", snapshot.PagesFetched).
		Int("bits", snapshot.BitsEmitted).
		Int64("bytes", snapshot.BytesDownloaded).
		Msg("crawl finished")
	return snapshot, nil
}

func parseSeed(seedURL string) (url.URL, *CrawlError) {
	trimmed := strings.TrimSpace(seedURL)
	if trimmed == "" {
		return url.URL{}, &CrawlError{
			Message:   "seed URL is empty",
			Retryable: false,
			Cause:     ErrCauseBadSeed,
		}
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || !urlutil.IsHTTP(*parsed) || parsed.Host == "" {
		return url.URL{}, &CrawlError{
			Message:   fmt.Sprintf("seed %q is not an absolute HTTP(S) URL", seedURL),
			Retryable: false,
			Cause:     ErrCauseBadSeed,
		}
	}
	return *parsed, nil
}

// loadRules pushes the active rule set into the classifier and the
// keyword list into the scorer, then refreshes thresholds.
func (c *Crawler) loadRules(ctx context.Context) error {
	rules, err := c.store.ListRules(ctx, true)
	if err != nil {
		return err
	}

	engineRules := make([]categorize.Rule, 0, len(rules)+16)
	var keywords []string
	for _, r := range rules {
		engineRules = append(engineRules, categorize.Rule{
			Name:            r.RuleName,
			Type:            categorize.RuleType(r.RuleType),
			Pattern:         r.Pattern,
			Category:        r.Category,
			Subcategory:     r.Subcategory,
			ConfidenceBoost: r.ConfidenceBoost,
			Priority:        r.Priority,
			CreatedAt:       r.CreatedAt,
		})
		if r.RuleType == store.RuleTypeKeyword {
			keywords = append(keywords, r.Pattern)
		}
	}
	// The built-in rules back up whatever the store carries.
	for _, r := range categorize.DefaultRules() {
		engineRules = append(engineRules, r)
		if r.Type == categorize.RuleKeyword {
			keywords = append(keywords, r.Pattern)
		}
	}

	c.engine.SetRules(engineRules)
	c.scorer.SetRuleKeywords(keywords)
	return c.scorer.Load(ctx)
}

func (c *Crawler) extract(result fetcher.FetchResult) (extractor.ExtractionResult, failure.ClassifiedError) {
	ext := extractor.NewDomExtractor(c.log)
	return ext.Extract(result.URL(), result.Body(), result.ContentType())
}

// handleFetchFailure counts the failure, persists policy-blocked pages,
// and blacklists hosts that keep failing.
func (c *Crawler) handleFetchFailure(
	ctx context.Context,
	log zerolog.Logger,
	rec *metrics.Recorder,
	token frontier.CrawlToken,
	fetchErr failure.ClassifiedError,
	hostFailures map[string]int,
	blacklisted map[string]struct{},
) {
	kind := failure.KindOf(fetchErr)
	rec.RecordError(kind)

	pageURL := token.URL()
	canonical := urlutil.Canonicalize(pageURL)

	switch kind {
	case failure.KindPolicyBlocked:
		// Robots denial (or a body/content policy cap) is a normal,
		// terminal outcome for the URL; the page row records why.
		status := store.PageStatusSkipped
		var fe *fetcher.FetchError
		if asFetchError(fetchErr, &fe) && fe.Cause == fetcher.ErrCauseRobotsDisallowed {
			status = store.PageStatusSkippedRobot
		}
		c.persistPage(ctx, log, store.Page{
			PageID:    hashutil.PageID(canonical.String()),
			URL:       canonical.String(),
			Domain:    canonical.Host,
			Depth:     token.Depth(),
			FetchedAt: time.Now(),
			Status:    status,
		})

	case failure.KindCancelled:
		return

	default:
		log.Debug().
			Str("url", pageURL.String()).
			Str("kind", kind.String()).
			Msg("url fetch failed")
	}

	host := pageURL.Host
	hostFailures[host]++
	if hostFailures[host] >= consecutiveFailureLimit {
		if _, already := blacklisted[host]; !already {
			blacklisted[host] = struct{}{}
			log.Warn().Str("host", host).Int("failures", hostFailures[host]).
				Msg("host blacklisted for the remainder of the job")
		}
	}
}

// ingestCandidates classifies, scores, and persists the page's spans,
// returning the bits that were kept.
func (c *Crawler) ingestCandidates(
	ctx context.Context,
	log zerolog.Logger,
	rec *metrics.Recorder,
	pageID string,
	depth int,
	extraction extractor.ExtractionResult,
) []store.LearningBit {
	var kept []store.LearningBit

	for _, candidate := range extraction.Candidates {
		classification := c.engine.Classify(ctx, candidate)
		importance, confidence := c.scorer.Score(
			candidate, classification, extraction.LanguageCertainty, depth, 0)

		keep := c.scorer.Keep(importance, confidence, classification.Category)
		c.scorer.Observe(ctx, classification.Category, keep)
		if !keep {
			continue
		}

		kept = append(kept, store.LearningBit{
			BitID:           hashutil.BitID(pageID, candidate.RawText),
			PageID:          pageID,
			Content:         candidate.RawText,
			Context:         candidate.Context,
			ContentType:     store.ContentType(classification.ContentType),
			Category:        classification.Category,
			Subcategory:     classification.Subcategory,
			ComplexityLevel: store.ComplexityLevel(extractor.ComplexityLevelFor(extraction.Complexity, candidate.Role)),
			ImportanceScore: importance,
			ConfidenceScore: confidence,
			Tags:            classification.Tags,
			ExtractedAt:     time.Now(),
		})
	}

	if len(kept) == 0 {
		return nil
	}

	inserted, err := c.store.InsertBits(ctx, kept)
	if err != nil {
		rec.RecordError(failure.KindOf(err))
		log.Warn().Err(err).Msg("bit persistence failed")
		return nil
	}
	rec.RecordBits(inserted)
	return kept
}

// crossReference relates bits extracted from the same page that share a
// category. Pages yield few bits, so the pairwise pass stays cheap.
func (c *Crawler) crossReference(ctx context.Context, log zerolog.Logger, bits []store.LearningBit) {
	if len(bits) < 2 {
		return
	}

	var refs []store.CrossReference
	now := time.Now()
	for i := 0; i < len(bits); i++ {
		for j := i + 1; j < len(bits); j++ {
			if bits[i].Category != bits[j].Category || bits[i].Category == categorize.CategoryUnknown {
				continue
			}
			refs = append(refs, store.CrossReference{
				SourceBitID:  bits[i].BitID,
				TargetBitID:  bits[j].BitID,
				RelationType: store.RelationRelated,
				Strength:     0.5,
				CreatedAt:    now,
			})
		}
	}

	if len(refs) == 0 {
		return
	}
	if err := c.store.InsertCrossRefs(ctx, refs); err != nil {
		log.Debug().Err(err).Msg("cross-reference persistence failed")
	}
}

func (c *Crawler) persistPage(ctx context.Context, log zerolog.Logger, page store.Page) {
	if err := c.store.UpsertPage(ctx, page); err != nil {
		log.Warn().Err(err).Str("url", page.URL).Msg("page persistence failed")
	}
}

// asFetchError unwraps a classified error into a *FetchError when it is one.
func asFetchError(err failure.ClassifiedError, target **fetcher.FetchError) bool {
	fe, ok := err.(*fetcher.FetchError)
	if ok {
		*target = fe
	}
	return ok
}

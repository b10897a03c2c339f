package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"

	"github.com/rohmanhakim/lore-crawler/internal/robots/cache"
)

// policyTTL bounds how long a fetched robots.txt stays authoritative.
const policyTTL = 1 * time.Hour

// maxRobotsBody caps how much of a robots.txt is read.
const maxRobotsBody = 512 << 10

/*
CachedRobot

Responsibilities:
- Fetch robots.txt per host over HTTP with a bounded timeout
- Parse the body with the robotstxt grammar, honoring status-code
  semantics (4xx = allow all, 5xx = disallow all until retry)
- Cache the raw body + status per host for the policy TTL
- Answer Decide() from the cached parse without network I/O

The parsed group is resolved against the configured user agent.
*/
type CachedRobot struct {
	httpClient *http.Client
	userAgent  string
	log        zerolog.Logger

	bodyCache *cache.TTLCache

	// parsed keeps the robotstxt parse per host so repeated Decide calls
	// do not re-parse the cached body.
	parsedMu sync.RWMutex
	parsed   map[string]*robotstxt.RobotsData
}

func NewCachedRobot(log zerolog.Logger) *CachedRobot {
	return &CachedRobot{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
		bodyCache:  cache.NewTTLCache(policyTTL),
		parsed:     make(map[string]*robotstxt.RobotsData),
	}
}

// NewCachedRobotWithClient creates a CachedRobot with a custom HTTP
// client. This is useful for testing.
func NewCachedRobotWithClient(log zerolog.Logger, httpClient *http.Client) *CachedRobot {
	r := NewCachedRobot(log)
	r.httpClient = httpClient
	return r
}

func (r *CachedRobot) Init(userAgent string) {
	r.userAgent = userAgent
}

// Decide answers whether the target URL may be fetched, along with any
// crawl-delay directive the host declares for our agent.
func (r *CachedRobot) Decide(ctx context.Context, target url.URL) (Decision, *RobotsError) {
	data, err := r.policyFor(ctx, target.Scheme, target.Host)
	if err != nil {
		return Decision{}, err
	}

	group := data.FindGroup(r.userAgent)
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}

	decision := Decision{Allowed: group.Test(path)}
	if group.CrawlDelay > 0 {
		decision.CrawlDelay = group.CrawlDelay
	}
	return decision, nil
}

// policyFor returns the parsed robots policy for a host, fetching and
// caching it when absent or expired.
func (r *CachedRobot) policyFor(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, *RobotsError) {
	key := scheme + "://" + host

	r.parsedMu.RLock()
	data, haveParsed := r.parsed[key]
	r.parsedMu.RUnlock()
	if haveParsed {
		if _, fresh := r.bodyCache.Get(key); fresh {
			return data, nil
		}
	}

	status, body, err := r.fetch(ctx, scheme, host)
	if err != nil {
		return nil, err
	}

	data, parseErr := robotstxt.FromStatusAndBytes(status, body)
	if parseErr != nil {
		return nil, &RobotsError{
			Message:   fmt.Sprintf("failed to parse robots.txt for %s: %v", host, parseErr),
			Retryable: false,
			Cause:     ErrCauseParseFailure,
		}
	}

	r.bodyCache.Put(key, string(body))
	r.parsedMu.Lock()
	r.parsed[key] = data
	r.parsedMu.Unlock()

	r.log.Debug().Str("host", host).Int("status", status).Msg("robots policy refreshed")
	return data, nil
}

func (r *CachedRobot) fetch(ctx context.Context, scheme, host string) (int, []byte, *RobotsError) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return 0, nil, &RobotsError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCausePreFetchFailure,
		}
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, nil, &RobotsError{
			Message:   fmt.Sprintf("robots request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return 0, nil, &RobotsError{
			Message:   "robots fetch rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseHttpTooManyRequests,
		}
	case resp.StatusCode >= 500:
		return 0, nil, &RobotsError{
			Message:   fmt.Sprintf("robots fetch server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseHttpServerError,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		return 0, nil, &RobotsError{
			Message:   fmt.Sprintf("failed to read robots body: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	return resp.StatusCode, body, nil
}

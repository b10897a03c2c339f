package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rohmanhakim/lore-crawler/internal/robots"
	"github.com/rohmanhakim/lore-crawler/pkg/failure"
	"github.com/rohmanhakim/lore-crawler/pkg/limiter"
	"github.com/rohmanhakim/lore-crawler/pkg/retry"
	"github.com/rohmanhakim/lore-crawler/pkg/timeutil"
)

/*
Responsibilities

- Perform HTTP requests over a pooled, keep-alive transport
- Enforce per-host politeness before touching the network
- Honor robots.txt when asked, without hitting the target host
- Handle redirects safely (bounded, cycle-detected)
- Classify responses and retry only what is retryable

Fetch Semantics

- Only text-ish responses (HTML, markdown, plain text) are processed
- Response bodies are capped; an oversized body rejects the page unparsed
- Redirect chains are bounded and cycle-checked
- 5xx and transport failures retry with exponential backoff; 4xx is fatal

The fetcher never parses content; it only returns bytes and metadata.
*/

// Options bound the fetcher's network behavior.
type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int64
	MaxAttempts  int
	// Connection pool bounds
	MaxConns        int
	MaxConnsPerHost int
}

func DefaultOptions() Options {
	return Options{
		Timeout:         30 * time.Second,
		MaxRedirects:    5,
		MaxBodyBytes:    10 << 20,
		MaxAttempts:     3,
		MaxConns:        32,
		MaxConnsPerHost: 4,
	}
}

type HtmlFetcher struct {
	httpClient  *http.Client
	rateLimiter limiter.RateLimiter
	robot       robots.Robot
	sleeper     timeutil.Sleeper
	log         zerolog.Logger
	opts        Options
}

func NewHtmlFetcher(
	rateLimiter limiter.RateLimiter,
	robot robots.Robot,
	log zerolog.Logger,
	opts Options,
) *HtmlFetcher {
	return NewHtmlFetcherWithClient(NewPooledClient(opts), rateLimiter, robot, log, opts)
}

// NewHtmlFetcherWithClient builds a fetcher around an existing HTTP
// client. Jobs use this to share one connection pool while keeping
// per-job politeness state.
func NewHtmlFetcherWithClient(
	client *http.Client,
	rateLimiter limiter.RateLimiter,
	robot robots.Robot,
	log zerolog.Logger,
	opts Options,
) *HtmlFetcher {
	return &HtmlFetcher{
		httpClient:  client,
		rateLimiter: rateLimiter,
		robot:       robot,
		sleeper:     timeutil.NewRealSleeper(),
		log:         log,
		opts:        opts,
	}
}

// NewPooledClient builds the keep-alive client the fetcher issues
// requests through: bounded total and per-host connections, bounded
// redirects with cycle detection.
func NewPooledClient(opts Options) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        opts.MaxConns,
		MaxConnsPerHost:     opts.MaxConnsPerHost,
		MaxIdleConnsPerHost: opts.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return &FetchError{
					Message:   fmt.Sprintf("stopped after %d redirects", opts.MaxRedirects),
					Retryable: false,
					Cause:     ErrCauseRedirectLimitExceeded,
				}
			}
			for _, prev := range via {
				if prev.URL.String() == req.URL.String() {
					return &FetchError{
						Message:   fmt.Sprintf("redirect loop through %s", req.URL),
						Retryable: false,
						Cause:     ErrCauseRedirectLoop,
					}
				}
			}
			return nil
		},
	}
}

// SetSleeper replaces the politeness sleeper. This is a test hook.
func (h *HtmlFetcher) SetSleeper(s timeutil.Sleeper) {
	h.sleeper = s
}

func (h *HtmlFetcher) Fetch(
	ctx context.Context,
	fetchParam FetchParam,
) (FetchResult, failure.ClassifiedError) {
	startTime := time.Now()
	host := fetchParam.fetchUrl.Host

	// Robots first: a disallow must not touch the network.
	if fetchParam.respectRobots && h.robot != nil {
		decision, robotsErr := h.robot.Decide(ctx, fetchParam.fetchUrl)
		if robotsErr != nil {
			return FetchResult{}, robotsErr
		}
		if decision.CrawlDelay > 0 {
			h.rateLimiter.SetCrawlDelay(host, decision.CrawlDelay)
		}
		if !decision.Allowed {
			return FetchResult{}, &FetchError{
				Message:   fmt.Sprintf("robots.txt disallows %s", fetchParam.fetchUrl.String()),
				Retryable: false,
				Cause:     ErrCauseRobotsDisallowed,
			}
		}
	}

	// Politeness: wait out the host's remaining delay cooperatively.
	if delay := h.rateLimiter.ResolveDelay(host); delay > 0 {
		if err := h.sleeper.Sleep(ctx, delay); err != nil {
			return FetchResult{}, &FetchError{
				Message:   err.Error(),
				Retryable: false,
				Cause:     ErrCauseCancelled,
			}
		}
	}

	result, err := h.fetchWithRetry(ctx, fetchParam.fetchUrl, fetchParam.userAgent)

	duration := time.Since(startTime)

	if err != nil {
		if failure.KindOf(err) != failure.KindCancelled {
			h.log.Debug().
				Str("url", fetchParam.fetchUrl.String()).
				Dur("duration", duration).
				Str("cause", err.Error()).
				Msg("fetch failed")
		}
		return FetchResult{}, err
	}

	result.duration = duration
	h.log.Debug().
		Str("url", result.url.String()).
		Int("status", result.Code()).
		Int64("bytes", result.SizeByte()).
		Dur("duration", duration).
		Msg("fetched")

	return result, nil
}

func (h *HtmlFetcher) fetchWithRetry(ctx context.Context, fetchUrl url.URL, userAgent string) (FetchResult, failure.ClassifiedError) {
	retryParam := retry.NewRetryParam(
		0, // no jitter on fetch retries; politeness already spaces requests
		time.Now().UnixNano(),
		h.opts.MaxAttempts,
		timeutil.NewBackoffParam(500*time.Millisecond, 2.0, 30*time.Second),
	)

	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		// Every attempt counts against the host's politeness window.
		h.rateLimiter.MarkLastFetchAsNow(fetchUrl.Host)
		return h.performFetch(ctx, fetchUrl, userAgent)
	}

	result, retryErr := retry.Retry(ctx, retryParam, h.sleeper, fetchTask)
	if retryErr != nil {
		// The underlying error may be a FetchError; return it directly so
		// callers see the classified cause rather than the retry wrapper.
		var fetchErr *FetchError
		if errors.As(retryErr, &fetchErr) {
			return FetchResult{}, fetchErr
		}
		return FetchResult{}, retryErr
	}

	return result, nil
}

func (h *HtmlFetcher) performFetch(ctx context.Context, fetchUrl url.URL, userAgent string) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	for key, value := range requestHeaders(userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	// Handle HTTP status codes
	switch {
	case resp.StatusCode >= 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
			Code:      resp.StatusCode,
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return FetchResult{}, &FetchError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
			Code:      resp.StatusCode,
		}

	case resp.StatusCode == http.StatusForbidden:
		return FetchResult{}, &FetchError{
			Message:   "access forbidden (403)",
			Retryable: false,
			Cause:     ErrCauseRequestForbidden,
			Code:      resp.StatusCode,
		}

	case resp.StatusCode >= 400:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequest4xx,
			Code:      resp.StatusCode,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isSupportedContent(contentType) {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("unsupported content type: %s", contentType),
			Retryable: false,
			Cause:     ErrCauseContentTypeInvalid,
		}
	}

	// Read the body through a cap; one extra byte detects overflow.
	body, err := io.ReadAll(io.LimitReader(resp.Body, h.opts.MaxBodyBytes+1))
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}
	if int64(len(body)) > h.opts.MaxBodyBytes {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("body exceeds %d bytes", h.opts.MaxBodyBytes),
			Retryable: false,
			Cause:     ErrCauseBodyTooLarge,
		}
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	finalURL := fetchUrl
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = *resp.Request.URL
	}

	return FetchResult{
		url:       finalURL,
		body:      body,
		fetchedAt: time.Now(),
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			contentType:     contentType,
			responseHeaders: responseHeaders,
		},
	}, nil
}

// classifyTransportError distinguishes cancellation, deadline, redirect
// policy errors, and plain network failures from a client.Do error.
func classifyTransportError(ctx context.Context, err error) *FetchError {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		// CheckRedirect errors surface wrapped in *url.Error.
		return fetchErr
	}

	if ctx.Err() == context.Canceled {
		return &FetchError{
			Message:   "fetch cancelled",
			Retryable: false,
			Cause:     ErrCauseCancelled,
		}
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return &FetchError{
			Message:   fmt.Sprintf("request timed out: %v", err),
			Retryable: true,
			Cause:     ErrCauseTimeout,
		}
	}

	return &FetchError{
		Message:   fmt.Sprintf("request failed: %v", err),
		Retryable: true,
		Cause:     ErrCauseNetworkFailure,
	}
}

func isSupportedContent(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml") ||
		strings.Contains(ct, "text/markdown") ||
		strings.Contains(ct, "text/plain")
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Connection":      "keep-alive",
	}
}

package robots

import (
	"context"
	"net/url"
	"time"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache the parsed policy per host with a TTL
- Answer allow/disallow for a URL before it is fetched

The fetcher consults Decide before it sends any request for a URL. Decide
reports a disallow as a Decision, never as a RobotsError; the fetcher then
ends that URL with a robots-disallowed FetchError.
*/

// Decision is the outcome of consulting a host's robots policy for one URL.
type Decision struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// Robot decides whether a URL may be fetched under the host's policy.
type Robot interface {
	Init(userAgent string)
	Decide(ctx context.Context, target url.URL) (Decision, *RobotsError)
}

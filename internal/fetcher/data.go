package fetcher

import (
	"net/url"
	"time"
)

// HTTP boundary

type FetchParam struct {
	fetchUrl      url.URL
	userAgent     string
	respectRobots bool
}

func NewFetchParam(fetchUrl url.URL, userAgent string, respectRobots bool) FetchParam {
	return FetchParam{
		fetchUrl:      fetchUrl,
		userAgent:     userAgent,
		respectRobots: respectRobots,
	}
}

type FetchResult struct {
	url       url.URL // final URL after redirects
	body      []byte
	meta      ResponseMeta
	duration  time.Duration
	fetchedAt time.Time
}

func (f *FetchResult) URL() url.URL {
	return f.url
}

func (f *FetchResult) Body() []byte {
	return f.body
}

func (f *FetchResult) Code() int {
	return f.meta.statusCode
}

func (f *FetchResult) SizeByte() int64 {
	return int64(len(f.body))
}

func (f *FetchResult) Headers() map[string]string {
	return f.meta.responseHeaders
}

func (f *FetchResult) ContentType() string {
	return f.meta.contentType
}

func (f *FetchResult) Duration() time.Duration {
	return f.duration
}

func (f *FetchResult) FetchedAt() time.Time {
	return f.fetchedAt
}

type ResponseMeta struct {
	statusCode      int
	contentType     string
	responseHeaders map[string]string
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	url url.URL,
	body []byte,
	statusCode int,
	contentType string,
	responseHeaders map[string]string,
	fetchedAt time.Time,
) FetchResult {
	return FetchResult{
		url:       url,
		body:      body,
		fetchedAt: fetchedAt,
		meta: ResponseMeta{
			statusCode:      statusCode,
			contentType:     contentType,
			responseHeaders: responseHeaders,
		},
	}
}

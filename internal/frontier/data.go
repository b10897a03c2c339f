package frontier

import "net/url"

/*
 Frontier - manages crawl state & ordering
*/

// CrawlToken
// Frontier-issued, per-URL crawl Token
// It represents: "This URL, at this depth, in this deterministic order, is next"
// It contains no semantic policy decisions.
// It represents ordering + depth metadata only.
type CrawlToken struct {
	url     url.URL
	depth   int
	urlHash string
}

// NewCrawlToken creates a new CrawlToken with the given URL and depth.
// This constructor is provided for testing and internal use.
func NewCrawlToken(u url.URL, depth int, urlHash string) CrawlToken {
	return CrawlToken{
		url:     u,
		depth:   depth,
		urlHash: urlHash,
	}
}

func (c *CrawlToken) URL() url.URL {
	return c.url
}

func (c *CrawlToken) Depth() int {
	return c.depth
}

func (c *CrawlToken) URLHash() string {
	return c.urlHash
}

// SourceContext records whether a URL entered as a seed or was
// discovered during the crawl.
type SourceContext string

const (
	SourceSeed  SourceContext = "Seed"
	SourceCrawl SourceContext = "Crawl"
)

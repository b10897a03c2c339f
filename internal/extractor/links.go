package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rohmanhakim/lore-crawler/pkg/urlutil"
)

// discoverLinks collects every href in the document, resolves it against
// the page URL, and returns canonicalized absolute HTTP(S) URLs, deduped,
// in document order.
func discoverLinks(doc *goquery.Document, base url.URL) []url.URL {
	var links []url.URL
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(parsed)
		if !urlutil.IsHTTP(*resolved) {
			return
		}

		canonical := urlutil.Canonicalize(*resolved)
		key := canonical.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, canonical)
	})

	return links
}

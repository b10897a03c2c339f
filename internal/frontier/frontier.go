package frontier

import (
	"container/heap"
	"net/url"

	"github.com/rohmanhakim/lore-crawler/pkg/hashutil"
	"github.com/rohmanhakim/lore-crawler/pkg/urlutil"
)

/*
Frontier Responsibilities
- Maintain BFS ordering: depth ascending, then URL hash ascending
- Deduplicate URLs (by canonical URL hash) and documents (by content hash)
- Track crawl depth
- Prevent infinite traversal
- Knows nothing about:
	- fetching
	- extraction
	- scoring
	- storage

It is a data structure + policy module, not a pipeline executor. The
ordering is fully determined by the admitted URL set, so two crawls over
identical responses visit pages in the identical order.
*/

// CrawlFrontier holds the URLs known but not yet fetched for one job.
// It is owned by that job and is not safe for concurrent use.
type CrawlFrontier struct {
	queue    tokenHeap
	admitted Set[string] // URL hashes ever admitted (queued or visited)
	visited  Set[string] // URL hashes handed out via Next
	contents Set[string] // content hashes of bodies already ingested
}

func NewCrawlFrontier() *CrawlFrontier {
	f := &CrawlFrontier{
		admitted: NewSet[string](),
		visited:  NewSet[string](),
		contents: NewSet[string](),
	}
	heap.Init(&f.queue)
	return f
}

// Submit admits a URL at the given depth. The URL is canonicalized and
// deduplicated: a URL already admitted (at any depth) is rejected.
// Returns true when the URL entered the queue.
func (f *CrawlFrontier) Submit(u url.URL, depth int) bool {
	canonical := urlutil.Canonicalize(u)
	urlHash := hashutil.URLHash(canonical.String())

	if f.admitted.Contains(urlHash) {
		return false
	}
	f.admitted.Add(urlHash)

	heap.Push(&f.queue, CrawlToken{
		url:     canonical,
		depth:   depth,
		urlHash: urlHash,
	})
	return true
}

// Next pops the first URL in (depth, url-hash) order.
// Returns false when the frontier is exhausted.
func (f *CrawlFrontier) Next() (CrawlToken, bool) {
	if f.queue.Len() == 0 {
		return CrawlToken{}, false
	}
	token := heap.Pop(&f.queue).(CrawlToken)
	f.visited.Add(token.urlHash)
	return token, true
}

func (f *CrawlFrontier) Len() int {
	return f.queue.Len()
}

func (f *CrawlFrontier) VisitedCount() int {
	return f.visited.Size()
}

// MarkContentSeen records a document body hash.
func (f *CrawlFrontier) MarkContentSeen(contentHash string) {
	f.contents.Add(contentHash)
}

// ContentSeen reports whether a body with this hash was already ingested
// during the job.
func (f *CrawlFrontier) ContentSeen(contentHash string) bool {
	return f.contents.Contains(contentHash)
}

// tokenHeap orders tokens by depth ascending, ties broken by URL hash
// ascending. Hash ordering is what keeps the visit order deterministic
// across runs regardless of link discovery order.
type tokenHeap []CrawlToken

func (h tokenHeap) Len() int { return len(h) }

func (h tokenHeap) Less(i, j int) bool {
	if h[i].depth != h[j].depth {
		return h[i].depth < h[j].depth
	}
	return h[i].urlHash < h[j].urlHash
}

func (h tokenHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *tokenHeap) Push(x any) {
	*h = append(*h, x.(CrawlToken))
}

func (h *tokenHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

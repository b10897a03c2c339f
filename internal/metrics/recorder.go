package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/rohmanhakim/lore-crawler/internal/store"
	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

/*
Recorder aggregates per-job counters.

- Counters are updated atomically from the crawl path.
- Emission is observational only and must not influence scheduling,
  retries, or crawl termination.
- Snapshots are taken by the job owner when flushing to the store.
*/
type Recorder struct {
	pagesFetched    atomic.Int64
	bitsEmitted     atomic.Int64
	bytesDownloaded atomic.Int64

	errMu        sync.Mutex
	errorsByKind map[string]int
}

func NewRecorder() *Recorder {
	return &Recorder{
		errorsByKind: make(map[string]int),
	}
}

func (r *Recorder) RecordPage() {
	r.pagesFetched.Add(1)
}

func (r *Recorder) RecordBits(n int) {
	r.bitsEmitted.Add(int64(n))
}

func (r *Recorder) RecordBytes(n int64) {
	r.bytesDownloaded.Add(n)
}

func (r *Recorder) RecordError(kind failure.Kind) {
	// Cancellation is not an error; it would pollute the counters.
	if kind == failure.KindCancelled {
		return
	}
	r.errMu.Lock()
	r.errorsByKind[kind.String()]++
	r.errMu.Unlock()
}

func (r *Recorder) PagesFetched() int {
	return int(r.pagesFetched.Load())
}

// Snapshot copies the counters into a store-shaped metrics value.
func (r *Recorder) Snapshot() store.JobMetrics {
	r.errMu.Lock()
	errors := make(map[string]int, len(r.errorsByKind))
	for k, v := range r.errorsByKind {
		errors[k] = v
	}
	r.errMu.Unlock()

	return store.JobMetrics{
		PagesFetched:    int(r.pagesFetched.Load()),
		BitsEmitted:     int(r.bitsEmitted.Load()),
		BytesDownloaded: r.bytesDownloaded.Load(),
		ErrorsByKind:    errors,
	}
}

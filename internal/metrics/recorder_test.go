package metrics_test

import (
	"sync"
	"testing"

	"github.com/rohmanhakim/lore-crawler/internal/metrics"
	"github.com/rohmanhakim/lore-crawler/pkg/failure"
)

func TestRecorder_Snapshot(t *testing.T) {
	rec := metrics.NewRecorder()

	rec.RecordPage()
	rec.RecordPage()
	rec.RecordBits(5)
	rec.RecordBytes(1024)
	rec.RecordError(failure.KindTransientNetwork)
	rec.RecordError(failure.KindTransientNetwork)
	rec.RecordError(failure.KindPermanentHTTP)

	snap := rec.Snapshot()
	if snap.PagesFetched != 2 {
		t.Errorf("pages = %d, want 2", snap.PagesFetched)
	}
	if snap.BitsEmitted != 5 {
		t.Errorf("bits = %d, want 5", snap.BitsEmitted)
	}
	if snap.BytesDownloaded != 1024 {
		t.Errorf("bytes = %d, want 1024", snap.BytesDownloaded)
	}
	if snap.ErrorsByKind["transient-network"] != 2 {
		t.Errorf("transient errors = %d, want 2", snap.ErrorsByKind["transient-network"])
	}
	if snap.ErrorsByKind["permanent-http"] != 1 {
		t.Errorf("permanent errors = %d, want 1", snap.ErrorsByKind["permanent-http"])
	}
}

func TestRecorder_CancellationIsNotAnError(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.RecordError(failure.KindCancelled)

	if len(rec.Snapshot().ErrorsByKind) != 0 {
		t.Error("cancellation must not count as an error")
	}
}

func TestRecorder_ConcurrentUpdates(t *testing.T) {
	rec := metrics.NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rec.RecordPage()
				rec.RecordBits(1)
				rec.RecordError(failure.KindParseFailed)
			}
		}()
	}
	wg.Wait()

	snap := rec.Snapshot()
	if snap.PagesFetched != 1000 {
		t.Errorf("pages = %d, want 1000", snap.PagesFetched)
	}
	if snap.ErrorsByKind["parse-failed"] != 1000 {
		t.Errorf("errors = %d, want 1000", snap.ErrorsByKind["parse-failed"])
	}
}

package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecordMaintainsCallInvariant(t *testing.T) {
	store := NewStore(0.35)

	store.Record("codegen", "m1", true, 100*time.Millisecond, 0.9)
	store.Record("codegen", "m1", false, 50*time.Millisecond, 0)
	store.Record("codegen", "m1", true, 80*time.Millisecond, 0.8)

	snapshot, ok := store.Snapshot("codegen", "m1")
	if !ok {
		t.Fatal("expected recorded stats")
	}
	if snapshot.Calls != 3 {
		t.Fatalf("expected 3 calls, got %d", snapshot.Calls)
	}
	if snapshot.Successes+snapshot.Failures != snapshot.Calls {
		t.Fatalf("invariant broken: %d + %d != %d", snapshot.Successes, snapshot.Failures, snapshot.Calls)
	}
}

func TestQualityConvergesMonotonicallyTowardOne(t *testing.T) {
	store := NewStore(0.35)

	prev := 0.0
	for i := 0; i < 50; i++ {
		store.Record("codegen", "m1", true, 100*time.Millisecond, 1.0)
		snapshot, _ := store.Snapshot("codegen", "m1")
		if snapshot.EMAQuality < prev {
			t.Fatalf("quality regressed at step %d: %f < %f", i, snapshot.EMAQuality, prev)
		}
		if snapshot.EMAQuality > 1.0 {
			t.Fatalf("quality exceeded 1.0: %f", snapshot.EMAQuality)
		}
		prev = snapshot.EMAQuality
	}
	if prev < 0.99 {
		t.Fatalf("expected quality to converge toward 1.0, got %f", prev)
	}
}

func TestFailureRateConvergesTowardOne(t *testing.T) {
	store := NewStore(0.35)

	for i := 0; i < 20; i++ {
		store.Record("codegen", "m1", false, 100*time.Millisecond, 0)
	}

	snapshot, _ := store.Snapshot("codegen", "m1")
	if rate := snapshot.FailureRate(); rate != 1.0 {
		t.Fatalf("expected failure rate 1.0, got %f", rate)
	}
}

func TestQualityClampedToUnitInterval(t *testing.T) {
	store := NewStore(0.5)

	store.Record("codegen", "m1", true, time.Second, 5.0)
	snapshot, _ := store.Snapshot("codegen", "m1")
	if snapshot.EMAQuality > 1.0 {
		t.Fatalf("quality exceeded 1.0: %f", snapshot.EMAQuality)
	}

	store.Record("codegen", "m1", true, time.Second, -3.0)
	snapshot, _ = store.Snapshot("codegen", "m1")
	if snapshot.EMAQuality < 0 {
		t.Fatalf("quality below 0: %f", snapshot.EMAQuality)
	}
}

func TestLatencySeededOnFirstObservation(t *testing.T) {
	store := NewStore(0.35)

	store.Record("codegen", "m1", true, 200*time.Millisecond, 0.5)
	snapshot, _ := store.Snapshot("codegen", "m1")
	if snapshot.EMALatency != 200*time.Millisecond {
		t.Fatalf("expected first latency to seed the average, got %v", snapshot.EMALatency)
	}

	store.Record("codegen", "m1", true, 400*time.Millisecond, 0.5)
	snapshot, _ = store.Snapshot("codegen", "m1")
	if snapshot.EMALatency <= 200*time.Millisecond || snapshot.EMALatency >= 400*time.Millisecond {
		t.Fatalf("expected smoothed latency between observations, got %v", snapshot.EMALatency)
	}
}

func TestConcurrentRecordsLoseNoUpdates(t *testing.T) {
	store := NewStore(0.35)

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				store.Record("codegen", "m1", i%2 == 0, 10*time.Millisecond, 0.5)
			}
		}()
	}
	wg.Wait()

	snapshot, _ := store.Snapshot("codegen", "m1")
	if snapshot.Calls != workers*perWorker {
		t.Fatalf("lost updates: expected %d calls, got %d", workers*perWorker, snapshot.Calls)
	}
	if snapshot.Successes+snapshot.Failures != snapshot.Calls {
		t.Fatalf("invariant broken under concurrency")
	}
}

func TestSnapshotUnseenBackend(t *testing.T) {
	store := NewStore(0.35)
	if _, ok := store.Snapshot("codegen", "never-used"); ok {
		t.Fatal("expected no stats for unseen backend")
	}
}

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := NewStore(0.35, WithRegisterer(reg))

	store.Record("codegen", "m1", true, 100*time.Millisecond, 1.0)
	store.Record("codegen", "m1", false, 100*time.Millisecond, 0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

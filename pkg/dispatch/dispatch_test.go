package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/zen-systems/infragate/pkg/adapter"
	"github.com/zen-systems/infragate/pkg/stats"
)

func newTestDispatcher(mock *adapter.MockAdapter, backends []string, opts ...Option) (*Dispatcher, *stats.Store) {
	store := stats.NewStore(0.35)
	routes := Routes{TaskCodegen: backends}
	all := append([]Option{WithDefaultAdapter("mock")}, opts...)
	return New(map[string]adapter.Adapter{"mock": mock}, routes, store, all...), store
}

func TestDispatchFirstCandidateSucceeds(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.SetResponse("m1", "resource \"aws_instance\" \"web\" {}")
	d, store := newTestDispatcher(mock, []string{"m1", "m2"})

	result, err := d.Dispatch(context.Background(), TaskCodegen, "make an instance", adapter.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Backend != "m1" {
		t.Fatalf("expected backend m1, got %s", result.Backend)
	}
	if result.Quality <= 0 {
		t.Fatalf("expected positive quality, got %f", result.Quality)
	}

	snapshot, ok := store.Snapshot(TaskCodegen, "m1")
	if !ok || snapshot.Successes != 1 {
		t.Fatalf("expected one recorded success, got %+v", snapshot)
	}
	if calls := mock.Calls(); len(calls) != 1 {
		t.Fatalf("expected one backend call, got %d", len(calls))
	}
}

func TestDispatchFallsOverToNextCandidate(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.SetError("m1", errors.New("rate limited"))
	mock.SetResponse("m2", "resource \"aws_s3_bucket\" \"b\" {}")
	d, store := newTestDispatcher(mock, []string{"m1", "m2"})

	result, err := d.Dispatch(context.Background(), TaskCodegen, "make a bucket", adapter.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Backend != "m2" {
		t.Fatalf("expected fallback to m2, got %s", result.Backend)
	}

	first, _ := store.Snapshot(TaskCodegen, "m1")
	if first.Failures != 1 {
		t.Fatalf("expected one recorded failure for m1, got %+v", first)
	}
	second, _ := store.Snapshot(TaskCodegen, "m2")
	if second.Successes != 1 {
		t.Fatalf("expected one recorded success for m2, got %+v", second)
	}
}

func TestDispatchExhaustionReportsEveryAttempt(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.SetError("m1", errors.New("overloaded"))
	mock.SetError("m2", errors.New("timeout"))
	mock.SetError("m3", errors.New("bad gateway"))
	d, store := newTestDispatcher(mock, []string{"m1", "m2", "m3"})

	_, err := d.Dispatch(context.Background(), TaskCodegen, "anything", adapter.Options{})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	}
	if len(exhausted.Attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(exhausted.Attempts))
	}
	if exhausted.Attempts[0].Backend != "m1" || exhausted.Attempts[2].Backend != "m3" {
		t.Fatalf("attempt order not preserved: %+v", exhausted.Attempts)
	}

	for _, backend := range []string{"m1", "m2", "m3"} {
		snapshot, _ := store.Snapshot(TaskCodegen, backend)
		if snapshot.Failures != 1 {
			t.Fatalf("expected one failure recorded for %s, got %+v", backend, snapshot)
		}
	}
}

func TestDispatchEmptyResponseCountsAsFailure(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.SetResponse("m1", "   \n  ")
	mock.SetResponse("m2", "resource \"aws_vpc\" \"main\" {}")
	d, _ := newTestDispatcher(mock, []string{"m1", "m2"})

	result, err := d.Dispatch(context.Background(), TaskCodegen, "make a vpc", adapter.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Backend != "m2" {
		t.Fatalf("expected empty response to advance to m2, got %s", result.Backend)
	}
}

func TestDispatchNoBackends(t *testing.T) {
	mock := adapter.NewMockAdapter()
	d := New(map[string]adapter.Adapter{"mock": mock}, Routes{}, stats.NewStore(0.35))

	_, err := d.Dispatch(context.Background(), TaskCodegen, "anything", adapter.Options{})
	if !errors.Is(err, ErrNoBackends) {
		t.Fatalf("expected ErrNoBackends, got %v", err)
	}
}

func TestDispatchUnknownAdapterAdvances(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.SetResponse("m1", "resource \"aws_subnet\" \"a\" {}")
	d, _ := newTestDispatcher(mock, []string{"missing/other-model", "m1"})

	result, err := d.Dispatch(context.Background(), TaskCodegen, "make a subnet", adapter.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Backend != "m1" {
		t.Fatalf("expected unknown adapter to be skipped, got %s", result.Backend)
	}
}

func TestAdaptiveRankingPrefersUnseenBackend(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.SetResponse("fresh", "resource \"aws_iam_role\" \"r\" {}")
	mock.SetResponse("weak", "resource \"aws_iam_role\" \"r\" {}")
	d, store := newTestDispatcher(mock, []string{"weak", "fresh"},
		WithAdaptiveRanking(true),
		WithExploration(0),
	)

	// weak has an established bad record; fresh has never been tried.
	for i := 0; i < 10; i++ {
		store.Record(TaskCodegen, "weak", false, 4*time.Second, 0)
	}

	result, err := d.Dispatch(context.Background(), TaskCodegen, "make a role", adapter.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Backend != "fresh" {
		t.Fatalf("expected unseen backend to rank first, got %s", result.Backend)
	}
	if result.Selection == nil {
		t.Fatal("expected selection context when adaptive ranking is on")
	}
	if result.Selection.CandidateOrder[0] != "fresh" {
		t.Fatalf("expected ranked order to lead with fresh, got %v", result.Selection.CandidateOrder)
	}
}

func TestAdaptiveRankingPrefersStrongerRecord(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.SetResponse("good", "resource \"aws_db_instance\" \"db\" {}")
	mock.SetResponse("bad", "resource \"aws_db_instance\" \"db\" {}")
	d, store := newTestDispatcher(mock, []string{"bad", "good"},
		WithAdaptiveRanking(true),
		WithExploration(0),
	)

	for i := 0; i < 10; i++ {
		store.Record(TaskCodegen, "good", true, 200*time.Millisecond, 0.95)
		store.Record(TaskCodegen, "bad", false, 5*time.Second, 0)
	}

	result, err := d.Dispatch(context.Background(), TaskCodegen, "make a database", adapter.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Backend != "good" {
		t.Fatalf("expected good record to rank first, got %s", result.Backend)
	}
}

func TestRankScoresEachCandidateOnce(t *testing.T) {
	mock := adapter.NewMockAdapter()
	for _, m := range []string{"m1", "m2", "m3", "m4"} {
		mock.SetResponse(m, "resource \"aws_kms_key\" \"k\" {}")
	}
	scored := make(map[string]int)
	d, _ := newTestDispatcher(mock, []string{"m1", "m2", "m3", "m4"},
		WithAdaptiveRanking(true),
		WithExploration(0),
		WithPriorityBias(func(task, backend string) float64 {
			scored[backend]++
			return 0
		}),
	)

	if _, err := d.Dispatch(context.Background(), TaskCodegen, "make a key", adapter.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, m := range []string{"m1", "m2", "m3", "m4"} {
		if scored[m] != 1 {
			t.Fatalf("expected exactly one score snapshot for %s, got %d", m, scored[m])
		}
	}
}

func TestSelectionNilWithoutAdaptiveRanking(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.SetResponse("m1", "ok output")
	d, _ := newTestDispatcher(mock, []string{"m1"})

	result, err := d.Dispatch(context.Background(), TaskCodegen, "anything", adapter.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Selection != nil {
		t.Fatal("expected no selection context when ranking is disabled")
	}
}

func TestPriorityBiasBreaksTies(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.SetResponse("m1", "resource \"aws_eip\" \"ip\" {}")
	mock.SetResponse("m2", "resource \"aws_eip\" \"ip\" {}")
	d, _ := newTestDispatcher(mock, []string{"m1", "m2"},
		WithAdaptiveRanking(true),
		WithExploration(0),
		WithPriorityBias(func(task, backend string) float64 {
			if backend == "m2" {
				return 0.5
			}
			return 0
		}),
	)

	result, err := d.Dispatch(context.Background(), TaskCodegen, "make an eip", adapter.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Backend != "m2" {
		t.Fatalf("expected bias to promote m2, got %s", result.Backend)
	}
}

func TestExplorationShuffleUsesInjectedRand(t *testing.T) {
	mock := adapter.NewMockAdapter()
	for _, m := range []string{"m1", "m2", "m3"} {
		mock.SetResponse(m, "resource \"aws_sqs_queue\" \"q\" {}")
	}
	d, _ := newTestDispatcher(mock, []string{"m1", "m2", "m3"},
		WithAdaptiveRanking(true),
		WithExploration(1),
		WithRand(rand.New(rand.NewSource(7))),
	)

	result, err := d.Dispatch(context.Background(), TaskCodegen, "make a queue", adapter.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Selection.CandidateOrder) != 3 {
		t.Fatalf("shuffle must preserve the candidate set, got %v", result.Selection.CandidateOrder)
	}
	seen := map[string]bool{}
	for _, b := range result.Selection.CandidateOrder {
		seen[b] = true
	}
	for _, m := range []string{"m1", "m2", "m3"} {
		if !seen[m] {
			t.Fatalf("candidate %s lost in shuffle: %v", m, result.Selection.CandidateOrder)
		}
	}
}

func TestResolveBackendIDs(t *testing.T) {
	d, _ := newTestDispatcher(adapter.NewMockAdapter(), nil)

	name, model := d.resolve("anthropic/claude-sonnet-4-20250514")
	if name != "anthropic" || model != "claude-sonnet-4-20250514" {
		t.Fatalf("unexpected split: %s / %s", name, model)
	}

	name, model = d.resolve("bare-model")
	if name != "mock" || model != "bare-model" {
		t.Fatalf("expected default adapter for bare id, got %s / %s", name, model)
	}
}

func TestLatencyScore(t *testing.T) {
	if got := latencyScore(0); got != 0.6 {
		t.Fatalf("expected neutral score for no signal, got %f", got)
	}
	fast := latencyScore(100 * time.Millisecond)
	slow := latencyScore(10 * time.Second)
	if fast <= slow {
		t.Fatalf("expected faster latency to score higher: %f vs %f", fast, slow)
	}
	if fast > 1.0 || slow < 0 {
		t.Fatalf("scores out of range: %f, %f", fast, slow)
	}
}

// Package dispatch routes generation tasks across interchangeable model
// backends, ranking candidates by live performance and falling over to the
// next candidate on failure.
package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zen-systems/infragate/pkg/adapter"
	"github.com/zen-systems/infragate/pkg/stats"
)

// explorationBonus is the score granted to a backend never attempted for a
// task, so it ranks above any backend with negative observed signal.
const explorationBonus = 1.5

// BiasFunc returns a fixed priority adjustment for a backend on a task.
type BiasFunc func(task, backend string) float64

// Dispatcher routes a generation task to one of several candidate
// backends. Attempts are strictly sequential; the first success wins.
type Dispatcher struct {
	adapters       map[string]adapter.Adapter
	defaultAdapter string
	routes         Routes
	store          *stats.Store

	adaptive    bool
	profile     string
	exploration float64
	qualityW    float64
	latencyW    float64
	failureW    float64

	bias    BiasFunc
	scorers map[string]QualityScorer
	rng     *rand.Rand
	log     zerolog.Logger
}

// Result is one successful dispatch outcome.
type Result struct {
	Text    string
	Raw     any
	Backend string
	Latency time.Duration
	Quality float64

	// Selection carries ranking context for observability. Nil when
	// adaptive ranking is disabled.
	Selection *Selection
}

// Selection records the ranking context behind a dispatch decision.
type Selection struct {
	Task           string
	Profile        string
	Backend        string
	Latency        time.Duration
	Quality        float64
	CandidateOrder []string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAdaptiveRanking toggles stats-based candidate ranking.
func WithAdaptiveRanking(enabled bool) Option {
	return func(d *Dispatcher) { d.adaptive = enabled }
}

// WithProfile names the active routing profile for observability.
func WithProfile(profile string) Option {
	return func(d *Dispatcher) { d.profile = profile }
}

// WithWeights sets the quality, latency and failure scoring weights.
// Negative weights are clamped to zero.
func WithWeights(quality, latency, failure float64) Option {
	return func(d *Dispatcher) {
		d.qualityW = max(0, quality)
		d.latencyW = max(0, latency)
		d.failureW = max(0, failure)
	}
}

// WithExploration sets the probability of discarding the ranked order in
// favor of a uniform shuffle. Clamped to [0, 1].
func WithExploration(rate float64) Option {
	return func(d *Dispatcher) {
		d.exploration = min(1, max(0, rate))
	}
}

// WithPriorityBias installs a per-(task, backend) score adjustment.
func WithPriorityBias(bias BiasFunc) Option {
	return func(d *Dispatcher) { d.bias = bias }
}

// WithQualityScorer overrides the quality heuristic for a task.
func WithQualityScorer(task string, scorer QualityScorer) Option {
	return func(d *Dispatcher) { d.scorers[task] = scorer }
}

// WithRand injects the randomness source used for exploration shuffles.
func WithRand(rng *rand.Rand) Option {
	return func(d *Dispatcher) { d.rng = rng }
}

// WithDefaultAdapter sets the adapter used for bare backend ids that carry
// no "adapter/" prefix.
func WithDefaultAdapter(name string) Option {
	return func(d *Dispatcher) { d.defaultAdapter = name }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// New creates a Dispatcher over the given adapter registry, routes and
// stats store.
func New(adapters map[string]adapter.Adapter, routes Routes, store *stats.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		adapters:    adapters,
		routes:      routes,
		store:       store,
		profile:     "balanced",
		exploration: 0.15,
		qualityW:    0.65,
		latencyW:    0.35,
		failureW:    0.50,
		bias:        func(string, string) float64 { return 0 },
		scorers:     defaultScorers(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch tries the ranked candidates for a task in order and returns the
// first success. Every attempt updates the stats store. When all
// candidates fail, the returned error is an *ExhaustedError carrying the
// per-backend attempt errors in order.
func (d *Dispatcher) Dispatch(ctx context.Context, task, prompt string, opts adapter.Options) (*Result, error) {
	candidates := d.routes.For(task)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w for task %q", ErrNoBackends, task)
	}
	candidates = d.rank(task, candidates)

	var attempts []AttemptError
	for _, backend := range candidates {
		started := time.Now()
		resp, err := d.attempt(ctx, backend, prompt, opts)
		latency := time.Since(started)

		if err != nil {
			d.store.Record(task, backend, false, latency, 0)
			attempts = append(attempts, AttemptError{Backend: backend, Err: err})
			d.log.Warn().Str("task", task).Str("backend", backend).
				Dur("latency", latency).Err(err).Msg("backend attempt failed")
			continue
		}

		quality := d.scoreQuality(task, resp.Text, opts.OutputFormat)
		d.store.Record(task, backend, true, latency, quality)
		d.log.Debug().Str("task", task).Str("backend", backend).
			Dur("latency", latency).Float64("quality", quality).Msg("backend attempt succeeded")

		result := &Result{
			Text:    resp.Text,
			Raw:     resp.Raw,
			Backend: backend,
			Latency: latency,
			Quality: quality,
		}
		if d.adaptive {
			result.Selection = &Selection{
				Task:           task,
				Profile:        d.profile,
				Backend:        backend,
				Latency:        latency,
				Quality:        quality,
				CandidateOrder: candidates,
			}
		}
		return result, nil
	}

	return nil, &ExhaustedError{Task: task, Attempts: attempts}
}

func (d *Dispatcher) attempt(ctx context.Context, backend, prompt string, opts adapter.Options) (*adapter.Response, error) {
	adapterName, model := d.resolve(backend)
	a, ok := d.adapters[adapterName]
	if !ok {
		return nil, fmt.Errorf("unknown adapter %q", adapterName)
	}
	resp, err := a.Generate(ctx, model, prompt, opts)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, fmt.Errorf("empty response")
	}
	return resp, nil
}

// resolve splits a backend id into adapter and model. A bare id uses the
// default adapter.
func (d *Dispatcher) resolve(backend string) (string, string) {
	if idx := strings.Index(backend, "/"); idx > 0 {
		return backend[:idx], backend[idx+1:]
	}
	return d.defaultAdapter, backend
}

func (d *Dispatcher) scoreQuality(task, text, outputFormat string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	if outputFormat == "json" {
		return StructuredScore(text)
	}
	if scorer, ok := d.scorers[task]; ok {
		return scorer(text)
	}
	return FreeformScore(text)
}

// rank orders candidates by runtime score when adaptive ranking is active.
// With a small configured probability the ranked order is replaced by a
// uniform shuffle so the ranking stays honest against drift.
func (d *Dispatcher) rank(task string, candidates []string) []string {
	if !d.adaptive || len(candidates) <= 1 {
		return candidates
	}

	// Scores are snapshotted once per candidate; scoring inside the
	// comparator would let a concurrent Record shift scores mid-sort.
	scores := make(map[string]float64, len(candidates))
	for _, backend := range candidates {
		scores[backend] = d.runtimeScore(task, backend)
	}

	ranked := make([]string, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] > scores[ranked[j]]
	})

	if d.rng.Float64() < d.exploration {
		d.rng.Shuffle(len(ranked), func(i, j int) {
			ranked[i], ranked[j] = ranked[j], ranked[i]
		})
	}
	return ranked
}

// runtimeScore computes the ranking score for one backend on one task.
// Backends with no recorded calls receive a fixed exploration bonus.
func (d *Dispatcher) runtimeScore(task, backend string) float64 {
	snapshot, seen := d.store.Snapshot(task, backend)
	if !seen || snapshot.Calls == 0 {
		return explorationBonus + d.bias(task, backend)
	}

	return d.qualityW*snapshot.EMAQuality +
		d.latencyW*latencyScore(snapshot.EMALatency) -
		d.failureW*snapshot.FailureRate() +
		d.bias(task, backend)
}

// latencyScore maps an EMA latency to [0, 1]: 1.0 for very fast, decaying
// smoothly as latency grows. A zero EMA means no signal and scores a
// neutral 0.6.
func latencyScore(latency time.Duration) float64 {
	if latency <= 0 {
		return 0.6
	}
	return 1.0 / (1.0 + float64(latency)/float64(2500*time.Millisecond))
}

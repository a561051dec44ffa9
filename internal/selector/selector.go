// Package selector implements the Source Selector from spec.md §4.5: it
// orchestrates the Spatial Index, Campaign Scorer, and Object-Store Reader,
// falling back to the External API Client per a priority-ordered provider
// list, and surfaces which provider answered. It is the one place every
// other component's output converges, so it is also where the Reliability
// Layer's breakers, semaphores, and deadlines are enforced.
package selector

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jcom-dev/elevresolve/internal/apiclient"
	"github.com/jcom-dev/elevresolve/internal/breaker"
	"github.com/jcom-dev/elevresolve/internal/cache"
	"github.com/jcom-dev/elevresolve/internal/config"
	"github.com/jcom-dev/elevresolve/internal/model"
	"github.com/jcom-dev/elevresolve/internal/objectstore"
	"github.com/jcom-dev/elevresolve/internal/scorer"
	"github.com/jcom-dev/elevresolve/internal/spatialindex"
)

// maxDatasetAttemptsPerProvider bounds how many ranked datasets an
// ObjectStoreProvider branch will try before escalating to the next
// provider, per §4.5 step 2 ("up to 3 before escalating providers").
const maxDatasetAttemptsPerProvider = 3

// Selector wires together every dependency explicitly at construction,
// per spec.md §9's redesign flag against process-wide singletons: there is
// no global service container here, only this struct's fields.
type Selector struct {
	index     *spatialindex.Index
	providers []model.Provider // already sorted by priority_class descending, then config order
	weights   config.ScoringWeights

	reader     *objectstore.Reader
	apiClients map[string]*apiclient.Client

	breakers *breaker.Manager
	points   *cache.PointCache

	globalSem *semaphore.Weighted
	providerSems map[string]*semaphore.Weighted
	providerConcurrency int

	objectStoreTimeout time.Duration
	httpTimeout        time.Duration

	logger *slog.Logger
}

// New constructs a Selector from already-built dependencies. It never
// reads configuration itself; the caller (cmd/elevresolve) is responsible
// for building each dependency from a config.Config.
func New(
	index *spatialindex.Index,
	providers []model.Provider,
	weights config.ScoringWeights,
	reader *objectstore.Reader,
	apiClients map[string]*apiclient.Client,
	breakers *breaker.Manager,
	points *cache.PointCache,
	rel config.ReliabilityConfig,
	logger *slog.Logger,
) *Selector {
	sorted := make([]model.Provider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	providerSems := make(map[string]*semaphore.Weighted, len(sorted))
	for _, p := range sorted {
		n := int64(rel.ProviderConcurrency)
		if p.MaxConcurrency > 0 {
			n = int64(p.MaxConcurrency)
		}
		providerSems[p.ID] = semaphore.NewWeighted(n)
	}

	return &Selector{
		index:               index,
		providers:           sorted,
		weights:             weights,
		reader:              reader,
		apiClients:          apiClients,
		breakers:            breakers,
		points:              points,
		globalSem:           semaphore.NewWeighted(int64(rel.GlobalHighWaterMark)),
		providerSems:        providerSems,
		providerConcurrency: rel.ProviderConcurrency,
		objectStoreTimeout:  rel.ObjectStoreTimeout,
		httpTimeout:         rel.HTTPAPITimeout,
		logger:              logger,
	}
}

// Resolve implements the §4.5 contract: resolve(query) -> Result, emitting
// exactly one outcome (a value, explicit NoData, or a structured error).
func (s *Selector) Resolve(ctx context.Context, q model.Query) (model.Result, error) {
	started := time.Now()

	if !s.globalSem.TryAcquire(1) {
		return model.Result{}, model.NewError(model.KindOverloaded, "global in-flight high-water mark exceeded", nil)
	}
	defer s.globalSem.Release(1)

	order := s.providerOrder(q.PreferredProvider, started)

	for _, p := range order {
		res, handled, err := s.tryProvider(ctx, p, q, started)
		if err != nil && !handled {
			return model.Result{}, err
		}
		if handled {
			res.LatencyMS = uint32(time.Since(started).Milliseconds())
			return res, nil
		}
	}

	return model.NoCoverageResult(q, time.Since(started)), nil
}

// providerOrder implements §4.5 step 1-2: the preferred provider first (if
// its breaker admits it), then every other provider in descending
// priority_class, config order as the stable tiebreak.
func (s *Selector) providerOrder(preferred string, now time.Time) []model.Provider {
	if preferred == "" {
		return s.providers
	}
	order := make([]model.Provider, 0, len(s.providers))
	var preferredProvider *model.Provider
	for i := range s.providers {
		if s.providers[i].ID == preferred {
			preferredProvider = &s.providers[i]
			continue
		}
		order = append(order, s.providers[i])
	}
	if preferredProvider == nil {
		return s.providers
	}
	if s.breakers.For(preferred).State() != breaker.Open {
		return append([]model.Provider{*preferredProvider}, order...)
	}
	return order
}

// tryProvider attempts one provider in the fallback chain. handled==true
// means a final Result was produced (possibly NoData) and the caller
// should stop; handled==false with err==nil means "continue to the next
// provider"; handled==false with err!=nil means a fatal, non-fallback
// error (logic or config, or Overloaded when the provider's concurrency
// slot cannot be acquired before the deadline).
func (s *Selector) tryProvider(ctx context.Context, p model.Provider, q model.Query, started time.Time) (model.Result, bool, error) {
	now := time.Now()
	br := s.breakers.For(p.ID)
	if !br.Allow(now) {
		return model.Result{}, false, nil
	}

	deadline := q.Deadline
	if deadline.IsZero() {
		if p.Kind == model.ProviderObjectStore {
			deadline = now.Add(s.objectStoreTimeout)
		} else {
			deadline = now.Add(s.httpTimeout)
		}
	}
	if p.Timeout > 0 {
		deadline = now.Add(p.Timeout)
	}

	sem := s.providerSems[p.ID]
	semCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	if err := sem.Acquire(semCtx, 1); err != nil {
		return model.Result{}, false, model.NewError(model.KindOverloaded, "provider concurrency limit exceeded before deadline", nil)
	}
	defer sem.Release(1)

	switch p.Kind {
	case model.ProviderObjectStore:
		return s.tryObjectStore(ctx, p, q, br, deadline)
	case model.ProviderHTTPAPI:
		return s.tryHTTPAPI(ctx, p, q, br, deadline)
	default:
		return model.Result{}, false, nil
	}
}

func (s *Selector) tryObjectStore(ctx context.Context, p model.Provider, q model.Query, br *breaker.Breaker, deadline time.Time) (model.Result, bool, error) {
	candidates := s.index.Lookup(q.Lat, q.Lon)
	if len(candidates) == 0 {
		br.Record(time.Now(), true) // no coverage here isn't this provider misbehaving
		return model.Result{}, false, nil
	}

	key := cache.NewPointKey(q.Lat, q.Lon, p.ID)
	if hit, ok := s.points.Get(key); ok {
		br.Record(time.Now(), true)
		return resultFromSample(q, p.ID, hit), true, nil
	}

	ranked, _ := scorer.Rank(candidates, s.weights)
	attempts := 0
	for _, r := range ranked {
		if attempts >= maxDatasetAttemptsPerProvider {
			break
		}
		file := fileFor(candidates, r.Dataset.ID)
		if file == nil {
			continue
		}
		attempts++

		sampleCtx, cancel := context.WithDeadline(ctx, deadline)
		elevation, err := s.reader.Sample(sampleCtx, file, q.Lat, q.Lon)
		cancel()

		if err == nil {
			resM := r.Dataset.ResolutionM
			dsID := r.Dataset.ID
			sample := cache.PointSample{ElevationM: &elevation, DatasetUsed: &dsID, ResolutionM: &resM}
			s.points.Set(key, sample)
			br.Record(time.Now(), true)
			return resultFromSample(q, p.ID, sample), true, nil
		}

		switch model.Kind(err) {
		case model.KindNoData:
			continue // try next ranked dataset, same provider
		case model.KindTransient:
			br.Record(time.Now(), false)
			return model.Result{}, false, nil // escalate to next provider
		default:
			br.Record(time.Now(), false)
			return model.Result{}, false, err // logic error: abort, don't try alternatives
		}
	}

	// Every attempted dataset was NoData; cache the miss so a repeat query
	// doesn't re-open every tile again.
	s.points.Set(key, cache.PointSample{})
	br.Record(time.Now(), true)
	return model.Result{Point: q.Point(), ProviderUsed: p.ID, CRS: "EPSG:4326"}, true, nil
}

func (s *Selector) tryHTTPAPI(ctx context.Context, p model.Provider, q model.Query, br *breaker.Breaker, deadline time.Time) (model.Result, bool, error) {
	client := s.apiClients[p.ID]
	if client == nil {
		br.Record(time.Now(), true) // not configured isn't this provider misbehaving
		return model.Result{}, false, nil
	}

	key := cache.NewPointKey(q.Lat, q.Lon, p.ID)
	if hit, ok := s.points.Get(key); ok {
		br.Record(time.Now(), true)
		return resultFromSample(q, p.ID, hit), true, nil
	}

	apiCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	elevation, err := client.Point(apiCtx, q.Lat, q.Lon, deadline)
	if err != nil {
		switch model.Kind(err) {
		case model.KindRateLimited, model.KindQuotaExhausted, model.KindTransient:
			br.Record(time.Now(), false)
			return model.Result{}, false, nil
		default:
			br.Record(time.Now(), false)
			return model.Result{}, false, err
		}
	}

	br.Record(time.Now(), true)
	sample := cache.PointSample{ElevationM: elevation}
	s.points.Set(key, sample)
	return resultFromSample(q, p.ID, sample), true, nil
}

func fileFor(candidates []model.Candidate, datasetID string) *model.RasterFile {
	for _, c := range candidates {
		if c.Dataset.ID == datasetID {
			return c.File
		}
	}
	return nil
}

func resultFromSample(q model.Query, providerID string, sample cache.PointSample) model.Result {
	return model.Result{
		Point:        q.Point(),
		ElevationM:   sample.ElevationM,
		ProviderUsed: providerID,
		DatasetUsed:  sample.DatasetUsed,
		ResolutionM:  sample.ResolutionM,
		CRS:          "EPSG:4326",
	}
}

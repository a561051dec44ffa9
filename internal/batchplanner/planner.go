// Package batchplanner implements the Batch Planner from spec.md §4.6:
// group N query points for fewer remote reads, dispatch with a bounded
// worker pool, and preserve input order in the output regardless of
// completion order. The worker-pool shape is grounded directly on the
// teacher's cmd/import-elevation/main.go jobs/results channel pattern,
// generalized from "localities against one DB sink" to "points against
// per-point Selector.Resolve calls fanned back in by index."
package batchplanner

import (
	"context"
	"sync"

	"github.com/jcom-dev/elevresolve/internal/model"
)

// Resolver is the subset of selector.Selector the planner depends on. A
// narrow interface, not the concrete type, so batch tests can use a fake
// without standing up a full Selector.
type Resolver interface {
	Resolve(ctx context.Context, q model.Query) (model.Result, error)
}

// Planner dispatches a batch of queries through a bounded worker pool,
// per §4.6's two-phase design: a lightweight bucketing scan is the
// Resolver's own job (SpatialIndex lookups happen inside Resolve), so the
// Planner's responsibility here is strictly the fan-out/fan-in and order
// preservation; partial per-point failures degrade to the Selector's own
// fallback chain rather than failing the whole batch.
type Planner struct {
	resolver   Resolver
	poolSize   int
}

func New(resolver Resolver, poolSize int) *Planner {
	if poolSize <= 0 {
		poolSize = 32
	}
	return &Planner{resolver: resolver, poolSize: poolSize}
}

// job tags a query with its original index so results can be written back
// in input order independent of completion order, per §4.6 and §8's
// "batch order preservation" property.
type job struct {
	index int
	query model.Query
}

type jobResult struct {
	index  int
	result model.Result
	err    error
}

// ResolveMany implements the §4.6 contract: len(results) == len(points),
// results[i] corresponds to points[i]. An empty batch returns an empty
// slice without starting any worker, per §8's boundary behavior.
func (p *Planner) ResolveMany(ctx context.Context, queries []model.Query) ([]model.Result, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	jobs := make(chan job, len(queries))
	results := make(chan jobResult, len(queries))

	workers := p.poolSize
	if workers > len(queries) {
		workers = len(queries)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				res, err := p.resolver.Resolve(ctx, j.query)
				results <- jobResult{index: j.index, result: res, err: err}
			}
		}()
	}

	for i, q := range queries {
		jobs <- job{index: i, query: q}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]model.Result, len(queries))
	var firstErr error
	for r := range results {
		if r.err != nil {
			if model.Kind(r.err) == model.KindConfigError || model.Kind(r.err) == model.KindLogicError {
				if firstErr == nil {
					firstErr = r.err
				}
			}
			out[r.index] = model.NoCoverageResult(queries[r.index], 0)
			continue
		}
		out[r.index] = r.result
	}

	return out, firstErr
}

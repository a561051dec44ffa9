// Package resolver is the narrow query API spec.md §1 describes the
// resolver as exposing "to higher layers": single points, batches,
// line/path samples, and grid queries, all built on top of the Selector
// and Batch Planner.
package resolver

import (
	"context"
	"time"

	"github.com/jcom-dev/elevresolve/internal/batchplanner"
	"github.com/jcom-dev/elevresolve/internal/model"
)

// Selector is the subset of selector.Selector (or its Instrumented
// wrapper) the resolver facade depends on.
type Selector interface {
	Resolve(ctx context.Context, q model.Query) (model.Result, error)
}

// Resolver is the top-level facade wiring the Selector and Batch Planner
// into the operations described by spec.md §6.
type Resolver struct {
	selector Selector
	planner  *batchplanner.Planner
}

func New(sel Selector, planner *batchplanner.Planner) *Resolver {
	return &Resolver{selector: sel, planner: planner}
}

// Point resolves a single query, per §6's single-point input shape.
func (r *Resolver) Point(ctx context.Context, q model.Query) (model.Result, error) {
	return r.selector.Resolve(ctx, q)
}

// Batch resolves an array of points, preserving input order, per §6's
// batch input shape and §8's batch order preservation property.
func (r *Resolver) Batch(ctx context.Context, queries []model.Query) ([]model.Result, error) {
	return r.planner.ResolveMany(ctx, queries)
}

// Line resolves numPoints evenly spaced samples between two endpoints, per
// §6: "Line: two endpoints + num_points >= 2 -> evenly spaced samples."
func (r *Resolver) Line(ctx context.Context, from, to model.Query, numPoints int) ([]model.Result, error) {
	points := SampleLine(from.Lat, from.Lon, to.Lat, to.Lon, numPoints)
	return r.Batch(ctx, queriesFromPoints(points, from.Deadline, from.PreferredProvider))
}

// Path resolves numPoints samples along the arc length of a polyline of
// vertices, per §6: "Path: polyline of vertices + num_points -> samples
// along arc length."
func (r *Resolver) Path(ctx context.Context, vertices [][2]float64, numPoints int, deadline model.Query) ([]model.Result, error) {
	points := SamplePath(vertices, numPoints)
	return r.Batch(ctx, queriesFromPoints(points, deadline.Deadline, deadline.PreferredProvider))
}

// Grid resolves a regular lat/lon grid over a bounding box, per §6:
// "Grid/contour: bounding box + grid_size -> samples on a regular lat-lon
// grid."
func (r *Resolver) Grid(ctx context.Context, minLat, minLon, maxLat, maxLon float64, gridSize int, deadline model.Query) ([][]model.Result, error) {
	rows := SampleGrid(minLat, minLon, maxLat, maxLon, gridSize)
	out := make([][]model.Result, len(rows))
	for i, row := range rows {
		res, err := r.Batch(ctx, queriesFromPoints(row, deadline.Deadline, deadline.PreferredProvider))
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

func queriesFromPoints(points [][2]float64, deadline time.Time, preferredProvider string) []model.Query {
	out := make([]model.Query, len(points))
	for i, p := range points {
		out[i] = model.Query{Lat: p[0], Lon: p[1], Deadline: deadline, PreferredProvider: preferredProvider}
	}
	return out
}

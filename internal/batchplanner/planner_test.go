package batchplanner

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jcom-dev/elevresolve/internal/model"
)

type fakeResolver struct {
	calls  atomic.Int64
	errFor map[float64]error
}

func (f *fakeResolver) Resolve(ctx context.Context, q model.Query) (model.Result, error) {
	f.calls.Add(1)
	if err, ok := f.errFor[q.Lat]; ok {
		return model.Result{}, err
	}
	v := q.Lat * 10
	return model.Result{Point: q.Point(), ElevationM: &v, ProviderUsed: "object_store"}, nil
}

func TestResolveMany_EmptyBatchDispatchesNothing(t *testing.T) {
	f := &fakeResolver{}
	p := New(f, 4)
	out, err := p.ResolveMany(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Equal(t, int64(0), f.calls.Load())
}

func TestResolveMany_PreservesOrderRegardlessOfCompletionOrder(t *testing.T) {
	f := &fakeResolver{}
	p := New(f, 4)
	queries := make([]model.Query, 50)
	for i := range queries {
		queries[i] = model.Query{Lat: float64(i), Lon: float64(i)}
	}
	out, err := p.ResolveMany(context.Background(), queries)
	require.NoError(t, err)
	require.Len(t, out, 50)
	for i := range out {
		require.Equal(t, float64(i)*10, *out[i].ElevationM)
	}
}

func TestResolveMany_BatchOfOneEquivalentToSingleResolve(t *testing.T) {
	f := &fakeResolver{}
	p := New(f, 4)
	out, err := p.ResolveMany(context.Background(), []model.Query{{Lat: 5, Lon: 5}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 50.0, *out[0].ElevationM)
}

func TestResolveMany_PartialFailureDoesNotFailWholeBatch(t *testing.T) {
	f := &fakeResolver{errFor: map[float64]error{2: model.NewError(model.KindTransient, "boom", nil)}}
	p := New(f, 4)
	queries := []model.Query{{Lat: 1}, {Lat: 2}, {Lat: 3}}
	out, err := p.ResolveMany(context.Background(), queries)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.NotNil(t, out[0].ElevationM)
	require.Nil(t, out[1].ElevationM)
	require.NotNil(t, out[2].ElevationM)
}

func TestResolveMany_WorkerPoolBoundedByPoolSize(t *testing.T) {
	f := &fakeResolver{}
	p := New(f, 2)
	queries := make([]model.Query, 10)
	out, err := p.ResolveMany(context.Background(), queries)
	require.NoError(t, err)
	require.Len(t, out, 10)
	require.Equal(t, int64(10), f.calls.Load())
}

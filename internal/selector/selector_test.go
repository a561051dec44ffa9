package selector

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jcom-dev/elevresolve/internal/apiclient"
	"github.com/jcom-dev/elevresolve/internal/batchplanner"
	"github.com/jcom-dev/elevresolve/internal/breaker"
	"github.com/jcom-dev/elevresolve/internal/cache"
	"github.com/jcom-dev/elevresolve/internal/config"
	"github.com/jcom-dev/elevresolve/internal/model"
	"github.com/jcom-dev/elevresolve/internal/objectstore"
	"github.com/jcom-dev/elevresolve/internal/spatialindex"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBreakerConfig() breaker.Config {
	return breaker.Config{WindowSamples: 20, WindowPeriod: 30 * time.Second, ErrorRatio: 0.5, MinSamples: 5, CoolOff: 30 * time.Second}
}

// newHTTPOnlySelector builds a Selector with an empty spatial index (no
// object-store candidates anywhere) and a single HTTP API provider backed
// by srv, for exercising the global-fallback path (§8 scenario 2) without
// needing a real GDAL raster.
func newHTTPOnlySelector(t *testing.T, srv *httptest.Server) *Selector {
	t.Helper()
	idx, err := emptyIndex()
	require.NoError(t, err)

	provider := model.Provider{ID: "http_api", Kind: model.ProviderHTTPAPI, Priority: model.PriorityMedium, Endpoint: srv.URL, RateLimitRPS: 100}
	client := apiclient.New(provider, srv.Client(), nil, nil, discardLogger())

	reader := objectstore.NewReader(cache.NewHeaderCache(10, 1<<20, time.Hour), 8)
	points := cache.NewPointCache(100, 1<<20, time.Minute)
	breakers := breaker.NewManager(testBreakerConfig())
	rel := config.DefaultReliabilityConfig()

	return New(idx, []model.Provider{provider}, config.DefaultScoringWeights(), reader,
		map[string]*apiclient.Client{"http_api": client}, breakers, points, rel, discardLogger())
}

func TestResolve_GlobalFallbackToHTTPAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := 25.0
		json.NewEncoder(w).Encode(struct {
			ElevationM *float64 `json:"elevation_m"`
		}{ElevationM: &v})
	}))
	defer srv.Close()

	sel := newHTTPOnlySelector(t, srv)
	res, err := sel.Resolve(context.Background(), model.Query{Lat: -36.8485, Lon: 174.7633})
	require.NoError(t, err)
	require.NotNil(t, res.ElevationM)
	require.Equal(t, 25.0, *res.ElevationM)
	require.Equal(t, "http_api", res.ProviderUsed)
}

func TestResolve_NoCoverageWhenNoProvidersConfigured(t *testing.T) {
	idx, err := emptyIndex()
	require.NoError(t, err)

	reader := objectstore.NewReader(cache.NewHeaderCache(10, 1<<20, time.Hour), 8)
	points := cache.NewPointCache(100, 1<<20, time.Minute)
	breakers := breaker.NewManager(testBreakerConfig())
	sel := New(idx, nil, config.DefaultScoringWeights(), reader, nil, breakers, points, config.DefaultReliabilityConfig(), discardLogger())

	res, err := sel.Resolve(context.Background(), model.Query{Lat: 0, Lon: -150})
	require.NoError(t, err)
	require.Nil(t, res.ElevationM)
	require.Equal(t, "none", res.ProviderUsed)
}

func TestResolve_BreakerOpenSkipsProviderWithoutOutboundCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sel := newHTTPOnlySelector(t, srv)
	for i := 0; i < 5; i++ {
		sel.Resolve(context.Background(), model.Query{Lat: 0, Lon: 0})
	}
	callsAfterTrip := calls

	_, err := sel.Resolve(context.Background(), model.Query{Lat: 0, Lon: 0})
	require.NoError(t, err)
	require.Equal(t, callsAfterTrip, calls) // breaker open: no new outbound call
}

func TestResolve_BatchOrderPreservation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Lat, Lon float64
		}
		json.NewDecoder(r.Body).Decode(&req)
		v := req.Lat
		json.NewEncoder(w).Encode(struct {
			ElevationM *float64 `json:"elevation_m"`
		}{ElevationM: &v})
	}))
	defer srv.Close()

	sel := newHTTPOnlySelector(t, srv)
	points := []model.Query{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}, {Lat: 3, Lon: 3}}
	results, err := batchplanner.New(sel, 4).ResolveMany(context.Background(), points)
	require.NoError(t, err)
	require.Len(t, results, len(points))
	for i := range points {
		require.Equal(t, points[i].Lat, results[i].Point[1])
	}
}

// emptyIndex loads a real spatialindex.Index from a minimal valid artifact
// with zero datasets, for Selector tests that only exercise HTTP fallback.
func emptyIndex() (*spatialindex.Index, error) {
	dir, err := os.MkdirTemp("", "elevresolve-test-*")
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "index.json")
	if err := os.WriteFile(path, []byte(`{"schema_version":1,"collections_available":1,"datasets":[]}`), 0o644); err != nil {
		return nil, err
	}
	return spatialindex.Load(path)
}

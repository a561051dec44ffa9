// Command elevresolve is the CLI surface for the elevation resolver,
// grounded on the teacher's cmd/geo-index root command: a cobra root with
// PersistentPreRunE wiring shared dependencies (logger, config, index,
// selector) once, and subcommands that consume them without repeating the
// wiring logic.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/airbusgeo/godal"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jcom-dev/elevresolve/internal/apiclient"
	"github.com/jcom-dev/elevresolve/internal/batchplanner"
	"github.com/jcom-dev/elevresolve/internal/breaker"
	"github.com/jcom-dev/elevresolve/internal/cache"
	"github.com/jcom-dev/elevresolve/internal/config"
	"github.com/jcom-dev/elevresolve/internal/model"
	"github.com/jcom-dev/elevresolve/internal/objectstore"
	"github.com/jcom-dev/elevresolve/internal/quota"
	"github.com/jcom-dev/elevresolve/internal/ratelimit"
	"github.com/jcom-dev/elevresolve/internal/resolver"
	"github.com/jcom-dev/elevresolve/internal/selector"
	"github.com/jcom-dev/elevresolve/internal/spatialindex"
)

// app holds every dependency built once in PersistentPreRunE and consumed
// by subcommands, following the teacher's "construct once, pass
// explicitly" pattern rather than package-level globals.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	index    *spatialindex.Index
	resolver *resolver.Resolver
	quota    *quota.Counter
}

var jsonOutput bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "elevresolve",
		Short: "Elevation query resolver: points, batches, lines, paths, and grids.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			level := slog.LevelInfo
			if os.Getenv("ELEVRESOLVE_LOG_LEVEL") == "debug" {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg

			if cmd.Name() == "verify" {
				return nil // `index verify` loads its own artifact explicitly
			}

			// GDAL never registers its drivers on its own; every godal.Open
			// in the Object-Store Reader fails until this runs once, same
			// as the importer this repo's reader is grounded on.
			godal.RegisterAll()

			idx, err := spatialindex.Load(cfg.IndexArtifactPath)
			if err != nil {
				return err
			}
			a.index = idx

			ctx := context.Background()

			if region, ok := firstObjectStoreRegion(cfg.Providers); ok {
				if err := objectstore.ConfigureVSIS3Credentials(ctx, region); err != nil {
					a.logger.Warn("vsis3 credential resolution failed; object-store reads may fail", "error", err)
				}
			}

			quotaCounter, err := quota.New(ctx, cfg.RedisURL, a.logger)
			if err != nil {
				a.logger.Warn("quota tracking disabled", "error", err)
			}
			a.quota = quotaCounter

			sel := buildSelector(cfg, idx, quotaCounter, a.logger)
			planner := batchplanner.New(sel, cfg.Batch.WorkerPoolSize)
			a.resolver = resolver.New(sel, planner)

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.quota != nil {
				return a.quota.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output")

	root.AddCommand(
		newResolveCmd(a),
		newBatchCmd(a),
		newLineCmd(a),
		newPathCmd(a),
		newGridCmd(a),
		newIndexCmd(a),
	)
	return root
}

// firstObjectStoreRegion finds the region to hand to
// ConfigureVSIS3Credentials: the CPL config options it sets are process-
// global, so only one call is needed regardless of how many object-store
// providers are configured.
func firstObjectStoreRegion(providers []model.Provider) (string, bool) {
	for _, p := range providers {
		if p.Kind == model.ProviderObjectStore {
			return p.Region, true
		}
	}
	return "", false
}

// buildSelector wires every Reliability Layer / Bounded Cache / External
// API Client dependency from cfg, in the teacher's cmd/api/main.go style
// of explicit constructor injection rather than a singleton container.
func buildSelector(cfg *config.Config, idx *spatialindex.Index, quotaCounter *quota.Counter, logger *slog.Logger) *selector.Instrumented {
	headers := cache.NewHeaderCache(cfg.Cache.HeaderCacheEntries, cfg.Cache.HeaderCacheBytes, cfg.Cache.HeaderCacheTTL)
	points := cache.NewPointCache(cfg.Cache.PointCacheEntries, cfg.Cache.PointCacheBytes, cfg.Cache.PointCacheTTL)
	reader := objectstore.NewReader(headers, cfg.Batch.WorkerPoolSize*2)

	limiters := ratelimit.NewLimiters()
	apiClients := make(map[string]*apiclient.Client, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if p.Kind == model.ProviderHTTPAPI {
			apiClients[p.ID] = apiclient.New(p, nil, limiters, quotaCounter, logger)
		}
	}

	breakerCfg := breaker.Config{
		WindowSamples: cfg.Reliability.BreakerWindowSamples,
		WindowPeriod:  cfg.Reliability.BreakerWindowPeriod,
		ErrorRatio:    cfg.Reliability.BreakerErrorRatio,
		MinSamples:    cfg.Reliability.BreakerMinSamples,
		CoolOff:       cfg.Reliability.BreakerCoolOff,
	}
	breakers := breaker.NewManager(breakerCfg)

	sel := selector.New(idx, cfg.Providers, cfg.Weights, reader, apiClients, breakers, points, cfg.Reliability, logger)
	return selector.Instrument(sel, logger)
}

func printResult(res model.Result) {
	if jsonOutput {
		fmt.Printf(`{"elevation_m":%s,"provider_used":%q,"dataset_used":%s,"resolution_m":%s,"crs":%q}`+"\n",
			floatOrNull(res.ElevationM), res.ProviderUsed, stringOrNull(res.DatasetUsed), floatOrNull(res.ResolutionM), res.CRS)
		return
	}
	if res.ElevationM == nil {
		fmt.Printf("elevation: none (provider=%s)\n", res.ProviderUsed)
		return
	}
	fmt.Printf("elevation: %.3f m (provider=%s, resolution=%sm)\n", *res.ElevationM, res.ProviderUsed, floatOrDash(res.ResolutionM))
}

func floatOrNull(f *float64) string {
	if f == nil {
		return "null"
	}
	return fmt.Sprintf("%g", *f)
}

func stringOrNull(s *string) string {
	if s == nil {
		return "null"
	}
	return fmt.Sprintf("%q", *s)
}

func floatOrDash(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *f)
}

// Package spatialindex answers "which raster files cover this point" over a
// catalog of on the order of 10^6 files and 10^3 datasets. The structure is
// immutable once loaded: built offline by a collaborator, read-only for the
// lifetime of the process, so every exported method here takes no lock.
package spatialindex

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/jcom-dev/elevresolve/internal/model"
)

// coarseCellSizeDeg matches spec.md §4.1's coarse grid: a uniform ~0.5°
// lattice over the inhabited WGS84 rectangle, giving O(1) cell lookup
// before any per-dataset structure is consulted.
const coarseCellSizeDeg = 0.5

// tileCellSizeDeg is the dense-metro sub-grid resolution (~2km) the
// builder pre-materializes for datasets that exceed denseFileThreshold
// files. The resolver only ever consumes it, never builds it.
const tileCellSizeDeg = 0.02

// denseFileThreshold is the file count above which a dataset is expected
// to carry a pre-built tile overlay; used only for the `index verify`
// warning, never to decide behavior at query time (the artifact already
// encodes which datasets have one).
const denseFileThreshold = 500

type cellKey struct{ gx, gy int32 }

func cellFor(p orb.Point, size float64) cellKey {
	return cellKey{
		gx: int32(floorDiv(p[0], size)),
		gy: int32(floorDiv(p[1], size)),
	}
}

func floorDiv(v, size float64) float64 {
	q := v / size
	f := float64(int64(q))
	if q < 0 && f != q {
		f--
	}
	return f
}

// datasetFineIndex is the per-dataset fine structure from §4.1: an R-tree
// over the dataset's own files, plus an optional dense-metro tile overlay
// the builder materialized for high file-count datasets.
type datasetFineIndex struct {
	dataset *model.Dataset
	tree    rtree.RTreeG[*model.RasterFile]
	tiles   map[cellKey][]*model.RasterFile // nil when the builder didn't materialize one
}

// Index is the loaded, queryable spatial index. Zero value is not usable;
// construct via Load.
type Index struct {
	datasets map[string]*model.Dataset
	fine     map[string]*datasetFineIndex // dataset.id -> fine index
	coarse   map[cellKey][]*model.Dataset
}

// Lookup implements the §4.1 contract: ordered candidates for (lat, lon),
// stable-sorted by (priority_class descending, dataset.id ascending) so
// that any two processes holding the same artifact agree on ordering.
func (idx *Index) Lookup(lat, lon float64) []model.Candidate {
	pt := orb.Point{lon, lat}
	cell := cellFor(pt, coarseCellSizeDeg)
	datasets := idx.coarse[cell]
	if len(datasets) == 0 {
		return nil
	}

	var out []model.Candidate
	for _, ds := range datasets {
		if !ds.CoverageBBox.Contains(pt) {
			continue
		}
		fi := idx.fine[ds.ID]
		if fi == nil {
			continue
		}
		for _, f := range fi.filesAt(pt) {
			if f.PixelBoundsWGS84.Contains(pt) {
				out = append(out, model.Candidate{Dataset: ds, File: f})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Dataset, out[j].Dataset
		if di.PriorityClass != dj.PriorityClass {
			return di.PriorityClass > dj.PriorityClass
		}
		return di.ID < dj.ID
	})
	return out
}

// filesAt prefers the dense-metro tile overlay when present (a narrower,
// pre-filtered candidate set), falling back to a full R-tree search of the
// dataset's files.
func (fi *datasetFineIndex) filesAt(pt orb.Point) []*model.RasterFile {
	if fi.tiles != nil {
		return fi.tiles[cellFor(pt, tileCellSizeDeg)]
	}
	var hits []*model.RasterFile
	box := [2]float64{pt[0], pt[1]}
	fi.tree.Search(box, box, func(_, _ [2]float64, file *model.RasterFile) bool {
		hits = append(hits, file)
		return true
	})
	return hits
}

// Dataset looks up a dataset by id, e.g. to resolve a
// RasterFile.OwningDatasetID back to its parent record.
func (idx *Index) Dataset(id string) (*model.Dataset, bool) {
	d, ok := idx.datasets[id]
	return d, ok
}

// SampleFile returns one arbitrary file owned by a dataset, used by
// `index verify` to spot-check a dataset's bucket reachability without
// scanning every file it owns.
func (idx *Index) SampleFile(datasetID string) (*model.RasterFile, bool) {
	fi, ok := idx.fine[datasetID]
	if !ok {
		return nil, false
	}
	b := fi.dataset.CoverageBBox
	min := [2]float64{b.Min[0], b.Min[1]}
	max := [2]float64{b.Max[0], b.Max[1]}
	var found *model.RasterFile
	fi.tree.Search(min, max, func(_, _ [2]float64, file *model.RasterFile) bool {
		found = file
		return false
	})
	return found, found != nil
}

// artifact is the on-disk shape produced by the (out-of-scope) offline
// index builder. schema_version and collections_available are validated on
// load per spec.md §9's resolution of the two-coexisting-format question:
// the resolver parses exactly this struct and rejects anything else,
// rather than attempting to sniff a dialect.
type artifact struct {
	SchemaVersion         int                `json:"schema_version"`
	CollectionsAvailable  int                `json:"collections_available"`
	Datasets              []artifactDataset  `json:"datasets"`
}

type artifactDataset struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Provider        string      `json:"provider"`
	NativeCRS       int         `json:"native_crs"`
	ResolutionM     float64     `json:"resolution_m"`
	AcquisitionYear int         `json:"acquisition_year"`
	CoverageBBox    [4]float64  `json:"coverage_bbox"` // minlon, minlat, maxlon, maxlat
	Confidence      float64     `json:"confidence"`
	PriorityClass   string      `json:"priority_class"`
	Files           []artifactFile `json:"files"`
	// TileOverlay is present only for datasets the builder deemed dense
	// enough (> denseFileThreshold files) to pre-materialize a sub-grid
	// for. Keys are "gx,gy" at tileCellSizeDeg resolution.
	TileOverlay map[string][]int `json:"tile_overlay,omitempty"`
}

type artifactFile struct {
	Bucket          string     `json:"bucket"`
	Key             string     `json:"key"`
	NativeCRS       int        `json:"native_crs"`
	Transform       [6]float64 `json:"transform"`
	PixelBoundsWGS84 [4]float64 `json:"pixel_bounds_wgs84"`
	Width           int        `json:"width"`
	Height          int        `json:"height"`
	NoDataSentinel  float64    `json:"nodata_sentinel"`
}

// supportedSchemaMin/Max bound the artifact versions this resolver build
// understands. Bumped deliberately when the builder's wire format changes
// in a way that needs new parsing code, never silently widened.
const (
	supportedSchemaMin = 1
	supportedSchemaMax = 2
)

// Load reads and validates a spatial index artifact from path. Any
// structural problem is a KindConfigError: an unparsable or out-of-range
// index must abort startup, per spec.md §7, never degrade to an empty
// index at runtime.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewError(model.KindConfigError, fmt.Sprintf("reading index artifact %q", path), err)
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, model.NewError(model.KindConfigError, fmt.Sprintf("parsing index artifact %q", path), err)
	}
	if art.SchemaVersion < supportedSchemaMin || art.SchemaVersion > supportedSchemaMax {
		return nil, model.NewError(model.KindConfigError, fmt.Sprintf("unsupported index schema_version %d", art.SchemaVersion), nil)
	}
	if art.CollectionsAvailable == 0 {
		return nil, model.NewError(model.KindConfigError, "index artifact reports zero collections_available", nil)
	}

	return build(art)
}

func build(art artifact) (*Index, error) {
	idx := &Index{
		datasets: make(map[string]*model.Dataset, len(art.Datasets)),
		fine:     make(map[string]*datasetFineIndex, len(art.Datasets)),
		coarse:   make(map[cellKey][]*model.Dataset),
	}

	for _, ad := range art.Datasets {
		priority, err := parsePriority(ad.PriorityClass)
		if err != nil {
			return nil, model.NewError(model.KindConfigError, fmt.Sprintf("dataset %q: %v", ad.ID, err), nil)
		}

		bbox := orb.Bound{
			Min: orb.Point{ad.CoverageBBox[0], ad.CoverageBBox[1]},
			Max: orb.Point{ad.CoverageBBox[2], ad.CoverageBBox[3]},
		}

		ds := &model.Dataset{
			ID:              ad.ID,
			Name:            ad.Name,
			Provider:        ad.Provider,
			NativeCRS:       ad.NativeCRS,
			ResolutionM:     ad.ResolutionM,
			AcquisitionYear: ad.AcquisitionYear,
			CoverageBBox:    bbox,
			Confidence:      ad.Confidence,
			PriorityClass:   priority,
		}
		if _, dup := idx.datasets[ds.ID]; dup {
			return nil, model.NewError(model.KindConfigError, fmt.Sprintf("duplicate dataset id %q", ds.ID), nil)
		}
		idx.datasets[ds.ID] = ds

		fi := &datasetFineIndex{dataset: ds}
		files := make([]*model.RasterFile, 0, len(ad.Files))
		for _, af := range ad.Files {
			fileBounds := orb.Bound{
				Min: orb.Point{af.PixelBoundsWGS84[0], af.PixelBoundsWGS84[1]},
				Max: orb.Point{af.PixelBoundsWGS84[2], af.PixelBoundsWGS84[3]},
			}
			if !bbox.Contains(fileBounds.Min) || !bbox.Contains(fileBounds.Max) {
				return nil, model.NewError(model.KindConfigError,
					fmt.Sprintf("dataset %q: file %q bounds escape dataset coverage_bbox", ds.ID, af.Key), nil)
			}
			rf := &model.RasterFile{
				StorageBucket:    af.Bucket,
				StorageKey:       af.Key,
				NativeCRS:        af.NativeCRS,
				Transform:        af.Transform,
				PixelBoundsWGS84: fileBounds,
				Width:            af.Width,
				Height:           af.Height,
				NoDataSentinel:   af.NoDataSentinel,
				OwningDatasetID:  ds.ID,
			}
			files = append(files, rf)
			fi.tree.Insert(
				[2]float64{fileBounds.Min[0], fileBounds.Min[1]},
				[2]float64{fileBounds.Max[0], fileBounds.Max[1]},
				rf,
			)
		}
		ds.FileIndexes = make([]int, len(files))
		for i := range files {
			ds.FileIndexes[i] = i
		}

		if len(ad.TileOverlay) > 0 {
			fi.tiles = make(map[cellKey][]*model.RasterFile, len(ad.TileOverlay))
			for key, fileIdxs := range ad.TileOverlay {
				gx, gy, err := parseTileKey(key)
				if err != nil {
					return nil, model.NewError(model.KindConfigError, fmt.Sprintf("dataset %q: %v", ds.ID, err), nil)
				}
				ck := cellKey{gx: gx, gy: gy}
				for _, fidx := range fileIdxs {
					if fidx < 0 || fidx >= len(files) {
						return nil, model.NewError(model.KindConfigError,
							fmt.Sprintf("dataset %q: tile_overlay references out-of-range file index %d", ds.ID, fidx), nil)
					}
					fi.tiles[ck] = append(fi.tiles[ck], files[fidx])
				}
			}
		} else if len(files) > denseFileThreshold {
			// Not fatal: the builder chose not to materialize an overlay for a
			// dataset dense enough to usually warrant one. Only `index
			// verify` reports it; loading at boot does not, and this package
			// has no logger.
		}

		idx.fine[ds.ID] = fi

		for gx := int32(floorDiv(bbox.Min[0], coarseCellSizeDeg)); gx <= int32(floorDiv(bbox.Max[0], coarseCellSizeDeg)); gx++ {
			for gy := int32(floorDiv(bbox.Min[1], coarseCellSizeDeg)); gy <= int32(floorDiv(bbox.Max[1], coarseCellSizeDeg)); gy++ {
				ck := cellKey{gx: gx, gy: gy}
				idx.coarse[ck] = append(idx.coarse[ck], ds)
			}
		}
	}

	return idx, nil
}

func parsePriority(s string) (model.PriorityClass, error) {
	switch s {
	case "high":
		return model.PriorityHigh, nil
	case "medium", "":
		return model.PriorityMedium, nil
	case "low":
		return model.PriorityLow, nil
	default:
		return 0, fmt.Errorf("unknown priority_class %q", s)
	}
}

func parseTileKey(key string) (int32, int32, error) {
	var gx, gy int32
	if _, err := fmt.Sscanf(key, "%d,%d", &gx, &gy); err != nil {
		return 0, 0, fmt.Errorf("malformed tile_overlay key %q", key)
	}
	return gx, gy, nil
}

// DenseFileThreshold exposes the threshold for the `index verify` CLI
// subcommand, which warns (does not fail) about datasets that exceed it
// without a tile overlay.
func DenseFileThreshold() int { return denseFileThreshold }

// FileCount reports how many files a dataset owns, for `index verify`
// diagnostics.
func (idx *Index) FileCount(datasetID string) int {
	fi, ok := idx.fine[datasetID]
	if !ok {
		return 0
	}
	return fi.tree.Len()
}

// HasTileOverlay reports whether the builder materialized a dense-metro
// overlay for a dataset.
func (idx *Index) HasTileOverlay(datasetID string) bool {
	fi, ok := idx.fine[datasetID]
	return ok && fi.tiles != nil
}

// DatasetIDs returns all dataset ids, sorted, for CLI listing and tests.
func (idx *Index) DatasetIDs() []string {
	ids := make([]string, 0, len(idx.datasets))
	for id := range idx.datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

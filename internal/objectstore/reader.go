// Package objectstore implements the Object-Store Reader from spec.md
// §4.3: open a raster file in remote object storage, reproject the query
// point into the file's native CRS, and sample the elevation at that
// pixel. It is grounded directly on the teacher's GLO-90 importer
// (cmd/import-elevation/main.go): the same godal-open / geotransform /
// band-read sequence, the same singleflight-guarded cache-miss path and
// per-dataset mutex, generalized from a local GeoTIFF directory to
// GDAL's /vsis3/ virtual filesystem over S3-hosted tiles.
package objectstore

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/airbusgeo/godal"
	"golang.org/x/sync/singleflight"

	"github.com/jcom-dev/elevresolve/internal/cache"
	"github.com/jcom-dev/elevresolve/internal/model"
)

// gdalMu serializes every call into libgdal. GDAL (and the libtiff/libgeotiff
// it links) carries internal global state that is not safe for concurrent
// calls across datasets, exactly as noted in the teacher's importer; every
// access below holds this lock for the duration of the GDAL call only,
// never across a network wait or a cache lock.
var gdalMu sync.Mutex

// openTile wraps a live godal.Dataset/Band pair plus its decoded header,
// guarded by its own mutex so concurrent samples of the same file serialize
// on the pixel read without blocking samples of other files.
type openTile struct {
	mu   sync.Mutex
	ds   *godal.Dataset
	band godal.Band
	hdr  cache.RasterHeader
}

// Reader samples elevation values out of remote raster tiles. It holds no
// per-query state; all mutable state is the header cache (shared with the
// rest of the process, injected rather than global) and a bounded set of
// currently-open tile handles.
type Reader struct {
	headers *cache.HeaderCache

	tilesMu sync.Mutex
	tiles   map[string]*openTile // storage key -> open handle
	group   singleflight.Group

	maxOpenTiles int
	openOrder    []string // LRU order for closing tiles past maxOpenTiles
}

func NewReader(headers *cache.HeaderCache, maxOpenTiles int) *Reader {
	if maxOpenTiles <= 0 {
		maxOpenTiles = 64
	}
	return &Reader{
		headers:      headers,
		tiles:        make(map[string]*openTile),
		maxOpenTiles: maxOpenTiles,
	}
}

func vsiPath(bucket, key string) string {
	return fmt.Sprintf("/vsis3/%s/%s", bucket, key)
}

// Sample implements the §4.3 contract for one already-matched RasterFile.
// The caller (Selector) is responsible for having confirmed the point lies
// within file.PixelBoundsWGS84; a point outside the file's pixel grid
// after reprojection is a logic error, not a sampling failure.
func (r *Reader) Sample(ctx context.Context, file *model.RasterFile, lat, lon float64) (float64, error) {
	tile, err := r.open(ctx, file)
	if err != nil {
		return 0, err
	}

	nativeX, nativeY, err := ReprojectPoint(lat, lon, file.NativeCRS)
	if err != nil {
		return 0, model.NewError(model.KindLogicError, "reprojecting query point to file native CRS", err)
	}

	col, row, err := inverseTransform(tile.hdr.Transform, nativeX, nativeY)
	if err != nil {
		return 0, model.NewError(model.KindLogicError, "point maps outside raster pixel grid", err)
	}
	if col < 0 || row < 0 || col > float64(tile.hdr.Width) || row > float64(tile.hdr.Height) {
		return 0, model.NewError(model.KindLogicError,
			fmt.Sprintf("pixel (%.2f,%.2f) outside %dx%d grid", col, row, tile.hdr.Width, tile.hdr.Height), nil)
	}

	return r.samplePixel(tile, col, row)
}

// open returns a live handle for file, opening it over /vsis3/ on first
// use and caching the decoded header. Concurrent opens of the same file
// collapse onto a single godal.Open call via singleflight, the same
// pattern the teacher's GLO90Reader uses for its tile cache misses.
func (r *Reader) open(ctx context.Context, file *model.RasterFile) (*openTile, error) {
	key := file.StorageBucket + "/" + file.StorageKey

	r.tilesMu.Lock()
	if t, ok := r.tiles[key]; ok {
		r.touch(key)
		r.tilesMu.Unlock()
		return t, nil
	}
	r.tilesMu.Unlock()

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.openUncached(file, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*openTile), nil
}

func (r *Reader) openUncached(file *model.RasterFile, key string) (*openTile, error) {
	gdalMu.Lock()
	ds, err := godal.Open(vsiPath(file.StorageBucket, file.StorageKey))
	gdalMu.Unlock()
	if err != nil {
		return nil, model.NewError(model.KindTransient, fmt.Sprintf("opening %s", key), err)
	}

	gdalMu.Lock()
	bands := ds.Bands()
	gdalMu.Unlock()
	if len(bands) == 0 {
		ds.Close()
		return nil, model.NewError(model.KindLogicError, fmt.Sprintf("%s has no raster bands", key), nil)
	}

	// A tile handle evicted by register()'s LRU and reopened here needs a
	// live godal.Dataset either way, but the geotransform/IFD structure
	// re-read is skippable when the header cache still has it from the
	// first open.
	hdr, ok := r.headers.Get(key)
	if !ok {
		gdalMu.Lock()
		gt := ds.GeoTransform()
		structure := ds.Structure()
		gdalMu.Unlock()
		hdr = cache.RasterHeader{
			Transform:      gt,
			Width:          structure.SizeX,
			Height:         structure.SizeY,
			NoDataSentinel: file.NoDataSentinel,
		}
		r.headers.Set(key, hdr)
	}

	tile := &openTile{ds: ds, band: bands[0], hdr: hdr}
	r.register(key, tile)
	return tile, nil
}

func (r *Reader) register(key string, tile *openTile) {
	r.tilesMu.Lock()
	defer r.tilesMu.Unlock()

	r.tiles[key] = tile
	r.openOrder = append(r.openOrder, key)

	for len(r.openOrder) > r.maxOpenTiles {
		evictKey := r.openOrder[0]
		r.openOrder = r.openOrder[1:]
		if t, ok := r.tiles[evictKey]; ok {
			delete(r.tiles, evictKey)
			gdalMu.Lock()
			t.ds.Close()
			gdalMu.Unlock()
		}
	}
}

func (r *Reader) touch(key string) {
	for i, k := range r.openOrder {
		if k == key {
			r.openOrder = append(r.openOrder[:i], r.openOrder[i+1:]...)
			r.openOrder = append(r.openOrder, key)
			return
		}
	}
}

// Close releases every open GDAL dataset handle.
func (r *Reader) Close() {
	r.tilesMu.Lock()
	defer r.tilesMu.Unlock()
	gdalMu.Lock()
	defer gdalMu.Unlock()
	for _, t := range r.tiles {
		t.ds.Close()
	}
	r.tiles = make(map[string]*openTile)
	r.openOrder = nil
}

// inverseTransform converts native (x, y) to fractional pixel (col, row)
// via the inverse of the file's affine geotransform, same arithmetic as
// the teacher's readElevation.
func inverseTransform(gt [6]float64, x, y float64) (col, row float64, err error) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 {
		return 0, 0, fmt.Errorf("singular geotransform")
	}
	dx, dy := x-gt[0], y-gt[3]
	col = (gt[5]*dx - gt[2]*dy) / det
	row = (gt[1]*dy - gt[4]*dx) / det
	return col, row, nil
}

// samplePixel implements §4.3 step 3-4: bilinear among the nearest 2x2
// pixels, falling back to nearest-valid-pixel within a 3x3 neighborhood
// when the 2x2 window crosses nodata, and NoData if that neighborhood is
// entirely nodata.
func (r *Reader) samplePixel(t *openTile, col, row float64) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c0, r0 := int(math.Floor(col-0.5)), int(math.Floor(row-0.5))
	fracX, fracY := col-0.5-float64(c0), row-0.5-float64(r0)

	v00, ok00 := r.readOne(t, c0, r0)
	v10, ok10 := r.readOne(t, c0+1, r0)
	v01, ok01 := r.readOne(t, c0, r0+1)
	v11, ok11 := r.readOne(t, c0+1, r0+1)

	if ok00 && ok10 && ok01 && ok11 {
		top := v00*(1-fracX) + v10*fracX
		bottom := v01*(1-fracX) + v11*fracX
		return top*(1-fracY) + bottom*fracY, nil
	}

	// Fall back to the nearest valid pixel within a 3x3 neighborhood
	// centered on the rounded (col, row).
	cc, rr := int(math.Round(col)), int(math.Round(row))
	bestDist := math.MaxFloat64
	var best float64
	found := false
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			v, ok := r.readOne(t, cc+dc, rr+dr)
			if !ok {
				continue
			}
			d := float64(dc*dc + dr*dr)
			if d < bestDist {
				bestDist = d
				best = v
				found = true
			}
		}
	}
	if !found {
		return 0, model.NewError(model.KindNoData, "3x3 neighborhood entirely nodata", nil)
	}
	return best, nil
}

// readOne reads a single pixel, returning ok=false for out-of-bounds or
// nodata pixels so callers can treat both uniformly as "not usable."
func (r *Reader) readOne(t *openTile, col, row int) (float64, bool) {
	if col < 0 || row < 0 || col >= t.hdr.Width || row >= t.hdr.Height {
		return 0, false
	}

	gdalMu.Lock()
	buf := make([]float64, 1)
	err := t.band.Read(col, row, buf, 1, 1)
	gdalMu.Unlock()
	if err != nil {
		return 0, false
	}

	v := buf[0]
	if v == t.hdr.NoDataSentinel || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

package objectstore

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
)

// wgs84EPSG is the input CRS for every query point per spec.md §1's
// non-goal: "no coordinate system beyond WGS84 on input."
const wgs84EPSG = 4326

// transformCache memoizes the (src, dst) -> *godal.Transform pairs GDAL
// builds from EPSG codes; building one requires parsing a PROJ pipeline,
// which is worth paying once per CRS pair rather than per query.
var (
	transformMu    sync.Mutex
	transformCache = make(map[int]*godal.Transform)
)

// ReprojectPoint converts a WGS84 (lat, lon) into dstEPSG's native
// coordinates, implementing §4.3 step 1. A dstEPSG equal to WGS84 is the
// identity transform, handled without invoking PROJ at all.
func ReprojectPoint(lat, lon float64, dstEPSG int) (x, y float64, err error) {
	if dstEPSG == wgs84EPSG {
		return lon, lat, nil
	}

	t, err := transformFor(dstEPSG)
	if err != nil {
		return 0, 0, err
	}

	gdalMu.Lock()
	defer gdalMu.Unlock()
	xs, ys := []float64{lon}, []float64{lat}
	if err := t.TransformEx(xs, ys, nil, nil); err != nil {
		return 0, 0, fmt.Errorf("transforming point to EPSG:%d: %w", dstEPSG, err)
	}
	return xs[0], ys[0], nil
}

func transformFor(dstEPSG int) (*godal.Transform, error) {
	transformMu.Lock()
	defer transformMu.Unlock()

	if t, ok := transformCache[dstEPSG]; ok {
		return t, nil
	}

	gdalMu.Lock()
	src, err := godal.NewSpatialRefFromEPSG(wgs84EPSG)
	if err != nil {
		gdalMu.Unlock()
		return nil, fmt.Errorf("building WGS84 spatial ref: %w", err)
	}
	dst, err := godal.NewSpatialRefFromEPSG(dstEPSG)
	if err != nil {
		gdalMu.Unlock()
		src.Close()
		return nil, fmt.Errorf("building spatial ref for EPSG:%d: %w", dstEPSG, err)
	}
	t, err := godal.NewTransform(src, dst)
	src.Close()
	dst.Close()
	gdalMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("building transform WGS84 -> EPSG:%d: %w", dstEPSG, err)
	}

	transformCache[dstEPSG] = t
	return t, nil
}

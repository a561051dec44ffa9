package cache

import "time"

// RasterHeader is the decoded-once-per-file metadata the Object-Store
// Reader needs on every sample: geotransform, dimensions, and nodata
// sentinel, cheap to hold in memory but expensive to refetch (a COG/IFD
// directory read over the network) per spec.md §4.3 step 5.
type RasterHeader struct {
	Transform      [6]float64
	Width, Height  int
	NoDataSentinel float64
}

// approxHeaderBytes is a fixed per-entry size estimate; headers are small
// fixed-shape structs, so a byte-accurate accounting isn't worth the
// bookkeeping the way it would be for, say, cached tile pixels.
const approxHeaderBytes = 128

// HeaderCache bounds decoded raster headers by entry count, bytes, and TTL
// (default 2048 entries / 128MiB / 1h per §4.8).
type HeaderCache struct {
	c *boundedCache[string, RasterHeader]
}

func NewHeaderCache(maxEntries int, maxBytes int64, ttl time.Duration) *HeaderCache {
	return &HeaderCache{c: newBoundedCache[string, RasterHeader](maxEntries, maxBytes, ttl)}
}

// Get looks up a cached header by storage key ("bucket/key").
func (h *HeaderCache) Get(storageKey string) (RasterHeader, bool) {
	return h.c.get(storageKey)
}

func (h *HeaderCache) Set(storageKey string, hdr RasterHeader) {
	h.c.set(storageKey, hdr, approxHeaderBytes)
}

func (h *HeaderCache) Len() int { return h.c.len() }

package cache

import (
	"fmt"
	"math"
	"time"
)

// approxPointEntryBytes estimates the size of one cached elevation sample;
// used only for the byte-budget eviction rule, not exposed to callers.
const approxPointEntryBytes = 160

// PointKey is (lat, lon) rounded to 6 decimal places plus the provider
// that answered, per §4.8: "(lat rounded to 6 decimals, lon rounded to 6
// decimals, provider) -> elevation."
type PointKey struct {
	LatE6, LonE6 int64
	Provider     string
}

func NewPointKey(lat, lon float64, provider string) PointKey {
	return PointKey{
		LatE6:    int64(math.Round(lat * 1e6)),
		LonE6:    int64(math.Round(lon * 1e6)),
		Provider: provider,
	}
}

func (k PointKey) String() string {
	return fmt.Sprintf("%d,%d,%s", k.LatE6, k.LonE6, k.Provider)
}

// PointSample is the cached outcome of resolving one point against one
// provider: either a value or an explicit no-data verdict (both are worth
// memoizing; only errors are not cached).
type PointSample struct {
	ElevationM  *float64
	DatasetUsed *string
	ResolutionM *float64
}

// PointCache bounds recent point samples by entry count, bytes, and TTL
// (default 100k entries / 16MiB / 5min per §4.8).
type PointCache struct {
	c *boundedCache[PointKey, PointSample]
}

func NewPointCache(maxEntries int, maxBytes int64, ttl time.Duration) *PointCache {
	return &PointCache{c: newBoundedCache[PointKey, PointSample](maxEntries, maxBytes, ttl)}
}

func (p *PointCache) Get(key PointKey) (PointSample, bool) {
	return p.c.get(key)
}

func (p *PointCache) Set(key PointKey, sample PointSample) {
	p.c.set(key, sample, approxPointEntryBytes)
}

func (p *PointCache) Len() int { return p.c.len() }

// Package model defines the data types shared across the elevation resolver:
// datasets, raster files, providers, and the per-request query/result shapes.
// Everything here is created offline or at boot and is read-only from the
// perspective of a request in flight; process-wide mutable state lives in
// internal/breaker, internal/cache, internal/ratelimit and internal/quota.
package model

import (
	"time"

	"github.com/paulmach/orb"
)

// PriorityClass ranks a dataset's trustworthiness tier. Higher values sort
// first; ties are broken by Dataset.ID per the Spatial Index contract.
type PriorityClass int

const (
	PriorityLow PriorityClass = iota
	PriorityMedium
	PriorityHigh
)

func (p PriorityClass) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Confidence is the Campaign Scorer's qualitative verdict about its own
// top pick, used by the Selector to decide whether to pre-warm fallbacks.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

// Dataset is a named coherent survey ("campaign", "collection") — e.g. a
// city's 1m LiDAR capture from a specific year.
type Dataset struct {
	ID              string
	Name            string
	Provider        string
	NativeCRS       int // EPSG code
	ResolutionM     float64
	AcquisitionYear int
	CoverageBBox    orb.Bound
	Confidence      float64
	PriorityClass   PriorityClass
	FileIndexes     []int // indexes into Artifact.Files owned by this dataset
}

// RasterFile is a single GeoTIFF-like tile in object storage.
type RasterFile struct {
	StorageBucket    string
	StorageKey       string
	NativeCRS        int
	Transform        [6]float64 // affine: pixel (col,row) -> native (x,y)
	PixelBoundsWGS84 orb.Bound  // precise per-file bounds, not the dataset's
	Width            int
	Height           int
	NoDataSentinel   float64
	OwningDatasetID  string
}

// Candidate pairs a raster file with the dataset that owns it, as returned
// by the Spatial Index.
type Candidate struct {
	Dataset *Dataset
	File    *RasterFile
}

// ProviderKind distinguishes the two ProviderDescriptor variants. Go has no
// native tagged union, so Provider carries a Kind discriminant alongside
// kind-specific fields instead of dispatching on shape.
type ProviderKind int

const (
	ProviderObjectStore ProviderKind = iota
	ProviderHTTPAPI
)

// Provider is a logical entry in the fallback chain: either an object-store
// bucket of raster tiles or a remote HTTP elevation API.
type Provider struct {
	ID       string
	Kind     ProviderKind
	Priority PriorityClass

	// ObjectStoreProvider fields.
	Bucket string
	Region string
	Signed bool

	// HttpApiProvider fields.
	Endpoint     string
	AuthToken    string
	RateLimitRPS float64
	DailyQuota   int64

	// Per-provider timeouts and limits, overriding the global defaults in
	// config.ReliabilityConfig when non-zero.
	Timeout           time.Duration
	MaxConcurrency    int
	BatchLimit        int // HttpApiProvider: max points per batch call
}

// Query is a single elevation request.
type Query struct {
	Lat, Lon          float64
	Deadline          time.Time // zero value means "use the configured default"
	PreferredProvider string
}

// Point returns the query location as an orb.Point (lon, lat order, per orb
// convention).
func (q Query) Point() orb.Point {
	return orb.Point{q.Lon, q.Lat}
}

// Result is the outcome of resolving a single Query.
type Result struct {
	Point        orb.Point // echoes the input point, for batch order checks
	ElevationM   *float64
	ProviderUsed string
	DatasetUsed  *string
	ResolutionM  *float64
	CRS          string
	LatencyMS    uint32
}

// NoCoverageResult builds the canonical "nothing answered" Result.
func NoCoverageResult(q Query, latency time.Duration) Result {
	return Result{
		Point:        q.Point(),
		ElevationM:   nil,
		ProviderUsed: "none",
		CRS:          "EPSG:4326",
		LatencyMS:    uint32(latency.Milliseconds()),
	}
}

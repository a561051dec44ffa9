package spatialindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, art string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(path, []byte(art), 0o644))
	return path
}

const brisbaneArtifact = `{
  "schema_version": 2,
  "collections_available": 1,
  "datasets": [
    {
      "id": "brisbane_2019_1m",
      "name": "Brisbane 2019 LiDAR",
      "provider": "elvis",
      "native_crs": 4326,
      "resolution_m": 1.0,
      "acquisition_year": 2019,
      "coverage_bbox": [152.9, -27.6, 153.2, -27.3],
      "confidence": 0.95,
      "priority_class": "high",
      "files": [
        {
          "bucket": "elvis-tiles",
          "key": "brisbane/tile_01.tif",
          "native_crs": 4326,
          "transform": [152.9, 0.0001, 0, -27.3, 0, -0.0001],
          "pixel_bounds_wgs84": [153.0, -27.5, 153.1, -27.4],
          "width": 1000,
          "height": 1000,
          "nodata_sentinel": -9999
        }
      ]
    }
  ]
}`

func TestLoad_MetroHit(t *testing.T) {
	path := writeArtifact(t, brisbaneArtifact)
	idx, err := Load(path)
	require.NoError(t, err)

	candidates := idx.Lookup(-27.4698, 153.0251)
	require.Len(t, candidates, 1)
	require.Equal(t, "brisbane_2019_1m", candidates[0].Dataset.ID)
	require.Equal(t, "brisbane/tile_01.tif", candidates[0].File.StorageKey)
}

func TestLoad_NoCandidatesOutsideCoverage(t *testing.T) {
	path := writeArtifact(t, brisbaneArtifact)
	idx, err := Load(path)
	require.NoError(t, err)

	require.Empty(t, idx.Lookup(0.0, -150.0))
}

func TestLoad_RejectsUnsupportedSchemaVersion(t *testing.T) {
	path := writeArtifact(t, `{"schema_version": 99, "collections_available": 1, "datasets": []}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsZeroCollections(t *testing.T) {
	path := writeArtifact(t, `{"schema_version": 1, "collections_available": 0, "datasets": []}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsFileBoundsEscapingDataset(t *testing.T) {
	bad := `{
      "schema_version": 1,
      "collections_available": 1,
      "datasets": [{
        "id": "bad",
        "provider": "ga",
        "native_crs": 4326,
        "resolution_m": 5,
        "acquisition_year": 2010,
        "coverage_bbox": [0, 0, 1, 1],
        "priority_class": "low",
        "files": [{
          "bucket": "b", "key": "k", "native_crs": 4326,
          "transform": [0,1,0,0,0,1],
          "pixel_bounds_wgs84": [5, 5, 6, 6],
          "width": 10, "height": 10, "nodata_sentinel": -9999
        }]
      }]
    }`
	path := writeArtifact(t, bad)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLookup_OrderedByPriorityThenID(t *testing.T) {
	art := `{
      "schema_version": 1,
      "collections_available": 1,
      "datasets": [
        {
          "id": "zzz_low", "provider": "default", "native_crs": 4326,
          "resolution_m": 30, "acquisition_year": 2001,
          "coverage_bbox": [0, 0, 2, 2], "priority_class": "low",
          "files": [{"bucket":"b","key":"k1","native_crs":4326,
            "transform":[0,1,0,0,0,1],"pixel_bounds_wgs84":[0,0,2,2],
            "width":1,"height":1,"nodata_sentinel":-9999}]
        },
        {
          "id": "aaa_high", "provider": "elvis", "native_crs": 4326,
          "resolution_m": 1, "acquisition_year": 2020,
          "coverage_bbox": [0, 0, 2, 2], "priority_class": "high",
          "files": [{"bucket":"b","key":"k2","native_crs":4326,
            "transform":[0,1,0,0,0,1],"pixel_bounds_wgs84":[0,0,2,2],
            "width":1,"height":1,"nodata_sentinel":-9999}]
        }
      ]
    }`
	path := writeArtifact(t, art)
	idx, err := Load(path)
	require.NoError(t, err)

	got := idx.Lookup(1.0, 1.0)
	require.Len(t, got, 2)
	require.Equal(t, "aaa_high", got[0].Dataset.ID)
	require.Equal(t, "zzz_low", got[1].Dataset.ID)
}

func TestLoad_RejectsDuplicateDatasetID(t *testing.T) {
	art := `{
      "schema_version": 1,
      "collections_available": 1,
      "datasets": [
        {"id":"dup","provider":"ga","native_crs":4326,"resolution_m":5,
         "acquisition_year":2010,"coverage_bbox":[0,0,1,1],
         "priority_class":"low","files":[]},
        {"id":"dup","provider":"ga","native_crs":4326,"resolution_m":5,
         "acquisition_year":2010,"coverage_bbox":[0,0,1,1],
         "priority_class":"low","files":[]}
      ]
    }`
	path := writeArtifact(t, art)
	_, err := Load(path)
	require.Error(t, err)
}

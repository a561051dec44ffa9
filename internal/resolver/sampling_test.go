package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSampleLine_EndpointsIncluded(t *testing.T) {
	pts := SampleLine(0, 0, 10, 10, 5)
	require.Len(t, pts, 5)
	require.Equal(t, [2]float64{0, 0}, pts[0])
	require.Equal(t, [2]float64{10, 10}, pts[4])
}

func TestSampleLine_EvenlySpaced(t *testing.T) {
	pts := SampleLine(0, 0, 4, 0, 5)
	require.Len(t, pts, 5)
	for i, expected := range []float64{0, 1, 2, 3, 4} {
		require.InDelta(t, expected, pts[i][0], 1e-9)
	}
}

func TestSampleLine_MinimumTwoPoints(t *testing.T) {
	pts := SampleLine(0, 0, 1, 1, 1)
	require.Len(t, pts, 2)
}

func TestSamplePath_SingleVertexReturnsItself(t *testing.T) {
	pts := SamplePath([][2]float64{{1, 2}}, 5)
	require.Equal(t, [][2]float64{{1, 2}}, pts)
}

func TestSamplePath_EndpointsPreserved(t *testing.T) {
	vertices := [][2]float64{{0, 0}, {0, 1}, {0, 2}}
	pts := SamplePath(vertices, 4)
	require.Equal(t, [2]float64{0, 0}, pts[0])
	require.Equal(t, [2]float64{0, 2}, pts[len(pts)-1])
}

func TestSamplePath_MonotoneAlongStraightLine(t *testing.T) {
	vertices := [][2]float64{{0, 0}, {0, 10}}
	pts := SamplePath(vertices, 6)
	for i := 1; i < len(pts); i++ {
		require.Greater(t, pts[i][1], pts[i-1][1])
	}
}

func TestSampleGrid_CornersMatchBoundingBox(t *testing.T) {
	rows := SampleGrid(0, 0, 10, 10, 3)
	require.Len(t, rows, 3)
	require.Equal(t, [2]float64{0, 0}, rows[0][0])
	require.Equal(t, [2]float64{10, 10}, rows[2][2])
}

func TestSampleGrid_SingleCellDegeneratesToOnePoint(t *testing.T) {
	rows := SampleGrid(0, 0, 10, 10, 1)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 1)
	require.Equal(t, [2]float64{0, 0}, rows[0][0])
}

func TestDecodePolyline_RoundTripsKnownEncoding(t *testing.T) {
	// The canonical example from Google's polyline-encoding documentation:
	// decodes to (38.5,-120.2), (40.7,-120.95), (43.252,-126.453).
	coords, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, coords, 3)
	require.InDelta(t, 38.5, coords[0][0], 1e-3)
	require.InDelta(t, -120.2, coords[0][1], 1e-3)
}

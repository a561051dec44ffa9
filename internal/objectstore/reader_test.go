package objectstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInverseTransform_IdentityGrid(t *testing.T) {
	gt := [6]float64{0, 1, 0, 0, 0, 1}
	col, row, err := inverseTransform(gt, 5.0, 7.0)
	require.NoError(t, err)
	require.InDelta(t, 5.0, col, 1e-9)
	require.InDelta(t, 7.0, row, 1e-9)
}

func TestInverseTransform_OffsetAndScale(t *testing.T) {
	// origin at (100, 200), 0.5 unit pixels, north-up (negative y scale).
	gt := [6]float64{100, 0.5, 0, 200, 0, -0.5}
	col, row, err := inverseTransform(gt, 101, 199)
	require.NoError(t, err)
	require.InDelta(t, 2.0, col, 1e-9)
	require.InDelta(t, 2.0, row, 1e-9)
}

func TestInverseTransform_SingularGeotransformErrors(t *testing.T) {
	gt := [6]float64{0, 0, 0, 0, 0, 0}
	_, _, err := inverseTransform(gt, 1, 1)
	require.Error(t, err)
}

func TestReprojectPoint_IdentityForWGS84(t *testing.T) {
	x, y, err := ReprojectPoint(-27.4698, 153.0251, wgs84EPSG)
	require.NoError(t, err)
	require.Equal(t, 153.0251, x)
	require.Equal(t, -27.4698, y)
}

func TestVSIPath_Format(t *testing.T) {
	require.Equal(t, "/vsis3/bucket/path/to/file.tif", vsiPath("bucket", "path/to/file.tif"))
}

package resolver

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/twpayne/go-polyline"
)

// SampleLine returns numPoints evenly spaced (lat, lon) samples between two
// endpoints inclusive, per §6's line query shape.
func SampleLine(lat1, lon1, lat2, lon2 float64, numPoints int) [][2]float64 {
	if numPoints < 2 {
		numPoints = 2
	}
	out := make([][2]float64, numPoints)
	for i := 0; i < numPoints; i++ {
		t := float64(i) / float64(numPoints-1)
		out[i] = [2]float64{
			lat1 + t*(lat2-lat1),
			lon1 + t*(lon2-lon1),
		}
	}
	return out
}

// SamplePath returns numPoints samples spaced evenly along the arc length
// of a polyline of (lat, lon) vertices, per §6's path query shape. Arc
// length is computed with paulmach/orb/geo's haversine distance, the same
// great-circle approach the rest of the pack's geo-indexing examples use
// for real-world (not planar) distance.
func SamplePath(vertices [][2]float64, numPoints int) [][2]float64 {
	if len(vertices) == 0 {
		return nil
	}
	if len(vertices) == 1 || numPoints < 2 {
		return [][2]float64{vertices[0]}
	}

	segLengths := make([]float64, len(vertices)-1)
	var total float64
	for i := 0; i < len(vertices)-1; i++ {
		a := orb.Point{vertices[i][1], vertices[i][0]}
		b := orb.Point{vertices[i+1][1], vertices[i+1][0]}
		segLengths[i] = geo.Distance(a, b)
		total += segLengths[i]
	}

	out := make([][2]float64, numPoints)
	out[0] = vertices[0]
	out[numPoints-1] = vertices[len(vertices)-1]

	for i := 1; i < numPoints-1; i++ {
		target := total * float64(i) / float64(numPoints-1)
		out[i] = pointAtArcLength(vertices, segLengths, target)
	}
	return out
}

func pointAtArcLength(vertices [][2]float64, segLengths []float64, target float64) [2]float64 {
	var accumulated float64
	for i, segLen := range segLengths {
		if accumulated+segLen >= target || i == len(segLengths)-1 {
			frac := 0.0
			if segLen > 0 {
				frac = (target - accumulated) / segLen
			}
			lat := vertices[i][0] + frac*(vertices[i+1][0]-vertices[i][0])
			lon := vertices[i][1] + frac*(vertices[i+1][1]-vertices[i][1])
			return [2]float64{lat, lon}
		}
		accumulated += segLen
	}
	return vertices[len(vertices)-1]
}

// SampleGrid returns a gridSize x gridSize regular lat/lon grid over a
// bounding box, per §6's grid/contour query shape, as rows of points so
// callers (e.g. a future contour-drawing step) can walk it row-major.
func SampleGrid(minLat, minLon, maxLat, maxLon float64, gridSize int) [][][2]float64 {
	if gridSize < 1 {
		gridSize = 1
	}
	rows := make([][][2]float64, gridSize)
	for r := 0; r < gridSize; r++ {
		row := make([][2]float64, gridSize)
		latT := divOrZero(r, gridSize-1)
		lat := minLat + latT*(maxLat-minLat)
		for c := 0; c < gridSize; c++ {
			lonT := divOrZero(c, gridSize-1)
			lon := minLon + lonT*(maxLon-minLon)
			row[c] = [2]float64{lat, lon}
		}
		rows[r] = row
	}
	return rows
}

func divOrZero(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// DecodePolyline decodes a Google-encoded-polyline string into (lat, lon)
// vertices, for the CLI's `path` subcommand accepting a compact path
// argument instead of a long list of raw coordinates.
func DecodePolyline(encoded string) ([][2]float64, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	out := make([][2]float64, len(coords))
	for i, c := range coords {
		out[i] = [2]float64{c[0], c[1]}
	}
	return out, nil
}

// Package scorer ranks candidate datasets by a weighted multi-factor score
// (§4.2): resolution, acquisition recency, spatial footprint, and a
// tabulated provider-reputation factor. It is pure arithmetic over values
// already in memory, with no I/O and no shared state.
package scorer

import (
	"math"
	"sort"

	"github.com/jcom-dev/elevresolve/internal/config"
	"github.com/jcom-dev/elevresolve/internal/model"
)

// resolutionAnchors are the piecewise-linear monotone-decreasing anchors
// from §4.2; resolution_score is linearly interpolated between adjacent
// anchors and clamped to [0.10, 1.00] outside the range.
var resolutionAnchors = []struct {
	resM, score float64
}{
	{0.5, 1.00},
	{1, 0.90},
	{2, 0.75},
	{5, 0.55},
	{10, 0.35},
	{30, 0.10},
}

func resolutionScore(resM float64) float64 {
	if resM <= resolutionAnchors[0].resM {
		return resolutionAnchors[0].score
	}
	last := resolutionAnchors[len(resolutionAnchors)-1]
	if resM >= last.resM {
		return last.score
	}
	for i := 1; i < len(resolutionAnchors); i++ {
		prev, cur := resolutionAnchors[i-1], resolutionAnchors[i]
		if resM <= cur.resM {
			frac := (resM - prev.resM) / (cur.resM - prev.resM)
			return prev.score + frac*(cur.score-prev.score)
		}
	}
	return last.score
}

func temporalScore(acquisitionYear int) float64 {
	v := float64(acquisitionYear-2000) / 25.0
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// spatialScore decreases with coverage_bbox area, scaled so a city-sized
// dataset lands at 0.9 and a continental mosaic at 0.2.
// areaDegSq is width*height in degrees; cityAreaDegSq and
// continentalAreaDegSq anchor the log-scale interpolation.
const (
	cityAreaDegSq        = 0.25  // 0.5° x 0.5°, roughly a 50km x 55km metro footprint
	continentalAreaDegSq = 4000.0 // roughly an Australia-sized mosaic
)

func spatialScore(bbox orbBound) float64 {
	w := bbox.maxX - bbox.minX
	h := bbox.maxY - bbox.minY
	area := w * h
	if area <= cityAreaDegSq {
		return 0.9
	}
	if area >= continentalAreaDegSq {
		return 0.2
	}
	// log-linear interpolation between the two anchors.
	logLo, logHi := math.Log(cityAreaDegSq), math.Log(continentalAreaDegSq)
	frac := (math.Log(area) - logLo) / (logHi - logLo)
	return 0.9 + frac*(0.2-0.9)
}

type orbBound struct{ minX, minY, maxX, maxY float64 }

var providerScores = map[string]float64{
	"elvis":   1.0,
	"ga":      0.9,
	"csiro":   0.8,
}

const defaultProviderScore = 0.6

func providerScore(provider string) float64 {
	if s, ok := providerScores[provider]; ok {
		return s
	}
	return defaultProviderScore
}

// Ranked is one scored candidate dataset, best-first once returned from Rank.
type Ranked struct {
	Dataset *model.Dataset
	Score   float64
}

// Rank implements the §4.2 contract: best-first dataset ordering plus an
// overall confidence verdict. candidates may contain the same dataset
// multiple times (once per overlapping file); Rank dedupes by dataset id
// before scoring.
func Rank(candidates []model.Candidate, weights config.ScoringWeights) ([]Ranked, model.Confidence) {
	seen := make(map[string]*model.Dataset)
	for _, c := range candidates {
		if _, ok := seen[c.Dataset.ID]; !ok {
			seen[c.Dataset.ID] = c.Dataset
		}
	}
	if len(seen) == 0 {
		return nil, model.ConfidenceLow
	}

	ranked := make([]Ranked, 0, len(seen))
	for _, ds := range seen {
		bbox := orbBound{ds.CoverageBBox.Min[0], ds.CoverageBBox.Min[1], ds.CoverageBBox.Max[0], ds.CoverageBBox.Max[1]}
		score := weights.Resolution*resolutionScore(ds.ResolutionM) +
			weights.Temporal*temporalScore(ds.AcquisitionYear) +
			weights.Spatial*spatialScore(bbox) +
			weights.Provider*providerScore(ds.Provider)
		ranked = append(ranked, Ranked{Dataset: ds, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Dataset.AcquisitionYear != b.Dataset.AcquisitionYear {
			return a.Dataset.AcquisitionYear > b.Dataset.AcquisitionYear
		}
		return a.Dataset.ID < b.Dataset.ID
	})

	return ranked, confidenceOf(ranked)
}

// confidenceOf implements §4.2's confidence rule: high if the top score is
// >= 0.8 and beats the runner-up by >= 0.1; medium if top >= 0.5; else low.
func confidenceOf(ranked []Ranked) model.Confidence {
	top := ranked[0].Score
	switch {
	case top >= 0.8 && (len(ranked) == 1 || top-ranked[1].Score >= 0.1):
		return model.ConfidenceHigh
	case top >= 0.5:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

package scorer

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/jcom-dev/elevresolve/internal/config"
	"github.com/jcom-dev/elevresolve/internal/model"
)

func TestRank_EmptyCandidates(t *testing.T) {
	ranked, confidence := Rank(nil, config.DefaultScoringWeights())
	require.Nil(t, ranked)
	require.Equal(t, model.ConfidenceLow, confidence)
}

func TestRank_PrefersHigherResolutionAndNewerData(t *testing.T) {
	old := &model.Dataset{
		ID: "old_5m", Provider: "default", ResolutionM: 5, AcquisitionYear: 2005,
		CoverageBBox: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.2, 0.2}},
	}
	new := &model.Dataset{
		ID: "new_1m", Provider: "elvis", ResolutionM: 1, AcquisitionYear: 2020,
		CoverageBBox: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.2, 0.2}},
	}
	candidates := []model.Candidate{
		{Dataset: old, File: &model.RasterFile{OwningDatasetID: old.ID}},
		{Dataset: new, File: &model.RasterFile{OwningDatasetID: new.ID}},
	}

	ranked, confidence := Rank(candidates, config.DefaultScoringWeights())
	require.Len(t, ranked, 2)
	require.Equal(t, "new_1m", ranked[0].Dataset.ID)
	require.Equal(t, model.ConfidenceHigh, confidence)
}

func TestRank_DedupesSameDatasetAcrossFiles(t *testing.T) {
	ds := &model.Dataset{ID: "d1", Provider: "ga", ResolutionM: 2, AcquisitionYear: 2015,
		CoverageBBox: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.1, 0.1}}}
	candidates := []model.Candidate{
		{Dataset: ds, File: &model.RasterFile{StorageKey: "a"}},
		{Dataset: ds, File: &model.RasterFile{StorageKey: "b"}},
	}
	ranked, _ := Rank(candidates, config.DefaultScoringWeights())
	require.Len(t, ranked, 1)
}

func TestRank_TieBrokenByAcquisitionYearThenID(t *testing.T) {
	a := &model.Dataset{ID: "b_dataset", Provider: "default", ResolutionM: 10, AcquisitionYear: 2010,
		CoverageBBox: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{60, 60}}}
	b := &model.Dataset{ID: "a_dataset", Provider: "default", ResolutionM: 10, AcquisitionYear: 2010,
		CoverageBBox: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{60, 60}}}
	candidates := []model.Candidate{
		{Dataset: a, File: &model.RasterFile{}},
		{Dataset: b, File: &model.RasterFile{}},
	}
	ranked, _ := Rank(candidates, config.DefaultScoringWeights())
	require.Equal(t, "a_dataset", ranked[0].Dataset.ID)
}

func TestResolutionScore_MonotoneDecreasing(t *testing.T) {
	require.Greater(t, resolutionScore(0.5), resolutionScore(1))
	require.Greater(t, resolutionScore(1), resolutionScore(5))
	require.Greater(t, resolutionScore(5), resolutionScore(30))
	require.Equal(t, resolutionScore(30), resolutionScore(100))
}

func TestTemporalScore_ClampedToUnitInterval(t *testing.T) {
	require.Equal(t, 0.0, temporalScore(1990))
	require.Equal(t, 1.0, temporalScore(2030))
	require.InDelta(t, 0.6, temporalScore(2015), 0.001)
}

func TestProviderScore_TabulatedWithDefault(t *testing.T) {
	require.Equal(t, 1.0, providerScore("elvis"))
	require.Equal(t, defaultProviderScore, providerScore("unknown_provider"))
}

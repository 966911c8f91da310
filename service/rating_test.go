package service

import (
	"math"
	"testing"

	"github.com/Scalingo/sclng-developer-report/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allCaps = []float64{CommitsCap, RepositoriesCap, WorkflowsCap, PullRequestsCap}

func TestNormalizeZero(t *testing.T) {
	for _, cap := range allCaps {
		assert.Equal(t, 0.0, Normalize(0, cap), "cap %v", cap)
	}
}

func TestNormalizeMonotonicAndBounded(t *testing.T) {
	for _, cap := range allCaps {
		previous := Normalize(0, cap)

		for x := 1.0; x <= 2000; x++ {
			current := Normalize(x, cap)

			assert.GreaterOrEqual(t, current, previous, "cap %v x %v", cap, x)
			assert.LessOrEqual(t, current, MaxRating, "cap %v x %v", cap, x)
			previous = current
		}

		// reaching cap-1 (log(cap)/log(cap)) gives the full score
		assert.InDelta(t, MaxRating, Normalize(cap-1, cap), 1e-9)
		assert.Equal(t, MaxRating, Normalize(cap*100, cap))
	}
}

func TestNormalizeDiminishingReturns(t *testing.T) {
	// 500 commits must not dominate 60 commits: both are past the cap
	assert.Equal(t, Normalize(60, CommitsCap), Normalize(500, CommitsCap))

	firstTen := Normalize(10, CommitsCap) - Normalize(0, CommitsCap)
	nextTen := Normalize(20, CommitsCap) - Normalize(10, CommitsCap)
	assert.Greater(t, firstTen, nextTen)
}

func TestComputeRating(t *testing.T) {
	tests := []struct {
		name     string
		stats    model.SummaryStatistics
		expected float64
	}{
		{
			name:     "No activity",
			stats:    model.SummaryStatistics{},
			expected: 0,
		},
		{
			name: "Everything over the caps",
			stats: model.SummaryStatistics{
				TotalCommits:      1000,
				TotalRepositories: 100,
				TotalWorkflows:    1000,
				TotalPullRequests: 100,
			},
			expected: 10,
		},
		{
			name:     "Only repositories at the cap",
			stats:    model.SummaryStatistics{TotalRepositories: 19},
			expected: 2.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ComputeRating(tt.stats), 1e-9)
		})
	}
}

func TestComputeRatingStaysInRange(t *testing.T) {
	for _, n := range []int{0, 1, 3, 7, 20, 99, 5000} {
		rating := ComputeRating(model.SummaryStatistics{
			TotalCommits:      n,
			TotalRepositories: n,
			TotalWorkflows:    n,
			TotalPullRequests: n,
		})

		assert.GreaterOrEqual(t, rating, 0.0)
		assert.LessOrEqual(t, rating, MaxRating)
	}
}

func TestMapRatingToSalary(t *testing.T) {
	bands := []model.SalaryBand{
		{Min: 5, Max: 15},
		{Min: 0.1, Max: 0.3},
		{Min: 3.7, Max: 12.9},
	}

	for _, band := range bands {
		low, err := MapRatingToSalary(0, band)
		require.NoError(t, err)
		assert.Equal(t, band.Min, low)

		high, err := MapRatingToSalary(10, band)
		require.NoError(t, err)
		assert.Equal(t, band.Max, high)

		previous := low
		for rating := 0.5; rating <= 10; rating += 0.5 {
			salary, err := MapRatingToSalary(rating, band)
			require.NoError(t, err)

			assert.GreaterOrEqual(t, salary, previous)
			assert.InDelta(t, band.Min+(band.Max-band.Min)*rating/10, salary, 1e-9)
			previous = salary
		}
	}

	mid, err := MapRatingToSalary(5, model.SalaryBand{Min: 5, Max: 15})
	require.NoError(t, err)
	assert.Equal(t, 10.0, mid)

	// out of range ratings are clamped
	clamped, err := MapRatingToSalary(42, model.SalaryBand{Min: 5, Max: 15})
	require.NoError(t, err)
	assert.Equal(t, 15.0, clamped)
}

func TestMapRatingToSalaryRejectsInvertedBand(t *testing.T) {
	_, err := MapRatingToSalary(5, model.SalaryBand{Min: 15, Max: 5})
	assert.ErrorIs(t, err, &model.PipelineError{Kind: model.ValidationError})

	_, err = MapRatingToSalary(5, model.SalaryBand{Min: 5, Max: 5})
	assert.ErrorIs(t, err, &model.PipelineError{Kind: model.ValidationError})
}

func TestMapRatingToSalaryRejectsNonFiniteBand(t *testing.T) {
	for _, band := range []model.SalaryBand{
		{Min: math.NaN(), Max: 10},
		{Min: 5, Max: math.NaN()},
		{Min: 5, Max: math.Inf(1)},
		{Min: math.Inf(-1), Max: 10},
	} {
		salary, err := MapRatingToSalary(5, band)
		assert.ErrorIs(t, err, &model.PipelineError{Kind: model.ValidationError}, "band %v", band)
		assert.Zero(t, salary)
	}
}

func TestCombineRatings(t *testing.T) {
	band := model.SalaryBand{Min: 5, Max: 15}

	combined, err := CombineRatings(4, 10, band)
	require.NoError(t, err)
	assert.InDelta(t, 6.5, combined, 1e-9)

	combined, err = CombineRatings(8, 15, band)
	require.NoError(t, err)
	assert.Equal(t, MaxRating, combined)

	_, err = CombineRatings(8, 15, model.SalaryBand{Min: 15, Max: 15})
	assert.Error(t, err)
}

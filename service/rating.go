package service

import (
	"math"

	"github.com/Scalingo/sclng-developer-report/model"
)

const MaxRating = 10.0

// normalization caps: reaching the cap gives the full score for the signal
const (
	CommitsCap      = 50
	RepositoriesCap = 20
	WorkflowsCap    = 100
	PullRequestsCap = 10
)

const (
	commitsWeight      = 0.35
	repositoriesWeight = 0.25
	workflowsWeight    = 0.20
	pullRequestsWeight = 0.20
)

// Normalize compresses a count on a logarithmic scale: log(x+1) / log(cap) * 10, capped at 10
// both logs use base cap+1
func Normalize(x, cap float64) float64 {
	if x <= 0 {
		return 0
	}

	base := cap + 1
	return math.Min(logBase(x+1, base)/logBase(cap, base)*MaxRating, MaxRating)
}

func logBase(x, base float64) float64 {
	return math.Log(x) / math.Log(base)
}

// ComputeRating returns the developer rating in [0, 10]
func ComputeRating(stats model.SummaryStatistics) float64 {
	rating := Normalize(float64(stats.TotalCommits), CommitsCap)*commitsWeight +
		Normalize(float64(stats.TotalRepositories), RepositoriesCap)*repositoriesWeight +
		Normalize(float64(stats.TotalWorkflows), WorkflowsCap)*workflowsWeight +
		Normalize(float64(stats.TotalPullRequests), PullRequestsCap)*pullRequestsWeight

	return clampRating(rating)
}

// MapRatingToSalary interpolates the rating linearly within the band
// salary is derived from the rating, it never feeds back into it
func MapRatingToSalary(rating float64, band model.SalaryBand) (float64, error) {
	if err := band.Validate(); err != nil {
		return 0, err
	}

	rating = clampRating(rating)

	switch rating {
	case 0:
		return band.Min, nil
	case MaxRating:
		return band.Max, nil
	}

	return band.Min + (band.Max-band.Min)*(rating/MaxRating), nil
}

// CombineRatings adds an offered salary factor (up to 5 points) to the github rating
// not used when the salary is derived from the rating, see MapRatingToSalary
func CombineRatings(githubRating, offeredSalary float64, band model.SalaryBand) (float64, error) {
	if err := band.Validate(); err != nil {
		return 0, err
	}

	salaryFactor := math.Min((offeredSalary-band.Min)/(band.Max-band.Min)*5, 5)
	return math.Min(githubRating+salaryFactor, MaxRating), nil
}

func clampRating(rating float64) float64 {
	if math.IsNaN(rating) || rating < 0 {
		return 0
	}

	return math.Min(rating, MaxRating)
}

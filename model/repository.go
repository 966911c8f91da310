package model

import "sort"

// RepositorySummary is built once per repository returned by github, never mutated afterward
type RepositorySummary struct {
	Name         string
	Owner        string
	FullName     string
	Language     *string // most used language, nil for empty repositories
	LanguagesURL string
	IsFork       bool

	// zero when github did not provide (or we did not fetch) the value
	CommitCount      int
	PullRequestCount int
	WorkflowCount    int
}

// LanguageByteMap contains cumulative bytes written per language
type LanguageByteMap map[string]int

type LanguageUsage struct {
	Language string
	Bytes    int
}

// Add sums other into m, negative values are ignored
func (m LanguageByteMap) Add(other map[string]int) {
	for language, bytes := range other {
		if bytes < 0 {
			continue
		}
		m[language] += bytes
	}
}

// Max returns the biggest byte count of the map, 0 for an empty map
func (m LanguageByteMap) Max() int {
	max := 0
	for _, bytes := range m {
		if bytes > max {
			max = bytes
		}
	}

	return max
}

// Sorted returns languages by bytes descending, then by name to keep output stable
func (m LanguageByteMap) Sorted() []LanguageUsage {
	usages := make([]LanguageUsage, 0, len(m))
	for language, bytes := range m {
		usages = append(usages, LanguageUsage{Language: language, Bytes: bytes})
	}

	sort.Slice(usages, func(i, j int) bool {
		if usages[i].Bytes != usages[j].Bytes {
			return usages[i].Bytes > usages[j].Bytes
		}
		return usages[i].Language < usages[j].Language
	})

	return usages
}

type SummaryStatistics struct {
	TotalRepositories int
	TotalCommits      int
	TotalPullRequests int
	TotalWorkflows    int
}

func NewSummaryStatistics(repos []RepositorySummary) SummaryStatistics {
	stats := SummaryStatistics{TotalRepositories: len(repos)}

	for _, r := range repos {
		stats.TotalCommits += nonNegative(r.CommitCount)
		stats.TotalPullRequests += nonNegative(r.PullRequestCount)
		stats.TotalWorkflows += nonNegative(r.WorkflowCount)
	}

	return stats
}

// SkillCount is the number of repositories using a language as main language
type SkillCount struct {
	Language     string
	Repositories int
}

// CountSkills keeps the order in which languages are first seen
func CountSkills(repos []RepositorySummary) []SkillCount {
	index := make(map[string]int)
	skills := make([]SkillCount, 0)

	for _, r := range repos {
		if r.Language == nil || *r.Language == "" {
			continue
		}

		if i, found := index[*r.Language]; found {
			skills[i].Repositories++
			continue
		}

		index[*r.Language] = len(skills)
		skills = append(skills, SkillCount{Language: *r.Language, Repositories: 1})
	}

	return skills
}

// OwnedRepositories filters out forks
func OwnedRepositories(repos []RepositorySummary) []RepositorySummary {
	owned := make([]RepositorySummary, 0, len(repos))
	for _, r := range repos {
		if !r.IsFork {
			owned = append(owned, r)
		}
	}

	return owned
}

// GithubProfile is everything we aggregate about a github user
type GithubProfile struct {
	Username       string
	Repositories   []RepositorySummary
	AllLanguages   LanguageByteMap
	OwnedLanguages LanguageByteMap
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

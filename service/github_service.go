package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Scalingo/sclng-developer-report/config"
	"github.com/Scalingo/sclng-developer-report/model"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v66/github"

	"github.com/remeh/sizedwaitgroup"
	log "github.com/sirupsen/logrus"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// requests made per repository when activity is fetched (commits, pull requests, workflows)
const activityRequestsPerRepository = 3

type GithubService interface {
	FetchProfile(ctx context.Context, username string) (*model.GithubProfile, error)
	ListRepositories(ctx context.Context, username string) ([]model.RepositorySummary, error)
	GetRepositoriesLanguages(ctx context.Context, repos []model.RepositorySummary) []map[string]int
	FetchLanguagesForSingleRepository(ctx context.Context, r model.RepositorySummary) (map[string]int, error)
	GetRepositoriesActivity(ctx context.Context, username string, repos []model.RepositorySummary) []model.RepositorySummary

	HandleRequestErrors(err error) error
}

type githubService struct {
	githubClient      *github.Client
	githubRateLimiter *rate.Limiter
	config            config.Config
}

type repositoryLanguages struct {
	index     int
	languages map[string]int
}

type repositoryActivity struct {
	index      int
	repository model.RepositorySummary
}

// NewGithubService do not read any credential by itself, the client must be built
// from the same configuration (see NewGithubClient)
func NewGithubService(config config.Config, githubClient *github.Client, rateLimiter *rate.Limiter) GithubService {
	return githubService{
		githubClient:      githubClient,
		githubRateLimiter: rateLimiter,
		config:            config,
	}
}

// FetchProfile list the user repositories and aggregate languages for all of them and for owned ones
// listing errors fail the whole profile, languages errors for a single repository are only logged
func (s githubService) FetchProfile(ctx context.Context, username string) (*model.GithubProfile, error) {
	if s.config.Github.Token == "" {
		log.Error("github token not found in configuration")
		return nil, model.NewPipelineError(model.UpstreamAuthFailure, "github token is not configured", nil)
	}

	repos, err := s.ListRepositories(ctx, username)
	if err != nil {
		return nil, err
	}

	// rate limit check: consume tokens/requests for each repo that we need to load languages from
	// if there is not enough requests, return an error to avoid loading for only a part of repositories
	reposWithLanguagesToLoad := 0
	for _, r := range repos {
		if r.Language != nil {
			reposWithLanguagesToLoad++
		}
	}

	if !s.githubRateLimiter.AllowN(time.Now(), reposWithLanguagesToLoad) {
		log.WithField("repositoriesToLoad", reposWithLanguagesToLoad).Warning("not enough requests in rate limiter to load languages for all repositories")
		return nil, model.NewPipelineError(model.UpstreamRateLimited, "local rate limit reached", nil)
	}

	languages := s.GetRepositoriesLanguages(ctx, repos)

	if s.config.Github.FetchActivity {
		repos = s.GetRepositoriesActivity(ctx, username, repos)
	}

	profile := &model.GithubProfile{
		Username:       username,
		Repositories:   repos,
		AllLanguages:   model.LanguageByteMap{},
		OwnedLanguages: model.LanguageByteMap{},
	}

	for i, r := range repos {
		profile.AllLanguages.Add(languages[i])

		if !r.IsFork {
			profile.OwnedLanguages.Add(languages[i])
		}
	}

	log.WithFields(log.Fields{
		"username":       username,
		"repositories":   len(repos),
		"languages":      len(profile.AllLanguages),
		"ownedLanguages": len(profile.OwnedLanguages),
	}).Info("github profile aggregated")

	return profile, nil
}

// ListRepositories follow all pages, 100 repositories per page
func (s githubService) ListRepositories(ctx context.Context, username string) ([]model.RepositorySummary, error) {
	log.WithField("username", username).Debug("fetching repositories from github")

	opts := &github.RepositoryListByUserOptions{
		ListOptions: github.ListOptions{
			Page:    1,
			PerPage: 100,
		},
	}

	repositories := make([]model.RepositorySummary, 0)

	for {
		if !s.githubRateLimiter.Allow() {
			log.Warning("the Github rate limit has been reached. Use a token or wait until the limit reset")
			return nil, model.NewPipelineError(model.UpstreamRateLimited, "local rate limit reached", nil)
		}

		var page []*github.Repository
		var resp *github.Response

		err := s.withRetry(ctx, func() (*github.Response, error) {
			var err error
			page, resp, err = s.githubClient.Repositories.ListByUser(ctx, username, opts)
			return resp, err
		})

		if err != nil {
			var errResp *github.ErrorResponse
			if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
				log.WithField("username", username).Warning("github user not found")
				return nil, model.NewPipelineError(model.IdentifierNotFound, fmt.Sprintf("GitHub user %s not found", username), err)
			}

			return nil, s.HandleRequestErrors(err)
		}

		for _, r := range page {
			if r == nil || r.Name == nil {
				log.Debug("repository found with invalid information. skipped")
				continue
			}

			owner := r.GetOwner().GetLogin()
			if owner == "" {
				owner = username
			}

			repositories = append(repositories, model.RepositorySummary{
				Name:         r.GetName(),
				Owner:        owner,
				FullName:     r.GetFullName(),
				Language:     r.Language,
				LanguagesURL: r.GetLanguagesURL(),
				IsFork:       r.GetFork(),
			})
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	log.WithFields(log.Fields{
		"username":     username,
		"repositories": len(repositories),
	}).Debug("repositories fetched from github")

	return repositories, nil
}

// GetRepositoriesLanguages will fetch the languages used for each repository in parameters
// requests are parallelized with a sized wait group, result i belongs to repos[i]
func (s githubService) GetRepositoriesLanguages(ctx context.Context, repos []model.RepositorySummary) []map[string]int {
	swg := sizedwaitgroup.New(s.config.ParallelRequests())
	results := make(chan repositoryLanguages, len(repos))

	for i, r := range repos {

		// a repository without most used language has no languages at all
		// skipping it will save some requests regarding to the rate limit
		if r.Language == nil {
			log.WithField("repository", r.Name).Debug("repository without most used language. skipped from loading languages list")
			results <- repositoryLanguages{index: i, languages: map[string]int{}}
			continue
		}

		swg.Add()
		go func(i int, r model.RepositorySummary) {
			defer swg.Done()

			languages, err := s.FetchLanguagesForSingleRepository(ctx, r)
			if err != nil {
				log.WithError(err).WithField("repository", r.Name).Error("error fetching languages for repository. skipped")
				languages = map[string]int{}
			}

			results <- repositoryLanguages{index: i, languages: languages}
		}(i, r)
	}

	log.Debug("waiting for all threads for loading repositories languages to be finished")
	swg.Wait()
	close(results)

	languages := make([]map[string]int, len(repos))
	for result := range results {
		languages[result.index] = result.languages
	}

	return languages
}

// FetchLanguagesForSingleRepository use the languages url given by the listing
// note: we are not checking the rate limit in this function, because done in the parent function
func (s githubService) FetchLanguagesForSingleRepository(ctx context.Context, r model.RepositorySummary) (map[string]int, error) {
	log.WithFields(log.Fields{
		"repository":       r.Name,
		"mostUsedLanguage": r.Language,
	}).Debug("fetch languages for repository")

	var languages map[string]int

	if !s.isGithubURL(r.LanguagesURL) {
		err := s.withRetry(ctx, func() (*github.Response, error) {
			res, resp, err := s.githubClient.Repositories.ListLanguages(ctx, r.Owner, r.Name)
			languages = res
			return resp, err
		})
		if err != nil {
			return nil, s.HandleRequestErrors(err)
		}

		return languages, nil
	}

	req, err := s.githubClient.NewRequest(http.MethodGet, r.LanguagesURL, nil)
	if err != nil {
		return nil, model.NewPipelineError(model.UpstreamError, "invalid languages url", err)
	}

	err = s.withRetry(ctx, func() (*github.Response, error) {
		languages = map[string]int{}
		return s.githubClient.Do(ctx, req, &languages)
	})
	if err != nil {
		return nil, s.HandleRequestErrors(err)
	}

	return languages, nil
}

// GetRepositoriesActivity counts commits authored by the user, pull requests and workflows
// for each repository. This is best effort: on failure the counts stay to 0
func (s githubService) GetRepositoriesActivity(ctx context.Context, username string, repos []model.RepositorySummary) []model.RepositorySummary {
	if !s.githubRateLimiter.AllowN(time.Now(), len(repos)*activityRequestsPerRepository) {
		log.WithField("repositories", len(repos)).Warning("not enough requests in rate limiter to load repositories activity. skipped")
		return repos
	}

	swg := sizedwaitgroup.New(s.config.ParallelRequests())
	results := make(chan repositoryActivity, len(repos))

	for i, r := range repos {
		swg.Add()
		go func(i int, r model.RepositorySummary) {
			defer swg.Done()
			results <- repositoryActivity{index: i, repository: s.fetchActivityForSingleRepository(ctx, username, r)}
		}(i, r)
	}

	swg.Wait()
	close(results)

	enriched := make([]model.RepositorySummary, len(repos))
	for result := range results {
		enriched[result.index] = result.repository
	}

	return enriched
}

func (s githubService) fetchActivityForSingleRepository(ctx context.Context, username string, r model.RepositorySummary) model.RepositorySummary {
	var eg errgroup.Group

	eg.Go(func() error {
		var commits []*github.RepositoryCommit
		resp, err := s.withRetryResponse(ctx, func() (*github.Response, error) {
			var resp *github.Response
			var err error
			commits, resp, err = s.githubClient.Repositories.ListCommits(ctx, r.Owner, r.Name, &github.CommitsListOptions{
				Author:      username,
				ListOptions: github.ListOptions{PerPage: 1},
			})
			return resp, err
		})
		if err != nil {
			return fmt.Errorf("commits: %w", err)
		}

		r.CommitCount = countFromResponse(resp, len(commits))
		return nil
	})

	eg.Go(func() error {
		var pulls []*github.PullRequest
		resp, err := s.withRetryResponse(ctx, func() (*github.Response, error) {
			var resp *github.Response
			var err error
			pulls, resp, err = s.githubClient.PullRequests.List(ctx, r.Owner, r.Name, &github.PullRequestListOptions{
				State:       "all",
				ListOptions: github.ListOptions{PerPage: 1},
			})
			return resp, err
		})
		if err != nil {
			return fmt.Errorf("pull requests: %w", err)
		}

		r.PullRequestCount = countFromResponse(resp, len(pulls))
		return nil
	})

	eg.Go(func() error {
		var workflows *github.Workflows
		err := s.withRetry(ctx, func() (*github.Response, error) {
			var resp *github.Response
			var err error
			workflows, resp, err = s.githubClient.Actions.ListWorkflows(ctx, r.Owner, r.Name, &github.ListOptions{PerPage: 1})
			return resp, err
		})
		if err != nil {
			return fmt.Errorf("workflows: %w", err)
		}

		r.WorkflowCount = workflows.GetTotalCount()
		return nil
	})

	if err := eg.Wait(); err != nil {
		// empty repositories answer 409 on commits, this is expected
		log.WithError(err).WithField("repository", r.Name).Debug("activity partially fetched for repository")
	}

	return r
}

// countFromResponse with per_page=1 the last page number is the number of items
func countFromResponse(resp *github.Response, itemsInPage int) int {
	if resp != nil && resp.LastPage > 0 {
		return resp.LastPage
	}

	return itemsInPage
}

// HandleRequestErrors manage errors including github rate limit errors at the same location
// If error is a rate limit error, this function will update the local rate limiter to consume all available requests
// this can help us to keep the local rate limiter up to date
func (s githubService) HandleRequestErrors(err error) error {
	var rateLimitErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var errResp *github.ErrorResponse

	rateLimited := errors.As(err, &rateLimitErr) || errors.As(err, &abuseErr)
	status := 0

	if errors.As(err, &errResp) && errResp.Response != nil {
		status = errResp.Response.StatusCode
	}

	if rateLimited || status == http.StatusForbidden || status == http.StatusTooManyRequests {
		// a plain 403 can be a permission issue on a single repository, only real rate limits drain the limiter
		if rateLimited && !s.githubRateLimiter.AllowN(time.Now(), s.githubRateLimiter.Burst()) {
			log.Debug("local rate limiter already drained")
		}

		log.WithError(err).Warning("the Github rate limit has been reached or permissions are insufficient. Check the token or wait until the limit reset")
		return model.NewPipelineError(model.UpstreamRateLimited, "rate limit exceeded or insufficient permissions", err)
	}

	if status == http.StatusUnauthorized {
		log.WithError(err).Error("github rejected the configured token")
		return model.NewPipelineError(model.UpstreamAuthFailure, "github rejected the configured token", err)
	}

	log.WithError(err).Error("error caught when fetching data from github")
	return model.NewPipelineError(model.UpstreamError, "unable to fetch data from github", err)
}

// withRetry retries transient errors (5xx and transport errors) with an exponential backoff
func (s githubService) withRetry(ctx context.Context, operation func() (*github.Response, error)) error {
	_, err := s.withRetryResponse(ctx, operation)
	return err
}

func (s githubService) withRetryResponse(ctx context.Context, operation func() (*github.Response, error)) (*github.Response, error) {
	retries := s.config.Github.MaxRetries
	if retries < 0 {
		retries = 0
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)

	var resp *github.Response
	err := backoff.Retry(func() error {
		var err error
		resp, err = operation()

		if err == nil {
			return nil
		}

		if !isTransient(ctx, resp, err) {
			return backoff.Permanent(err)
		}

		log.WithError(err).Debug("transient error from github, will retry")
		return err
	}, policy)

	return resp, err
}

func isTransient(ctx context.Context, resp *github.Response, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rateLimitErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateLimitErr) || errors.As(err, &abuseErr) {
		return false
	}

	if resp == nil || resp.Response == nil {
		return true
	}

	return resp.StatusCode >= http.StatusInternalServerError
}

// isGithubURL prevents sending the token to another host than the API one
func (s githubService) isGithubURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return u.Host == s.githubClient.BaseURL.Host
}

package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Scalingo/sclng-developer-report/config"
	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v66/github"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const userAgent = "sclng-developer-report/1.0"

// default for authenticated clients, used when the rate limit can't be loaded from github
const defaultHourlyRateLimit = 5000

// NewGithubClient creates a github client using the token from the configuration
// secondary rate limits are absorbed by the transport, up to MaxRateLimitSleepSeconds per sleep
func NewGithubClient(cfg config.GithubConfig) (*github.Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil,
		github_ratelimit.WithSingleSleepLimit(time.Duration(cfg.MaxRateLimitSleepSeconds)*time.Second, nil),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}

	var transport http.RoundTripper = rateLimitWaiter

	if cfg.Token != "" {
		log.Debug("will setup github client with authorization token")
		transport = &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
		}
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	}

	client := github.NewClient(httpClient)
	client.UserAgent = userAgent

	return client, nil
}

// NewRateLimiter setup the local rate limiter with the current limits from github
// tokens already consumed elsewhere are consumed here too, to keep the local limiter in sync
func NewRateLimiter(ctx context.Context, githubClient *github.Client) *rate.Limiter {
	log.Debug("loading current rate limit from github")

	rateLimits, _, err := githubClient.RateLimit.Get(ctx)
	if err != nil || rateLimits == nil || rateLimits.Core == nil {
		log.WithError(err).Warning("unable to load current github rate limits, will use default limits")
		return rate.NewLimiter(rate.Every(time.Hour/defaultHourlyRateLimit), defaultHourlyRateLimit)
	}

	log.WithFields(log.Fields{
		"totalAvailable":    rateLimits.Core.Limit,
		"remainingRequests": rateLimits.Core.Remaining,
	}).Debug("will setup local rate limiter with rate limits infos from github")

	limit := rateLimits.Core.Limit
	if limit <= 0 {
		limit = defaultHourlyRateLimit
	}

	rateLimiter := rate.NewLimiter(rate.Every(time.Hour/time.Duration(limit)), limit)

	if !rateLimiter.AllowN(time.Now(), limit-rateLimits.Core.Remaining) {
		log.Warning("unable to sync the local rate limiter with github remaining requests")
	}

	return rateLimiter
}

package service

import (
	"regexp"

	"github.com/Scalingo/sclng-developer-report/logger"
	log "github.com/sirupsen/logrus"
)

var (
	// labeled field "GitHub: <name>" or a profile URL "github.com/<name>"
	// the host must not be preceded by a subdomain, gist.github.com or api.github.com are not profiles
	githubIdentifierPattern = regexp.MustCompile(`(?i)(?:github:\s*([a-z0-9-]+)|(?:^|[^.\w])(?:https?://)?(?:www\.)?github\.com/([a-z0-9-]+))`)
	githubUsernamePattern   = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
)

// ResolveGithubUsername returns the first username found in the text, first match wins
func ResolveGithubUsername(text string) (string, bool) {
	log.WithField("preview", logger.Truncate(text, 100)).Debug("extracting github username from resume text")

	for _, match := range githubIdentifierPattern.FindAllStringSubmatch(text, -1) {
		for _, group := range match[1:] {
			if group != "" && githubUsernamePattern.MatchString(group) {
				log.WithField("username", group).Debug("found github username")
				return group, true
			}
		}
	}

	log.Warning("no github username found in resume")
	return "", false
}

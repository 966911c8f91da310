package service

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Scalingo/sclng-developer-report/config"
	"github.com/Scalingo/sclng-developer-report/logger"
	"github.com/Scalingo/sclng-developer-report/model"
	log "github.com/sirupsen/logrus"
)

type ReportService interface {
	GenerateReport(ctx context.Context, request model.ReportRequest) (*model.Report, error)
}

type reportService struct {
	config        config.Config
	extractor     DocumentExtractor
	githubService GithubService
	renderer      ReportRenderer
	now           func() time.Time
}

func NewReportService(config config.Config, extractor DocumentExtractor, githubService GithubService, renderer ReportRenderer) ReportService {
	return reportService{
		config:        config,
		extractor:     extractor,
		githubService: githubService,
		renderer:      renderer,
		now:           time.Now,
	}
}

// GenerateReport runs the whole pipeline for a single resume and writes the report in the uploads directory
// the request is validated before any file or network access
func (s reportService) GenerateReport(ctx context.Context, request model.ReportRequest) (*model.Report, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	band := request.Band()

	resumePath, err := ResolveUploadPath(s.config.Reports, request.ResumeFilePath)
	if err != nil {
		return nil, err
	}

	doc, err := s.extractResume(resumePath)
	if err != nil {
		return nil, err
	}

	username, found := ResolveGithubUsername(doc.Text)
	if !found {
		log.WithField("preview", logger.Truncate(doc.Text, 100)).Debug("no github username in resume")
		return nil, model.NewPipelineError(model.IdentifierNotFound, "No GitHub ID found in resume", nil)
	}

	logCtx := log.WithField("username", username)
	logCtx.Info("github username found in resume, fetching profile")

	profile, err := s.githubService.FetchProfile(ctx, username)
	if err != nil {
		return nil, err
	}

	stats := model.NewSummaryStatistics(profile.Repositories)
	rating := ComputeRating(stats)

	salary, err := MapRatingToSalary(rating, band)
	if err != nil {
		return nil, err
	}

	logCtx.WithFields(log.Fields{
		"repositories": stats.TotalRepositories,
		"rating":       rating,
		"salary":       salary,
	}).Debug("candidate evaluated")

	report, err := s.renderer.Render(model.ReportInput{
		Username:       username,
		GeneratedAt:    s.now(),
		Statistics:     stats,
		AllSkills:      model.CountSkills(profile.Repositories),
		AllLanguages:   profile.AllLanguages,
		OwnedSkills:    model.CountSkills(model.OwnedRepositories(profile.Repositories)),
		OwnedLanguages: profile.OwnedLanguages,
		Band:           band,
		Rating:         rating,
		Salary:         salary,
		OverallRating:  rating,
	})
	if err != nil {
		return nil, err
	}

	if err := s.writeReport(report); err != nil {
		return nil, err
	}

	logCtx.WithField("path", report.RelativePath).Info("report generated")
	return report, nil
}

func (s reportService) extractResume(resumePath string) (model.ExtractedDocument, error) {
	file, err := os.Open(resumePath)
	if err != nil {
		log.WithError(err).Error("unable to open resume")
		return model.ExtractedDocument{}, model.NewPipelineError(model.ExtractionFailure, "Failed to extract text from resume", err)
	}
	defer file.Close()

	doc := s.extractor.Extract(file)
	if doc.IsEmpty() {
		return model.ExtractedDocument{}, model.NewPipelineError(model.ExtractionFailure, "Failed to extract text from resume", nil)
	}

	return doc, nil
}

func (s reportService) writeReport(report *model.Report) error {
	dir := s.config.Reports.UploadsDir

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.NewPipelineError(model.RenderError, "unable to create uploads directory", err)
	}

	if err := os.WriteFile(filepath.Join(dir, report.Filename), report.Content, 0o644); err != nil {
		return model.NewPipelineError(model.RenderError, "unable to write report", err)
	}

	report.RelativePath = strings.TrimSuffix(s.config.Reports.URLPrefix, "/") + "/" + report.Filename
	return nil
}

// ResolveUploadPath maps a client path (absolute url path or relative name) to a file inside the uploads directory
// paths leaving the uploads directory are rejected
func ResolveUploadPath(cfg config.ReportsConfig, clientPath string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(clientPath), "\\", "/")

	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", model.NewPipelineError(model.ValidationError, "resumeFilePath must be inside the uploads directory", nil)
		}
	}

	cleaned := path.Clean("/" + normalized)

	// "/Uploads/resume.pdf" and "resume.pdf" point to the same file
	prefix := path.Clean("/" + cfg.URLPrefix)
	if prefix != "/" && strings.HasPrefix(cleaned, prefix+"/") {
		cleaned = strings.TrimPrefix(cleaned, prefix)
	}

	relative := strings.TrimPrefix(cleaned, "/")
	if relative == "" {
		return "", model.NewPipelineError(model.ValidationError, "resumeFilePath is required", nil)
	}

	resolved := filepath.Join(cfg.UploadsDir, filepath.FromSlash(relative))

	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", model.NewPipelineError(model.ValidationError, "Resume file not found", err)
		}
		return "", model.NewPipelineError(model.ExtractionFailure, "Failed to extract text from resume", err)
	}

	if info.IsDir() {
		return "", model.NewPipelineError(model.ValidationError, "Resume file not found", nil)
	}

	return resolved, nil
}

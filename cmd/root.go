// Package cmd contains the devreport commands, built with cobra
package cmd

import (
	"context"
	"os"

	"github.com/Scalingo/sclng-developer-report/config"
	"github.com/Scalingo/sclng-developer-report/logger"
	"github.com/Scalingo/sclng-developer-report/service"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configFilePath string

var rootCmd = &cobra.Command{
	Use:   "devreport",
	Short: "Generate developer reports from resumes and GitHub activity",
	Long: `devreport reads a resume, finds the candidate GitHub account in it and
renders a PDF report with repositories, languages, a rating and a suggested salary.`,
	SilenceUsage: true,
}

// Execute is called by main.main, it only needs to happen once
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "", "path to the TOML configuration file (default: config/config.toml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
}

// loadConfig loads the configuration and setup the logger accordingly
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFilePath != "" {
		cfg, err = config.LoadFrom(configFilePath)
	} else {
		cfg, err = config.Load()
	}

	if err != nil {
		log.WithError(err).Error("unable to load configuration")
		return nil, err
	}

	logger.Setup(*cfg)
	return cfg, nil
}

// newReportService setup the github client and the local rate limiter, then the whole pipeline
// we build the client here and pass it to the github service to easily replace it in tests
func newReportService(ctx context.Context, cfg config.Config) (service.ReportService, error) {
	githubClient, err := service.NewGithubClient(cfg.Github)
	if err != nil {
		return nil, err
	}

	rateLimiter := service.NewRateLimiter(ctx, githubClient)
	githubService := service.NewGithubService(cfg, githubClient, rateLimiter)

	return service.NewReportService(cfg, service.NewPDFExtractor(), githubService, service.NewReportRenderer(cfg)), nil
}

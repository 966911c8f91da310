package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Scalingo/sclng-developer-report/model"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	resumePath string
	minSalary  float64
	maxSalary  float64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a single report from a local resume",
	Long: `Copy the resume in the uploads directory, run the report pipeline on it
and print the path of the generated report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		request := model.ReportRequest{
			ResumeFilePath: filepath.Base(resumePath),
			MinSalary:      &minSalary,
			MaxSalary:      &maxSalary,
		}

		// fail fast on invalid flags, before copying anything
		if err := request.Validate(); err != nil {
			return err
		}

		if err := copyToUploads(resumePath, cfg.Reports.UploadsDir); err != nil {
			log.WithError(err).Error("unable to copy resume in uploads directory")
			return err
		}

		reportService, err := newReportService(cmd.Context(), *cfg)
		if err != nil {
			return err
		}

		report, err := reportService.GenerateReport(cmd.Context(), request)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(cfg.Reports.UploadsDir, report.Filename))
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&resumePath, "resume", "r", "", "path to the resume PDF")
	generateCmd.Flags().Float64Var(&minSalary, "min-salary", 0, "lower bound of the salary band, in LPA")
	generateCmd.Flags().Float64Var(&maxSalary, "max-salary", 0, "upper bound of the salary band, in LPA")

	_ = generateCmd.MarkFlagRequired("resume")
	_ = generateCmd.MarkFlagRequired("min-salary")
	_ = generateCmd.MarkFlagRequired("max-salary")
}

// copyToUploads is a no-op when the resume already is in the uploads directory
func copyToUploads(source, uploadsDir string) error {
	target := filepath.Join(uploadsDir, filepath.Base(source))

	sourceAbs, err := filepath.Abs(source)
	if err != nil {
		return err
	}

	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return err
	}

	if sourceAbs == targetAbs {
		return nil
	}

	content, err := os.ReadFile(source)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(target, content, 0o644)
}

package controller

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Scalingo/sclng-developer-report/config"
	"github.com/Scalingo/sclng-developer-report/model"
	"github.com/Scalingo/sclng-developer-report/service"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ReportFilePathHeader contains the public path of the generated report
const ReportFilePathHeader = "X-Report-FilePath"

type APIController interface {
	GenerateReport(ctx *gin.Context)
	ServeUpload(ctx *gin.Context)
}

type apiController struct {
	reportService service.ReportService
	config        config.Config
}

func NewAPIController(config config.Config, reportService service.ReportService) APIController {
	return apiController{
		reportService: reportService,
		config:        config,
	}
}

func (s apiController) GenerateReport(c *gin.Context) {
	var request model.ReportRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		log.WithError(err).Debug("unable to decode report request")
		c.JSON(http.StatusBadRequest, model.APIError{
			Code:    string(model.ValidationError),
			Message: "invalid JSON payload",
		})
		return
	}

	// execute the request
	report, err := s.reportService.GenerateReport(c, request)
	if err != nil {
		log.WithError(err).Error("unable to generate report")
		c.JSON(model.NewAPIError(err))
		return
	}

	c.Header(ReportFilePathHeader, report.RelativePath)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "report_"+report.Username+".pdf"))
	c.Data(http.StatusOK, "application/pdf", report.Content)
}

// ServeUpload returns a file from the uploads directory, sub directories are not reachable
func (s apiController) ServeUpload(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	if filename == "." || filename == "/" || filename == ".." {
		c.JSON(http.StatusNotFound, model.APIError{Code: "NOT_FOUND", Message: "file not found"})
		return
	}

	filePath := filepath.Join(s.config.Reports.UploadsDir, filename)

	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("file", filename).Error("unable to read uploaded file")
		}

		c.JSON(http.StatusNotFound, model.APIError{Code: "NOT_FOUND", Message: "file not found"})
		return
	}

	c.File(filePath)
}

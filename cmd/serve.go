package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Scalingo/sclng-developer-report/config"
	"github.com/Scalingo/sclng-developer-report/controller"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		reportService, err := newReportService(cmd.Context(), *cfg)
		if err != nil {
			log.WithError(err).Error("unable to setup report service")
			return err
		}

		apiController := controller.NewAPIController(*cfg, reportService)

		server := &http.Server{
			Addr:    ":" + cfg.API.ListenPort,
			Handler: NewRouter(*cfg, apiController),
		}

		// start with configuration
		go func() {
			log.Info("server listening on port " + cfg.API.ListenPort)

			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("error while starting server")
			}
		}()

		// wait for interrupt signal to gracefully shut down the server with a timeout of 15 seconds
		// kill default send syscall.SIGTERM
		// kill -2 is syscall.SIGINT
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info("SIGINT, SIGTERM received, will shut down server ...")

		// context is used to inform the server it has 15 seconds to finish the request it is currently handling
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Server forced to shutdown")
			return err
		}

		log.Info("Application stopped gracefully !")
		return nil
	},
}

// NewRouter defines all routes, the report path header is exposed to browsers
func NewRouter(cfg config.Config, apiController controller.APIController) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	corsConfig := cors.Config{
		AllowOrigins:     cfg.API.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Origin", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{controller.ReportFilePathHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.API.AllowedOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}

	router.Use(gin.Recovery(), cors.New(corsConfig))

	report := router.Group("/report")
	{
		report.POST("/generate-report", apiController.GenerateReport)
	}

	router.GET("/Uploads/:filename", apiController.ServeUpload)

	return router
}

// Package api exposes the region pipeline over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/forest-guardian/firerisk/internal/artifact"
	"github.com/forest-guardian/firerisk/internal/pipeline"
	"github.com/forest-guardian/firerisk/internal/preprocess"
	"github.com/forest-guardian/firerisk/internal/risk"
	"github.com/forest-guardian/firerisk/internal/segmentation"
	"github.com/forest-guardian/firerisk/internal/spread"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline is the subset of pipeline.Service the handlers need.
type Pipeline interface {
	PreprocessAndSegment(ctx context.Context, req preprocess.Request) (*pipeline.PreprocessResult, error)
	Segment(ctx context.Context, region string) (*segmentation.Result, error)
	AnalyzeRisk(ctx context.Context, region string) (*risk.Record, error)
	EstimateSpread(score float64) (spread.Result, error)
	Run(ctx context.Context, region string) (*pipeline.Report, error)
	Regions() ([]string, error)
	Artifact(ctx context.Context, key artifact.Key) ([]byte, error)
}

func SetupRouter(p Pipeline, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(logger), gin.CustomRecovery(recoverJSON(logger)))

	h := &handlers{pipeline: p, logger: logger}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Fire risk pipeline is running"})
	})
	r.GET("/predict", h.predict)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.POST("/preprocess", h.preprocessRegion)
		api.POST("/segment/:region", h.segmentRegion)
		api.GET("/risk", h.analyzeRisk)
		api.GET("/spread", h.estimateSpread)
		api.GET("/regions", h.listRegions)
		api.GET("/regions/:region/artifacts/:kind", h.getArtifact)
	}

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

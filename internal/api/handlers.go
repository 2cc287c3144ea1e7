package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/forest-guardian/firerisk/internal/apperr"
	"github.com/forest-guardian/firerisk/internal/artifact"
	"github.com/forest-guardian/firerisk/internal/preprocess"
	"github.com/forest-guardian/firerisk/internal/region"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	pipeline Pipeline
	logger   *slog.Logger
}

type preprocessRequest struct {
	RegionID   string `json:"regionId"`
	RegionName string `json:"regionName"`
}

// Content types of the artifacts served per region.
var artifactTypes = map[artifact.Kind]string{
	artifact.KindSummary:     "application/json",
	artifact.KindRisk:        "application/json",
	artifact.KindBandStats:   "text/csv",
	artifact.KindFootprint:   "application/geo+json",
	artifact.KindMask:        "application/octet-stream",
	artifact.KindMaskPreview: "image/png",
	artifact.KindRiskMap:     "image/png",
	artifact.KindScoreMap:    "image/png",
	artifact.KindRiskGeoJSON: "application/geo+json",
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInput:
		return http.StatusBadRequest
	case apperr.KindNotAvailable:
		return http.StatusNotFound
	case apperr.KindData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(c *gin.Context, err error) {
	result := apperr.Failure(err)
	status := statusOf(result.Kind)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err, "stack", string(apperr.Stack(err)))
	}
	c.JSON(status, result)
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "service": "firerisk", "status": "healthy"})
}

func (h *handlers) preprocessRegion(c *gin.Context) {
	var body preprocessRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, apperr.Input("preprocess", "invalid request body: %v", err))
		return
	}
	regionInput := body.RegionID
	if strings.TrimSpace(regionInput) == "" {
		regionInput = body.RegionName
	}
	if region.Slug(regionInput) == "" {
		h.fail(c, apperr.Input("preprocess", "regionId or regionName is required"))
		return
	}

	result, err := h.pipeline.PreprocessAndSegment(c.Request.Context(), preprocess.Request{
		Region:     regionInput,
		RegionID:   body.RegionID,
		RegionName: body.RegionName,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) segmentRegion(c *gin.Context) {
	result, err := h.pipeline.Segment(c.Request.Context(), c.Param("region"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) analyzeRisk(c *gin.Context) {
	record, err := h.pipeline.AnalyzeRisk(c.Request.Context(), c.Query("region"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *handlers) estimateSpread(c *gin.Context) {
	raw := c.Query("score")
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		h.fail(c, apperr.Input("spread", "score %q is not a number", raw))
		return
	}
	result, err := h.pipeline.EstimateSpread(score)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) predict(c *gin.Context) {
	report, err := h.pipeline.Run(c.Request.Context(), c.Query("region"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handlers) listRegions(c *gin.Context) {
	regions, err := h.pipeline.Regions()
	if err != nil {
		h.fail(c, err)
		return
	}
	if regions == nil {
		regions = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"regions": regions})
}

func (h *handlers) getArtifact(c *gin.Context) {
	kind := artifact.Kind(c.Param("kind"))
	contentType, ok := artifactTypes[kind]
	if !ok {
		h.fail(c, apperr.Input("artifact", "unknown artifact kind %q", kind))
		return
	}
	slug := region.Slug(c.Param("region"))
	if slug == "" {
		h.fail(c, apperr.Input("artifact", "region identifier %q is empty", c.Param("region")))
		return
	}
	payload, err := h.pipeline.Artifact(c.Request.Context(), artifact.RegionKey(slug, kind))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, payload)
}

func recoverJSON(logger *slog.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.Error("handler panicked", "path", c.FullPath(), "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, apperr.Result{
			OK:      false,
			Kind:    apperr.KindInternal,
			Message: "internal error",
		})
	}
}

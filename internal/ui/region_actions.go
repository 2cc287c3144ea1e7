package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forest-guardian/firerisk/internal/artifact"
	"github.com/forest-guardian/firerisk/internal/preprocess"
	"github.com/forest-guardian/firerisk/internal/utils"
)

func (m *Menu) PreprocessRegion(ctx context.Context) {
	m.PrintWarning("Place the region's '.tif' files under '<data root>/<region>' before preprocessing.")
	input, ok := m.readRegion()
	if !ok {
		return
	}

	summary, err := m.pipeline.Preprocess(ctx, preprocess.Request{Region: input, RegionName: input})
	if err != nil {
		m.PrintError(err.Error())
		return
	}

	switch summary.Status {
	case preprocess.StatusCompleted:
		m.PrintSuccess(summary.Message)
	case preprocess.StatusFailed:
		m.PrintError(summary.Message)
	default:
		m.PrintWarning(summary.Message)
	}
	for _, failed := range summary.FailedFiles {
		errorColor.Fprintf(m.out, "- %s: %s\n", failed.File, failed.Error)
	}
	fmt.Fprintf(m.out, "Metadata written to %s\n", summary.PreprocessedDir)
}

func (m *Menu) SegmentRegion(ctx context.Context) {
	input, ok := m.readRegion()
	if !ok {
		return
	}

	result, err := m.pipeline.Segment(ctx, input)
	if err != nil {
		m.PrintError(err.Error())
		return
	}

	m.PrintSuccess(fmt.Sprintf("Segmented %s into %d clusters using %d band(s) of %s", result.Region, result.NClusters, result.BandsUsed, result.ReferenceFile))
	for label := range result.NClusters {
		fmt.Fprintf(m.out, "  cluster %d: %d pixels\n", label, result.Distribution[fmt.Sprint(label)])
	}
	fmt.Fprintf(m.out, "Mask located at: %s\n", result.MaskPath)
}

func (m *Menu) AnalyzeRisk(ctx context.Context) {
	input, ok := m.readRegion()
	if !ok {
		return
	}

	record, err := m.pipeline.AnalyzeRisk(ctx, input)
	if err != nil {
		m.PrintError(err.Error())
		return
	}

	if !record.MaskApplied {
		m.PrintWarning(fmt.Sprintf("Segmentation mask %s, risk was classified per pixel.", strings.ReplaceAll(record.MaskStatus, "_", " ")))
	}
	m.PrintSuccess(fmt.Sprintf("Overall fire risk for %s: %s (confidence %.2f)", record.Region, record.OverallRiskLevel, record.Confidence))
	fmt.Fprintf(m.out, "  HIGH:     %6.2f%%  %10.2f km²\n", record.HighRiskPercent, record.HighRiskAreaKm2)
	fmt.Fprintf(m.out, "  MODERATE: %6.2f%%  %10.2f km²\n", record.ModerateRiskPercent, record.ModerateRiskAreaKm2)
	fmt.Fprintf(m.out, "  LOW:      %6.2f%%  %10.2f km²\n", record.LowRiskPercent, record.LowRiskAreaKm2)
	fmt.Fprintf(m.out, "  Mean risk score: %.4f\n", record.FireRiskScore)
	for _, label := range utils.GetSortedKeys(record.SegmentClasses, true) {
		fmt.Fprintf(m.out, "  segment %s: %s\n", label, record.SegmentClasses[label])
	}
	if record.RiskMap != "" {
		fmt.Fprintf(m.out, "  Risk map: %s\n", record.RiskMap)
	}
}

func (m *Menu) EstimateSpread(_ context.Context) {
	score, err := m.ReadFloat("Enter the fire risk score (0-1): ")
	if err != nil {
		m.PrintError(err.Error())
		return
	}

	result, err := m.pipeline.EstimateSpread(score)
	if err != nil {
		m.PrintError(err.Error())
		return
	}
	m.PrintSuccess(fmt.Sprintf("Severity: %s\nSpread estimate: %.2f", result.Severity, result.SpreadEstimate))
}

func (m *Menu) RunPipeline(ctx context.Context) {
	input, ok := m.readRegion()
	if !ok {
		return
	}

	report, err := m.pipeline.Run(ctx, input)
	if err != nil {
		m.PrintError(err.Error())
		m.notify(ctx, false, fmt.Sprintf("Pipeline for %s failed: %s", input, err))
		return
	}

	prediction := report.FirePrediction
	message := fmt.Sprintf("Successful analysis of %s!\nOverall risk: %s (confidence %.2f)\nSpread: %s, estimate %.2f\nMask located at: %s",
		report.RegionSlug, prediction.OverallRiskLevel, prediction.Confidence,
		report.SimulationResult.Severity, report.SimulationResult.SpreadEstimate,
		report.Segmentation.MaskPath)
	m.PrintSuccess(message)
	m.notify(ctx, true, message)
}

func (m *Menu) notify(ctx context.Context, success bool, message string) {
	if m.notifier == nil {
		return
	}
	send := m.notifier.SendError
	if success {
		send = m.notifier.SendSuccess
	}
	if err := send(ctx, message); err != nil {
		m.PrintError(fmt.Sprintf("Failed to send notification: %s", err))
	}
}

// ListRegions shows every region directory with the stages it has outputs
// for.
func (m *Menu) ListRegions(ctx context.Context) {
	regions, err := m.pipeline.Regions()
	if err != nil {
		m.PrintError(err.Error())
		return
	}
	if len(regions) == 0 {
		m.PrintWarning("No regions yet. Create a folder under the data root or preprocess a region.")
		return
	}

	successColor.Fprintln(m.out, "\nAvailable regions:")
	for _, slug := range regions {
		var stages []string
		for _, kind := range []artifact.Kind{artifact.KindSummary, artifact.KindMask, artifact.KindRisk} {
			if _, err := m.pipeline.Artifact(ctx, artifact.RegionKey(slug, kind)); err == nil {
				stages = append(stages, string(kind))
			}
		}
		status := "new"
		if len(stages) > 0 {
			status = strings.Join(stages, ", ")
		}
		successColor.Fprintf(m.out, "- %s (%s)\n", slug, status)
	}
}

func (m *Menu) InspectRaster(ctx context.Context) {
	path, ok := m.ReadString("Enter the raster file path: ")
	if !ok || path == "" {
		m.PrintError("path cannot be empty")
		return
	}

	record, err := m.pipeline.Inspect(ctx, path)
	if err != nil {
		m.PrintError(err.Error())
		return
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		m.PrintError(err.Error())
		return
	}
	fmt.Fprintln(m.out, string(payload))
}

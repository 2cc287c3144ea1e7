// Package scheduler re-runs the pipeline for configured regions on a cron
// schedule and reports each outcome.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forest-guardian/firerisk/internal/pipeline"
	"github.com/forest-guardian/firerisk/internal/preprocess"
	"github.com/forest-guardian/firerisk/internal/risk"
	"github.com/robfig/cron/v3"
)

type Runner interface {
	Run(ctx context.Context, region string) (*pipeline.Report, error)
}

type Notifier interface {
	SendSuccess(ctx context.Context, message string) error
	SendError(ctx context.Context, message string) error
	SendWarning(ctx context.Context, message string) error
}

type Scheduler struct {
	cron     *cron.Cron
	regions  []string
	runner   Runner
	notifier Notifier
	logger   *slog.Logger

	// ctx is canceled by Stop to abort the job in flight.
	ctx    context.Context
	cancel context.CancelFunc
}

// Start registers one job running every region in sequence. Overlapping
// ticks are skipped while a previous run is still going.
func Start(spec string, regions []string, runner Runner, notifier Notifier, logger *slog.Logger) (*Scheduler, error) {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		regions:  regions,
		runner:   runner,
		notifier: notifier,
		logger:   logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.cron.AddFunc(spec, func() { s.RunAll(s.ctx) }); err != nil {
		s.cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.cron.Start()
	logger.Info("scheduler started", "schedule", spec, "regions", regions)
	return s, nil
}

// RunAll runs the pipeline once per region and notifies each outcome.
func (s *Scheduler) RunAll(ctx context.Context) {
	for _, region := range s.regions {
		if ctx.Err() != nil {
			return
		}
		report, err := s.runner.Run(ctx, region)
		if err != nil {
			s.logger.Error("scheduled run failed", "region", region, "error", err)
			s.notify(ctx, s.notifier.SendError, fmt.Sprintf("Scheduled analysis of %s failed: %s", region, err))
			continue
		}

		prediction := report.FirePrediction
		message := fmt.Sprintf("Scheduled analysis of %s finished\nOverall risk: %s (confidence %.2f)\nHigh risk: %.1f%% (%.2f km²)\nSpread: %s, estimate %.2f",
			report.RegionSlug,
			prediction.OverallRiskLevel, prediction.Confidence,
			prediction.HighRiskPercent, prediction.HighRiskAreaKm2,
			report.SimulationResult.Severity, report.SimulationResult.SpreadEstimate,
		)
		s.logger.Info("scheduled run finished", "region", report.RegionSlug, "overall", prediction.OverallRiskLevel)
		s.notify(ctx, s.notifier.SendSuccess, message)

		if warnings := runWarnings(report); len(warnings) > 0 {
			s.logger.Warn("scheduled run finished with warnings", "region", report.RegionSlug, "warnings", warnings)
			s.notify(ctx, s.notifier.SendWarning, fmt.Sprintf("Scheduled analysis of %s needs attention\n%s",
				report.RegionSlug, strings.Join(warnings, "\n")))
		}
	}
}

// runWarnings lists the degraded parts of an otherwise successful run.
func runWarnings(report *pipeline.Report) []string {
	var warnings []string
	if summary := report.PreprocessingSummary; summary != nil && summary.Status == preprocess.StatusCompletedWithErrors {
		warnings = append(warnings, fmt.Sprintf("%d of %d files failed preprocessing", summary.FilesFailed, summary.FilesScanned))
	}
	if prediction := report.FirePrediction; prediction != nil && prediction.MaskStatus != "" && prediction.MaskStatus != risk.MaskApplied {
		warnings = append(warnings, fmt.Sprintf("segmentation mask %s, risk levels are per pixel", prediction.MaskStatus))
	}
	return warnings
}

func (s *Scheduler) notify(ctx context.Context, send func(context.Context, string) error, message string) {
	if err := send(ctx, message); err != nil {
		s.logger.Warn("failed to send notification", "error", err)
	}
}

// Stop halts the schedule and cancels a running job. The returned context
// is done once that job has returned.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}

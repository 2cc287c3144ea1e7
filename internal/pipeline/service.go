// Package pipeline wires the region stages together: preprocessing,
// segmentation, risk analysis and spread estimation.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/forest-guardian/firerisk/internal/apperr"
	"github.com/forest-guardian/firerisk/internal/artifact"
	"github.com/forest-guardian/firerisk/internal/cache"
	"github.com/forest-guardian/firerisk/internal/metadata"
	"github.com/forest-guardian/firerisk/internal/observability"
	"github.com/forest-guardian/firerisk/internal/preprocess"
	"github.com/forest-guardian/firerisk/internal/properties"
	"github.com/forest-guardian/firerisk/internal/raster"
	"github.com/forest-guardian/firerisk/internal/region"
	"github.com/forest-guardian/firerisk/internal/risk"
	"github.com/forest-guardian/firerisk/internal/segmentation"
	"github.com/forest-guardian/firerisk/internal/spread"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	StagePreprocess = "preprocess"
	StageSegment    = "segment"
	StageRisk       = "risk"
	StageSpread     = "spread"
)

// Report is the combined output of a full pipeline run.
type Report struct {
	RegionInput          string               `json:"region_input"`
	RegionSlug           string               `json:"region_slug"`
	PreprocessingSummary *preprocess.Summary  `json:"preprocessing_summary"`
	Segmentation         *segmentation.Result `json:"segmentation"`
	FirePrediction       *risk.Record         `json:"fire_prediction"`
	SimulationResult     *spread.Result       `json:"simulation_result"`
}

// PreprocessResult is a preprocessing summary with the segmentation run
// that immediately follows it. Segmentation is nil when it failed, with
// the reason in SegmentationError.
type PreprocessResult struct {
	*preprocess.Summary
	Segmentation      *segmentation.Result `json:"segmentation"`
	SegmentationError *apperr.Result       `json:"segmentation_error,omitempty"`
}

type Options struct {
	Properties *properties.Properties
	Store      *artifact.FileStore
	Opener     raster.Opener
	Clock      clockwork.Clock
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	// Progress receives progress bars of long stages; nil hides them.
	Progress io.Writer
}

type Service struct {
	store    *artifact.FileStore
	scanner  *preprocess.Scanner
	engine   *segmentation.Engine
	analyzer *risk.Analyzer
	spread   spread.Params
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	runs     singleflight.Group
	flights  *flights
}

// flights hands every caller of an in-flight run the same context. The
// context outlives any single caller and is canceled when the last one
// leaves.
type flights struct {
	mu sync.Mutex
	m  map[string]*flight
}

type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func newFlights() *flights {
	return &flights{m: make(map[string]*flight)}
}

func (f *flights) join(parent context.Context, key string) (context.Context, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.m[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
		fl = &flight{ctx: ctx, cancel: cancel}
		f.m[key] = fl
	}
	fl.waiters++

	var once sync.Once
	return fl.ctx, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			fl.waiters--
			if fl.waiters == 0 {
				fl.cancel()
				if f.m[key] == fl {
					delete(f.m, key)
				}
			}
		})
	}
}

func NewService(opts Options) *Service {
	p := opts.Properties
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	var extractions cache.CacheService[preprocess.Extraction]
	if p.ScanCacheEnabled {
		extractions = cache.NewFileCache[preprocess.Extraction](filepath.Join(opts.Store.Root, ".cache", "extractions"), opts.Clock)
	}
	return &Service{
		store: opts.Store,
		scanner: &preprocess.Scanner{
			Store:     opts.Store,
			Workspace: opts.Store,
			Cleaner: &preprocess.Cleaner{
				Opener:         opts.Opener,
				PreviewEnabled: p.PreviewEnabled,
				PreviewMaxSize: p.PreviewMaxSize,
				Logger:         opts.Logger,
			},
			Clock:    opts.Clock,
			Logger:   opts.Logger,
			Metrics:  opts.Metrics,
			Workers:  p.ScanWorkers,
			Progress: opts.Progress,
			Cache:    extractions,
		},
		engine: &segmentation.Engine{
			Store:          opts.Store,
			Opener:         opts.Opener,
			Logger:         opts.Logger,
			Metrics:        opts.Metrics,
			Progress:       opts.Progress,
			Clusters:       p.SegmentClusters,
			MaxBands:       p.SegmentMaxBands,
			SampleSize:     p.SegmentSampleSize,
			BatchSize:      p.SegmentBatchSize,
			MaxIter:        p.SegmentMaxIter,
			InitRuns:       p.SegmentInitRuns,
			Seed:           p.SegmentSeed,
			PreviewEnabled: p.PreviewEnabled,
			PreviewMaxSize: p.PreviewMaxSize,
		},
		analyzer: &risk.Analyzer{
			Store:          opts.Store,
			Opener:         opts.Opener,
			Clock:          opts.Clock,
			Logger:         opts.Logger,
			Params:         p.Risk,
			PreviewEnabled: p.PreviewEnabled,
			PreviewMaxSize: p.PreviewMaxSize,
		},
		spread:  p.Spread,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		flights: newFlights(),
	}
}

// observe records the outcome and duration of one stage invocation.
func (s *Service) observe(stage, slug string, start time.Time, err error) {
	elapsed := s.clock.Since(start)
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		s.logger.Error("stage failed", "stage", stage, "region", slug, "kind", outcome, "error", err)
	} else {
		s.logger.Info("stage completed", "stage", stage, "region", slug, "elapsed", elapsed)
	}
	s.metrics.StageRuns.WithLabelValues(stage, outcome).Inc()
	s.metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (s *Service) Preprocess(ctx context.Context, req preprocess.Request) (summary *preprocess.Summary, err error) {
	defer func(start time.Time) { s.observe(StagePreprocess, region.Slug(req.Region), start, err) }(s.clock.Now())
	return s.scanner.Run(ctx, req)
}

// PreprocessAndSegment preprocesses a region and segments it straight
// away. A segmentation failure does not fail the preprocessing result.
func (s *Service) PreprocessAndSegment(ctx context.Context, req preprocess.Request) (*PreprocessResult, error) {
	summary, err := s.Preprocess(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &PreprocessResult{Summary: summary}
	seg, err := s.Segment(ctx, summary.RegionSlug)
	if err != nil {
		failure := apperr.Failure(err)
		result.SegmentationError = &failure
		return result, nil
	}
	result.Segmentation = seg
	return result, nil
}

func (s *Service) Segment(ctx context.Context, regionInput string) (result *segmentation.Result, err error) {
	defer func(start time.Time) { s.observe(StageSegment, region.Slug(regionInput), start, err) }(s.clock.Now())
	return s.engine.Run(ctx, regionInput)
}

func (s *Service) AnalyzeRisk(ctx context.Context, regionInput string) (record *risk.Record, err error) {
	defer func(start time.Time) { s.observe(StageRisk, region.Slug(regionInput), start, err) }(s.clock.Now())
	return s.analyzer.Run(ctx, regionInput)
}

func (s *Service) EstimateSpread(score float64) (result spread.Result, err error) {
	defer func(start time.Time) { s.observe(StageSpread, "", start, err) }(s.clock.Now())
	return spread.Estimate(score, s.spread)
}

// Run executes all four stages for one region. Concurrent runs for the
// same region share a single execution, which is canceled only once every
// caller waiting on it has gone.
func (s *Service) Run(ctx context.Context, regionInput string) (*Report, error) {
	const op = "pipeline"
	slug := region.Slug(regionInput)
	if slug == "" {
		return nil, apperr.Input(op, "region identifier %q is empty", regionInput)
	}

	for {
		runCtx, leave := s.flights.join(ctx, slug)
		ch := s.runs.DoChan(slug, func() (any, error) {
			return s.run(runCtx, slug)
		})

		select {
		case res := <-ch:
			leave()
			if res.Shared {
				s.logger.Debug("joined in-flight pipeline run", "region", slug)
			}
			if res.Err != nil {
				// joined a run whose own callers had all left
				if errors.Is(res.Err, context.Canceled) && ctx.Err() == nil {
					continue
				}
				return nil, res.Err
			}
			report := *res.Val.(*Report)
			report.RegionInput = regionInput
			return &report, nil
		case <-ctx.Done():
			leave()
			return nil, apperr.Internal(op, ctx.Err(), "pipeline run for %s abandoned", slug)
		}
	}
}

func (s *Service) run(ctx context.Context, slug string) (*Report, error) {
	report := &Report{RegionSlug: slug}

	summary, err := s.Preprocess(ctx, preprocess.Request{Region: slug})
	if err != nil {
		return nil, err
	}
	report.PreprocessingSummary = summary

	if report.Segmentation, err = s.Segment(ctx, slug); err != nil {
		return nil, err
	}
	if report.FirePrediction, err = s.AnalyzeRisk(ctx, slug); err != nil {
		return nil, err
	}
	estimate, err := s.EstimateSpread(report.FirePrediction.FireRiskScore)
	if err != nil {
		return nil, err
	}
	report.SimulationResult = &estimate
	return report, nil
}

// Regions lists the region slugs present under the data root.
func (s *Service) Regions() ([]string, error) {
	regions, err := s.store.Regions()
	if err != nil {
		return nil, apperr.Internal("regions", err, "list regions")
	}
	return regions, nil
}

// Inspect extracts the metadata record of a single raster without storing
// anything.
func (s *Service) Inspect(ctx context.Context, path string) (*metadata.Record, error) {
	cleaner := *s.scanner.Cleaner
	cleaner.PreviewEnabled = false
	record, _, err := cleaner.Extract(ctx, path)
	return record, err
}

// Artifact returns a stored artifact, mapping a missing one to a
// not-available error.
func (s *Service) Artifact(ctx context.Context, key artifact.Key) ([]byte, error) {
	payload, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, apperr.NotAvailable("artifact", "%s has not been produced yet", key)
		}
		return nil, apperr.Internal("artifact", err, "read %s", key)
	}
	return payload, nil
}

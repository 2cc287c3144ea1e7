package preprocess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/forest-guardian/firerisk/internal/apperr"
	"github.com/forest-guardian/firerisk/internal/artifact"
	"github.com/forest-guardian/firerisk/internal/cache"
	"github.com/forest-guardian/firerisk/internal/metadata"
	"github.com/forest-guardian/firerisk/internal/observability"
	"github.com/forest-guardian/firerisk/internal/raster"
	"github.com/forest-guardian/firerisk/internal/region"
	"github.com/forest-guardian/firerisk/output"
	"github.com/gammazero/workerpool"
	"github.com/jonboulle/clockwork"
	"github.com/schollz/progressbar/v3"
)

const (
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusNoFiles             = "no_files"
	StatusFailed              = "failed"
)

// Directories holding derived output are never scanned for input rasters.
var excludedDirSuffixes = []string{
	artifact.PreprocessedSuffix,
	artifact.SegmentedSuffix,
	artifact.PredictionSuffix,
}

// Workspace prepares and locates the per-region directories.
type Workspace interface {
	EnsureRegion(region string) (createdRegion, createdPreprocessed bool, err error)
	RegionDir(region string) string
	PreprocessedDir(region string) string
}

type Request struct {
	Region     string `json:"region"`
	RegionID   string `json:"regionId,omitempty"`
	RegionName string `json:"regionName,omitempty"`
}

type FailedFile struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type Summary struct {
	Region                 string       `json:"region"`
	RegionSlug             string       `json:"region_slug"`
	OrigRegionID           string       `json:"orig_region_id,omitempty"`
	OrigRegionName         string       `json:"orig_region_name,omitempty"`
	RegionDir              string       `json:"region_dir"`
	PreprocessedDir        string       `json:"preprocessed_dir"`
	CreatedRegionDir       bool         `json:"created_region_dir"`
	CreatedPreprocessedDir bool         `json:"created_preprocessed_dir"`
	FilesScanned           int          `json:"files_scanned"`
	FilesProcessed         int          `json:"files_processed"`
	FilesFailed            int          `json:"files_failed"`
	RasterFiles            []string     `json:"raster_files"`
	MetadataFiles          []string     `json:"metadata_files"`
	PreviewFiles           []string     `json:"preview_files"`
	FailedFiles            []FailedFile `json:"failed_files"`
	ElapsedSeconds         float64      `json:"elapsed_seconds"`
	Status                 string       `json:"status"`
	Message                string       `json:"message"`
	Timestamp              string       `json:"timestamp"`
}

// Scanner preprocesses every raster of a region.
type Scanner struct {
	Store     artifact.Store
	Workspace Workspace
	Cleaner   *Cleaner
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	// Workers bounds how many rasters are cleaned at once.
	Workers int
	// Progress receives the progress bar; nil hides it.
	Progress io.Writer
	// Cache, when set, skips cleaning rasters that have not changed since
	// their last extraction.
	Cache cache.CacheService[Extraction]
}

// Extraction is the cached outcome of cleaning one raster.
type Extraction struct {
	Record  metadata.Record `json:"record"`
	Preview []byte          `json:"preview,omitempty"`
}

type fileResult struct {
	record   *metadata.Record
	metadata string
	preview  string
	err      error
}

func (s *Scanner) Run(ctx context.Context, req Request) (summary *Summary, err error) {
	const op = "preprocess"
	defer apperr.Recover(op, &err)

	slug := region.Slug(req.Region)
	if slug == "" {
		return nil, apperr.Input(op, "region identifier %q is empty", req.Region)
	}

	start := s.Clock.Now()
	createdRegion, createdPre, err := s.Workspace.EnsureRegion(slug)
	if err != nil {
		return nil, apperr.Internal(op, err, "prepare region directories")
	}

	regionDir := s.Workspace.RegionDir(slug)
	summary = &Summary{
		Region:                 slug,
		RegionSlug:             slug,
		OrigRegionID:           req.RegionID,
		OrigRegionName:         req.RegionName,
		RegionDir:              absPath(regionDir),
		PreprocessedDir:        absPath(s.Workspace.PreprocessedDir(slug)),
		CreatedRegionDir:       createdRegion,
		CreatedPreprocessedDir: createdPre,
		RasterFiles:            []string{},
		MetadataFiles:          []string{},
		PreviewFiles:           []string{},
		FailedFiles:            []FailedFile{},
	}

	files, err := discoverRasters(summary.RegionDir)
	if err != nil {
		return nil, apperr.Data(op, err, "scan %s", regionDir)
	}
	summary.FilesScanned = len(files)
	s.Logger.Info("scanning region", "region", slug, "stage", op, "files", len(files))

	if len(files) == 0 {
		summary.Status = StatusNoFiles
		summary.Message = fmt.Sprintf("No raster files found under %s; directories are ready for input", summary.RegionDir)
		return s.finish(ctx, summary, start, nil)
	}

	results, err := s.processFiles(ctx, slug, files)
	if err != nil {
		return nil, err
	}

	var records []metadata.Record
	for i, res := range results {
		rel := relPath(summary.RegionDir, files[i])
		summary.RasterFiles = append(summary.RasterFiles, rel)
		if res.err != nil {
			summary.FailedFiles = append(summary.FailedFiles, FailedFile{File: rel, Error: res.err.Error()})
			continue
		}
		records = append(records, *res.record)
		summary.MetadataFiles = append(summary.MetadataFiles, res.metadata)
		if res.preview != "" {
			summary.PreviewFiles = append(summary.PreviewFiles, res.preview)
		}
	}
	summary.FilesProcessed = len(records)
	summary.FilesFailed = len(summary.FailedFiles)

	switch {
	case summary.FilesFailed == 0:
		summary.Status = StatusCompleted
		summary.Message = fmt.Sprintf("Preprocessed %d raster file(s)", summary.FilesProcessed)
	case summary.FilesProcessed == 0:
		summary.Status = StatusFailed
		summary.Message = fmt.Sprintf("All %d raster file(s) failed preprocessing", summary.FilesFailed)
	default:
		summary.Status = StatusCompletedWithErrors
		summary.Message = fmt.Sprintf("Preprocessed %d raster file(s), %d failed", summary.FilesProcessed, summary.FilesFailed)
	}

	return s.finish(ctx, summary, start, records)
}

func (s *Scanner) processFiles(ctx context.Context, slug string, files []string) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	bar := progressbar.NewOptions64(int64(len(files)),
		progressbar.OptionSetWriter(progressWriter(s.Progress)),
		progressbar.OptionSetVisibility(s.Progress != nil),
		progressbar.OptionSetDescription("Preprocessing "+slug),
	)
	var barMu sync.Mutex

	wp := workerpool.New(max(1, s.Workers))
	for i, file := range files {
		wp.Submit(func() {
			if ctx.Err() == nil {
				results[i] = s.processFile(ctx, slug, file)
			} else {
				results[i] = fileResult{err: ctx.Err()}
			}
			barMu.Lock()
			bar.Add(1)
			barMu.Unlock()
		})
	}
	wp.StopWait()
	bar.Finish()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Scanner) processFile(ctx context.Context, slug, file string) fileResult {
	record, preview, err := s.extract(ctx, slug, file)
	if err != nil {
		s.Logger.Warn("skipping raster", "region", slug, "file", file, "error", err)
		s.Metrics.Rasters.WithLabelValues("failed").Inc()
		return fileResult{err: err}
	}

	base := baseName(file)
	res := fileResult{record: record}
	if preview != nil {
		key := artifact.Key{Region: slug, Kind: artifact.KindPreview, Name: base}
		if err := s.Store.Put(ctx, key, preview); err != nil {
			s.Logger.Warn("failed to save preview", "region", slug, "file", file, "error", err)
		} else {
			record.PreviewPNG = s.Store.Location(key)
			res.preview = record.PreviewPNG
		}
	}

	key := artifact.Key{Region: slug, Kind: artifact.KindMetadata, Name: base}
	if err := artifact.PutJSON(ctx, s.Store, key, record); err != nil {
		s.Logger.Warn("failed to save metadata", "region", slug, "file", file, "error", err)
		s.Metrics.Rasters.WithLabelValues("failed").Inc()
		return fileResult{err: err}
	}
	res.metadata = s.Store.Location(key)
	s.Metrics.Rasters.WithLabelValues("processed").Inc()
	s.Logger.Debug("raster preprocessed", "region", slug, "file", file, "bands", record.Count)
	return res
}

func (s *Scanner) extract(ctx context.Context, slug, file string) (*metadata.Record, []byte, error) {
	if s.Cache == nil {
		return s.Cleaner.Extract(ctx, file)
	}
	info, err := os.Stat(file)
	if err != nil {
		return s.Cleaner.Extract(ctx, file)
	}

	key := s.Cache.GenerateKey(file, info.Size(), info.ModTime().UnixNano(), s.Cleaner.PreviewEnabled, s.Cleaner.PreviewMaxSize)
	if hit, ok := s.Cache.Get(key); ok {
		s.Logger.Debug("reusing cached extraction", "region", slug, "file", file)
		record := hit.Record
		return &record, hit.Preview, nil
	}

	record, preview, err := s.Cleaner.Extract(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Cache.Set(key, Extraction{Record: *record, Preview: preview}); err != nil {
		s.Logger.Warn("failed to cache extraction", "region", slug, "file", file, "error", err)
	}
	return record, preview, nil
}

// finish writes the region-level artifacts and the run summary.
func (s *Scanner) finish(ctx context.Context, summary *Summary, start time.Time, records []metadata.Record) (*Summary, error) {
	if len(records) > 0 {
		s.putBestEffort(ctx, summary.RegionSlug, artifact.KindBandStats, func() ([]byte, error) {
			return output.CreateBandStatsCsv(records)
		})
		s.putBestEffort(ctx, summary.RegionSlug, artifact.KindFootprint, func() ([]byte, error) {
			return output.CreateFootprintGeoJson(records)
		})
	}

	summary.ElapsedSeconds = s.Clock.Since(start).Seconds()
	summary.Timestamp = s.Clock.Now().UTC().Format(time.RFC3339)

	if err := artifact.PutJSON(ctx, s.Store, artifact.RegionKey(summary.RegionSlug, artifact.KindSummary), summary); err != nil {
		return nil, apperr.Internal("preprocess", err, "save summary")
	}
	s.Logger.Info("preprocessing finished", "region", summary.RegionSlug, "stage", "preprocess",
		"status", summary.Status, "processed", summary.FilesProcessed, "failed", summary.FilesFailed,
		"elapsed_seconds", summary.ElapsedSeconds)
	return summary, nil
}

func (s *Scanner) putBestEffort(ctx context.Context, slug string, kind artifact.Kind, render func() ([]byte, error)) {
	payload, err := render()
	if err == nil {
		err = s.Store.Put(ctx, artifact.RegionKey(slug, kind), payload)
	}
	if err != nil {
		s.Logger.Warn("failed to save region artifact", "region", slug, "artifact", kind, "error", err)
	}
}

// discoverRasters walks root recursively, skipping derived-output
// directories, and returns raster paths in lexical order.
func discoverRasters(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != root && isExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if raster.IsRasterFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	slices.Sort(files)
	return files, err
}

func isExcludedDir(name string) bool {
	for _, suffix := range excludedDirSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func progressWriter(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

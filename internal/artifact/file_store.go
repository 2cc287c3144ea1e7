package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	PreprocessedSuffix = "_preprocessed_data"
	SegmentedSuffix    = "_segmented_data"
	PredictionSuffix   = "_prediction"
)

// Layout maps keys onto the on-disk convention
// <root>/<slug>/<slug>_{preprocessed_data,segmented_data,prediction}/...
type Layout struct {
	Root string
}

func (l Layout) RegionDir(region string) string {
	return filepath.Join(l.Root, region)
}

func (l Layout) PreprocessedDir(region string) string {
	return filepath.Join(l.RegionDir(region), region+PreprocessedSuffix)
}

func (l Layout) SegmentedDir(region string) string {
	return filepath.Join(l.RegionDir(region), region+SegmentedSuffix)
}

func (l Layout) PredictionDir(region string) string {
	return filepath.Join(l.RegionDir(region), region+PredictionSuffix)
}

type placement struct {
	dir    func(Layout, string) string
	suffix string
}

var placements = map[Kind]placement{
	KindMetadata:    {Layout.PreprocessedDir, "_metadata.json"},
	KindSummary:     {Layout.PreprocessedDir, "_preprocessing_summary.json"},
	KindPreview:     {Layout.PreprocessedDir, "_preview.png"},
	KindBandStats:   {Layout.PreprocessedDir, "_band_stats.csv"},
	KindFootprint:   {Layout.PreprocessedDir, "_footprint.geojson"},
	KindMask:        {Layout.SegmentedDir, "_mask.npy"},
	KindMaskPreview: {Layout.SegmentedDir, "_mask_preview.png"},
	KindRisk:        {Layout.PredictionDir, "_risk.json"},
	KindRiskMap:     {Layout.PredictionDir, "_risk_map.png"},
	KindScoreMap:    {Layout.PredictionDir, "_score_map.png"},
	KindRiskGeoJSON: {Layout.PredictionDir, "_risk.geojson"},
}

func (l Layout) Path(key Key) (string, error) {
	p, ok := placements[key.Kind]
	if !ok {
		return "", fmt.Errorf("unknown artifact kind %q", key.Kind)
	}
	name := key.Region
	if perFile(key.Kind) {
		name = key.Name
	}
	if key.Region == "" || name == "" {
		return "", fmt.Errorf("incomplete artifact key %s", key)
	}
	return filepath.Join(p.dir(l, key.Region), name+p.suffix), nil
}

// FileStore keeps artifacts under a data root directory. Writes go through a
// temp file and a rename so readers never observe a partial artifact.
type FileStore struct {
	Layout
}

func NewFileStore(root string) *FileStore {
	return &FileStore{Layout: Layout{Root: root}}
}

func (s *FileStore) Put(ctx context.Context, key Key, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp artifact file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp artifact file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp artifact file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) List(ctx context.Context, region string, kind Kind) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := placements[kind]
	if !ok {
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}

	entries, err := os.ReadDir(p.dir(s.Layout, region))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s artifacts for %s: %w", kind, region, err)
	}

	var keys []Key
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, p.suffix) {
			continue
		}
		base := strings.TrimSuffix(name, p.suffix)
		if !perFile(kind) && base != region {
			continue
		}
		keys = append(keys, Key{Region: region, Kind: kind, Name: base})
	}
	slices.SortFunc(keys, func(a, b Key) int { return strings.Compare(a.Name, b.Name) })
	return keys, nil
}

func (s *FileStore) Location(key Key) string {
	path, err := s.Path(key)
	if err != nil {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// EnsureRegion creates the region and preprocessed directories and reports
// which of them did not exist before.
func (s *FileStore) EnsureRegion(region string) (createdRegion, createdPreprocessed bool, err error) {
	createdRegion, err = ensureDir(s.RegionDir(region))
	if err != nil {
		return false, false, err
	}
	createdPreprocessed, err = ensureDir(s.PreprocessedDir(region))
	if err != nil {
		return createdRegion, false, err
	}
	return createdRegion, createdPreprocessed, nil
}

// Regions lists the region directories under the data root.
func (s *FileStore) Regions() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data root: %w", err)
	}
	var regions []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			regions = append(regions, entry.Name())
		}
	}
	return regions, nil
}

func ensureDir(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s exists and is not a directory", dir)
		}
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return true, nil
}

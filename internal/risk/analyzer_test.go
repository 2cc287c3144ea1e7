package risk

import (
	"context"
	"testing"
	"time"

	"github.com/forest-guardian/firerisk/internal/apperr"
	"github.com/forest-guardian/firerisk/internal/artifact"
	"github.com/forest-guardian/firerisk/internal/metadata"
	"github.com/forest-guardian/firerisk/internal/observability"
	"github.com/forest-guardian/firerisk/internal/raster"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// terrainRaster is a 0.01 degree grid centered on the equator.
func terrainRaster(cols, rows int, slope, aspect []float64) *raster.Memory {
	return &raster.Memory{
		Name: "terrain.tif", Cols: cols, Rows: rows,
		Transform: [6]float64{75, 0.01, 0, float64(rows) * 0.01 / 2, 0, -0.01},
		Bands:     [][]float64{slope, aspect},
	}
}

func newAnalyzer(t *testing.T, ds *raster.Memory, records ...metadata.Record) (*Analyzer, *artifact.MemoryStore) {
	t.Helper()
	store := artifact.NewMemoryStore()
	if len(records) == 0 {
		records = []metadata.Record{{File: ds.Name, Width: ds.Cols, Height: ds.Rows, Count: len(ds.Bands)}}
	}
	for i, r := range records {
		key := artifact.Key{Region: "kodagu", Kind: artifact.KindMetadata, Name: string(rune('a' + i))}
		require.NoError(t, artifact.PutJSON(context.Background(), store, key, r))
	}
	return &Analyzer{
		Store:  store,
		Opener: raster.NewMemoryOpener(ds),
		Clock:  clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Logger: observability.DiscardLogger(),
		Params: DefaultParams(),
	}, store
}

func putMask(t *testing.T, store artifact.Store, mask *artifact.Mask) {
	t.Helper()
	payload, err := artifact.EncodeMask(mask)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), artifact.RegionKey("kodagu", artifact.KindMask), payload))
}

func TestAnalyzer_UniformTerrainEndToEnd(t *testing.T) {
	ds := terrainRaster(10, 10, raster.Uniform(100, 30), raster.Uniform(100, 180))
	analyzer, store := newAnalyzer(t, ds)

	record, err := analyzer.Run(context.Background(), "kodagu")
	require.NoError(t, err)

	assert.True(t, record.OK)
	assert.InDelta(t, 0.65*(30.0/45)+0.35, record.FireRiskScore, 1e-9)
	assert.InDelta(t, 0.7833, record.FireRiskScore, 1e-4)
	assert.Equal(t, 100.0, record.HighRiskPercent)
	assert.Equal(t, 0.0, record.ModerateRiskPercent)
	assert.Equal(t, 0.0, record.LowRiskPercent)
	assert.Equal(t, LevelHigh, record.OverallRiskLevel)
	assert.Equal(t, 0.99, record.Confidence)
	assert.Equal(t, MaskMissing, record.MaskStatus)
	assert.False(t, record.MaskApplied)
	assert.Equal(t, 100, record.TotalPixels)
	assert.InDelta(t, 100*1.1132*1.1132, record.HighRiskAreaKm2, 1e-3)
	assert.Equal(t, "2025-06-01T12:00:00Z", record.Timestamp)

	saved, err := artifact.GetJSON[Record](context.Background(), store, artifact.RegionKey("kodagu", artifact.KindRisk))
	require.NoError(t, err)
	if diff := cmp.Diff(*record, saved); diff != "" {
		t.Fatalf("persisted record mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzer_RendersRiskMaps(t *testing.T) {
	ds := terrainRaster(4, 4, raster.Uniform(16, 30), raster.Uniform(16, 180))
	analyzer, store := newAnalyzer(t, ds)
	analyzer.PreviewEnabled = true
	analyzer.PreviewMaxSize = 64

	record, err := analyzer.Run(context.Background(), "kodagu")
	require.NoError(t, err)

	assert.Equal(t, "mem://kodagu/riskmap/kodagu", record.RiskMap)
	assert.Equal(t, "mem://kodagu/scoremap/kodagu", record.ScoreMap)
	assert.Equal(t, "mem://kodagu/riskgeojson/kodagu", record.RiskGeoJSON)

	for _, kind := range []artifact.Kind{artifact.KindRiskMap, artifact.KindScoreMap} {
		payload, err := store.Get(context.Background(), artifact.RegionKey("kodagu", kind))
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG", string(payload[:4]))
	}
	geo, err := store.Get(context.Background(), artifact.RegionKey("kodagu", artifact.KindRiskGeoJSON))
	require.NoError(t, err)
	assert.Contains(t, string(geo), `"overall_risk_level":"HIGH"`)
}

func TestAnalyzer_SkipsMapsWhenPreviewDisabled(t *testing.T) {
	ds := terrainRaster(4, 4, raster.Uniform(16, 30), raster.Uniform(16, 180))
	analyzer, store := newAnalyzer(t, ds)

	record, err := analyzer.Run(context.Background(), "kodagu")
	require.NoError(t, err)
	assert.Empty(t, record.RiskMap)

	_, err = store.Get(context.Background(), artifact.RegionKey("kodagu", artifact.KindRiskMap))
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestAnalyzer_SegmentAggregation(t *testing.T) {
	// segment 0 mixes a steep south face with a flat north face (mean 0.5),
	// segment 1 is uniformly steep and south facing
	ds := terrainRaster(2, 2, []float64{45, 0, 45, 45}, []float64{180, 0, 180, 180})
	analyzer, store := newAnalyzer(t, ds)
	putMask(t, store, &artifact.Mask{Height: 2, Width: 2, Labels: []int32{0, 0, 1, 1}})

	record, err := analyzer.Run(context.Background(), "kodagu")
	require.NoError(t, err)

	assert.True(t, record.MaskApplied)
	assert.Equal(t, MaskApplied, record.MaskStatus)
	assert.Equal(t, map[string]Level{"0": LevelModerate, "1": LevelHigh}, record.SegmentClasses)
	assert.InDelta(t, 50.0, record.HighRiskPercent, 1e-9)
	assert.InDelta(t, 50.0, record.ModerateRiskPercent, 1e-9)
	assert.Zero(t, record.LowRiskPercent)
	assert.Equal(t, LevelHigh, record.OverallRiskLevel)
	assert.InDelta(t, 0.6, record.Confidence, 1e-12)
	assert.InDelta(t, 0.75, record.FireRiskScore, 1e-12)
}

func TestAnalyzer_MaskShapeMismatchFallsBackToPixels(t *testing.T) {
	ds := terrainRaster(2, 2, []float64{45, 0, 45, 45}, []float64{180, 0, 180, 180})
	analyzer, store := newAnalyzer(t, ds)
	putMask(t, store, &artifact.Mask{Height: 3, Width: 3, Labels: make([]int32, 9)})

	record, err := analyzer.Run(context.Background(), "kodagu")
	require.NoError(t, err)

	assert.False(t, record.MaskApplied)
	assert.Equal(t, MaskShapeMismatch, record.MaskStatus)
	assert.Nil(t, record.SegmentClasses)
	assert.InDelta(t, 75.0, record.HighRiskPercent, 1e-9)
	assert.InDelta(t, 25.0, record.LowRiskPercent, 1e-9)
	assert.Equal(t, LevelHigh, record.OverallRiskLevel)
	assert.InDelta(t, 0.8, record.Confidence, 1e-12)
}

func TestAnalyzer_CorruptMaskFallsBackToPixels(t *testing.T) {
	ds := terrainRaster(2, 2, raster.Uniform(4, 0), raster.Uniform(4, 0))
	analyzer, store := newAnalyzer(t, ds)
	require.NoError(t, store.Put(context.Background(), artifact.RegionKey("kodagu", artifact.KindMask), []byte("garbage")))

	record, err := analyzer.Run(context.Background(), "kodagu")
	require.NoError(t, err)
	assert.Equal(t, MaskUnreadable, record.MaskStatus)
	assert.Equal(t, 100.0, record.LowRiskPercent)
}

func TestAnalyzer_ImputesFromMetadataMedian(t *testing.T) {
	nodata := -1.0
	ds := terrainRaster(2, 1, []float64{-1, 45}, []float64{180, 180})
	ds.NoData = &nodata
	median := 45.0
	record := metadata.Record{
		File: ds.Name, Width: 2, Height: 1, Count: 2,
		Bands: []metadata.BandStats{{Band: 1, RawStats: metadata.Stats{Median: &median}}},
	}
	analyzer, _ := newAnalyzer(t, ds, record)

	got, err := analyzer.Run(context.Background(), "kodagu")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.FireRiskScore, 1e-12)
	assert.Equal(t, 100.0, got.HighRiskPercent)
}

func TestAnalyzer_UsesLargestRaster(t *testing.T) {
	ds := terrainRaster(3, 3, raster.Uniform(9, 45), raster.Uniform(9, 180))
	analyzer, _ := newAnalyzer(t, ds,
		metadata.Record{File: "tiny.tif", Width: 1, Height: 1},
		metadata.Record{File: ds.Name, Width: 3, Height: 3},
	)

	record, err := analyzer.Run(context.Background(), "kodagu")
	require.NoError(t, err)
	assert.Equal(t, ds.Name, record.ReferenceFile)
}

func TestAnalyzer_Failures(t *testing.T) {
	t.Run("no metadata", func(t *testing.T) {
		analyzer := &Analyzer{Store: artifact.NewMemoryStore(), Logger: observability.DiscardLogger(), Params: DefaultParams()}
		_, err := analyzer.Run(context.Background(), "kodagu")
		assert.Equal(t, apperr.KindNotAvailable, apperr.KindOf(err))
	})
	t.Run("single band", func(t *testing.T) {
		ds := &raster.Memory{Name: "one.tif", Cols: 1, Rows: 1, Transform: [6]float64{0, 1, 0, 0, 0, -1}, Bands: [][]float64{{1}}}
		analyzer, _ := newAnalyzer(t, ds)
		_, err := analyzer.Run(context.Background(), "kodagu")
		assert.Equal(t, apperr.KindData, apperr.KindOf(err))
	})
	t.Run("unreadable raster", func(t *testing.T) {
		ds := terrainRaster(1, 1, []float64{1}, []float64{1})
		analyzer, _ := newAnalyzer(t, ds)
		analyzer.Opener = raster.NewMemoryOpener()
		_, err := analyzer.Run(context.Background(), "kodagu")
		assert.Equal(t, apperr.KindData, apperr.KindOf(err))
	})
	t.Run("empty region", func(t *testing.T) {
		analyzer := &Analyzer{Params: DefaultParams()}
		_, err := analyzer.Run(context.Background(), "")
		assert.Equal(t, apperr.KindInput, apperr.KindOf(err))
	})
}

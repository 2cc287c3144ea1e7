package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "region", "kodagu")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "kodagu", entry["region"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.StageRuns.WithLabelValues("segment", "ok").Inc()
	m.Rasters.WithLabelValues("failed").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageRuns.WithLabelValues("segment", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rasters.WithLabelValues("failed")))

	// independent instances never collide
	other := NewMetricsForTesting()
	assert.Zero(t, testutil.ToFloat64(other.Rasters.WithLabelValues("failed")))
}

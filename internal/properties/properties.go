package properties

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/forest-guardian/firerisk/internal/risk"
	"github.com/forest-guardian/firerisk/internal/spread"
)

type Properties struct {
	DataRoot        string
	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	PreviewEnabled bool
	PreviewMaxSize int
	ScanWorkers    int

	// ScanCacheEnabled reuses extracted metadata of unchanged rasters.
	ScanCacheEnabled bool

	SegmentClusters   int
	SegmentMaxBands   int
	SegmentSampleSize int
	SegmentBatchSize  int
	SegmentSeed       int64
	SegmentMaxIter    int
	SegmentInitRuns   int

	Risk   risk.Params
	Spread spread.Params

	ScheduleCron    string
	ScheduleRegions []string

	DiscordErrorNotificationUrl   string
	DiscordSuccessNotificationUrl string
}

// Load reads the configuration from the environment, applying defaults
// for unset variables.
func Load() (*Properties, error) {
	p := &Properties{
		DataRoot:                      getString("DATA_ROOT", "data"),
		LogLevel:                      getString("LOG_LEVEL", "info"),
		LogFormat:                     getString("LOG_FORMAT", "text"),
		HTTPAddr:                      getString("HTTP_ADDR", ":8080"),
		ScheduleCron:                  strings.TrimSpace(os.Getenv("SCHEDULE_CRON")),
		ScheduleRegions:               splitList(os.Getenv("SCHEDULE_REGIONS")),
		DiscordErrorNotificationUrl:   os.Getenv("DISCORD_ERROR_NOTIFICATION_URL"),
		DiscordSuccessNotificationUrl: os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL"),
	}

	riskDefaults := risk.DefaultParams()
	spreadDefaults := spread.DefaultParams()

	var err error
	r := reader{err: &err}
	p.ShutdownTimeout = r.getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	p.PreviewEnabled = r.getBool("PREVIEW_ENABLED", true)
	p.PreviewMaxSize = r.getInt("PREVIEW_MAX_SIZE", 512)
	p.ScanWorkers = r.getInt("SCAN_WORKERS", 1)
	p.ScanCacheEnabled = r.getBool("SCAN_CACHE_ENABLED", true)
	p.SegmentClusters = r.getInt("SEGMENT_CLUSTERS", 3)
	p.SegmentMaxBands = r.getInt("SEGMENT_MAX_BANDS", 3)
	p.SegmentSampleSize = r.getInt("SEGMENT_SAMPLE_SIZE", 200000)
	p.SegmentBatchSize = r.getInt("SEGMENT_BATCH_SIZE", 1000000)
	p.SegmentSeed = int64(r.getInt("SEGMENT_SEED", 42))
	p.SegmentMaxIter = r.getInt("SEGMENT_MAX_ITER", 300)
	p.SegmentInitRuns = r.getInt("SEGMENT_INIT_RUNS", 3)
	p.Risk = risk.Params{
		SlopeBand:         r.getInt("RISK_SLOPE_BAND", riskDefaults.SlopeBand),
		AspectBand:        r.getInt("RISK_ASPECT_BAND", riskDefaults.AspectBand),
		SlopeWeight:       r.getFloat("RISK_SLOPE_WEIGHT", riskDefaults.SlopeWeight),
		AspectWeight:      r.getFloat("RISK_ASPECT_WEIGHT", riskDefaults.AspectWeight),
		SlopeMaxDegrees:   r.getFloat("RISK_SLOPE_MAX_DEGREES", riskDefaults.SlopeMaxDegrees),
		HighThreshold:     r.getFloat("RISK_HIGH_THRESHOLD", riskDefaults.HighThreshold),
		ModerateThreshold: r.getFloat("RISK_MODERATE_THRESHOLD", riskDefaults.ModerateThreshold),
	}
	p.Spread = spread.Params{
		Multiplier:        r.getFloat("SPREAD_MULTIPLIER", spreadDefaults.Multiplier),
		SevereThreshold:   r.getFloat("SPREAD_SEVERE_THRESHOLD", spreadDefaults.SevereThreshold),
		ModerateThreshold: r.getFloat("SPREAD_MODERATE_THRESHOLD", spreadDefaults.ModerateThreshold),
	}
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Properties) validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"PREVIEW_MAX_SIZE", p.PreviewMaxSize},
		{"SCAN_WORKERS", p.ScanWorkers},
		{"SEGMENT_CLUSTERS", p.SegmentClusters},
		{"SEGMENT_MAX_BANDS", p.SegmentMaxBands},
		{"SEGMENT_SAMPLE_SIZE", p.SegmentSampleSize},
		{"SEGMENT_BATCH_SIZE", p.SegmentBatchSize},
		{"SEGMENT_MAX_ITER", p.SegmentMaxIter},
		{"SEGMENT_INIT_RUNS", p.SegmentInitRuns},
		{"RISK_SLOPE_BAND", p.Risk.SlopeBand},
		{"RISK_ASPECT_BAND", p.Risk.AspectBand},
	}
	for _, v := range positive {
		if v.value < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", v.name, v.value)
		}
	}
	if p.Risk.SlopeBand == p.Risk.AspectBand {
		return fmt.Errorf("RISK_SLOPE_BAND and RISK_ASPECT_BAND must differ, both are %d", p.Risk.SlopeBand)
	}
	if p.Risk.SlopeWeight < 0 || p.Risk.AspectWeight < 0 {
		return fmt.Errorf("RISK_SLOPE_WEIGHT and RISK_ASPECT_WEIGHT must not be negative")
	}
	if p.Risk.SlopeWeight == 0 && p.Risk.AspectWeight == 0 {
		return fmt.Errorf("RISK_SLOPE_WEIGHT and RISK_ASPECT_WEIGHT cannot both be zero")
	}
	if p.Risk.SlopeMaxDegrees <= 0 {
		return fmt.Errorf("RISK_SLOPE_MAX_DEGREES must be positive, got %v", p.Risk.SlopeMaxDegrees)
	}
	if err := thresholds("RISK", p.Risk.ModerateThreshold, p.Risk.HighThreshold); err != nil {
		return err
	}
	if err := thresholds("SPREAD", p.Spread.ModerateThreshold, p.Spread.SevereThreshold); err != nil {
		return err
	}
	if p.Spread.Multiplier <= 0 {
		return fmt.Errorf("SPREAD_MULTIPLIER must be positive, got %v", p.Spread.Multiplier)
	}
	if p.LogFormat != "text" && p.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", p.LogFormat)
	}
	if p.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", p.ShutdownTimeout)
	}
	if p.ScheduleCron != "" && len(p.ScheduleRegions) == 0 {
		return fmt.Errorf("SCHEDULE_REGIONS is required when SCHEDULE_CRON is set")
	}
	return nil
}

func thresholds(prefix string, lower, upper float64) error {
	for _, v := range []float64{lower, upper} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s thresholds must lie in (0, 1], got %v", prefix, v)
		}
	}
	if lower >= upper {
		return fmt.Errorf("%s moderate threshold %v must be below %v", prefix, lower, upper)
	}
	return nil
}

func getString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// reader parses typed variables and keeps the first parse error.
type reader struct {
	err *error
}

func (r reader) lookup(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	return v, v != "" && *r.err == nil
}

func (r reader) fail(name, value string, err error) {
	*r.err = fmt.Errorf("invalid %s %q: %w", name, value, err)
}

func (r reader) getInt(name string, fallback int) int {
	v, ok := r.lookup(name)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(name, v, err)
		return fallback
	}
	return n
}

func (r reader) getFloat(name string, fallback float64) float64 {
	v, ok := r.lookup(name)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(name, v, err)
		return fallback
	}
	return f
}

func (r reader) getBool(name string, fallback bool) bool {
	v, ok := r.lookup(name)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(name, v, err)
		return fallback
	}
	return b
}

func (r reader) getDuration(name string, fallback time.Duration) time.Duration {
	v, ok := r.lookup(name)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(name, v, err)
		return fallback
	}
	return d
}

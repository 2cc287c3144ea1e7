package ui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/forest-guardian/firerisk/internal/artifact"
	"github.com/forest-guardian/firerisk/internal/metadata"
	"github.com/forest-guardian/firerisk/internal/pipeline"
	"github.com/forest-guardian/firerisk/internal/preprocess"
	"github.com/forest-guardian/firerisk/internal/risk"
	"github.com/forest-guardian/firerisk/internal/segmentation"
	"github.com/forest-guardian/firerisk/internal/spread"
)

// Pipeline is what the menu drives.
type Pipeline interface {
	Preprocess(ctx context.Context, req preprocess.Request) (*preprocess.Summary, error)
	Segment(ctx context.Context, region string) (*segmentation.Result, error)
	AnalyzeRisk(ctx context.Context, region string) (*risk.Record, error)
	EstimateSpread(score float64) (spread.Result, error)
	Run(ctx context.Context, region string) (*pipeline.Report, error)
	Regions() ([]string, error)
	Inspect(ctx context.Context, path string) (*metadata.Record, error)
	Artifact(ctx context.Context, key artifact.Key) ([]byte, error)
}

// Notifier receives the outcome of full pipeline runs started from the menu.
type Notifier interface {
	SendSuccess(ctx context.Context, message string) error
	SendError(ctx context.Context, message string) error
}

type menuOption struct {
	title   string
	handler func(ctx context.Context)
}

type Menu struct {
	pipeline Pipeline
	notifier Notifier
	*console
}

func NewMenu(p Pipeline, notifier Notifier, in io.Reader, out io.Writer) *Menu {
	return &Menu{pipeline: p, notifier: notifier, console: newConsole(in, out)}
}

// Run displays the main menu until the user exits or input ends.
func (m *Menu) Run(ctx context.Context) {
	exit := false
	menuOptions := []menuOption{
		{"Preprocess a region", m.PreprocessRegion},
		{"Segment a preprocessed region", m.SegmentRegion},
		{"Analyze fire risk for a region", m.AnalyzeRisk},
		{"Estimate fire spread for a risk score", m.EstimateSpread},
		{"Run the full pipeline for a region", m.RunPipeline},
		{"View the list of available regions", m.ListRegions},
		{"Inspect a raster file", m.InspectRaster},
		{"Exit the application", func(context.Context) { fmt.Fprintln(m.out, "Exiting..."); exit = true }},
	}

	for !exit && ctx.Err() == nil {
		infoColor.Fprintln(m.out, "===================")
		for i, opt := range menuOptions {
			infoColor.Fprintf(m.out, "%d. %s\n", i+1, opt.title)
		}

		choice, err := m.ReadInt("Please enter your choice: ", 1, len(menuOptions))
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			m.PrintError(err.Error())
			continue
		}

		menuOptions[choice-1].handler(ctx)
	}
}

// readRegion asks for a region identifier; ok is false on empty input.
func (m *Menu) readRegion() (string, bool) {
	region, ok := m.ReadString("Enter the region id or name: ")
	if !ok || region == "" {
		m.PrintError("region cannot be empty")
		return "", false
	}
	return region, true
}

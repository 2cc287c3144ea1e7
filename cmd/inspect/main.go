// Command inspect prints the metadata record of one raster as JSON, with
// the same cleaning statistics preprocessing would store.
//
// Usage:
//
//	go run ./cmd/inspect path/to/raster.tif
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/firerisk/internal/observability"
	"github.com/forest-guardian/firerisk/internal/preprocess"
	"github.com/forest-guardian/firerisk/internal/raster"
)

func main() {
	preview := flag.String("preview", "", "also write a PNG preview to this path")
	maxSize := flag.Int("preview-max-size", 512, "preview max dimension")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: inspect [-preview out.png] <raster.tif>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	godal.RegisterAll()

	cleaner := &preprocess.Cleaner{
		Opener:         raster.GodalOpener{},
		PreviewEnabled: *preview != "",
		PreviewMaxSize: *maxSize,
		Logger:         observability.NewLogger(os.Stderr, "warn", "text"),
	}

	record, png, err := cleaner.Extract(context.Background(), path)
	if err != nil {
		log.Fatalf("Failed to inspect %s: %v", path, err)
	}

	if *preview != "" && png != nil {
		if err := os.WriteFile(*preview, png, 0o644); err != nil {
			log.Fatalf("Failed to write preview: %v", err)
		}
		record.PreviewPNG = *preview
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(record); err != nil {
		log.Fatalf("Error encoding metadata: %v", err)
	}
}

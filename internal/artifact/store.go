// Package artifact persists the per-region outputs each stage hands to the
// next one.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("artifact not found")

type Kind string

const (
	KindMetadata    Kind = "metadata"
	KindSummary     Kind = "summary"
	KindPreview     Kind = "preview"
	KindBandStats   Kind = "bandstats"
	KindFootprint   Kind = "footprint"
	KindMask        Kind = "mask"
	KindMaskPreview Kind = "maskpreview"
	KindRisk        Kind = "risk"
	KindRiskMap     Kind = "riskmap"
	KindScoreMap    Kind = "scoremap"
	KindRiskGeoJSON Kind = "riskgeojson"
)

// Key addresses one artifact. Name is the raster base name for per-file
// kinds and is ignored for per-region kinds.
type Key struct {
	Region string
	Kind   Kind
	Name   string
}

// RegionKey addresses a per-region artifact.
func RegionKey(region string, kind Kind) Key {
	return Key{Region: region, Kind: kind, Name: region}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Region, k.Kind, k.Name)
}

type Store interface {
	Put(ctx context.Context, key Key, payload []byte) error
	// Get returns ErrNotFound when the artifact does not exist.
	Get(ctx context.Context, key Key) ([]byte, error)
	// List returns the keys of one kind for a region, sorted by name.
	List(ctx context.Context, region string, kind Kind) ([]Key, error)
	// Location is a human-facing address for the artifact.
	Location(key Key) string
}

func perFile(kind Kind) bool {
	return kind == KindMetadata || kind == KindPreview
}

func PutJSON[T any](ctx context.Context, store Store, key Key, value T) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return store.Put(ctx, key, payload)
}

func GetJSON[T any](ctx context.Context, store Store, key Key) (T, error) {
	var zero T
	payload, err := store.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	var value T
	if err := json.Unmarshal(payload, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return value, nil
}

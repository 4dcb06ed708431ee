// Package media indexes the images and clips a job can draw segments from.
package media

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bobarin/montage/internal/engine"
	"github.com/rs/zerolog/log"
)

var ErrNoAssets = errors.New("no usable media assets")

type Kind string

const (
	KindImage Kind = "image"
	KindClip  Kind = "clip"
)

var extensions = map[string]Kind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".webp": KindImage,
	".bmp":  KindImage,
	".mp4":  KindClip,
	".mov":  KindClip,
	".mkv":  KindClip,
	".webm": KindClip,
	".avi":  KindClip,
	".m4v":  KindClip,
}

// Asset is one source file. Images have no intrinsic duration.
type Asset struct {
	Path     string
	Kind     Kind
	Duration float64
	HasAudio bool
}

// Prober reports a media file's duration and streams.
type Prober interface {
	Probe(ctx context.Context, path string) (engine.ProbeResult, error)
}

// Catalog is the immutable asset index for one job.
type Catalog struct {
	assets []Asset
}

// Scan indexes dir (non-recursive). Clips are probed for duration and audio;
// clips that cannot be probed are left out with a warning.
func Scan(ctx context.Context, dir string, prober Prober) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read media dir: %w", err)
	}

	logger := log.With().Str("component", "media").Str("dir", dir).Logger()

	var assets []Asset
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		kind, ok := extensions[strings.ToLower(filepath.Ext(e.Name()))]
		if !ok {
			continue
		}

		asset := Asset{Path: filepath.Join(dir, e.Name()), Kind: kind}
		if kind == KindClip {
			info, err := prober.Probe(ctx, asset.Path)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Warn().Err(err).Str("asset", e.Name()).Msg("skipping unreadable clip")
				continue
			}
			if !info.HasVideo || info.Duration <= 0 {
				logger.Warn().Str("asset", e.Name()).Msg("skipping clip without video")
				continue
			}
			asset.Duration = info.Duration
			asset.HasAudio = info.HasAudio
		}
		assets = append(assets, asset)
	}

	if len(assets) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoAssets, dir)
	}

	sort.Slice(assets, func(i, j int) bool { return assets[i].Path < assets[j].Path })
	logger.Info().Int("assets", len(assets)).Msg("catalog ready")

	return &Catalog{assets: assets}, nil
}

// NewCatalog builds a catalog from known assets.
func NewCatalog(assets []Asset) *Catalog {
	return &Catalog{assets: append([]Asset(nil), assets...)}
}

func (c *Catalog) Len() int { return len(c.assets) }

// Count returns how many assets of kind the catalog holds.
func (c *Catalog) Count(kind Kind) int {
	n := 0
	for _, a := range c.assets {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Pick returns a random asset whose path is not in exclude.
func (c *Catalog) Pick(rng *rand.Rand, exclude map[string]bool) (Asset, bool) {
	candidates := make([]Asset, 0, len(c.assets))
	for _, a := range c.assets {
		if !exclude[a.Path] {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return Asset{}, false
	}
	return candidates[rng.Intn(len(candidates))], true
}

// Package enginetest provides an in-memory engine.Engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/bobarin/montage/internal/engine"
)

// Fake records every call and writes a small placeholder file for each
// output so that downstream stages find their inputs on disk.
type Fake struct {
	mu sync.Mutex

	// Probes maps a path to its probe result. Unknown paths fail.
	Probes map[string]engine.ProbeResult

	NormalizeErr func(spec engine.NormalizeSpec) error
	CrossfadeErr func(spec engine.CrossfadeSpec) error
	MixErr       func(spec engine.MixSpec) error
	// MuxErr receives the 1-based call number.
	MuxErr func(call int, spec engine.MuxSpec) error

	Normalized  []engine.NormalizeSpec
	Crossfaded  []engine.CrossfadeSpec
	Mixed       []engine.MixSpec
	Muxed       []engine.MuxSpec
	ProbedPaths []string
}

var _ engine.Engine = (*Fake)(nil)

func New() *Fake {
	return &Fake{Probes: make(map[string]engine.ProbeResult)}
}

func (f *Fake) Probe(ctx context.Context, path string) (engine.ProbeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProbedPaths = append(f.ProbedPaths, path)
	res, ok := f.Probes[path]
	if !ok {
		return engine.ProbeResult{}, &engine.Error{Op: "probe", Err: fmt.Errorf("%s: invalid data found when processing input", path)}
	}
	return res, nil
}

func (f *Fake) Normalize(ctx context.Context, spec engine.NormalizeSpec) error {
	f.mu.Lock()
	f.Normalized = append(f.Normalized, spec)
	hook := f.NormalizeErr
	f.mu.Unlock()

	if hook != nil {
		if err := hook(spec); err != nil {
			return err
		}
	}
	return touch(spec.Output)
}

func (f *Fake) Crossfade(ctx context.Context, spec engine.CrossfadeSpec) error {
	f.mu.Lock()
	f.Crossfaded = append(f.Crossfaded, spec)
	hook := f.CrossfadeErr
	f.mu.Unlock()

	if hook != nil {
		if err := hook(spec); err != nil {
			return err
		}
	}
	return touch(spec.Output)
}

func (f *Fake) Mix(ctx context.Context, spec engine.MixSpec) error {
	f.mu.Lock()
	f.Mixed = append(f.Mixed, spec)
	hook := f.MixErr
	f.mu.Unlock()

	if hook != nil {
		if err := hook(spec); err != nil {
			return err
		}
	}
	return touch(spec.Output)
}

func (f *Fake) Mux(ctx context.Context, spec engine.MuxSpec) error {
	f.mu.Lock()
	f.Muxed = append(f.Muxed, spec)
	call := len(f.Muxed)
	hook := f.MuxErr
	f.mu.Unlock()

	if hook != nil {
		if err := hook(call, spec); err != nil {
			return err
		}
	}
	return touch(spec.Output)
}

func touch(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte("fake media"), 0644)
}

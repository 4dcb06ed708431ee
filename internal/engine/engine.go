// Package engine is the typed capability surface over the external
// transcoder. Orchestration code describes what it wants (normalize a
// segment, chain crossfades, mix, mux) and never builds command lines.
package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrEngineUnavailable means the transcoder binary could not be started.
var ErrEngineUnavailable = errors.New("transcoding engine unavailable")

// Engine is implemented by FFmpeg and by enginetest.Fake.
//
//	Normalize  scale, crop or pad, trim
//	Crossfade  per-pair video transition plus audio crossfade chain
//	Mix        looped, attenuated background under narration
//	Mux        subtitle overlay, trim, final mux
type Engine interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
	Normalize(ctx context.Context, spec NormalizeSpec) error
	Crossfade(ctx context.Context, spec CrossfadeSpec) error
	Mix(ctx context.Context, spec MixSpec) error
	Mux(ctx context.Context, spec MuxSpec) error
}

// ProbeResult describes a media file.
type ProbeResult struct {
	Duration float64
	HasVideo bool
	HasAudio bool
	Width    int
	Height   int
}

// Resolution is the canonical output canvas.
type Resolution struct {
	Width  int
	Height int
}

var (
	Vertical   = Resolution{Width: 1080, Height: 1920}
	Horizontal = Resolution{Width: 1920, Height: 1080}
)

// CropMode decides how off-aspect sources are fitted to the canvas.
type CropMode string

const (
	FillCrop  CropMode = "fill" // cover the canvas, center-crop the excess
	AspectPad CropMode = "pad"  // fit inside the canvas, pad the rest
)

// NormalizeSpec turns one source asset into a canonical segment.
type NormalizeSpec struct {
	Input string
	// Still sources are looped for the whole Duration.
	Still bool
	// Duration is the planned segment length.
	Duration float64
	// SourceDuration is the clip's own length, 0 when unknown or Still.
	SourceDuration float64
	// HoldLastFrame freezes the final frame of a clip shorter than Duration.
	HoldLastFrame bool
	KeepAudio     bool
	Size          Resolution
	Mode          CropMode
	FPS           int
	Output        string
}

// VideoTransition joins the running stream with the next input.
type VideoTransition struct {
	Effect   string
	Duration float64
	Offset   float64
}

// AudioLinkKind says how an input joins the audio chain.
type AudioLinkKind int

const (
	LinkStart     AudioLinkKind = iota // first audio-bearing input
	LinkCrossfade                      // adjacent to the previous audio input
	LinkGap                            // silent segments in between; pad then append
)

// AudioLink adds one input's audio to the chain. Duration is the
// crossfade length for LinkCrossfade and the silence length for LinkGap.
type AudioLink struct {
	Input    int
	Kind     AudioLinkKind
	Duration float64
}

// AudioChain is empty when no input carries audio. Lead delays the first
// audio input to its place on the timeline.
type AudioChain struct {
	Lead  float64
	Links []AudioLink
}

// CrossfadeSpec chains Inputs with len(Inputs)-1 video transitions.
type CrossfadeSpec struct {
	Inputs []string
	Video  []VideoTransition
	Audio  AudioChain
	Output string
}

// MixSpec overlays an attenuated, looped background under the narration.
type MixSpec struct {
	Narration  string
	Background string
	// Duration is the narration length; the mix is cut to it.
	Duration float64
	// Loops is how many times the background plays before truncation.
	Loops         int
	AttenuationDB float64
	Output        string
}

// MuxSpec produces the deliverable.
type MuxSpec struct {
	Video     string
	Audio     string
	Subtitles string // optional ASS file burned into the video
	FontsDir  string
	Duration  float64
	Output    string
}

// Error carries the transcoder's diagnostic output.
type Error struct {
	Op     string
	Err    error
	Stderr string
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ffmpeg %s failed: %v: %s", e.Op, e.Err, e.Stderr)
}

func (e *Error) Unwrap() error { return e.Err }

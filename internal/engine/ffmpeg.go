package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	defaultFPS          = 30
	defaultPreset       = "veryfast"
	defaultProbeTimeout = 30 * time.Second
	audioBitrate        = "192k"
	audioSampleRate     = "44100"
)

// Options configures the ffmpeg backend.
type Options struct {
	Binary       string // defaults to "ffmpeg" on PATH
	Preset       string // x264 preset
	ProbeTimeout time.Duration
}

// FFmpeg builds filter graphs with ffmpeg-go and runs them as subprocesses.
type FFmpeg struct {
	binary       string
	preset       string
	probeTimeout time.Duration
}

func NewFFmpeg(opts Options) *FFmpeg {
	f := &FFmpeg{binary: opts.Binary, preset: opts.Preset, probeTimeout: opts.ProbeTimeout}
	if f.binary == "" {
		f.binary = "ffmpeg"
	}
	if f.preset == "" {
		f.preset = defaultPreset
	}
	if f.probeTimeout <= 0 {
		f.probeTimeout = defaultProbeTimeout
	}
	return f
}

var _ Engine = (*FFmpeg)(nil)

// ---------------------------------------------------------------------------
// Probe
// ---------------------------------------------------------------------------

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (ProbeResult, error) {
	timeout := f.probeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return ProbeResult{}, ctx.Err()
	}

	raw, err := ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
	if err != nil {
		return ProbeResult{}, &Error{Op: "probe", Err: err}
	}
	return parseProbe(raw)
}

func parseProbe(raw string) (ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return ProbeResult{}, fmt.Errorf("failed to parse probe output: %w", err)
	}

	var res ProbeResult
	res.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if !res.HasVideo {
				res.Width, res.Height = s.Width, s.Height
			}
			res.HasVideo = true
		case "audio":
			res.HasAudio = true
		}
		if res.Duration == 0 {
			res.Duration, _ = strconv.ParseFloat(s.Duration, 64)
		}
	}
	if !res.HasVideo && !res.HasAudio {
		return ProbeResult{}, errors.New("no audio or video streams")
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

func (f *FFmpeg) Normalize(ctx context.Context, spec NormalizeSpec) error {
	return f.run(ctx, "normalize", f.normalizeGraph(spec))
}

func (f *FFmpeg) Crossfade(ctx context.Context, spec CrossfadeSpec) error {
	if len(spec.Inputs) < 2 || len(spec.Video) != len(spec.Inputs)-1 {
		return fmt.Errorf("crossfade needs n inputs and n-1 transitions, got %d and %d", len(spec.Inputs), len(spec.Video))
	}
	return f.run(ctx, "crossfade", f.crossfadeGraph(spec))
}

func (f *FFmpeg) Mix(ctx context.Context, spec MixSpec) error {
	return f.run(ctx, "mix", f.mixGraph(spec))
}

func (f *FFmpeg) Mux(ctx context.Context, spec MuxSpec) error {
	return f.run(ctx, "mux", f.muxGraph(spec))
}

// ---------------------------------------------------------------------------
// Graph construction
// ---------------------------------------------------------------------------

func (f *FFmpeg) normalizeGraph(spec NormalizeSpec) *ffmpeg.Stream {
	fps := spec.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	w, h := spec.Size.Width, spec.Size.Height

	inKw := ffmpeg.KwArgs{"t": seconds(spec.Duration)}
	short := false
	if spec.Still {
		inKw["loop"] = 1
	} else if spec.SourceDuration > 0 && spec.SourceDuration < spec.Duration {
		inKw["t"] = seconds(spec.SourceDuration)
		short = true
	}
	in := ffmpeg.Input(spec.Input, inKw)

	v := in.Video()
	if spec.Mode == AspectPad {
		v = v.Filter("scale", ffmpeg.Args{}, ffmpeg.KwArgs{"w": w, "h": h, "force_original_aspect_ratio": "decrease"}).
			Filter("pad", ffmpeg.Args{}, ffmpeg.KwArgs{"w": w, "h": h, "x": "(ow-iw)/2", "y": "(oh-ih)/2", "color": "black"})
	} else {
		v = v.Filter("scale", ffmpeg.Args{}, ffmpeg.KwArgs{"w": w, "h": h, "force_original_aspect_ratio": "increase"}).
			Filter("crop", ffmpeg.Args{strconv.Itoa(w), strconv.Itoa(h)})
	}
	v = v.Filter("setsar", ffmpeg.Args{"1"}).Filter("fps", ffmpeg.Args{strconv.Itoa(fps)})

	hold := short && spec.HoldLastFrame
	if hold {
		v = v.Filter("tpad", ffmpeg.Args{}, ffmpeg.KwArgs{"stop_mode": "clone", "stop_duration": seconds(spec.Duration - spec.SourceDuration)})
	}
	v = v.Filter("format", ffmpeg.Args{"yuv420p"})

	outKw := ffmpeg.KwArgs{
		"c:v":    "libx264",
		"preset": f.preset,
		"r":      fps,
	}
	if !short || hold {
		outKw["t"] = seconds(spec.Duration)
	}

	streams := []*ffmpeg.Stream{v}
	if spec.KeepAudio {
		a := in.Audio().
			Filter("aresample", ffmpeg.Args{audioSampleRate}).
			Filter("aformat", ffmpeg.Args{}, ffmpeg.KwArgs{"channel_layouts": "stereo"})
		if hold {
			a = a.Filter("apad", ffmpeg.Args{}, ffmpeg.KwArgs{"whole_dur": seconds(spec.Duration)})
		}
		streams = append(streams, a)
		outKw["c:a"] = "aac"
		outKw["b:a"] = audioBitrate
	} else {
		outKw["an"] = ""
	}

	return ffmpeg.Output(streams, spec.Output, outKw).OverWriteOutput()
}

func (f *FFmpeg) crossfadeGraph(spec CrossfadeSpec) *ffmpeg.Stream {
	inputs := make([]*ffmpeg.Stream, len(spec.Inputs))
	for i, path := range spec.Inputs {
		inputs[i] = ffmpeg.Input(path)
	}

	v := inputs[0].Video()
	for i, tr := range spec.Video {
		v = ffmpeg.Filter([]*ffmpeg.Stream{v, inputs[i+1].Video()}, "xfade", ffmpeg.Args{}, ffmpeg.KwArgs{
			"transition": tr.Effect,
			"duration":   seconds(tr.Duration),
			"offset":     seconds(tr.Offset),
		})
	}

	outKw := ffmpeg.KwArgs{
		"c:v":     "libx264",
		"preset":  f.preset,
		"pix_fmt": "yuv420p",
	}
	streams := []*ffmpeg.Stream{v}

	var a *ffmpeg.Stream
	for _, link := range spec.Audio.Links {
		src := inputs[link.Input].Audio()
		switch link.Kind {
		case LinkStart:
			a = src
			if spec.Audio.Lead > 0 {
				a = a.Filter("adelay", ffmpeg.Args{}, ffmpeg.KwArgs{"delays": strconv.Itoa(int(spec.Audio.Lead * 1000)), "all": 1})
			}
		case LinkCrossfade:
			a = ffmpeg.Filter([]*ffmpeg.Stream{a, src}, "acrossfade", ffmpeg.Args{}, ffmpeg.KwArgs{"d": seconds(link.Duration)})
		case LinkGap:
			padded := a.Filter("apad", ffmpeg.Args{}, ffmpeg.KwArgs{"pad_dur": seconds(link.Duration)})
			a = ffmpeg.Concat([]*ffmpeg.Stream{padded, src}, ffmpeg.KwArgs{"v": 0, "a": 1})
		}
	}
	if a != nil {
		streams = append(streams, a)
		outKw["c:a"] = "aac"
		outKw["b:a"] = audioBitrate
	} else {
		outKw["an"] = ""
	}

	return ffmpeg.Output(streams, spec.Output, outKw).OverWriteOutput()
}

func (f *FFmpeg) mixGraph(spec MixSpec) *ffmpeg.Stream {
	loops := spec.Loops
	if loops < 1 {
		loops = 1
	}

	narration := ffmpeg.Input(spec.Narration).Audio()
	background := ffmpeg.Input(spec.Background, ffmpeg.KwArgs{"stream_loop": loops - 1}).Audio().
		Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{"end": seconds(spec.Duration)}).
		Filter("asetpts", ffmpeg.Args{"PTS-STARTPTS"}).
		Filter("volume", ffmpeg.Args{}, ffmpeg.KwArgs{"volume": fmt.Sprintf("-%.2fdB", spec.AttenuationDB)})

	mixed := ffmpeg.Filter([]*ffmpeg.Stream{narration, background}, "amix", ffmpeg.Args{}, ffmpeg.KwArgs{
		"inputs":             2,
		"duration":           "first",
		"dropout_transition": 0,
		"normalize":          0,
	})

	return mixed.Output(spec.Output, ffmpeg.KwArgs{
		"c:a": "aac",
		"b:a": audioBitrate,
		"t":   seconds(spec.Duration),
	}).OverWriteOutput()
}

func (f *FFmpeg) muxGraph(spec MuxSpec) *ffmpeg.Stream {
	v := ffmpeg.Input(spec.Video).Video()
	if spec.Subtitles != "" {
		kw := ffmpeg.KwArgs{"filename": spec.Subtitles}
		if spec.FontsDir != "" {
			kw["fontsdir"] = spec.FontsDir
		}
		v = v.Filter("ass", ffmpeg.Args{}, kw)
	}
	a := ffmpeg.Input(spec.Audio).Audio()

	return ffmpeg.Output([]*ffmpeg.Stream{v, a}, spec.Output, ffmpeg.KwArgs{
		"c:v":      "libx264",
		"preset":   f.preset,
		"pix_fmt":  "yuv420p",
		"c:a":      "aac",
		"b:a":      audioBitrate,
		"t":        seconds(spec.Duration),
		"movflags": "+faststart",
	}).OverWriteOutput()
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

func (f *FFmpeg) run(ctx context.Context, op string, stream *ffmpeg.Stream) error {
	args := stream.GlobalArgs("-hide_banner", "-nostdin", "-loglevel", "error").GetArgs()

	logger := log.With().Str("component", "ffmpeg").Str("op", op).Logger()
	logger.Debug().Strs("args", args).Msg("running")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binary, args...)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return &Error{Op: op, Err: fmt.Errorf("%w: %v", ErrEngineUnavailable, err)}
		}
		if ctx.Err() != nil {
			return &Error{Op: op, Err: ctx.Err(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return &Error{Op: op, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}

	logger.Debug().Dur("took", time.Since(start)).Msg("done")
	return nil
}

// seconds formats a duration for filter and output options.
func seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

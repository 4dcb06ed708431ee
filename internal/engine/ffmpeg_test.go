package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func argsOf(t *testing.T, f func() []string) string {
	t.Helper()
	return strings.Join(f(), " ")
}

func assertContains(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(got, w) {
			t.Errorf("args missing %q\nargs: %s", w, got)
		}
	}
}

func TestNormalizeGraphStillFillCrop(t *testing.T) {
	f := NewFFmpeg(Options{})
	args := argsOf(t, f.normalizeGraph(NormalizeSpec{
		Input:    "/media/a.jpg",
		Still:    true,
		Duration: 4.96,
		Size:     Vertical,
		Mode:     FillCrop,
		Output:   "/tmp/job/seg_000.mp4",
	}).GetArgs)

	assertContains(t, args,
		"-loop 1", "-t 4.960", "-i /media/a.jpg",
		"force_original_aspect_ratio=increase", "crop=1080:1920", "setsar=1", "fps=30",
		"-an", "/tmp/job/seg_000.mp4",
	)
	if strings.Contains(args, "pad=") {
		t.Errorf("fill mode should not pad: %s", args)
	}
}

func TestNormalizeGraphClipAspectPad(t *testing.T) {
	f := NewFFmpeg(Options{})
	args := argsOf(t, f.normalizeGraph(NormalizeSpec{
		Input:          "/media/b.mp4",
		Duration:       4.0,
		SourceDuration: 12.5,
		KeepAudio:      true,
		Size:           Horizontal,
		Mode:           AspectPad,
		Output:         "/tmp/job/seg_001.mp4",
	}).GetArgs)

	assertContains(t, args,
		"-t 4.000", "force_original_aspect_ratio=decrease", "(ow-iw)/2", "(oh-ih)/2",
		"aresample=44100", "-c:a aac",
	)
	if strings.Contains(args, "-loop") {
		t.Errorf("clips must not loop: %s", args)
	}
}

func TestNormalizeGraphShortClip(t *testing.T) {
	f := NewFFmpeg(Options{})
	spec := NormalizeSpec{
		Input:          "/media/c.mp4",
		Duration:       5.0,
		SourceDuration: 3.5,
		KeepAudio:      true,
		Size:           Vertical,
		Output:         "/tmp/job/seg_002.mp4",
	}

	args := argsOf(t, f.normalizeGraph(spec).GetArgs)
	assertContains(t, args, "-t 3.500")
	if strings.Contains(args, "tpad") || strings.Contains(args, "-t 5.000") {
		t.Errorf("short clip without hold should stay short: %s", args)
	}

	spec.HoldLastFrame = true
	args = argsOf(t, f.normalizeGraph(spec).GetArgs)
	assertContains(t, args, "tpad=", "stop_mode=clone", "stop_duration=1.500", "apad=", "-t 5.000")
}

func TestCrossfadeGraph(t *testing.T) {
	f := NewFFmpeg(Options{})
	args := argsOf(t, f.crossfadeGraph(CrossfadeSpec{
		Inputs: []string{"s0.mp4", "s1.mp4", "s2.mp4", "s3.mp4"},
		Video: []VideoTransition{
			{Effect: "fade", Duration: 1, Offset: 4},
			{Effect: "wipeleft", Duration: 1, Offset: 8},
			{Effect: "circleopen", Duration: 1, Offset: 12},
		},
		Audio: AudioChain{Links: []AudioLink{
			{Input: 0, Kind: LinkStart},
			{Input: 1, Kind: LinkCrossfade, Duration: 1},
			{Input: 3, Kind: LinkGap, Duration: 3},
		}},
		Output: "composed.mp4",
	}).GetArgs)

	if n := strings.Count(args, "xfade="); n != 3 {
		t.Errorf("got %d xfade filters, want 3\nargs: %s", n, args)
	}
	assertContains(t, args,
		"transition=fade", "transition=wipeleft", "transition=circleopen",
		"offset=4.000", "offset=8.000", "offset=12.000",
		"acrossfade=", "apad=", "pad_dur=3.000", "concat=",
	)
}

func TestCrossfadeGraphSilent(t *testing.T) {
	f := NewFFmpeg(Options{})
	args := argsOf(t, f.crossfadeGraph(CrossfadeSpec{
		Inputs: []string{"s0.mp4", "s1.mp4"},
		Video:  []VideoTransition{{Effect: "fade", Duration: 0.5, Offset: 3.5}},
		Output: "composed.mp4",
	}).GetArgs)
	assertContains(t, args, "-an")
	if strings.Contains(args, "acrossfade") {
		t.Errorf("silent inputs should not build an audio chain: %s", args)
	}
}

func TestCrossfadeRejectsMismatchedTransitions(t *testing.T) {
	f := NewFFmpeg(Options{})
	err := f.Crossfade(context.Background(), CrossfadeSpec{Inputs: []string{"a", "b"}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestMixGraph(t *testing.T) {
	f := NewFFmpeg(Options{})
	args := argsOf(t, f.mixGraph(MixSpec{
		Narration:     "voice.wav",
		Background:    "bed.mp3",
		Duration:      20,
		Loops:         3,
		AttenuationDB: 28,
		Output:        "mixed.m4a",
	}).GetArgs)

	assertContains(t, args, "-stream_loop 2", "volume=-28.00dB", "amix=", "duration=first", "normalize=0", "-t 20.000")
}

func TestMuxGraph(t *testing.T) {
	f := NewFFmpeg(Options{})
	args := argsOf(t, f.muxGraph(MuxSpec{
		Video:     "composed.mp4",
		Audio:     "mixed.m4a",
		Subtitles: "/tmp/job/captions.ass",
		Duration:  20,
		Output:    "out.mp4",
	}).GetArgs)
	assertContains(t, args, "ass=", "captions.ass", "-t 20.000", "-c:a aac", "out.mp4")

	args = argsOf(t, f.muxGraph(MuxSpec{Video: "composed.mp4", Audio: "mixed.m4a", Duration: 20, Output: "out.mp4"}).GetArgs)
	if strings.Contains(args, "ass=") {
		t.Errorf("no subtitles requested: %s", args)
	}
}

func TestParseProbe(t *testing.T) {
	raw := `{"streams":[{"codec_type":"video","width":1920,"height":1080},{"codec_type":"audio"}],"format":{"duration":"12.480000"}}`
	res, err := parseProbe(raw)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if res.Duration != 12.48 || !res.HasVideo || !res.HasAudio || res.Width != 1920 || res.Height != 1080 {
		t.Fatalf("unexpected probe result %+v", res)
	}

	if _, err := parseProbe(`{"streams":[],"format":{}}`); err == nil {
		t.Fatal("expected error for empty probe")
	}
}

func TestMissingBinary(t *testing.T) {
	f := NewFFmpeg(Options{Binary: "/nonexistent/ffmpeg-binary"})
	err := f.Mux(context.Background(), MuxSpec{Video: "a.mp4", Audio: "b.m4a", Duration: 1, Output: t.TempDir() + "/o.mp4"})
	var engErr *Error
	if !errors.As(err, &engErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
}

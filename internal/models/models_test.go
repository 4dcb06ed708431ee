package models

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/montage/internal/captions"
	"github.com/bobarin/montage/internal/engine"
)

func validRequest() RenderRequest {
	return RenderRequest{
		NarrationPath: "/in/narration.mp3",
		MediaDir:      "/in/media",
		OutputPath:    "/out/final.mp4",
	}.WithDefaults()
}

func TestRenderRequestValueScan(t *testing.T) {
	req := validRequest()
	req.Background = &Background{Path: "/in/music.mp3", VolumePercent: 40}

	data, err := req.Value()
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	var got RenderRequest
	if err := got.Scan(data); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}
	if got.Background == nil || got.Background.VolumePercent != 40 {
		t.Errorf("background lost in round trip: %+v", got.Background)
	}
	if got.Orientation != OrientationVertical {
		t.Errorf("expected vertical, got %q", got.Orientation)
	}

	if err := got.Scan("not bytes"); err == nil {
		t.Error("expected error scanning a string")
	}
}

func TestWithDefaults(t *testing.T) {
	req := RenderRequest{Background: &Background{Path: "m.mp3"}}.WithDefaults()
	if req.CropMode != engine.FillCrop {
		t.Errorf("expected fill crop, got %q", req.CropMode)
	}
	if req.Background.VolumePercent != 30 {
		t.Errorf("expected default volume 30, got %d", req.Background.VolumePercent)
	}
}

func TestOrientationResolution(t *testing.T) {
	if got := OrientationHorizontal.Resolution(); got != engine.Horizontal {
		t.Errorf("horizontal: got %+v", got)
	}
	if got := Orientation("").Resolution(); got != engine.Vertical {
		t.Errorf("empty: got %+v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RenderRequest)
		wantErr string
	}{
		{"valid", func(r *RenderRequest) {}, ""},
		{"missing narration", func(r *RenderRequest) { r.NarrationPath = "" }, "narration_path"},
		{"missing output", func(r *RenderRequest) { r.OutputPath = "" }, "output_path"},
		{"bad orientation", func(r *RenderRequest) { r.Orientation = "square" }, "orientation"},
		{"volume out of range", func(r *RenderRequest) {
			r.Background = &Background{Path: "m.mp3", VolumePercent: 150}
		}, "volume_percent"},
		{"bad caption color", func(r *RenderRequest) {
			r.Timings = []captions.TimingItem{{Start: 0, End: 1, Text: "hi"}}
			r.Captions = &captions.Style{BaseColor: "#GG0000"}
		}, "base_color"},
		{"captions without timings", func(r *RenderRequest) {
			r.Captions = &captions.Style{}
		}, "without timings"},
		{"reversed timing", func(r *RenderRequest) {
			r.Timings = []captions.TimingItem{{Start: 2, End: 1, Text: "hi"}}
		}, "timings[0]"},
		{"empty transition name", func(r *RenderRequest) { r.Transitions = []string{"fade", ""} }, "transitions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRequest(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "job.yaml")
	manifest := `narration_path: /in/voice.mp3
media_dir: /in/media
output_path: /out/final.mp4
orientation: horizontal
captions:
  mode: karaoke
  highlight_color: "#00FF00"
timings:
  - {start: 0, end: 0.4, text: Hello}
  - {start: 0.4, end: 0.9, text: world}
`
	if err := os.WriteFile(yamlPath, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	req, err := LoadRequest(yamlPath)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if req.Orientation != OrientationHorizontal || len(req.Timings) != 2 {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.Captions.Mode != captions.ModeKaraoke {
		t.Errorf("expected karaoke, got %q", req.Captions.Mode)
	}

	jsonPath := filepath.Join(dir, "job.json")
	body, _ := json.Marshal(map[string]any{
		"narration_path": "/in/voice.mp3",
		"media_dir":      "/in/media",
	})
	if err := os.WriteFile(jsonPath, body, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRequest(jsonPath); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected invalid request for missing output, got %v", err)
	}

	if _, err := LoadRequest(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		status JobStatus
		stage  Stage
		reason string
		want   string
	}{
		{JobStatusCompleted, StageDone, "", "completed"},
		{JobStatusFailed, StageMuxing, "final render failed after 3 attempts", "failed: final render failed after 3 attempts"},
		{JobStatusProcessing, StageMixing, "", "processing: mixing audio"},
		{JobStatusPending, StageQueued, "", "pending"},
	}
	for _, tt := range tests {
		if got := StatusText(tt.status, tt.stage, tt.reason); got != tt.want {
			t.Errorf("StatusText(%s) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	if JobStatusProcessing.Terminal() || JobStatusPending.Terminal() {
		t.Error("non-terminal status reported terminal")
	}
	if !JobStatusCompleted.Terminal() || !JobStatusFailed.Terminal() {
		t.Error("terminal status not reported")
	}
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlanCommand(t *testing.T) {
	out, err := run(t, "plan", "--duration", "20")
	if err != nil {
		t.Fatalf("plan: %v\n%s", err, out)
	}
	if !strings.Contains(out, "segments: 5  duration: 4.960s  transition: 1.200s  composed: 20.000s") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "3.760") {
		t.Errorf("expected first xfade offset 3.760:\n%s", out)
	}
}

func TestPlanCommandRejectsZero(t *testing.T) {
	if _, err := run(t, "plan", "--duration", "0"); err == nil {
		t.Error("expected error for zero duration")
	}
}

func TestCaptionsCommand(t *testing.T) {
	dir := t.TempDir()
	timings := filepath.Join(dir, "timings.json")
	body := `[{"start":0,"end":0.4,"text":"Hello"},{"start":0.5,"end":1.0,"text":"world."}]`
	if err := os.WriteFile(timings, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "out.ass")

	out, err := run(t, "captions", "-t", timings, "-o", outPath, "--mode", "karaoke", "--position", "top")
	if err != nil {
		t.Fatalf("captions: %v\n%s", err, out)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	ass := string(data)
	for _, want := range []string{"[Script Info]", "PlayResX: 1080", "PlayResY: 1920", `{\kf40}Hello`, `{\k10}`} {
		if !strings.Contains(ass, want) {
			t.Errorf("ASS output missing %q", want)
		}
	}
}

func TestCaptionsCommandRejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	timings := filepath.Join(dir, "timings.yaml")
	if err := os.WriteFile(timings, []byte("- {start: 0, end: 1, text: hi}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "captions", "-t", timings, "--mode", "sparkle"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

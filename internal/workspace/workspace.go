// Package workspace gives each job its own temp directory and removes
// everything in it when the job ends.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bobarin/montage/internal/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// removeFile is swapped in tests to simulate locked files.
var removeFile = os.Remove

// Workspace is a per-job temp namespace. Names never collide across jobs
// because the directory is keyed by the job id.
type Workspace struct {
	JobID uuid.UUID
	Dir   string

	policy retry.Policy

	mu        sync.Mutex
	artifacts map[string]struct{}
}

func New(root string, jobID uuid.UUID) (*Workspace, error) {
	dir := filepath.Join(root, jobID.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create job workspace: %w", err)
	}
	return &Workspace{
		JobID:     jobID,
		Dir:       dir,
		policy:    retry.Cleanup,
		artifacts: make(map[string]struct{}),
	}, nil
}

// Path returns a tracked path for name inside the workspace.
func (w *Workspace) Path(name string) string {
	p := filepath.Join(w.Dir, name)
	w.mu.Lock()
	w.artifacts[p] = struct{}{}
	w.mu.Unlock()
	return p
}

func (w *Workspace) SegmentPath(index int) string {
	return w.Path(fmt.Sprintf("seg_%03d.mp4", index))
}

// Remove deletes paths now, retrying briefly for files that are still held
// open. Failures are logged and returned as a count; they never fail the job.
func (w *Workspace) Remove(ctx context.Context, paths ...string) int {
	failed := 0
	for _, p := range paths {
		err := w.policy.Do(ctx, func(ctx context.Context, attempt int) error {
			err := removeFile(p)
			if err == nil || errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		})

		w.mu.Lock()
		delete(w.artifacts, p)
		w.mu.Unlock()

		if err != nil {
			failed++
			log.Warn().Str("component", "workspace").Str("job_id", w.JobID.String()).Err(err).
				Str("path", p).Msg("failed to remove temp file")
		}
	}
	return failed
}

// Cleanup removes every tracked artifact and then the directory itself.
// It runs on a background context so cleanup still happens after the job
// context is canceled.
func (w *Workspace) Cleanup() int {
	w.mu.Lock()
	paths := make([]string, 0, len(w.artifacts))
	for p := range w.artifacts {
		paths = append(paths, p)
	}
	w.mu.Unlock()

	ctx := context.Background()
	failed := w.Remove(ctx, paths...)
	if failed == 0 {
		if err := os.RemoveAll(w.Dir); err != nil {
			log.Warn().Str("component", "workspace").Err(err).Str("dir", w.Dir).Msg("failed to remove workspace")
			failed++
		}
	}
	return failed
}

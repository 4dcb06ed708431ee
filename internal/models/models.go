package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bobarin/montage/internal/captions"
	"github.com/bobarin/montage/internal/engine"
	"github.com/google/uuid"
)

// Enums
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further updates will follow.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Stage names the pipeline step a processing job is in.
type Stage string

const (
	StageQueued      Stage = "queued"
	StagePlanning    Stage = "planning"
	StageSegments    Stage = "rendering segments"
	StageCompositing Stage = "compositing"
	StageMixing      Stage = "mixing audio"
	StageCaptioning  Stage = "captioning"
	StageMuxing      Stage = "muxing"
	StagePublishing  Stage = "publishing"
	StageDone        Stage = "done"
)

type Orientation string

const (
	OrientationVertical   Orientation = "vertical"
	OrientationHorizontal Orientation = "horizontal"
)

// Resolution is the canonical canvas for the orientation.
func (o Orientation) Resolution() engine.Resolution {
	if o == OrientationHorizontal {
		return engine.Horizontal
	}
	return engine.Vertical
}

// Background is optional music laid under the narration.
type Background struct {
	Path          string `json:"path" yaml:"path" validate:"required"`
	VolumePercent int    `json:"volume_percent" yaml:"volume_percent" validate:"omitempty,min=1,max=100"`
}

// Pacing overrides the planner's cadence.
type Pacing struct {
	TargetSegmentSeconds float64 `json:"target_segment_seconds,omitempty" yaml:"target_segment_seconds,omitempty" validate:"omitempty,gt=0,lte=60"`
	MaxTransitionSeconds float64 `json:"max_transition_seconds,omitempty" yaml:"max_transition_seconds,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// RenderRequest is what a caller submits. It arrives over HTTP, Kafka or a
// CLI manifest.
type RenderRequest struct {
	NarrationPath     string                `json:"narration_path" yaml:"narration_path" validate:"required"`
	NarrationDuration float64               `json:"narration_duration,omitempty" yaml:"narration_duration,omitempty" validate:"gte=0"`
	MediaDir          string                `json:"media_dir" yaml:"media_dir" validate:"required"`
	Timings           []captions.TimingItem `json:"timings,omitempty" yaml:"timings,omitempty"`
	Captions          *captions.Style       `json:"captions,omitempty" yaml:"captions,omitempty"`
	Background        *Background           `json:"background,omitempty" yaml:"background,omitempty"`
	Orientation       Orientation           `json:"orientation,omitempty" yaml:"orientation,omitempty" validate:"omitempty,oneof=vertical horizontal"`
	CropMode          engine.CropMode       `json:"crop_mode,omitempty" yaml:"crop_mode,omitempty" validate:"omitempty,oneof=fill pad"`
	Pacing            *Pacing               `json:"pacing,omitempty" yaml:"pacing,omitempty"`
	Transitions       []string              `json:"transitions,omitempty" yaml:"transitions,omitempty" validate:"omitempty,dive,required"`
	OutputPath        string                `json:"output_path" yaml:"output_path" validate:"required"`
	Publish           bool                  `json:"publish,omitempty" yaml:"publish,omitempty"`
}

// WithDefaults fills optional fields.
func (r RenderRequest) WithDefaults() RenderRequest {
	if r.Orientation == "" {
		r.Orientation = OrientationVertical
	}
	if r.CropMode == "" {
		r.CropMode = engine.FillCrop
	}
	if r.Background != nil && r.Background.VolumePercent == 0 {
		bg := *r.Background
		bg.VolumePercent = 30
		r.Background = &bg
	}
	return r
}

// Value stores the request in a JSONB column.
func (r RenderRequest) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RenderRequest) Scan(value interface{}) error {
	if value == nil {
		*r = RenderRequest{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("render request column is not bytes")
	}
	return json.Unmarshal(bytes, r)
}

// Models

type RenderJob struct {
	ID           uuid.UUID     `json:"id"`
	Status       JobStatus     `json:"status"`
	Stage        Stage         `json:"stage"`
	Request      RenderRequest `json:"request"`
	OutputPath   *string       `json:"output_path,omitempty"`
	OutputURL    *string       `json:"output_url,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	Attempts     int           `json:"attempts"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// StatusText is the status string callers see: "completed",
// "failed: <reason>", or the running stage.
func StatusText(status JobStatus, stage Stage, reason string) string {
	switch status {
	case JobStatusFailed:
		return fmt.Sprintf("failed: %s", reason)
	case JobStatusProcessing:
		return fmt.Sprintf("processing: %s", stage)
	default:
		return string(status)
	}
}

// DTOs for API responses
type CreateJobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

type JobResponse struct {
	RenderJob
	StatusText string `json:"status_text"`
}

type ListJobsResponse struct {
	Jobs   []JobResponse `json:"jobs"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func NewJobResponse(job RenderJob) JobResponse {
	reason := ""
	if job.ErrorMessage != nil {
		reason = *job.ErrorMessage
	}
	return JobResponse{RenderJob: job, StatusText: StatusText(job.Status, job.Stage, reason)}
}

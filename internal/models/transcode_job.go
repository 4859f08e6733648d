package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// JobStatus represents the current status of a transcode job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting for a free worker slot.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates the encoder process is running.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the encoder failed or could not be spawned.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled.
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true for statuses that no transition may leave.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobOptions is a free-form parameter bag persisted as a JSON blob.
// It carries resolution caps, bitrate overrides, and the HLS ladder
// description for adaptive jobs.
type JobOptions map[string]any

// Value implements driver.Valuer for database storage.
func (o JobOptions) Value() (driver.Value, error) {
	if o == nil {
		return nil, nil
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshaling job options: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval.
func (o *JobOptions) Scan(value any) error {
	if value == nil {
		*o = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type for job options: %T", value)
	}

	if len(data) == 0 {
		*o = nil
		return nil
	}
	return json.Unmarshal(data, o)
}

// GormDataType returns the GORM data type for JobOptions.
func (JobOptions) GormDataType() string {
	return "text"
}

// TranscodeJob is one request to produce a specific output from a specific
// input, tracked through its status lifecycle. For HLS jobs OutputPath is
// the master playlist path.
type TranscodeJob struct {
	BaseModel

	// MediaID is the source media item this job transcodes.
	MediaID ULID `gorm:"type:varchar(26);not null;index" json:"media_id"`

	// UserID is the requesting user, when known.
	UserID ULID `gorm:"type:varchar(26);index" json:"user_id,omitempty"`

	// Status indicates the current state of the job.
	Status JobStatus `gorm:"not null;default:'pending';size:20;index" json:"status"`

	// Progress is 0-100, monotonically non-decreasing while processing
	// and pinned to 100 on completion.
	Progress int `gorm:"default:0" json:"progress"`

	// InputPath is the absolute path of the source file.
	InputPath string `gorm:"not null;size:1024" json:"input_path"`

	// OutputPath is the absolute path of the produced file. Derived from
	// InputPath and Profile when not supplied by the caller.
	OutputPath string `gorm:"size:1024" json:"output_path"`

	// Profile is the named preset ("standard", "high", ...), "hls" for
	// adaptive jobs, or "thumbnail".
	Profile string `gorm:"size:50" json:"profile"`

	// Options carries caller-supplied parameter overrides.
	Options JobOptions `json:"options,omitempty"`

	// StartedAt is set when the encoder process is spawned.
	StartedAt *Time `json:"started_at,omitempty"`

	// CompletedAt is set when the job reaches a terminal state.
	CompletedAt *Time `json:"completed_at,omitempty"`

	// Error holds the failure reason; empty unless Status is failed.
	Error string `gorm:"size:4096" json:"error,omitempty"`
}

// TableName returns the table name for TranscodeJob.
func (TranscodeJob) TableName() string {
	return "transcode_jobs"
}

// IsFinished returns true once the job has reached a terminal state.
func (j *TranscodeJob) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkProcessing transitions the job to processing.
func (j *TranscodeJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	now := Now()
	j.StartedAt = &now
	j.Error = ""
}

// MarkCompleted transitions the job to completed, pinning progress to 100.
// A cancelled job keeps its status: cancellation is sticky, the late
// terminal event of a still-running encoder must not revive the record.
func (j *TranscodeJob) MarkCompleted() {
	if j.Status == JobStatusCancelled {
		j.finish()
		return
	}
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.finish()
}

// MarkFailed transitions the job to failed with a reason. Like
// MarkCompleted, it never overwrites a sticky cancelled status.
func (j *TranscodeJob) MarkFailed(reason string) {
	if j.Status == JobStatusCancelled {
		j.finish()
		return
	}
	j.Status = JobStatusFailed
	j.Error = reason
	j.finish()
}

// MarkCancelled transitions the job to cancelled.
func (j *TranscodeJob) MarkCancelled() {
	j.Status = JobStatusCancelled
	j.finish()
}

// SetProgress updates progress, keeping it monotonic and within 0-100.
func (j *TranscodeJob) SetProgress(percent int) {
	if percent < j.Progress {
		return
	}
	if percent > 100 {
		percent = 100
	}
	j.Progress = percent
}

func (j *TranscodeJob) finish() {
	if j.CompletedAt == nil {
		now := Now()
		j.CompletedAt = &now
	}
}

// Validate performs basic validation on the job.
func (j *TranscodeJob) Validate() error {
	if j.InputPath == "" {
		return ErrInputPathRequired
	}
	if j.MediaID.IsZero() {
		return ErrMediaIDRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the job and generates its ULID.
func (j *TranscodeJob) BeforeCreate(tx *gorm.DB) error {
	if err := j.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return j.Validate()
}

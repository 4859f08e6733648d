// Package repository provides data access interfaces and GORM implementations.
package repository

import (
	"context"
	"time"

	"github.com/streamvio/streamvio/internal/models"
)

// JobFilter narrows List results. Zero values mean "no constraint".
type JobFilter struct {
	Status  models.JobStatus
	MediaID models.ULID
	Offset  int
	Limit   int
}

// TranscodeJobRepository manages persisted transcode jobs.
type TranscodeJobRepository interface {
	Create(ctx context.Context, job *models.TranscodeJob) error
	Update(ctx context.Context, job *models.TranscodeJob) error
	GetByID(ctx context.Context, id models.ULID) (*models.TranscodeJob, error)
	List(ctx context.Context, filter JobFilter) ([]*models.TranscodeJob, error)
	Count(ctx context.Context, filter JobFilter) (int64, error)
	// DeleteTerminalBefore removes completed, failed, and cancelled jobs
	// whose terminal timestamp is older than cutoff. Returns the number
	// of rows removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MediaFileRepository manages cached probe results.
type MediaFileRepository interface {
	Upsert(ctx context.Context, file *models.MediaFile) error
	GetByID(ctx context.Context, id models.ULID) (*models.MediaFile, error)
	GetByPath(ctx context.Context, path string) (*models.MediaFile, error)
}

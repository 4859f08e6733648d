package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/streamvio/streamvio/internal/models"
)

// transcodeJobRepo implements TranscodeJobRepository using GORM.
type transcodeJobRepo struct {
	db *gorm.DB
}

var _ TranscodeJobRepository = (*transcodeJobRepo)(nil)

// NewTranscodeJobRepository creates a new TranscodeJobRepository.
func NewTranscodeJobRepository(db *gorm.DB) TranscodeJobRepository {
	return &transcodeJobRepo{db: db}
}

// Create persists a new job.
func (r *transcodeJobRepo) Create(ctx context.Context, job *models.TranscodeJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("creating transcode job: %w", err)
	}
	return nil
}

// Update saves the full job record.
func (r *transcodeJobRepo) Update(ctx context.Context, job *models.TranscodeJob) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("updating transcode job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by ID. Returns models.ErrJobNotFound when the
// record does not exist.
func (r *transcodeJobRepo) GetByID(ctx context.Context, id models.ULID) (*models.TranscodeJob, error) {
	var job models.TranscodeJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrJobNotFound
		}
		return nil, fmt.Errorf("getting transcode job by ID: %w", err)
	}
	return &job, nil
}

// List retrieves jobs matching the filter, newest first.
func (r *transcodeJobRepo) List(ctx context.Context, filter JobFilter) ([]*models.TranscodeJob, error) {
	var jobs []*models.TranscodeJob
	query := r.applyFilter(ctx, filter).Order("created_at DESC")
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("listing transcode jobs: %w", err)
	}
	return jobs, nil
}

// Count returns the number of jobs matching the filter.
func (r *transcodeJobRepo) Count(ctx context.Context, filter JobFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(ctx, filter).Model(&models.TranscodeJob{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting transcode jobs: %w", err)
	}
	return count, nil
}

// DeleteTerminalBefore removes terminal jobs older than cutoff.
func (r *transcodeJobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ?", []models.JobStatus{
			models.JobStatusCompleted,
			models.JobStatusFailed,
			models.JobStatusCancelled,
		}).
		Where("completed_at < ?", cutoff).
		Delete(&models.TranscodeJob{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting terminal transcode jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *transcodeJobRepo) applyFilter(ctx context.Context, filter JobFilter) *gorm.DB {
	query := r.db.WithContext(ctx)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if !filter.MediaID.IsZero() {
		query = query.Where("media_id = ?", filter.MediaID)
	}
	return query
}

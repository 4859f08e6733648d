package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/streamvio/streamvio/internal/models"
)

// mediaFileRepo implements MediaFileRepository using GORM.
type mediaFileRepo struct {
	db *gorm.DB
}

var _ MediaFileRepository = (*mediaFileRepo)(nil)

// NewMediaFileRepository creates a new MediaFileRepository.
func NewMediaFileRepository(db *gorm.DB) MediaFileRepository {
	return &mediaFileRepo{db: db}
}

// Upsert inserts the probe record, or refreshes it when the path is
// already known.
func (r *mediaFileRepo) Upsert(ctx context.Context, file *models.MediaFile) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"size_bytes", "container", "duration_seconds", "bitrate_kbps",
			"video_codec", "width", "height", "framerate",
			"audio_codec", "audio_channels", "sample_rate_hz",
			"probed_at", "updated_at",
		}),
	}).Create(file).Error
	if err != nil {
		return fmt.Errorf("upserting media file: %w", err)
	}
	return nil
}

// GetByID retrieves a media file by ID; nil when not found.
func (r *mediaFileRepo) GetByID(ctx context.Context, id models.ULID) (*models.MediaFile, error) {
	var file models.MediaFile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting media file by ID: %w", err)
	}
	return &file, nil
}

// GetByPath retrieves a media file by its absolute path; nil when not found.
func (r *mediaFileRepo) GetByPath(ctx context.Context, path string) (*models.MediaFile, error) {
	var file models.MediaFile
	if err := r.db.WithContext(ctx).Where("path = ?", path).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting media file by path: %w", err)
	}
	return &file, nil
}

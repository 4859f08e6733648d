package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvio/streamvio/internal/models"
)

func TestMediaFileRepoUpsert(t *testing.T) {
	repo := NewMediaFileRepository(setupTestDB(t))
	ctx := context.Background()

	file := &models.MediaFile{
		Path:            "/media/example.mkv",
		Container:       "matroska,webm",
		DurationSeconds: 3600.5,
		VideoCodec:      "h264",
		Width:           1920,
		Height:          1080,
		AudioCodec:      "aac",
		AudioChannels:   6,
		SampleRateHz:    48000,
		ProbedAt:        models.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, file))

	loaded, err := repo.GetByPath(ctx, "/media/example.mkv")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 1920, loaded.Width)
	assert.True(t, loaded.HasVideo())
	assert.True(t, loaded.HasKnownDimensions())

	// Re-probing the same path refreshes the record instead of duplicating it.
	file2 := &models.MediaFile{
		Path:            "/media/example.mkv",
		Container:       "matroska,webm",
		DurationSeconds: 3601.0,
		VideoCodec:      "hevc",
		Width:           3840,
		Height:          2160,
		ProbedAt:        models.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, file2))

	loaded, err = repo.GetByPath(ctx, "/media/example.mkv")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "hevc", loaded.VideoCodec)
	assert.Equal(t, 3840, loaded.Width)
}

func TestMediaFileRepoGetNotFound(t *testing.T) {
	repo := NewMediaFileRepository(setupTestDB(t))
	ctx := context.Background()

	byPath, err := repo.GetByPath(ctx, "/nope.mkv")
	require.NoError(t, err)
	assert.Nil(t, byPath)

	byID, err := repo.GetByID(ctx, models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, byID)
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/streamvio/streamvio/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TranscodeJob{}, &models.MediaFile{}))
	return db
}

func makeJob(t *testing.T, repo TranscodeJobRepository, mutate func(*models.TranscodeJob)) *models.TranscodeJob {
	t.Helper()
	job := &models.TranscodeJob{
		MediaID:   models.NewULID(),
		Status:    models.JobStatusPending,
		InputPath: "/media/example.mkv",
		Profile:   "standard",
	}
	if mutate != nil {
		mutate(job)
	}
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func TestTranscodeJobRepoCreateAndGet(t *testing.T) {
	repo := NewTranscodeJobRepository(setupTestDB(t))
	ctx := context.Background()

	job := makeJob(t, repo, func(j *models.TranscodeJob) {
		j.Options = models.JobOptions{"max_height": float64(480)}
	})
	require.False(t, job.ID.IsZero())

	loaded, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
	assert.Equal(t, "/media/example.mkv", loaded.InputPath)
	assert.Equal(t, float64(480), loaded.Options["max_height"])
}

func TestTranscodeJobRepoGetByIDNotFound(t *testing.T) {
	repo := NewTranscodeJobRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), models.NewULID())
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestTranscodeJobRepoUpdate(t *testing.T) {
	repo := NewTranscodeJobRepository(setupTestDB(t))
	ctx := context.Background()

	job := makeJob(t, repo, nil)
	job.MarkProcessing()
	job.SetProgress(55)
	require.NoError(t, repo.Update(ctx, job))

	loaded, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, loaded.Status)
	assert.Equal(t, 55, loaded.Progress)
	assert.NotNil(t, loaded.StartedAt)
}

func TestTranscodeJobRepoListFilters(t *testing.T) {
	repo := NewTranscodeJobRepository(setupTestDB(t))
	ctx := context.Background()

	mediaID := models.NewULID()
	makeJob(t, repo, func(j *models.TranscodeJob) { j.MediaID = mediaID })
	completed := makeJob(t, repo, func(j *models.TranscodeJob) { j.MediaID = mediaID })
	makeJob(t, repo, nil)

	completed.MarkProcessing()
	completed.MarkCompleted()
	require.NoError(t, repo.Update(ctx, completed))

	all, err := repo.List(ctx, JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byMedia, err := repo.List(ctx, JobFilter{MediaID: mediaID})
	require.NoError(t, err)
	assert.Len(t, byMedia, 2)

	byStatus, err := repo.List(ctx, JobFilter{Status: models.JobStatusCompleted})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, completed.ID, byStatus[0].ID)

	count, err := repo.Count(ctx, JobFilter{Status: models.JobStatusPending})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestTranscodeJobRepoListPagination(t *testing.T) {
	repo := NewTranscodeJobRepository(setupTestDB(t))
	ctx := context.Background()

	for range 5 {
		makeJob(t, repo, nil)
	}

	page, err := repo.List(ctx, JobFilter{Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestTranscodeJobRepoDeleteTerminalBefore(t *testing.T) {
	repo := NewTranscodeJobRepository(setupTestDB(t))
	ctx := context.Background()

	old := makeJob(t, repo, nil)
	old.MarkProcessing()
	old.MarkCompleted()
	past := time.Now().Add(-48 * time.Hour)
	old.CompletedAt = &past
	require.NoError(t, repo.Update(ctx, old))

	fresh := makeJob(t, repo, nil)
	fresh.MarkProcessing()
	fresh.MarkCompleted()
	require.NoError(t, repo.Update(ctx, fresh))

	running := makeJob(t, repo, nil)
	running.MarkProcessing()
	require.NoError(t, repo.Update(ctx, running))

	removed, err := repo.DeleteTerminalBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = repo.GetByID(ctx, old.ID)
	assert.ErrorIs(t, err, models.ErrJobNotFound)

	_, err = repo.GetByID(ctx, fresh.ID)
	assert.NoError(t, err)
}

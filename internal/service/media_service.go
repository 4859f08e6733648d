// Package service provides the business logic layer between the HTTP API
// and the transcoding engine.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/streamvio/streamvio/internal/ffmpeg"
	"github.com/streamvio/streamvio/internal/models"
	"github.com/streamvio/streamvio/internal/repository"
)

// Prober probes media files. ffmpeg.Prober is the production implementation.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
}

// MediaService answers media info requests, caching probe results so a file
// is only ffprobed once until it changes on disk.
type MediaService struct {
	repo   repository.MediaFileRepository
	prober Prober
	logger *slog.Logger
}

// NewMediaService creates a media service.
func NewMediaService(repo repository.MediaFileRepository, prober Prober, logger *slog.Logger) *MediaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaService{
		repo:   repo,
		prober: prober,
		logger: logger.With(slog.String("component", "media_service")),
	}
}

// GetMediaInfo returns the technical metadata for a file, probing it on a
// cache miss or when the file size changed since the last probe.
func (s *MediaService) GetMediaInfo(ctx context.Context, path string) (*models.MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stating media file: %w", err)
	}

	cached, err := s.repo.GetByPath(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading probe cache: %w", err)
	}
	if cached != nil && cached.SizeBytes == info.Size() {
		return cached, nil
	}

	return s.Refresh(ctx, path)
}

// Refresh probes the file unconditionally and updates the cache.
func (s *MediaService) Refresh(ctx context.Context, path string) (*models.MediaFile, error) {
	result, err := s.prober.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}

	file := mediaFileFromProbe(path, result)
	if err := s.repo.Upsert(ctx, file); err != nil {
		// A stale cache is tolerable; the probe result itself is not lost.
		s.logger.Error("updating probe cache",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
	return file, nil
}

func mediaFileFromProbe(path string, result *ffmpeg.ProbeResult) *models.MediaFile {
	file := &models.MediaFile{
		Path:            path,
		SizeBytes:       result.SizeBytes(),
		Container:       result.Format.FormatName,
		DurationSeconds: result.DurationSeconds(),
		BitrateKbps:     result.BitrateKbps(),
		ProbedAt:        models.Now(),
	}
	if v := result.VideoStream(); v != nil {
		file.VideoCodec = v.CodecName
		file.Width = v.Width
		file.Height = v.Height
		file.Framerate = v.Framerate()
	}
	if a := result.AudioStream(); a != nil {
		file.AudioCodec = a.CodecName
		file.AudioChannels = a.Channels
		file.SampleRateHz = a.SampleRateHz()
	}
	return file
}

package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/streamvio/streamvio/internal/models"
	"github.com/streamvio/streamvio/internal/service"
)

// MediaHandler handles media info endpoints.
type MediaHandler struct {
	media *service.MediaService
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(media *service.MediaService) *MediaHandler {
	return &MediaHandler{media: media}
}

// Register registers the media routes with the API.
func (h *MediaHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getMediaInfo",
		Method:      "GET",
		Path:        "/api/v1/media/info",
		Summary:     "Get media info",
		Description: "Returns probed technical metadata for a media file, cached until the file changes",
		Tags:        []string{"Media"},
	}, h.GetInfo)

	huma.Register(api, huma.Operation{
		OperationID: "refreshMediaInfo",
		Method:      "POST",
		Path:        "/api/v1/media/info/refresh",
		Summary:     "Refresh media info",
		Description: "Re-probes a media file and refreshes the cache",
		Tags:        []string{"Media"},
	}, h.Refresh)
}

// MediaInfoInput identifies the file to probe.
type MediaInfoInput struct {
	Path string `query:"path" required:"true" doc:"Absolute media file path"`
}

// MediaInfoOutput wraps the media info response.
type MediaInfoOutput struct {
	Body models.MediaFile
}

// GetInfo returns cached or freshly probed media metadata.
func (h *MediaHandler) GetInfo(ctx context.Context, input *MediaInfoInput) (*MediaInfoOutput, error) {
	file, err := h.media.GetMediaInfo(ctx, input.Path)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("probing media file", err)
	}
	return &MediaInfoOutput{Body: *file}, nil
}

// Refresh re-probes the file unconditionally.
func (h *MediaHandler) Refresh(ctx context.Context, input *MediaInfoInput) (*MediaInfoOutput, error) {
	file, err := h.media.Refresh(ctx, input.Path)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("probing media file", err)
	}
	return &MediaInfoOutput{Body: *file}, nil
}

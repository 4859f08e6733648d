package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/streamvio/streamvio/internal/database"
)

// HealthHandler handles health and version endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *database.DB
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, startTime: time.Now()}
}

// WithDB enables the database readiness check.
func (h *HealthHandler) WithDB(db *database.DB) *HealthHandler {
	h.db = db
	return h
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health including the database connection",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getVersion",
		Method:      "GET",
		Path:        "/api/v1/version",
		Summary:     "Get version",
		Tags:        []string{"System"},
	}, h.GetVersion)
}

// HealthInput is the input for the health endpoint.
type HealthInput struct{}

// HealthBody is the health response body.
type HealthBody struct {
	Status        string            `json:"status" enum:"ok,degraded"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Components    map[string]string `json:"components"`
}

// HealthOutput is the output for the health endpoint.
type HealthOutput struct {
	Body HealthBody
}

// GetHealth reports overall service health.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	body := HealthBody{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Components:    map[string]string{},
	}

	if h.db == nil {
		body.Components["database"] = "not_configured"
	} else if err := h.db.Ping(ctx); err != nil {
		body.Status = "degraded"
		body.Components["database"] = "unreachable"
	} else {
		body.Components["database"] = "ok"
	}

	return &HealthOutput{Body: body}, nil
}

// VersionInput is the input for the version endpoint.
type VersionInput struct{}

// VersionBody is the version response body.
type VersionBody struct {
	Version string `json:"version"`
}

// VersionOutput is the output for the version endpoint.
type VersionOutput struct {
	Body VersionBody
}

// GetVersion returns the build version.
func (h *HealthHandler) GetVersion(context.Context, *VersionInput) (*VersionOutput, error) {
	return &VersionOutput{Body: VersionBody{Version: h.version}}, nil
}

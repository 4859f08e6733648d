package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/streamvio/streamvio/internal/ffmpeg"
)

// HWAccelProvider reports and refreshes the hardware encoder capability.
type HWAccelProvider interface {
	Detect(ctx context.Context) ffmpeg.Capability
	Refresh(ctx context.Context) ffmpeg.Capability
}

// SchedulerStats reports the scheduler's current load.
type SchedulerStats interface {
	Stats() (running, queued int)
}

// SystemHandler handles system status endpoints.
type SystemHandler struct {
	hwaccel   HWAccelProvider
	scheduler SchedulerStats
	startTime time.Time
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(hwaccel HWAccelProvider, scheduler SchedulerStats) *SystemHandler {
	return &SystemHandler{
		hwaccel:   hwaccel,
		scheduler: scheduler,
		startTime: time.Now(),
	}
}

// Register registers the system routes with the API.
func (h *SystemHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSystemStatus",
		Method:      "GET",
		Path:        "/api/v1/system/status",
		Summary:     "Get system status",
		Description: "Returns host metrics, scheduler load, and encoder capability",
		Tags:        []string{"System"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "refreshHWAccel",
		Method:      "POST",
		Path:        "/api/v1/system/hwaccel/refresh",
		Summary:     "Refresh hardware acceleration",
		Description: "Re-runs hardware encoder detection and returns the new capability",
		Tags:        []string{"System"},
	}, h.RefreshHWAccel)
}

// SystemStatusInput is the input for the status endpoint.
type SystemStatusInput struct{}

// SystemStatusBody is the status response body.
type SystemStatusBody struct {
	UptimeSeconds   int64   `json:"uptime_seconds"`
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryUsedBytes uint64  `json:"memory_used_bytes"`
	MemoryTotal     uint64  `json:"memory_total_bytes"`
	Goroutines      int     `json:"goroutines"`
	JobsRunning     int     `json:"jobs_running"`
	JobsQueued      int     `json:"jobs_queued"`
	HWAccel         string  `json:"hwaccel"`
	HWEncoder       string  `json:"hw_encoder"`
}

// SystemStatusOutput is the output for the status endpoint.
type SystemStatusOutput struct {
	Body SystemStatusBody
}

// GetStatus returns host metrics and scheduler load. Metric collection
// failures leave the corresponding fields at zero rather than failing the
// request.
func (h *SystemHandler) GetStatus(ctx context.Context, _ *SystemStatusInput) (*SystemStatusOutput, error) {
	body := SystemStatusBody{
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		body.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		body.MemoryUsedBytes = vm.Used
		body.MemoryTotal = vm.Total
	}

	if h.scheduler != nil {
		body.JobsRunning, body.JobsQueued = h.scheduler.Stats()
	}
	if h.hwaccel != nil {
		cap := h.hwaccel.Detect(ctx)
		body.HWAccel = string(cap)
		body.HWEncoder = cap.Encoder()
	}

	return &SystemStatusOutput{Body: body}, nil
}

// RefreshHWAccelInput is the input for the refresh endpoint.
type RefreshHWAccelInput struct{}

// RefreshHWAccelBody is the refresh response body.
type RefreshHWAccelBody struct {
	HWAccel   string `json:"hwaccel"`
	HWEncoder string `json:"hw_encoder"`
}

// RefreshHWAccelOutput is the output for the refresh endpoint.
type RefreshHWAccelOutput struct {
	Body RefreshHWAccelBody
}

// RefreshHWAccel forces hardware encoder re-detection.
func (h *SystemHandler) RefreshHWAccel(ctx context.Context, _ *RefreshHWAccelInput) (*RefreshHWAccelOutput, error) {
	if h.hwaccel == nil {
		return nil, huma.Error503ServiceUnavailable("hardware detection unavailable")
	}
	cap := h.hwaccel.Refresh(ctx)
	return &RefreshHWAccelOutput{
		Body: RefreshHWAccelBody{HWAccel: string(cap), HWEncoder: cap.Encoder()},
	}, nil
}

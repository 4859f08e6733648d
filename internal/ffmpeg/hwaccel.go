package ffmpeg

import (
	"context"
	"os/exec"
	"strings"
	"sync"
)

// Capability identifies a usable hardware acceleration backend.
type Capability string

const (
	HWAccelNone         Capability = "none"
	HWAccelNVENC        Capability = "nvenc"
	HWAccelQSV          Capability = "qsv"
	HWAccelVAAPI        Capability = "vaapi"
	HWAccelVideoToolbox Capability = "videotoolbox"
)

// capabilityPriority is the fixed detection order. The first backend whose
// test encode succeeds wins.
var capabilityPriority = []Capability{
	HWAccelNVENC,
	HWAccelQSV,
	HWAccelVAAPI,
	HWAccelVideoToolbox,
}

// encoderNames maps each backend to the H.264 encoder it must provide.
var encoderNames = map[Capability]string{
	HWAccelNVENC:        "h264_nvenc",
	HWAccelQSV:          "h264_qsv",
	HWAccelVAAPI:        "h264_vaapi",
	HWAccelVideoToolbox: "h264_videotoolbox",
}

// Encoder returns the H.264 encoder name for the capability, or "libx264"
// for software encoding.
func (c Capability) Encoder() string {
	if name, ok := encoderNames[c]; ok {
		return name
	}
	return "libx264"
}

// HWAccelDetector probes the local ffmpeg installation for working hardware
// encoders. The result is cached for the process lifetime; detection failures
// degrade to software encoding rather than surfacing errors.
type HWAccelDetector struct {
	ffmpegPath string

	mu     sync.Mutex
	cached *Capability

	// Injection points for tests.
	listEncoders func(ctx context.Context) (string, error)
	testEncoder  func(ctx context.Context, cap Capability) bool
}

// NewHWAccelDetector creates a new hardware acceleration detector.
func NewHWAccelDetector(ffmpegPath string) *HWAccelDetector {
	d := &HWAccelDetector{ffmpegPath: ffmpegPath}
	d.listEncoders = d.execListEncoders
	d.testEncoder = d.execTestEncoder
	return d
}

// Detect returns the best available capability, running detection at most
// once. Subsequent calls return the cached result, including a cached "none".
func (d *HWAccelDetector) Detect(ctx context.Context) Capability {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil {
		return *d.cached
	}
	cap := d.detect(ctx)
	d.cached = &cap
	return cap
}

// Refresh forces re-detection, replacing the cached result. Useful after a
// driver install without restarting the server.
func (d *HWAccelDetector) Refresh(ctx context.Context) Capability {
	d.mu.Lock()
	defer d.mu.Unlock()

	cap := d.detect(ctx)
	d.cached = &cap
	return cap
}

func (d *HWAccelDetector) detect(ctx context.Context) Capability {
	encoders, err := d.listEncoders(ctx)
	if err != nil {
		return HWAccelNone
	}

	for _, cap := range capabilityPriority {
		if !strings.Contains(encoders, encoderNames[cap]) {
			continue
		}
		if d.testEncoder(ctx, cap) {
			return cap
		}
	}
	return HWAccelNone
}

// execListEncoders queries ffmpeg for its compiled-in encoders.
func (d *HWAccelDetector) execListEncoders(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, d.ffmpegPath, "-encoders", "-hide_banner")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// execTestEncoder runs a tiny null encode to verify the backend actually
// works; a listed encoder is not enough when the driver or device is absent.
func (d *HWAccelDetector) execTestEncoder(ctx context.Context, cap Capability) bool {
	var args []string
	switch cap {
	case HWAccelNVENC:
		args = []string{
			"-hide_banner",
			"-f", "lavfi", "-i", "nullsrc=s=320x240:d=0.1",
			"-c:v", "h264_nvenc",
			"-t", "0.01",
			"-f", "null", "-",
		}
	case HWAccelQSV:
		args = []string{
			"-hide_banner",
			"-init_hw_device", "qsv=hw",
			"-f", "lavfi", "-i", "nullsrc=s=320x240:d=0.1",
			"-vf", "hwupload=extra_hw_frames=64,format=qsv",
			"-c:v", "h264_qsv",
			"-t", "0.01",
			"-f", "null", "-",
		}
	case HWAccelVAAPI:
		args = []string{
			"-hide_banner",
			"-vaapi_device", "/dev/dri/renderD128",
			"-f", "lavfi", "-i", "nullsrc=s=320x240:d=0.1",
			"-vf", "format=nv12,hwupload",
			"-c:v", "h264_vaapi",
			"-t", "0.01",
			"-f", "null", "-",
		}
	case HWAccelVideoToolbox:
		args = []string{
			"-hide_banner",
			"-f", "lavfi", "-i", "nullsrc=s=320x240:d=0.1",
			"-c:v", "h264_videotoolbox",
			"-t", "0.01",
			"-f", "null", "-",
		}
	default:
		return false
	}

	return exec.CommandContext(ctx, d.ffmpegPath, args...).Run() == nil
}

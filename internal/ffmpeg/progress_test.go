package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProgressLine(t *testing.T) {
	const statsLine = "frame= 1800 fps= 60 q=28.0 size=   12000KiB time=00:01:00.00 bitrate=1638.4kbits/s speed=2.0x"

	tests := []struct {
		name        string
		line        string
		duration    float64
		wantPercent int
		wantOK      bool
	}{
		{
			name:        "halfway",
			line:        statsLine,
			duration:    120,
			wantPercent: 50,
			wantOK:      true,
		},
		{
			name:        "complete",
			line:        statsLine,
			duration:    60,
			wantPercent: 100,
			wantOK:      true,
		},
		{
			name:        "past the end clamps to 100",
			line:        statsLine,
			duration:    30,
			wantPercent: 100,
			wantOK:      true,
		},
		{
			name:        "rounds to nearest",
			line:        "time=00:00:01.00 bitrate=N/A",
			duration:    3,
			wantPercent: 33,
			wantOK:      true,
		},
		{
			name:     "no time marker",
			line:     "Stream mapping: Stream #0:0 -> #0:0 (h264 (native) -> h264 (libx264))",
			duration: 120,
			wantOK:   false,
		},
		{
			name:     "malformed timestamp",
			line:     "time=xx:yy:zz.aa bitrate=1638.4kbits/s",
			duration: 120,
			wantOK:   false,
		},
		{
			name:     "time marker without centiseconds",
			line:     "time=00:01:00 bitrate=N/A",
			duration: 120,
			wantOK:   false,
		},
		{
			name:     "zero duration",
			line:     statsLine,
			duration: 0,
			wantOK:   false,
		},
		{
			name:     "negative duration",
			line:     statsLine,
			duration: -10,
			wantOK:   false,
		},
		{
			name:     "empty line",
			line:     "",
			duration: 120,
			wantOK:   false,
		},
		{
			name:        "hours roll over",
			line:        "time=01:30:00.00 bitrate=N/A",
			duration:    2 * 3600,
			wantPercent: 75,
			wantOK:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			percent, ok := ParseProgressLine(tt.line, tt.duration)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantPercent, percent)
			}
		})
	}
}

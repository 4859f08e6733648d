package ffmpeg

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// timeRe matches the time marker of ffmpeg stats lines, e.g.
// "frame= 120 fps= 30 ... time=00:01:05.40 bitrate=...".
var timeRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)

// ParseProgressLine extracts the completion percentage from an ffmpeg stderr
// stats line. durationSeconds is the total input duration; when it is unknown
// (zero or negative) no percentage can be derived. Returns ok=false for lines
// without a parseable time marker.
func ParseProgressLine(line string, durationSeconds float64) (percent int, ok bool) {
	if durationSeconds <= 0 {
		return 0, false
	}

	elapsed, ok := parseTimeMarker(line)
	if !ok {
		return 0, false
	}

	percent = int(math.Round(elapsed.Seconds() / durationSeconds * 100))
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	return percent, true
}

// parseTimeMarker extracts the elapsed encode time from a stats line.
func parseTimeMarker(line string) (time.Duration, bool) {
	matches := timeRe.FindStringSubmatch(line)
	if len(matches) < 5 {
		return 0, false
	}

	hours, _ := strconv.Atoi(matches[1])
	mins, _ := strconv.Atoi(matches[2])
	secs, _ := strconv.Atoi(matches[3])
	centis, _ := strconv.Atoi(matches[4])

	return time.Duration(hours)*time.Hour +
		time.Duration(mins)*time.Minute +
		time.Duration(secs)*time.Second +
		time.Duration(centis)*10*time.Millisecond, true
}

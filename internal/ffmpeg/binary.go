// Package ffmpeg provides ffmpeg/ffprobe discovery, probing, hardware
// acceleration detection, and command construction.
package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
)

// Binaries holds resolved paths to the ffmpeg and ffprobe executables.
type Binaries struct {
	FFmpeg  string
	FFprobe string
}

// FindBinaries resolves the ffmpeg and ffprobe paths. Explicit paths win;
// empty paths fall back to the current directory and then PATH. ffprobe is
// optional: probing degrades gracefully without it.
func FindBinaries(ffmpegPath, ffprobePath string) (Binaries, error) {
	var bins Binaries

	ffmpeg, err := findBinary("ffmpeg", ffmpegPath)
	if err != nil {
		return bins, fmt.Errorf("ffmpeg not found: %w", err)
	}
	bins.FFmpeg = ffmpeg

	if ffprobe, err := findBinary("ffprobe", ffprobePath); err == nil {
		bins.FFprobe = ffprobe
	}

	return bins, nil
}

// findBinary locates an executable: explicit override, then ./name, then PATH.
func findBinary(name, override string) (string, error) {
	if override != "" {
		if isExecutable(override) {
			return override, nil
		}
		return "", fmt.Errorf("configured path %s is not executable", override)
	}

	localPath := "./" + name
	if isExecutable(localPath) {
		return localPath, nil
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("binary %s not found", name)
}

// isExecutable checks if a file exists and is executable by the current user.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

package transcode

import (
	"fmt"
	"math"
)

// Rendition is one rung of an adaptive bitrate ladder. Width and height are
// always even, as required by 4:2:0 chroma subsampling.
type Rendition struct {
	Name           string `json:"name"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	BitrateKbps    int    `json:"bitrate_kbps"`
	MaxBitrateKbps int    `json:"max_bitrate_kbps"`
	BufferSizeKbps int    `json:"buffer_size_kbps"`
}

// ladderHeights is the ordered set of standard rung heights.
var ladderHeights = []int{360, 480, 720, 1080}

// bppForHeight returns the bits-per-pixel constant for a rung height.
// Larger frames get a higher constant: high-resolution content needs
// proportionally more bits to avoid visible artifacts.
func bppForHeight(height int) float64 {
	switch {
	case height >= 1080:
		return 0.13
	case height >= 720:
		return 0.12
	case height >= 480:
		return 0.11
	default:
		return 0.10
	}
}

// assumedFrameRate is used for nominal bitrate estimation; the actual
// source frame rate is preserved by the encoder.
const assumedFrameRate = 30

// defaultRendition is the single fallback rung used when source dimensions
// are unknown.
var defaultRendition = Rendition{
	Name:           "360p",
	Width:          640,
	Height:         360,
	BitrateKbps:    800,
	MaxBitrateKbps: 1000,
	BufferSizeKbps: 1200,
}

// BuildLadder computes the rendition ladder for a source of the given pixel
// dimensions, capped at maxHeight. Rungs are every standard height that fits
// both the cap and the source; bitrates scale with rung area and are clamped
// to maxBitrateKbps. Sources below 360p get a single rung at their own
// dimensions; unknown dimensions fall back to a fixed 640x360 rung. The
// result is ordered ascending by height.
func BuildLadder(srcWidth, srcHeight, maxHeight, maxBitrateKbps int) []Rendition {
	if srcWidth <= 0 || srcHeight <= 0 {
		return []Rendition{clampRendition(defaultRendition, maxBitrateKbps)}
	}

	aspect := float64(srcWidth) / float64(srcHeight)

	var ladder []Rendition
	for _, height := range ladderHeights {
		if maxHeight > 0 && height > maxHeight {
			continue
		}
		if height > srcHeight {
			continue
		}
		ladder = append(ladder, makeRendition(height, aspect, maxBitrateKbps))
	}

	if len(ladder) == 0 {
		// Source is smaller than the lowest standard rung: emit a single
		// rung at the source's own (even) dimensions.
		height := srcHeight
		if maxHeight > 0 && height > maxHeight {
			height = maxHeight
		}
		height = evenDim(height)
		width := evenDim(int(math.Round(float64(height) * aspect)))
		ladder = append(ladder, Rendition{
			Name:           renditionName(height),
			Width:          width,
			Height:         height,
			BitrateKbps:    nominalBitrate(width, height),
			MaxBitrateKbps: 0,
			BufferSizeKbps: 0,
		})
		ladder[0] = finishRendition(ladder[0], maxBitrateKbps)
	}

	return ladder
}

func makeRendition(height int, aspect float64, maxBitrateKbps int) Rendition {
	width := int(math.Round(float64(height)*aspect/2)) * 2
	r := Rendition{
		Name:        renditionName(height),
		Width:       width,
		Height:      height,
		BitrateKbps: nominalBitrate(width, height),
	}
	return finishRendition(r, maxBitrateKbps)
}

// finishRendition derives maxBitrate and bufferSize and applies the global
// bitrate ceiling.
func finishRendition(r Rendition, maxBitrateKbps int) Rendition {
	r.MaxBitrateKbps = r.BitrateKbps * 3 / 2
	r.BufferSizeKbps = r.BitrateKbps * 2
	return clampRendition(r, maxBitrateKbps)
}

func clampRendition(r Rendition, maxBitrateKbps int) Rendition {
	if maxBitrateKbps <= 0 {
		return r
	}
	if r.BitrateKbps > maxBitrateKbps {
		r.BitrateKbps = maxBitrateKbps
	}
	if r.MaxBitrateKbps > maxBitrateKbps {
		r.MaxBitrateKbps = maxBitrateKbps
	}
	if r.BufferSizeKbps > maxBitrateKbps {
		r.BufferSizeKbps = maxBitrateKbps
	}
	return r
}

func nominalBitrate(width, height int) int {
	return int(bppForHeight(height) * float64(width) * float64(height) * assumedFrameRate / 1000)
}

func evenDim(d int) int {
	if d < 2 {
		return 2
	}
	return d &^ 1
}

func renditionName(height int) string {
	return fmt.Sprintf("%dp", height)
}

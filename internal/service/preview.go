package service

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"

	// Register decoders for the formats ffmpeg emits and users upload.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// previewJPEGQuality balances size and fidelity for list-view previews.
const previewJPEGQuality = 80

// GeneratePreview downscales an extracted thumbnail to at most maxWidth
// pixels wide, preserving aspect ratio, and writes it as JPEG. Images
// already within bounds are re-encoded unchanged in size.
func GeneratePreview(srcPath, dstPath string, maxWidth int) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening thumbnail: %w", err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding thumbnail (format=%s): %w", format, err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxWidth > 0 && width > maxWidth {
		height = height * maxWidth / width
		if height < 1 {
			height = 1
		}
		width = maxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("creating preview: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, dst, &jpeg.Options{Quality: previewJPEGQuality}); err != nil {
		return fmt.Errorf("encoding preview: %w", err)
	}
	return nil
}

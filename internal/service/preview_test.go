package service

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvio/streamvio/internal/models"
	"github.com/streamvio/streamvio/internal/transcode"
)

func writeTestImage(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func decodeJPEGBounds(t *testing.T, path string) image.Rectangle {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	return img.Bounds()
}

func TestGeneratePreviewDownscales(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "frame.png")
	dst := filepath.Join(dir, "preview.jpg")
	writeTestImage(t, src, 320, 180)

	require.NoError(t, GeneratePreview(src, dst, 160))

	bounds := decodeJPEGBounds(t, dst)
	assert.Equal(t, 160, bounds.Dx())
	assert.Equal(t, 90, bounds.Dy())
}

func TestGeneratePreviewKeepsSmallImages(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "frame.png")
	dst := filepath.Join(dir, "preview.jpg")
	writeTestImage(t, src, 100, 60)

	require.NoError(t, GeneratePreview(src, dst, 160))

	bounds := decodeJPEGBounds(t, dst)
	assert.Equal(t, 100, bounds.Dx())
	assert.Equal(t, 60, bounds.Dy())
}

func TestGeneratePreviewErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, GeneratePreview(filepath.Join(dir, "missing.png"), filepath.Join(dir, "out.jpg"), 160))

	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	assert.Error(t, GeneratePreview(garbage, filepath.Join(dir, "out.jpg"), 160))
}

func TestPreviewPath(t *testing.T) {
	assert.Equal(t, "/out/movie_preview.jpg", PreviewPath("/out/movie_thumbnail.jpg"))
}

func TestPreviewListenerGeneratesPreview(t *testing.T) {
	dir := t.TempDir()
	thumb := filepath.Join(dir, "movie_thumbnail.jpg")

	img := image.NewRGBA(image.Rect(0, 0, 320, 180))
	f, err := os.Create(thumb)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())

	bus := transcode.NewBus(nil)
	listener := NewPreviewListener(bus, 160, nil)
	listener.Start()
	defer listener.Stop()

	bus.Publish(transcode.Event{
		Type:       transcode.EventCompleted,
		JobID:      models.NewULID(),
		OutputPath: thumb,
	})

	preview := PreviewPath(thumb)
	require.Eventually(t, func() bool {
		_, err := os.Stat(preview)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	bounds := decodeJPEGBounds(t, preview)
	assert.Equal(t, 160, bounds.Dx())
}

func TestPreviewListenerIgnoresOtherEvents(t *testing.T) {
	bus := transcode.NewBus(nil)
	listener := NewPreviewListener(bus, 160, nil)
	listener.Start()

	bus.Publish(transcode.Event{Type: transcode.EventCompleted, OutputPath: "/out/movie_standard.mp4"})
	bus.Publish(transcode.Event{Type: transcode.EventProgress, Percent: 50})

	// Stop drains the subscription; nothing to assert beyond no panic and
	// a clean shutdown.
	listener.Stop()
}

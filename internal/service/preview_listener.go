package service

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/streamvio/streamvio/internal/transcode"
)

const thumbnailSuffix = "_thumbnail.jpg"

// PreviewListener watches the event bus for completed thumbnail jobs and
// writes a downscaled preview next to each thumbnail.
type PreviewListener struct {
	bus      *transcode.Bus
	maxWidth int
	logger   *slog.Logger

	sub  *transcode.Subscriber
	done sync.WaitGroup
}

// NewPreviewListener creates a listener producing previews at most maxWidth
// pixels wide.
func NewPreviewListener(bus *transcode.Bus, maxWidth int, logger *slog.Logger) *PreviewListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreviewListener{
		bus:      bus,
		maxWidth: maxWidth,
		logger:   logger.With(slog.String("component", "preview_listener")),
	}
}

// Start subscribes to the bus and begins processing events.
func (l *PreviewListener) Start() {
	l.sub = l.bus.Subscribe(64)
	l.done.Add(1)
	go func() {
		defer l.done.Done()
		for ev := range l.sub.Events {
			if ev.Type != transcode.EventCompleted || !strings.HasSuffix(ev.OutputPath, thumbnailSuffix) {
				continue
			}
			preview := PreviewPath(ev.OutputPath)
			if err := GeneratePreview(ev.OutputPath, preview, l.maxWidth); err != nil {
				l.logger.Warn("preview generation failed",
					slog.String("thumbnail", ev.OutputPath),
					slog.String("error", err.Error()),
				)
				continue
			}
			l.logger.Debug("preview written", slog.String("path", preview))
		}
	}()
}

// Stop unsubscribes and waits for in-flight work to finish.
func (l *PreviewListener) Stop() {
	if l.sub != nil {
		l.bus.Unsubscribe(l.sub.ID)
		l.done.Wait()
	}
}

// PreviewPath returns the preview path for a thumbnail path.
func PreviewPath(thumbnailPath string) string {
	return strings.TrimSuffix(thumbnailPath, thumbnailSuffix) + "_preview.jpg"
}

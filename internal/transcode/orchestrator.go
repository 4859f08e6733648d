package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/streamvio/streamvio/internal/ffmpeg"
	"github.com/streamvio/streamvio/internal/models"
)

// Runner abstracts encoder process execution so the orchestrator can be
// exercised without spawning real processes. ffmpeg.ExecRunner is the
// production implementation.
type Runner interface {
	Run(ctx context.Context, bin string, args []string, onLine func(string)) error
}

// Orchestrator spawns encoder processes for a job, derives progress from
// their stderr output, and publishes lifecycle events. It never retries;
// retry policy belongs to callers.
type Orchestrator struct {
	ffmpegPath string
	runner     Runner
	bus        *Bus
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator publishing to the given bus.
func NewOrchestrator(ffmpegPath string, runner Runner, bus *Bus, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		bus:        bus,
		logger:     logger.With(slog.String("component", "orchestrator")),
	}
}

// Run executes the job's encoder commands in order, emitting Started, then
// zero or more monotonically non-decreasing Progress events, then exactly
// one terminal event: Completed on success or Failed on spawn error or
// non-zero exit. durationSeconds drives percentage calculation; when it is
// unknown (zero) no progress events are emitted. onProgress, when non-nil,
// observes each published percentage.
//
// Multi-command jobs (one encoder run per HLS rendition) report progress
// scaled across all commands.
func (o *Orchestrator) Run(ctx context.Context, job *models.TranscodeJob, commands [][]string, durationSeconds float64, onProgress func(int)) error {
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		reason := fmt.Sprintf("creating output directory: %v", err)
		o.publishFailed(job, reason)
		return fmt.Errorf("%s", reason)
	}

	o.bus.Publish(Event{
		Type:    EventStarted,
		JobID:   job.ID,
		MediaID: job.MediaID,
	})

	lastPercent := 0
	total := len(commands)

	for i, args := range commands {
		o.logger.Debug("spawning encoder",
			slog.String("job_id", job.ID.String()),
			slog.Int("command", i+1),
			slog.Int("commands", total),
		)

		err := o.runner.Run(ctx, o.ffmpegPath, args, func(line string) {
			percent, ok := ffmpeg.ParseProgressLine(line, durationSeconds)
			if !ok {
				return
			}
			// Scale this command's percentage into the whole job's range.
			overall := (i*100 + percent) / total
			if overall <= lastPercent {
				return
			}
			lastPercent = overall
			o.bus.Publish(Event{
				Type:    EventProgress,
				JobID:   job.ID,
				MediaID: job.MediaID,
				Percent: overall,
			})
			if onProgress != nil {
				onProgress(overall)
			}
		})
		if err != nil {
			reason := err.Error()
			o.publishFailed(job, reason)
			return err
		}
	}

	o.bus.Publish(Event{
		Type:       EventCompleted,
		JobID:      job.ID,
		MediaID:    job.MediaID,
		Percent:    100,
		OutputPath: job.OutputPath,
	})
	return nil
}

func (o *Orchestrator) publishFailed(job *models.TranscodeJob, reason string) {
	o.logger.Warn("encoder failed",
		slog.String("job_id", job.ID.String()),
		slog.String("reason", reason),
	)
	o.bus.Publish(Event{
		Type:    EventFailed,
		JobID:   job.ID,
		MediaID: job.MediaID,
		Reason:  reason,
	})
}

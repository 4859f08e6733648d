package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/streamvio/streamvio/internal/ffmpeg"
	"github.com/streamvio/streamvio/internal/models"
)

// hlsAudioBitrateKbps is the fixed AAC bitrate for every HLS rendition.
const hlsAudioBitrateKbps = 128

// plan is the fully-built execution plan for one job: the encoder argument
// lists to run in order, the source duration driving progress reporting,
// and the rendition ladder for HLS jobs.
type plan struct {
	commands        [][]string
	durationSeconds float64
	ladder          []Rendition
}

// buildPlan probes the source and assembles the encoder commands for the
// job. Probe failures are non-fatal: encoding proceeds with an unknown
// duration (no progress reporting) and unknown source dimensions.
func (s *Scheduler) buildPlan(ctx context.Context, job *models.TranscodeJob, prof Profile) plan {
	var (
		duration   float64
		srcW, srcH int
	)
	if s.prober != nil {
		res, err := s.prober.Probe(ctx, job.InputPath)
		if err != nil {
			s.logger.Warn("probe failed, progress reporting disabled",
				slog.String("job_id", job.ID.String()),
				slog.String("input", job.InputPath),
				slog.String("error", err.Error()),
			)
		} else {
			duration = res.DurationSeconds()
			if v := res.VideoStream(); v != nil {
				srcW, srcH = v.Width, v.Height
			}
		}
	}

	switch job.Profile {
	case ProfileHLS:
		return s.buildHLSPlan(ctx, job, duration, srcW, srcH)
	case ProfileThumbnail:
		return s.buildThumbnailPlan(job)
	default:
		return s.buildSingleFilePlan(ctx, job, prof, duration, srcW, srcH)
	}
}

func (s *Scheduler) buildSingleFilePlan(ctx context.Context, job *models.TranscodeJob, prof Profile, duration float64, srcW, srcH int) plan {
	b := ffmpeg.NewCommandBuilder(s.cfg.FFmpegPath).
		HideBanner().
		Stats().
		Overwrite().
		Input(job.InputPath)

	if w, h, ok := fitDims(srcW, srcH, prof.MaxWidth, prof.MaxHeight); ok {
		b.Scale(w, h)
	}

	b.VideoCodec(s.videoCodec(ctx, prof.VideoCodec)).
		Preset(prof.Preset).
		VideoBitrate(prof.VideoBitrateKbps).
		AudioCodec(prof.AudioCodec).
		AudioBitrate(prof.AudioBitrateKbps).
		Output(job.OutputPath)

	return plan{commands: [][]string{b.Args()}, durationSeconds: duration}
}

// buildHLSPlan produces one encoder run per ladder rung. Rendition v writes
// stream_v.m3u8 and segment_v_NNN.ts next to the master playlist.
func (s *Scheduler) buildHLSPlan(ctx context.Context, job *models.TranscodeJob, duration float64, srcW, srcH int) plan {
	maxHeight := 1080
	if v, ok := intOption(job.Options, "max_height"); ok {
		maxHeight = v
	}
	ladder := BuildLadder(srcW, srcH, maxHeight, s.cfg.MaxBitrateKbps)

	dir := filepath.Dir(job.OutputPath)
	videoCodec := s.videoCodec(ctx, "libx264")

	commands := make([][]string, 0, len(ladder))
	for i, r := range ladder {
		b := ffmpeg.NewCommandBuilder(s.cfg.FFmpegPath).
			HideBanner().
			Stats().
			Overwrite().
			Input(job.InputPath).
			Scale(r.Width, r.Height).
			VideoCodec(videoCodec).
			VideoBitrate(r.BitrateKbps).
			MaxBitrate(r.MaxBitrateKbps, r.BufferSizeKbps).
			AudioCodec("aac").
			AudioBitrate(hlsAudioBitrateKbps).
			HLSArgs(s.cfg.SegmentSeconds, filepath.Join(dir, fmt.Sprintf("segment_%d_%%03d.ts", i))).
			Output(filepath.Join(dir, fmt.Sprintf("stream_%d.m3u8", i)))
		commands = append(commands, b.Args())
	}

	return plan{commands: commands, durationSeconds: duration, ladder: ladder}
}

// buildThumbnailPlan extracts a single scaled frame. Thumbnails are quick
// enough that progress reporting is skipped.
func (s *Scheduler) buildThumbnailPlan(job *models.TranscodeJob) plan {
	offset, _ := floatOption(job.Options, "offset_seconds")
	width, height := s.cfg.ThumbnailWidth, s.cfg.ThumbnailHeight
	if v, ok := intOption(job.Options, "width"); ok {
		width = v
	}
	if v, ok := intOption(job.Options, "height"); ok {
		height = v
	}

	b := ffmpeg.NewCommandBuilder(s.cfg.FFmpegPath).
		HideBanner().
		Overwrite().
		Seek(offset).
		Input(job.InputPath).
		Scale(width, height).
		Frames(1).
		NoAudio().
		Output(job.OutputPath)

	return plan{commands: [][]string{b.Args()}}
}

// videoCodec swaps the software H.264 encoder for a hardware one when
// acceleration is enabled and a working backend was detected.
func (s *Scheduler) videoCodec(ctx context.Context, want string) string {
	if want != "libx264" || s.cfg.HWAccel == "none" || s.detector == nil {
		return want
	}
	if cap := s.detector.Detect(ctx); cap != ffmpeg.HWAccelNone {
		return cap.Encoder()
	}
	return want
}

// fitDims downscales source dimensions to fit within the profile caps,
// preserving aspect ratio and evenness. ok is false when no scaling is
// needed or the source dimensions are unknown.
func fitDims(srcW, srcH, maxW, maxH int) (w, h int, ok bool) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0, false
	}
	scale := 1.0
	if maxW > 0 && srcW > maxW {
		scale = float64(maxW) / float64(srcW)
	}
	if maxH > 0 && srcH > maxH {
		if s := float64(maxH) / float64(srcH); s < scale {
			scale = s
		}
	}
	if scale >= 1 {
		return 0, 0, false
	}
	return evenDim(int(math.Round(float64(srcW) * scale))),
		evenDim(int(math.Round(float64(srcH) * scale))),
		true
}

func floatOption(opts models.JobOptions, key string) (float64, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

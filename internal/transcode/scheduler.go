package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/streamvio/streamvio/internal/ffmpeg"
	"github.com/streamvio/streamvio/internal/models"
	"github.com/streamvio/streamvio/internal/repository"
)

// MediaProber probes source files for duration and stream details.
// ffmpeg.Prober is the production implementation.
type MediaProber interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
}

// CapabilityDetector reports the usable hardware acceleration backend.
type CapabilityDetector interface {
	Detect(ctx context.Context) ffmpeg.Capability
}

// SchedulerConfig carries the configuration the scheduler needs at startup.
// MaxConcurrent is fixed for the scheduler's lifetime.
type SchedulerConfig struct {
	Enabled         bool
	FFmpegPath      string
	OutputRoot      string
	MaxConcurrent   int
	MaxBitrateKbps  int
	SegmentSeconds  int
	ThumbnailWidth  int
	ThumbnailHeight int
	HWAccel         string
}

// SubmitRequest describes one transcode request.
type SubmitRequest struct {
	MediaID    models.ULID
	UserID     models.ULID
	InputPath  string
	OutputPath string
	Profile    string
	Options    models.JobOptions
}

type queuedJob struct {
	job     *models.TranscodeJob
	profile Profile
}

// Scheduler accepts transcode jobs, runs up to MaxConcurrent of them at
// once, and holds overflow in a FIFO queue. A single mutex owns the running
// count, the queue, and the set of active jobs; Submit and Cancel never
// perform encoder I/O under it.
type Scheduler struct {
	cfg      SchedulerConfig
	repo     repository.TranscodeJobRepository
	profiles *Profiles
	prober   MediaProber
	detector CapabilityDetector
	orch     *Orchestrator
	bus      *Bus
	logger   *slog.Logger

	mu      sync.Mutex
	running int
	queue   []*queuedJob
	active  map[models.ULID]*models.TranscodeJob

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. prober and detector may be nil, which
// disables progress reporting and hardware acceleration respectively.
func NewScheduler(
	cfg SchedulerConfig,
	repo repository.TranscodeJobRepository,
	profiles *Profiles,
	prober MediaProber,
	detector CapabilityDetector,
	runner Runner,
	bus *Bus,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	baseCtx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:      cfg,
		repo:     repo,
		profiles: profiles,
		prober:   prober,
		detector: detector,
		orch:     NewOrchestrator(cfg.FFmpegPath, runner, bus, logger),
		bus:      bus,
		logger:   logger.With(slog.String("component", "scheduler")),
		active:   make(map[models.ULID]*models.TranscodeJob),
		baseCtx:  baseCtx,
		stop:     stop,
	}
}

// Submit validates the request, persists the job as pending, and either
// starts it immediately or appends it to the queue. The returned job's
// status reflects which happened. Input errors are rejected synchronously
// and never enter the queue.
func (s *Scheduler) Submit(ctx context.Context, req SubmitRequest) (*models.TranscodeJob, error) {
	if !s.cfg.Enabled {
		return nil, models.ErrTranscodingDisabled
	}

	profileName := req.Profile
	if profileName == "" {
		profileName = "standard"
	}

	job := &models.TranscodeJob{
		MediaID:    req.MediaID,
		UserID:     req.UserID,
		Status:     models.JobStatusPending,
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Profile:    profileName,
		Options:    req.Options,
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	prof, err := s.resolveProfile(job)
	if err != nil {
		return nil, err
	}

	if job.OutputPath == "" {
		job.OutputPath = s.defaultOutputPath(job, prof)
	}
	if err := s.checkOutputRoot(job.OutputPath); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persisting job: %w", err)
	}

	s.mu.Lock()
	start := s.running < s.cfg.MaxConcurrent
	if start {
		s.running++
		job.MarkProcessing()
		s.active[job.ID] = job
	} else {
		s.queue = append(s.queue, &queuedJob{job: job, profile: prof})
	}
	s.mu.Unlock()

	if start {
		s.persist(ctx, job)
		s.wg.Add(1)
		go s.runJob(job, prof)
	} else {
		s.logger.Debug("job queued",
			slog.String("job_id", job.ID.String()),
			slog.String("profile", job.Profile),
		)
		s.bus.Publish(Event{Type: EventQueued, JobID: job.ID, MediaID: job.MediaID})
	}
	return job, nil
}

// Cancel cancels a job. A queued job is removed from the queue and never
// starts. A processing job is only marked cancelled: without PID tracking
// the encoder process runs to completion, and its late terminal event
// updates the record without reverting the sticky cancelled status. A
// terminal job yields ErrJobFinished.
func (s *Scheduler) Cancel(ctx context.Context, id models.ULID) error {
	s.mu.Lock()
	for i, q := range s.queue {
		if q.job.ID != id {
			continue
		}
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		q.job.MarkCancelled()
		job := q.job
		s.mu.Unlock()

		s.persist(ctx, job)
		s.bus.Publish(Event{Type: EventCancelled, JobID: job.ID, MediaID: job.MediaID})
		return nil
	}
	if job, ok := s.active[id]; ok {
		if job.IsFinished() {
			s.mu.Unlock()
			return models.ErrJobFinished
		}
		job.MarkCancelled()
		s.mu.Unlock()

		s.logger.Info("processing job cancelled for bookkeeping, encoder runs to completion",
			slog.String("job_id", job.ID.String()),
		)
		s.persist(ctx, job)
		s.bus.Publish(Event{Type: EventCancelled, JobID: job.ID, MediaID: job.MediaID})
		return nil
	}
	s.mu.Unlock()

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.IsFinished() {
		return models.ErrJobFinished
	}

	// Pending in the store but unknown to this scheduler (e.g. left over
	// from a previous run): cancel the record directly.
	job.MarkCancelled()
	s.persist(ctx, job)
	s.bus.Publish(Event{Type: EventCancelled, JobID: job.ID, MediaID: job.MediaID})
	return nil
}

// Stats returns the current running and queued job counts.
func (s *Scheduler) Stats() (running, queued int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, len(s.queue)
}

// Close stops accepting new work from the queue and waits for running
// encoder processes to finish.
func (s *Scheduler) Close() {
	s.stop()
	s.wg.Wait()
}

func (s *Scheduler) runJob(job *models.TranscodeJob, prof Profile) {
	defer s.wg.Done()

	ctx := s.baseCtx
	pl := s.buildPlan(ctx, job, prof)

	var err error
	if len(pl.ladder) > 0 {
		// The master playlist is static: write it up front so players can
		// be pointed at it as soon as the job completes.
		if err = os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err == nil {
			err = WriteMasterPlaylist(job.OutputPath, pl.ladder)
		}
		if err != nil {
			s.bus.Publish(Event{Type: EventFailed, JobID: job.ID, MediaID: job.MediaID, Reason: err.Error()})
		}
	}

	if err == nil {
		err = s.orch.Run(ctx, job, pl.commands, pl.durationSeconds, func(percent int) {
			s.mu.Lock()
			job.SetProgress(percent)
			s.mu.Unlock()
			s.persist(ctx, job)
		})
	}

	s.mu.Lock()
	if err != nil {
		job.MarkFailed(err.Error())
	} else {
		job.MarkCompleted()
	}
	s.mu.Unlock()
	s.persist(ctx, job)

	s.onJobFinished(job)
}

// onJobFinished releases the job's slot and starts the queue head if one is
// waiting. All pops go through the scheduler mutex: concurrent finish
// callbacks can neither exceed MaxConcurrent nor double-pop a job.
func (s *Scheduler) onJobFinished(job *models.TranscodeJob) {
	s.mu.Lock()
	delete(s.active, job.ID)
	s.running--

	var next *queuedJob
	if s.running < s.cfg.MaxConcurrent && len(s.queue) > 0 {
		next = s.queue[0]
		s.queue = s.queue[1:]
		s.running++
		next.job.MarkProcessing()
		s.active[next.job.ID] = next.job
	}
	s.mu.Unlock()

	if next != nil {
		s.persist(s.baseCtx, next.job)
		s.wg.Add(1)
		go s.runJob(next.job, next.profile)
	}
}

// resolveProfile maps the job's profile name to encoder parameters. The hls
// and thumbnail pseudo-profiles build their parameters at plan time.
func (s *Scheduler) resolveProfile(job *models.TranscodeJob) (Profile, error) {
	switch job.Profile {
	case ProfileHLS, ProfileThumbnail:
		return Profile{Name: job.Profile}, nil
	default:
		return s.profiles.Resolve(job.Profile, job.Options)
	}
}

func (s *Scheduler) defaultOutputPath(job *models.TranscodeJob, prof Profile) string {
	base := strings.TrimSuffix(filepath.Base(job.InputPath), filepath.Ext(job.InputPath))
	switch job.Profile {
	case ProfileHLS:
		return filepath.Join(s.cfg.OutputRoot, base+"_hls", "master.m3u8")
	case ProfileThumbnail:
		return filepath.Join(s.cfg.OutputRoot, base+"_thumbnail.jpg")
	default:
		container := prof.Container
		if container == "" {
			container = "mp4"
		}
		return filepath.Join(s.cfg.OutputRoot, fmt.Sprintf("%s_%s.%s", base, prof.Name, container))
	}
}

// checkOutputRoot rejects output paths that resolve outside the configured
// output root, including escapes via "..".
func (s *Scheduler) checkOutputRoot(outputPath string) error {
	root, err := filepath.Abs(s.cfg.OutputRoot)
	if err != nil {
		return fmt.Errorf("resolving output root: %w", err)
	}
	out, err := filepath.Abs(outputPath)
	if err != nil {
		return fmt.Errorf("resolving output path: %w", err)
	}
	rel, err := filepath.Rel(root, out)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", models.ErrOutputOutsideRoot, outputPath)
	}
	return nil
}

// persist writes the job's current state to the store. Store failures are
// logged and surfaced on the log only: a write failure must never stall
// scheduling or fail sibling jobs.
func (s *Scheduler) persist(ctx context.Context, job *models.TranscodeJob) {
	s.mu.Lock()
	snapshot := *job
	s.mu.Unlock()

	if err := s.repo.Update(ctx, &snapshot); err != nil {
		s.logger.Error("persisting job state",
			slog.String("job_id", snapshot.ID.String()),
			slog.String("status", string(snapshot.Status)),
			slog.String("error", err.Error()),
		)
	}
}

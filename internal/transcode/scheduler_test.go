package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvio/streamvio/internal/ffmpeg"
	"github.com/streamvio/streamvio/internal/models"
	"github.com/streamvio/streamvio/internal/repository"
)

// memJobRepo is an in-memory TranscodeJobRepository for scheduler tests.
type memJobRepo struct {
	mu          sync.Mutex
	jobs        map[models.ULID]*models.TranscodeJob
	failUpdates bool
}

var _ repository.TranscodeJobRepository = (*memJobRepo)(nil)

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[models.ULID]*models.TranscodeJob)}
}

func (r *memJobRepo) Create(_ context.Context, job *models.TranscodeJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID.IsZero() {
		job.ID = models.NewULID()
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) Update(_ context.Context, job *models.TranscodeJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates {
		return errors.New("store unavailable")
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, id models.ULID) (*models.TranscodeJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memJobRepo) List(_ context.Context, _ repository.JobFilter) ([]*models.TranscodeJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]*models.TranscodeJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	return jobs, nil
}

func (r *memJobRepo) Count(_ context.Context, _ repository.JobFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.jobs)), nil
}

func (r *memJobRepo) DeleteTerminalBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *memJobRepo) status(t *testing.T, id models.ULID) models.JobStatus {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	require.True(t, ok, "job %s not persisted", id)
	return job.Status
}

// stubProber returns a fixed probe result.
type stubProber struct {
	result *ffmpeg.ProbeResult
	err    error
}

func (p *stubProber) Probe(context.Context, string) (*ffmpeg.ProbeResult, error) {
	return p.result, p.err
}

func probe1080p(durationSeconds string) *ffmpeg.ProbeResult {
	return &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{Duration: durationSeconds},
		Streams: []ffmpeg.ProbeStream{
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080},
			{CodecType: "audio", CodecName: "aac", Channels: 2},
		},
	}
}

// gateRunner blocks each run until released, reporting the output path (the
// final argument) of each run as it starts.
type gateRunner struct {
	started chan string
	release chan struct{}
}

func newGateRunner() *gateRunner {
	return &gateRunner{
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (r *gateRunner) Run(_ context.Context, _ string, args []string, _ func(string)) error {
	r.started <- args[len(args)-1]
	<-r.release
	return nil
}

func (r *gateRunner) awaitStart(t *testing.T) string {
	t.Helper()
	select {
	case out := <-r.started:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an encoder run to start")
		return ""
	}
}

func (r *gateRunner) assertNoStart(t *testing.T) {
	t.Helper()
	select {
	case out := <-r.started:
		t.Fatalf("unexpected encoder run started: %s", out)
	case <-time.After(100 * time.Millisecond):
	}
}

func newTestScheduler(t *testing.T, maxConcurrent int, runner Runner, prober MediaProber) (*Scheduler, *memJobRepo, *Bus) {
	t.Helper()
	repo := newMemJobRepo()
	bus := NewBus(nil)
	cfg := SchedulerConfig{
		Enabled:         true,
		FFmpegPath:      "/usr/bin/ffmpeg",
		OutputRoot:      t.TempDir(),
		MaxConcurrent:   maxConcurrent,
		MaxBitrateKbps:  20000,
		SegmentSeconds:  6,
		ThumbnailWidth:  320,
		ThumbnailHeight: 180,
		HWAccel:         "none",
	}
	s := NewScheduler(cfg, repo, NewProfiles(cfg.MaxBitrateKbps), prober, nil, runner, bus, nil)
	return s, repo, bus
}

func submitJob(t *testing.T, s *Scheduler, input string) *models.TranscodeJob {
	t.Helper()
	job, err := s.Submit(context.Background(), SubmitRequest{
		MediaID:   models.NewULID(),
		InputPath: input,
		Profile:   "standard",
	})
	require.NoError(t, err)
	return job
}

func awaitStatus(t *testing.T, repo *memJobRepo, id models.ULID, want models.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return repo.status(t, id) == want
	}, 2*time.Second, 10*time.Millisecond, "job %s never reached %s", id, want)
}

func TestSubmitValidation(t *testing.T) {
	s, _, _ := newTestScheduler(t, 1, &stubRunner{}, nil)
	ctx := context.Background()

	_, err := s.Submit(ctx, SubmitRequest{MediaID: models.NewULID()})
	assert.ErrorIs(t, err, models.ErrInputPathRequired)

	_, err = s.Submit(ctx, SubmitRequest{InputPath: "/media/a.mkv"})
	assert.ErrorIs(t, err, models.ErrMediaIDRequired)

	_, err = s.Submit(ctx, SubmitRequest{
		MediaID:   models.NewULID(),
		InputPath: "/media/a.mkv",
		Profile:   "no-such-profile",
	})
	assert.ErrorIs(t, err, models.ErrUnknownProfile)

	_, err = s.Submit(ctx, SubmitRequest{
		MediaID:    models.NewULID(),
		InputPath:  "/media/a.mkv",
		OutputPath: "/elsewhere/a.mp4",
	})
	assert.ErrorIs(t, err, models.ErrOutputOutsideRoot)

	_, err = s.Submit(ctx, SubmitRequest{
		MediaID:    models.NewULID(),
		InputPath:  "/media/a.mkv",
		OutputPath: filepath.Join(s.cfg.OutputRoot, "..", "escape.mp4"),
	})
	assert.ErrorIs(t, err, models.ErrOutputOutsideRoot)
}

func TestSubmitDisabled(t *testing.T) {
	s, _, _ := newTestScheduler(t, 1, &stubRunner{}, nil)
	s.cfg.Enabled = false

	_, err := s.Submit(context.Background(), SubmitRequest{
		MediaID:   models.NewULID(),
		InputPath: "/media/a.mkv",
	})
	assert.ErrorIs(t, err, models.ErrTranscodingDisabled)
}

func TestSchedulerConcurrencyBound(t *testing.T) {
	runner := newGateRunner()
	s, _, _ := newTestScheduler(t, 2, runner, nil)
	defer s.Close()

	for _, name := range []string{"a", "b", "c", "d"} {
		submitJob(t, s, "/media/"+name+".mkv")
	}

	// Exactly two jobs run at once; the other two wait in the queue.
	runner.awaitStart(t)
	runner.awaitStart(t)
	runner.assertNoStart(t)

	running, queued := s.Stats()
	assert.Equal(t, 2, running)
	assert.Equal(t, 2, queued)

	// Freeing one slot admits exactly one queued job.
	runner.release <- struct{}{}
	runner.awaitStart(t)
	runner.assertNoStart(t)

	close(runner.release)
}

func TestSchedulerFIFOFairness(t *testing.T) {
	runner := newGateRunner()
	s, _, _ := newTestScheduler(t, 1, runner, nil)
	defer s.Close()

	submitJob(t, s, "/media/first.mkv")
	runner.awaitStart(t)

	submitJob(t, s, "/media/a.mkv")
	submitJob(t, s, "/media/b.mkv")
	submitJob(t, s, "/media/c.mkv")

	runner.release <- struct{}{}
	assert.Contains(t, runner.awaitStart(t), "a_standard")
	runner.release <- struct{}{}
	assert.Contains(t, runner.awaitStart(t), "b_standard")
	runner.release <- struct{}{}
	assert.Contains(t, runner.awaitStart(t), "c_standard")

	close(runner.release)
}

func TestCancelQueuedJobNeverStarts(t *testing.T) {
	runner := newGateRunner()
	s, repo, bus := newTestScheduler(t, 1, runner, nil)
	defer s.Close()

	sub := bus.Subscribe(32)
	defer bus.Unsubscribe(sub.ID)

	submitJob(t, s, "/media/running.mkv")
	runner.awaitStart(t)

	queuedJob := submitJob(t, s, "/media/queued.mkv")
	assert.Equal(t, models.JobStatusPending, queuedJob.Status)

	require.NoError(t, s.Cancel(context.Background(), queuedJob.ID))
	assert.Equal(t, models.JobStatusCancelled, repo.status(t, queuedJob.ID))

	// Draining the queue must not start the cancelled job.
	runner.release <- struct{}{}
	runner.assertNoStart(t)

	require.Eventually(t, func() bool {
		running, queued := s.Stats()
		return running == 0 && queued == 0
	}, 2*time.Second, 10*time.Millisecond)

	close(runner.release)
}

func TestCancelProcessingIsSticky(t *testing.T) {
	runner := newGateRunner()
	s, repo, _ := newTestScheduler(t, 1, runner, nil)
	defer s.Close()

	job := submitJob(t, s, "/media/a.mkv")
	runner.awaitStart(t)

	require.NoError(t, s.Cancel(context.Background(), job.ID))
	assert.Equal(t, models.JobStatusCancelled, repo.status(t, job.ID))

	// The encoder runs to completion; its late success must not revive
	// the cancelled record.
	close(runner.release)
	require.Eventually(t, func() bool {
		running, _ := s.Stats()
		return running == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.JobStatusCancelled, repo.status(t, job.ID))
}

func TestCancelTerminalJob(t *testing.T) {
	s, repo, _ := newTestScheduler(t, 1, &stubRunner{}, nil)
	defer s.Close()

	job := submitJob(t, s, "/media/a.mkv")
	awaitStatus(t, repo, job.ID, models.JobStatusCompleted)

	err := s.Cancel(context.Background(), job.ID)
	assert.ErrorIs(t, err, models.ErrJobFinished)
}

func TestCancelUnknownJob(t *testing.T) {
	s, _, _ := newTestScheduler(t, 1, &stubRunner{}, nil)
	defer s.Close()

	err := s.Cancel(context.Background(), models.NewULID())
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestSchedulerSingleFileEndToEnd(t *testing.T) {
	runner := &stubRunner{
		lines: [][]string{{
			"frame=  900 fps= 30 time=00:01:00.00 bitrate=2500kbits/s",
		}},
	}
	prober := &stubProber{result: probe1080p("120.0")}
	s, repo, bus := newTestScheduler(t, 1, runner, prober)
	defer s.Close()

	sub := bus.Subscribe(64)
	defer bus.Unsubscribe(sub.ID)

	job := submitJob(t, s, "/media/movie.mkv")
	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.True(t, strings.HasSuffix(job.OutputPath, "movie_standard.mp4"))

	awaitStatus(t, repo, job.ID, models.JobStatusCompleted)

	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Progress)

	var sawProgress50, sawCompleted bool
	for _, ev := range collectEvents(sub) {
		switch {
		case ev.Type == EventProgress && ev.Percent == 50:
			sawProgress50 = true
		case ev.Type == EventCompleted:
			sawCompleted = true
			assert.True(t, strings.HasSuffix(ev.OutputPath, ".mp4"))
		}
	}
	assert.True(t, sawProgress50, "expected a progress(50) event")
	assert.True(t, sawCompleted, "expected a completed event")

	// 1080p source downscaled to the standard profile's 720p cap.
	require.Len(t, runner.calls, 1)
	args := strings.Join(runner.calls[0], " ")
	assert.Contains(t, args, "scale=1280:720")
	assert.Contains(t, args, "-c:v libx264")
	assert.Contains(t, args, "-b:v 2500k")
}

func TestSchedulerHLSEndToEnd(t *testing.T) {
	runner := &stubRunner{}
	prober := &stubProber{result: probe1080p("120.0")}
	s, repo, _ := newTestScheduler(t, 1, runner, prober)
	defer s.Close()

	job, err := s.Submit(context.Background(), SubmitRequest{
		MediaID:   models.NewULID(),
		InputPath: "/media/show.mkv",
		Profile:   ProfileHLS,
		Options:   models.JobOptions{"max_height": 720},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(job.OutputPath, filepath.Join("show_hls", "master.m3u8")))

	awaitStatus(t, repo, job.ID, models.JobStatusCompleted)

	// One encoder run per rung: 360p, 480p, 720p.
	require.Len(t, runner.calls, 3)
	first := strings.Join(runner.calls[0], " ")
	assert.Contains(t, first, "scale=640:360")
	assert.Contains(t, first, "segment_0_%03d.ts")
	assert.True(t, strings.HasSuffix(runner.calls[0][len(runner.calls[0])-1], "stream_0.m3u8"))
	last := strings.Join(runner.calls[2], " ")
	assert.Contains(t, last, "scale=1280:720")
	assert.Contains(t, last, "-f hls")

	data, err := os.ReadFile(job.OutputPath)
	require.NoError(t, err)
	master := string(data)
	assert.Contains(t, master, "#EXTM3U")
	assert.Contains(t, master, "stream_0.m3u8")
	assert.Contains(t, master, "stream_2.m3u8")
	assert.Contains(t, master, "1280x720")
}

func TestSchedulerThumbnailJob(t *testing.T) {
	runner := &stubRunner{}
	s, repo, _ := newTestScheduler(t, 1, runner, nil)
	defer s.Close()

	job, err := s.Submit(context.Background(), SubmitRequest{
		MediaID:   models.NewULID(),
		InputPath: "/media/movie.mkv",
		Profile:   ProfileThumbnail,
		Options:   models.JobOptions{"offset_seconds": 12.5},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(job.OutputPath, "movie_thumbnail.jpg"))

	awaitStatus(t, repo, job.ID, models.JobStatusCompleted)

	require.Len(t, runner.calls, 1)
	args := strings.Join(runner.calls[0], " ")
	assert.Contains(t, args, "-ss 12.500")
	assert.Contains(t, args, "-vframes 1")
	assert.Contains(t, args, "scale=320:180")
}

func TestSchedulerFailedJob(t *testing.T) {
	runner := &stubRunner{errs: []error{errors.New("ffmpeg exited with code 1")}}
	s, repo, _ := newTestScheduler(t, 1, runner, nil)
	defer s.Close()

	job := submitJob(t, s, "/media/broken.mkv")
	awaitStatus(t, repo, job.ID, models.JobStatusFailed)

	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.Error, "exited with code 1")
}

func TestSchedulerSurvivesStoreFailures(t *testing.T) {
	runner := newGateRunner()
	s, repo, _ := newTestScheduler(t, 1, runner, nil)
	defer s.Close()

	submitJob(t, s, "/media/a.mkv")
	runner.awaitStart(t)

	repo.mu.Lock()
	repo.failUpdates = true
	repo.mu.Unlock()

	// Queue keeps draining even though every state write fails.
	submitJob(t, s, "/media/b.mkv")
	runner.release <- struct{}{}
	runner.awaitStart(t)

	close(runner.release)
	require.Eventually(t, func() bool {
		running, queued := s.Stats()
		return running == 0 && queued == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerProbeFailureDisablesProgress(t *testing.T) {
	runner := &stubRunner{
		lines: [][]string{{"frame= 100 time=00:01:00.00"}},
	}
	prober := &stubProber{err: errors.New("ffprobe failed")}
	s, repo, bus := newTestScheduler(t, 1, runner, prober)
	defer s.Close()

	sub := bus.Subscribe(32)
	defer bus.Unsubscribe(sub.ID)

	job := submitJob(t, s, "/media/odd.mkv")
	awaitStatus(t, repo, job.ID, models.JobStatusCompleted)

	for _, ev := range collectEvents(sub) {
		assert.NotEqual(t, EventProgress, ev.Type,
			"no progress events without a known duration")
	}
}

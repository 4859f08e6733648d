package transcode

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvio/streamvio/internal/models"
)

// stubRunner feeds scripted stderr lines to the orchestrator and returns a
// scripted error, recording every invocation.
type stubRunner struct {
	lines [][]string
	errs  []error
	calls [][]string
}

func (s *stubRunner) Run(_ context.Context, _ string, args []string, onLine func(string)) error {
	call := len(s.calls)
	s.calls = append(s.calls, args)
	if call < len(s.lines) {
		for _, line := range s.lines[call] {
			onLine(line)
		}
	}
	if call < len(s.errs) {
		return s.errs[call]
	}
	return nil
}

func newTestJob(t *testing.T) *models.TranscodeJob {
	t.Helper()
	return &models.TranscodeJob{
		BaseModel:  models.BaseModel{ID: models.NewULID()},
		MediaID:    models.NewULID(),
		InputPath:  "/media/movie.mkv",
		OutputPath: filepath.Join(t.TempDir(), "out", "movie_standard.mp4"),
		Profile:    "standard",
		Status:     models.JobStatusProcessing,
	}
}

func collectEvents(sub *Subscriber) []Event {
	var events []Event
	for {
		select {
		case ev := <-sub.Events:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestOrchestratorRunSuccess(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(32)
	defer bus.Unsubscribe(sub.ID)

	runner := &stubRunner{
		lines: [][]string{{
			"frame=  100 fps= 25 time=00:00:30.00 bitrate=2000kbits/s",
			"frame=  200 fps= 25 time=00:01:00.00 bitrate=2000kbits/s",
			"frame=  400 fps= 25 time=00:02:00.00 bitrate=2000kbits/s",
		}},
	}
	orch := NewOrchestrator("/usr/bin/ffmpeg", runner, bus, nil)
	job := newTestJob(t)

	var seen []int
	err := orch.Run(context.Background(), job, [][]string{{"-i", job.InputPath}}, 120, func(p int) {
		seen = append(seen, p)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{25, 50, 100}, seen)

	events := collectEvents(sub)
	require.Len(t, events, 5)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, EventProgress, events[1].Type)
	assert.Equal(t, 25, events[1].Percent)
	assert.Equal(t, 50, events[2].Percent)
	assert.Equal(t, 100, events[3].Percent)
	assert.Equal(t, EventCompleted, events[4].Type)
	assert.Equal(t, job.OutputPath, events[4].OutputPath)

	// Output parent directory was created before spawning.
	assert.DirExists(t, filepath.Dir(job.OutputPath))
}

func TestOrchestratorRunFailure(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(32)
	defer bus.Unsubscribe(sub.ID)

	runner := &stubRunner{errs: []error{errors.New("ffmpeg exited with code 1")}}
	orch := NewOrchestrator("/usr/bin/ffmpeg", runner, bus, nil)
	job := newTestJob(t)

	err := orch.Run(context.Background(), job, [][]string{{"-i", job.InputPath}}, 120, nil)
	require.Error(t, err)

	events := collectEvents(sub)
	require.Len(t, events, 2)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, EventFailed, events[1].Type)
	assert.Contains(t, events[1].Reason, "exited with code 1")
}

func TestOrchestratorUnknownDurationNoProgress(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(32)
	defer bus.Unsubscribe(sub.ID)

	runner := &stubRunner{
		lines: [][]string{{"frame=  100 fps= 25 time=00:00:30.00 bitrate=N/A"}},
	}
	orch := NewOrchestrator("/usr/bin/ffmpeg", runner, bus, nil)
	job := newTestJob(t)

	require.NoError(t, orch.Run(context.Background(), job, [][]string{{"-i", job.InputPath}}, 0, nil))

	events := collectEvents(sub)
	require.Len(t, events, 2)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, EventCompleted, events[1].Type)
}

func TestOrchestratorProgressMonotonic(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(32)
	defer bus.Unsubscribe(sub.ID)

	// Out-of-order time markers must never produce a regressing percentage.
	runner := &stubRunner{
		lines: [][]string{{
			"time=00:01:00.00",
			"time=00:00:30.00",
			"time=00:01:00.00",
			"time=00:01:30.00",
		}},
	}
	orch := NewOrchestrator("/usr/bin/ffmpeg", runner, bus, nil)
	job := newTestJob(t)

	var seen []int
	require.NoError(t, orch.Run(context.Background(), job, [][]string{{"-i", job.InputPath}}, 120, func(p int) {
		seen = append(seen, p)
	}))
	assert.Equal(t, []int{50, 75}, seen)
}

func TestOrchestratorMultiCommandProgress(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(64)
	defer bus.Unsubscribe(sub.ID)

	// Two renditions of a 120s source: the second command's progress lands
	// in the upper half of the range.
	runner := &stubRunner{
		lines: [][]string{
			{"time=00:01:00.00", "time=00:02:00.00"},
			{"time=00:01:00.00", "time=00:02:00.00"},
		},
	}
	orch := NewOrchestrator("/usr/bin/ffmpeg", runner, bus, nil)
	job := newTestJob(t)

	var seen []int
	require.NoError(t, orch.Run(context.Background(), job, [][]string{
		{"-i", job.InputPath, "first"},
		{"-i", job.InputPath, "second"},
	}, 120, func(p int) {
		seen = append(seen, p)
	}))

	assert.Equal(t, []int{25, 50, 75, 100}, seen)
	assert.Len(t, runner.calls, 2)
}

func TestOrchestratorStopsAfterFailedCommand(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(32)
	defer bus.Unsubscribe(sub.ID)

	runner := &stubRunner{errs: []error{errors.New("ffmpeg exited with code 187")}}
	orch := NewOrchestrator("/usr/bin/ffmpeg", runner, bus, nil)
	job := newTestJob(t)

	err := orch.Run(context.Background(), job, [][]string{
		{"first"},
		{"second"},
	}, 120, nil)
	require.Error(t, err)

	// The second command never runs.
	assert.Len(t, runner.calls, 1)

	events := collectEvents(sub)
	require.NotEmpty(t, events)
	assert.Equal(t, EventFailed, events[len(events)-1].Type)
}

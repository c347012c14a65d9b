package detect

import (
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

// stubDetector returns an argv that runs the given shell script instead of
// the real pipeline. Job arguments end up as positional parameters of the
// script, where they are ignored.
func stubDetector(script string) []string {
	return []string{"sh", "-c", script}
}

func newTestManager(t *testing.T, script string) *Manager {
	m, err := NewManager(logs.NewTestingLog(t), stubDetector(script))
	require.NoError(t, err)
	return m
}

// drain collects all events until the job's stream closes.
func drain(t *testing.T, job *Job) []Event {
	events := []Event{}
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-job.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for job %v to finish", job.ID)
		}
	}
}

func TestJobProgressAndComplete(t *testing.T) {
	script := `echo 'PROGRESS:{"type":"progress","message":"frame 10","frame":10,"progress":0.1}'
echo 'this line is detector noise'
echo 'PROGRESS:{"type":"progress","frame":20,"progress":0.2}'`
	m := newTestManager(t, script)

	job, err := m.Start("0001", "/tmp/MVI_0001_proxy.mp4", Params{})
	require.NoError(t, err)
	require.Equal(t, 2.0, job.Params.Hertz)
	require.Equal(t, 0.75, job.Params.Confidence)

	events := drain(t, job)
	require.Len(t, events, 3)
	require.Equal(t, "progress", events[0].Type)
	require.Equal(t, 10, events[0].Frame)
	require.Equal(t, "progress", events[1].Type)
	require.Equal(t, EventComplete, events[2].Type)
	require.Equal(t, StatusCompleted, job.Status())

	require.Equal(t, job, m.Job(job.ID))
	require.Nil(t, m.Job("no-such-job"))
}

func TestJobFailure(t *testing.T) {
	m := newTestManager(t, `echo 'PROGRESS:{"type":"progress","frame":1}'; exit 3`)

	job, err := m.Start("0002", "/tmp/MVI_0002_proxy.mp4", Params{})
	require.NoError(t, err)

	events := drain(t, job)
	require.Equal(t, EventError, events[len(events)-1].Type)
	require.Equal(t, StatusFailed, job.Status())
}

func TestCancel(t *testing.T) {
	// Redirect sleep's stdout so our pipe sees EOF as soon as sh is killed
	m := newTestManager(t, `echo 'PROGRESS:{"type":"progress","frame":1}'; sleep 30 >/dev/null`)

	job, err := m.Start("0003", "/tmp/MVI_0003_proxy.mp4", Params{})
	require.NoError(t, err)

	// Wait for the first event so we know the process is alive
	ev := <-job.Events()
	require.Equal(t, "progress", ev.Type)
	require.Equal(t, StatusRunning, job.Status())

	require.True(t, m.Cancel(job.ID))

	events := drain(t, job)
	require.Equal(t, EventCancelled, events[len(events)-1].Type)
	require.Equal(t, StatusCancelled, job.Status())

	// Cancelling a finished job is a no-op
	require.False(t, m.Cancel(job.ID))
	require.False(t, m.Cancel("no-such-job"))
}

func TestOneJobPerVideo(t *testing.T) {
	m := newTestManager(t, `sleep 30 >/dev/null`)

	job, err := m.Start("0004", "/tmp/MVI_0004_proxy.mp4", Params{})
	require.NoError(t, err)

	_, err = m.Start("0004", "/tmp/MVI_0004_proxy.mp4", Params{})
	require.Error(t, err)

	other, err := m.Start("0005", "/tmp/MVI_0005_proxy.mp4", Params{})
	require.NoError(t, err)

	m.CancelAll()
	drain(t, job)
	drain(t, other)
	require.Equal(t, StatusCancelled, job.Status())
	require.Equal(t, StatusCancelled, other.Status())
}

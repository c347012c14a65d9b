package detect

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
)

const progressPrefix = "PROGRESS:"

// Each job buffers this many events for the consumer. If the consumer falls
// behind, progress events are dropped (the terminal event never is).
const eventBufferSize = 256

// Job is one running (or finished) detector process.
type Job struct {
	ID        string
	Code      string
	Params    Params
	StartedAt time.Time

	cancel context.CancelFunc
	events chan Event

	lock   sync.Mutex
	status Status
}

// Status is the current state of the job.
func (j *Job) Status() Status {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.status
}

func (j *Job) setStatus(s Status) {
	j.lock.Lock()
	j.status = s
	j.lock.Unlock()
}

// Events returns the job's progress stream. The channel is closed after the
// terminal event has been delivered.
func (j *Job) Events() <-chan Event {
	return j.events
}

// Info returns a snapshot of the job for API consumption.
func (j *Job) Info() JobInfo {
	return JobInfo{
		ID:        j.ID,
		Code:      j.Code,
		Status:    j.Status(),
		Params:    j.Params,
		StartedAt: j.StartedAt,
	}
}

// Manager starts detector processes and tracks them by job ID.
// Finished jobs remain queryable until the process exits.
type Manager struct {
	log          logs.Log
	detectorArgv []string

	lock sync.Mutex
	jobs map[string]*Job
}

// NewManager creates a job manager that launches detectorArgv (program plus
// leading arguments) for each job, appending the job's own arguments.
func NewManager(log logs.Log, detectorArgv []string) (*Manager, error) {
	if len(detectorArgv) == 0 {
		return nil, fmt.Errorf("detector command is empty")
	}
	return &Manager{
		log:          log,
		detectorArgv: detectorArgv,
		jobs:         map[string]*Job{},
	}, nil
}

// Start launches a detector run for the given video path and returns the job.
// Only one job per video code may run at a time.
func (m *Manager) Start(code, videoPath string, params Params) (*Job, error) {
	params = params.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	m.lock.Lock()
	for _, other := range m.jobs {
		if other.Code == code && !other.Status().IsTerminal() {
			m.lock.Unlock()
			cancel()
			return nil, fmt.Errorf("a detection job for video %v is already running", code)
		}
	}
	job := &Job{
		ID:        uuid.NewString(),
		Code:      code,
		Params:    params,
		StartedAt: time.Now(),
		cancel:    cancel,
		events:    make(chan Event, eventBufferSize),
		status:    StatusRunning,
	}
	m.jobs[job.ID] = job
	m.lock.Unlock()

	args := append([]string{}, m.detectorArgv[1:]...)
	args = append(args, videoPath,
		"--hertz", strconv.FormatFloat(params.Hertz, 'f', -1, 64),
		"--confidence", strconv.FormatFloat(params.Confidence, 'f', -1, 64),
		"--duration", strconv.FormatFloat(params.Duration, 'f', -1, 64),
		"--batch-size", strconv.Itoa(params.BatchSize),
	)
	if params.IsMirror {
		args = append(args, "--mirror")
	}
	if params.IsSocial {
		args = append(args, "--social")
	}
	if params.IsControl {
		args = append(args, "--control")
	}

	cmd := exec.CommandContext(ctx, m.detectorArgv[0], args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		m.remove(job.ID)
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		m.remove(job.ID)
		return nil, fmt.Errorf("failed to launch detector: %w", err)
	}
	m.log.Infof("Detection job %v started for video %v (pid %v)", job.ID, code, cmd.Process.Pid)

	go m.run(ctx, job, cmd, stdout)
	return job, nil
}

// Job returns the job with the given ID, or nil.
func (m *Manager) Job(id string) *Job {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.jobs[id]
}

// Cancel asks the job's process to stop. The job transitions to cancelled
// once the process has actually exited, so a subsequent Status() may still
// report running for a moment.
func (m *Manager) Cancel(id string) bool {
	job := m.Job(id)
	if job == nil || job.Status().IsTerminal() {
		return false
	}
	m.log.Infof("Cancelling detection job %v", id)
	job.cancel()
	return true
}

// CancelAll cancels every running job. Used during shutdown.
func (m *Manager) CancelAll() {
	m.lock.Lock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.lock.Unlock()
	for _, j := range jobs {
		if !j.Status().IsTerminal() {
			j.cancel()
		}
	}
}

func (m *Manager) remove(id string) {
	m.lock.Lock()
	delete(m.jobs, id)
	m.lock.Unlock()
}

// run consumes the detector's stdout until the process exits, then emits the
// terminal event and closes the stream.
func (m *Manager) run(ctx context.Context, job *Job, cmd *exec.Cmd, stdout io.Reader) {
	defer close(job.events)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, progressPrefix) {
			continue
		}
		ev := Event{}
		if err := json.Unmarshal([]byte(line[len(progressPrefix):]), &ev); err != nil {
			m.log.Warnf("Job %v: unparseable progress line: %v", job.ID, err)
			continue
		}
		job.send(ev)
	}

	err := cmd.Wait()
	switch {
	case ctx.Err() != nil:
		job.setStatus(StatusCancelled)
		job.send(Event{Type: EventCancelled, Message: "detection cancelled"})
		m.log.Infof("Detection job %v cancelled", job.ID)
	case err != nil:
		job.setStatus(StatusFailed)
		job.send(Event{Type: EventError, Message: err.Error()})
		m.log.Errorf("Detection job %v failed: %v", job.ID, err)
	default:
		job.setStatus(StatusCompleted)
		job.send(Event{Type: EventComplete, Message: "detection complete"})
		m.log.Infof("Detection job %v completed", job.ID)
	}
	job.cancel()
}

// send delivers an event without ever blocking the reader loop. If the buffer
// is full we evict the oldest event, so the terminal event always lands.
func (j *Job) send(ev Event) {
	for {
		select {
		case j.events <- ev:
			return
		default:
			select {
			case <-j.events:
			default:
			}
		}
	}
}

package detect

// Package detect runs the external detector pipeline as background jobs, and
// relays its progress output as an event stream. The detector itself is a
// black box to us: we hand it a video code and parameters, and it writes the
// keyframe document. We only track the process and its progress lines.

import (
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true once a job can no longer change state.
func (s Status) IsTerminal() bool {
	return s != StatusRunning
}

// Event is one progress message from the detector. The detector emits these
// as JSON on stdout, prefixed with "PROGRESS:". Every job's stream ends with
// exactly one terminal event: complete, error or cancelled.
type Event struct {
	Type     string  `json:"type"`
	Message  string  `json:"message,omitempty"`
	Frame    int     `json:"frame,omitempty"`
	Progress float64 `json:"progress,omitempty"`
}

const (
	EventComplete  = "complete"
	EventError     = "error"
	EventCancelled = "cancelled"
	EventHeartbeat = "heartbeat"
)

// Params configures one detector run. Zero values are replaced by the
// defaults of the pipeline.
type Params struct {
	Hertz      float64 `json:"hertz"`      // Detection sampling rate
	Confidence float64 `json:"confidence"` // Detector confidence threshold
	Duration   float64 `json:"duration"`   // Max duration to process, seconds
	BatchSize  int     `json:"batchSize"`  // Frames per inference batch
	IsMirror   bool    `json:"isMirror,omitempty"`
	IsSocial   bool    `json:"isSocial,omitempty"`
	IsControl  bool    `json:"isControl,omitempty"`
}

func DefaultParams() Params {
	return Params{
		Hertz:      2,
		Confidence: 0.75,
		Duration:   10 * 3600, // Max duration of 10 hours
		BatchSize:  1,
	}
}

// withDefaults fills in zero values
func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.Hertz == 0 {
		p.Hertz = def.Hertz
	}
	if p.Confidence == 0 {
		p.Confidence = def.Confidence
	}
	if p.Duration == 0 {
		p.Duration = def.Duration
	}
	if p.BatchSize == 0 {
		p.BatchSize = def.BatchSize
	}
	return p
}

// JobInfo is the externally visible state of a job.
type JobInfo struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Status    Status    `json:"status"`
	Params    Params    `json:"params"`
	StartedAt time.Time `json:"startedAt"`
}

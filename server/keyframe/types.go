package keyframe

// Package keyframe owns the per-video annotation document: the detections
// that the detector sampled at a fixed rate, and the editing operations that
// curators apply to them afterwards.

import (
	"fmt"
	"sort"

	"github.com/tanklab/octowatch/pkg/nn"
)

// Side identifies one half of the observation tank. The two halves are
// independent detection channels.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

func ParseSide(s string) (Side, error) {
	switch s {
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	}
	return "", fmt.Errorf("%w: invalid side '%v' (expected 'left' or 'right')", ErrInvalidInput, s)
}

// ParseSides parses a side selector: "left", "right", or "both".
func ParseSides(s string) ([]Side, error) {
	if s == "both" {
		return []Side{SideLeft, SideRight}, nil
	}
	side, err := ParseSide(s)
	if err != nil {
		return nil, err
	}
	return []Side{side}, nil
}

// BoundingBox is a single detection in normalized full-frame coordinates.
type BoundingBox struct {
	XMin         float32 `json:"x_min"`
	YMin         float32 `json:"y_min"`
	XMax         float32 `json:"x_max"`
	YMax         float32 `json:"y_max"`
	Confidence   float32 `json:"confidence"`
	Side         Side    `json:"side"`
	Interpolated bool    `json:"interpolated,omitempty"`
	Edited       bool    `json:"edited,omitempty"`
}

func (b *BoundingBox) Rect() nn.Rect {
	return nn.Rect{X0: b.XMin, Y0: b.YMin, X1: b.XMax, Y1: b.YMax}
}

// Validate rejects degenerate or out-of-range boxes before they reach storage.
func (b *BoundingBox) Validate() error {
	if !(b.XMin >= 0 && b.XMin < b.XMax && b.XMax <= 1) {
		return fmt.Errorf("%w: invalid box x range [%v, %v]", ErrInvalidInput, b.XMin, b.XMax)
	}
	if !(b.YMin >= 0 && b.YMin < b.YMax && b.YMax <= 1) {
		return fmt.Errorf("%w: invalid box y range [%v, %v]", ErrInvalidInput, b.YMin, b.YMax)
	}
	if b.Confidence < 0 || b.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidInput, b.Confidence)
	}
	return nil
}

// UnionDetections collapses a detection list into a single box: nil for an
// empty list, the sole element for a singleton, otherwise the min/max envelope
// with the confidence averaged over all inputs. The side is taken from the
// first element (a detection list never mixes sides).
func UnionDetections(dets []BoundingBox) *BoundingBox {
	if len(dets) == 0 {
		return nil
	}
	if len(dets) == 1 {
		box := dets[0]
		return &box
	}
	envelope := dets[0].Rect()
	confidence := dets[0].Confidence
	for _, d := range dets[1:] {
		envelope = envelope.Union(d.Rect())
		confidence += d.Confidence
	}
	return &BoundingBox{
		XMin:       envelope.X0,
		YMin:       envelope.Y0,
		XMax:       envelope.X1,
		YMax:       envelope.Y1,
		Confidence: confidence / float32(len(dets)),
		Side:       dets[0].Side,
	}
}

// Keyframe is one sampled video frame. The HasLeftOctopus/HasRightOctopus
// summaries must always equal the non-emptiness of the corresponding list,
// so every mutation must go through SetDetections.
type Keyframe struct {
	Timestamp       float64       `json:"timestamp"`
	LeftDetections  []BoundingBox `json:"left_detections"`
	RightDetections []BoundingBox `json:"right_detections"`
	HasLeftOctopus  bool          `json:"has_left_octopus"`
	HasRightOctopus bool          `json:"has_right_octopus"`
}

func (k *Keyframe) Detections(side Side) []BoundingBox {
	if side == SideLeft {
		return k.LeftDetections
	}
	return k.RightDetections
}

// SetDetections replaces a side's detection list and keeps the boolean
// summary in sync with it.
func (k *Keyframe) SetDetections(side Side, dets []BoundingBox) {
	if side == SideLeft {
		k.LeftDetections = dets
		k.HasLeftOctopus = len(dets) > 0
	} else {
		k.RightDetections = dets
		k.HasRightOctopus = len(dets) > 0
	}
}

// FirstDetection returns the first detection on the given side, or nil.
func (k *Keyframe) FirstDetection(side Side) *BoundingBox {
	dets := k.Detections(side)
	if len(dets) == 0 {
		return nil
	}
	return &dets[0]
}

type VideoInfo struct {
	Filename             string  `json:"filename,omitempty"`
	FPS                  float64 `json:"fps"`
	Width                int     `json:"width"`
	Height               int     `json:"height"`
	DurationProcessed    float64 `json:"duration_processed"`
	TotalFramesProcessed int     `json:"total_frames_processed"`
}

// TankBBox is the detection region in pixel coordinates. CenterX splits the
// tank into its left and right halves.
type TankBBox struct {
	XMin    int `json:"x_min"`
	YMin    int `json:"y_min"`
	XMax    int `json:"x_max"`
	YMax    int `json:"y_max"`
	CenterX int `json:"center_x"`
}

type TankInfo struct {
	BBox TankBBox `json:"bbox"`
}

// DetectionParams echoes the configuration of the detector run that produced
// the document.
type DetectionParams struct {
	Object              string  `json:"object,omitempty"`
	Hertz               float64 `json:"hertz,omitempty"`
	MaxDuration         float64 `json:"max_duration,omitempty"`
	Model               string  `json:"model,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	BatchSize           int     `json:"batch_size,omitempty"`
	IsMirror            bool    `json:"is_mirror,omitempty"`
	IsSocial            bool    `json:"is_social,omitempty"`
	IsControl           bool    `json:"is_control,omitempty"`
}

type ProcessingStats struct {
	ProcessingTime       float64 `json:"processing_time"`
	RealTimeRatio        float64 `json:"real_time_ratio"`
	TotalKeyframes       int     `json:"total_keyframes"`
	TotalLeftDetections  int     `json:"total_left_detections"`
	TotalRightDetections int     `json:"total_right_detections"`
}

// Document is the full per-video annotation artifact. It is created once by
// the detector, then mutated in place by the edit engine. The Keyframes map
// is keyed by frame index; encoding/json round-trips the integer keys as the
// strings that the detector writes.
type Document struct {
	VideoInfo       VideoInfo         `json:"video_info"`
	TankInfo        TankInfo          `json:"tank_info"`
	DetectionParams DetectionParams   `json:"detection_params"`
	ProcessingStats *ProcessingStats  `json:"processing_stats,omitempty"`
	Keyframes       map[int]*Keyframe `json:"keyframes"`
}

// SortedFrames returns all frame indices in ascending order.
// Frame indices are monotonic but not contiguous (sampled at the detection rate).
func (d *Document) SortedFrames() []int {
	frames := make([]int, 0, len(d.Keyframes))
	for idx := range d.Keyframes {
		frames = append(frames, idx)
	}
	sort.Ints(frames)
	return frames
}

// FramesInRange returns the frame indices whose timestamps fall inside
// [startTime, endTime], ascending.
func (d *Document) FramesInRange(startTime, endTime float64) []int {
	frames := []int{}
	for _, idx := range d.SortedFrames() {
		ts := d.Keyframes[idx].Timestamp
		if ts >= startTime && ts <= endTime {
			frames = append(frames, idx)
		}
	}
	return frames
}

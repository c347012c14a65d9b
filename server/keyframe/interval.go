package keyframe

import (
	"fmt"
	"math"

	"github.com/cyclopcam/logs"
)

// DefaultSimilarityThreshold is the IoU above which two consecutive
// detections are considered the same resting animal for interval expansion.
const DefaultSimilarityThreshold = 0.8

// Interval is a contiguous run of keyframes whose detections stay similar to
// a reference detection. Frame bounds are inclusive.
type Interval struct {
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Frames     int     `json:"frames"`
}

// Locate finds the keyframe nearest to 'timestamp' and expands it backward
// and forward while every requested side's first detection keeps an IoU of at
// least 'threshold' against the reference box at the nearest keyframe.
//
// Consecutive frames showing the same stationary or slow-moving animal are
// treated as one semantic unit for bulk edits; IoU continuity stands in for
// tracked object identity.
//
// A requested side with no detection at the nearest keyframe contributes no
// reference box and does not constrain the scan. If no requested side has a
// detection there, the locator fails with ErrNotFound.
func Locate(log logs.Log, doc *Document, timestamp float64, sides []Side, threshold float32) (*Interval, error) {
	if len(doc.Keyframes) == 0 {
		return nil, fmt.Errorf("%w: document has no keyframes", ErrNotFound)
	}
	if len(sides) == 0 {
		return nil, fmt.Errorf("%w: no side requested", ErrInvalidInput)
	}

	// Sorting first makes the equidistant tie-break deterministic:
	// the earliest frame index wins.
	frames := doc.SortedFrames()
	nearest := 0
	bestDelta := math.Inf(1)
	for i, idx := range frames {
		delta := math.Abs(doc.Keyframes[idx].Timestamp - timestamp)
		if delta < bestDelta {
			bestDelta = delta
			nearest = i
		}
	}

	refs := map[Side]*BoundingBox{}
	for _, side := range sides {
		if box := doc.Keyframes[frames[nearest]].FirstDetection(side); box != nil {
			refs[side] = box
		}
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no detection on any requested side near t=%.2fs", ErrNotFound, timestamp)
	}

	log.Debugf("Interval scan from frame %v (t=%.2fs), %v reference side(s), IoU threshold %.2f",
		frames[nearest], doc.Keyframes[frames[nearest]].Timestamp, len(refs), threshold)

	similar := func(k *Keyframe) bool {
		for side, ref := range refs {
			box := k.FirstDetection(side)
			if box == nil || box.Rect().IOU(ref.Rect()) < threshold {
				return false
			}
		}
		return true
	}

	start := nearest
	for start > 0 && similar(doc.Keyframes[frames[start-1]]) {
		start--
	}
	end := nearest
	for end < len(frames)-1 && similar(doc.Keyframes[frames[end+1]]) {
		end++
	}

	return &Interval{
		StartFrame: frames[start],
		EndFrame:   frames[end],
		StartTime:  doc.Keyframes[frames[start]].Timestamp,
		EndTime:    doc.Keyframes[frames[end]].Timestamp,
		Frames:     end - start + 1,
	}, nil
}

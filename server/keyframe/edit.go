package keyframe

import (
	"fmt"
)

// OpKind selects the edit engine operation.
type OpKind string

const (
	// OpDelete clears the selected sides' detections in the time range.
	OpDelete OpKind = "delete"
	// OpEdit replaces the selected sides' detections with caller-supplied boxes.
	OpEdit OpKind = "edit"
	// OpInfill interpolates detections across the time range from its
	// non-empty boundary keyframes.
	OpInfill OpKind = "infill"
	// OpCleanup reduces multi-detection keyframes to the single most
	// plausible box, document-wide.
	OpCleanup OpKind = "cleanup"
)

// DefaultEditConfidence is assigned to a replacement box whose confidence the
// caller left unset. User-drawn corrections get full confidence instead.
const DefaultEditConfidence = 0.9
const UserDrawnConfidence = 1.0

// EditOp is one edit engine call: an operation, an inclusive time range, and
// a side selector. For OpEdit, Boxes carries one replacement box per
// requested side.
type EditOp struct {
	Kind      OpKind
	StartTime float64
	EndTime   float64
	Sides     []Side
	Boxes     map[Side]BoundingBox
}

// EditResult reports what an edit touched, and the backup that can undo it.
type EditResult struct {
	Affected map[Side]int `json:"affected"`
	Backup   string       `json:"backup"`
}

func (op *EditOp) validate() error {
	switch op.Kind {
	case OpDelete, OpEdit, OpInfill, OpCleanup:
	default:
		return fmt.Errorf("%w: unknown operation '%v'", ErrInvalidInput, op.Kind)
	}
	if len(op.Sides) == 0 {
		return fmt.Errorf("%w: no side selected", ErrInvalidInput)
	}
	if op.Kind != OpCleanup && op.EndTime < op.StartTime {
		return fmt.Errorf("%w: end time %.3f before start time %.3f", ErrInvalidInput, op.EndTime, op.StartTime)
	}
	if op.Kind == OpEdit {
		// The whole call is rejected before any mutation if any requested
		// side's box is missing or invalid.
		for _, side := range op.Sides {
			box, ok := op.Boxes[side]
			if !ok {
				return fmt.Errorf("%w: no replacement box supplied for side %v", ErrInvalidInput, side)
			}
			if err := box.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Apply runs one edit operation against the document for 'code' under the
// store's backup discipline: snapshot, mutate in memory, save. A failed save
// restores the snapshot before the error is surfaced.
func (s *Store) Apply(code string, op EditOp) (*EditResult, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}
	doc, err := s.Load(code)
	if err != nil {
		return nil, err
	}
	backup, err := s.Snapshot(code)
	if err != nil {
		return nil, err
	}

	var affected map[Side]int
	switch op.Kind {
	case OpDelete:
		affected = deleteRange(doc, op)
	case OpEdit:
		affected = replaceRange(doc, op)
	case OpInfill:
		affected = infillRange(doc, op)
	case OpCleanup:
		affected = dedupDetections(doc, op.Sides)
	}

	if err := s.Save(code, doc, backup); err != nil {
		return nil, err
	}

	total := 0
	for _, n := range affected {
		total += n
	}
	s.log.Infof("Applied %v to keyframes %v: %v detection(s) affected, backup %v", op.Kind, code, total, backup)
	return &EditResult{Affected: affected, Backup: backup}, nil
}

// deleteRange clears detections per selected side, counting the cleared
// detections for reporting.
func deleteRange(doc *Document, op EditOp) map[Side]int {
	affected := map[Side]int{}
	for _, side := range op.Sides {
		affected[side] = 0
	}
	for _, idx := range doc.FramesInRange(op.StartTime, op.EndTime) {
		kf := doc.Keyframes[idx]
		for _, side := range op.Sides {
			if n := len(kf.Detections(side)); n > 0 {
				affected[side] += n
				kf.SetDetections(side, nil)
			}
		}
	}
	return affected
}

// replaceRange overwrites every in-range keyframe's detections with the
// caller's box for that side.
func replaceRange(doc *Document, op EditOp) map[Side]int {
	affected := map[Side]int{}
	for _, side := range op.Sides {
		affected[side] = 0
	}
	for _, idx := range doc.FramesInRange(op.StartTime, op.EndTime) {
		kf := doc.Keyframes[idx]
		for _, side := range op.Sides {
			box := op.Boxes[side]
			box.Side = side
			box.Edited = true
			if box.Confidence == 0 {
				box.Confidence = DefaultEditConfidence
			}
			kf.SetDetections(side, []BoundingBox{box})
			affected[side]++
		}
	}
	return affected
}

// infillRange fills the range per side from its nearest non-empty boundary
// keyframes. With both boundaries present it interpolates linearly in time;
// with one it copies that boundary verbatim; with neither it leaves the
// keyframes untouched. No extrapolation or decay.
func infillRange(doc *Document, op EditOp) map[Side]int {
	affected := map[Side]int{}
	frames := doc.SortedFrames()
	for _, side := range op.Sides {
		affected[side] = 0

		var prev, next *BoundingBox
		prevTime, nextTime := 0.0, 0.0
		for _, idx := range frames {
			kf := doc.Keyframes[idx]
			if len(kf.Detections(side)) == 0 {
				continue
			}
			if kf.Timestamp < op.StartTime {
				prev = UnionDetections(kf.Detections(side))
				prevTime = kf.Timestamp
			} else if kf.Timestamp > op.EndTime && next == nil {
				next = UnionDetections(kf.Detections(side))
				nextTime = kf.Timestamp
			}
		}
		if prev == nil && next == nil {
			continue
		}

		for _, idx := range doc.FramesInRange(op.StartTime, op.EndTime) {
			kf := doc.Keyframes[idx]
			var box BoundingBox
			switch {
			case prev != nil && next != nil:
				w := float32((kf.Timestamp - prevTime) / (nextTime - prevTime))
				box = lerpBox(prev, next, w)
			case prev != nil:
				box = *prev
			default:
				box = *next
			}
			box.Side = side
			box.Interpolated = true
			box.Edited = false
			kf.SetDetections(side, []BoundingBox{box})
			affected[side]++
		}
	}
	return affected
}

// lerpBox interpolates coordinates and confidence. A convex combination of
// two valid boxes is itself valid, so infill can never produce a degenerate
// box.
func lerpBox(a, b *BoundingBox, w float32) BoundingBox {
	lerp := func(x, y float32) float32 { return x + (y-x)*w }
	return BoundingBox{
		XMin:       lerp(a.XMin, b.XMin),
		YMin:       lerp(a.YMin, b.YMin),
		XMax:       lerp(a.XMax, b.XMax),
		YMax:       lerp(a.YMax, b.YMax),
		Confidence: lerp(a.Confidence, b.Confidence),
	}
}

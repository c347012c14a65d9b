package keyframe

// The detector can emit more than one candidate box per side per frame.
// Exactly one is expected after cleanup, but the store doesn't enforce that
// at write time; dedupDetections is the explicit cleanup pass.

// dedupDetections walks the keyframes in frame order and, per side, tracks
// the most recent frame that held exactly one detection. A frame with
// multiple detections keeps only the box with the highest IoU against that
// last single detection. Frames with multiple detections before any single
// detection has been seen are left alone. Returns per-side counts of dropped
// detections.
func dedupDetections(doc *Document, sides []Side) map[Side]int {
	dropped := map[Side]int{}
	frames := doc.SortedFrames()
	for _, side := range sides {
		dropped[side] = 0
		var lastSingle *BoundingBox
		for _, idx := range frames {
			kf := doc.Keyframes[idx]
			dets := kf.Detections(side)
			switch {
			case len(dets) == 1:
				box := dets[0]
				lastSingle = &box
			case len(dets) > 1 && lastSingle != nil:
				best := 0
				bestIoU := float32(-1)
				for i, det := range dets {
					if iou := det.Rect().IOU(lastSingle.Rect()); iou > bestIoU {
						bestIoU = iou
						best = i
					}
				}
				dropped[side] += len(dets) - 1
				kf.SetDetections(side, []BoundingBox{dets[best]})
			}
		}
	}
	return dropped
}

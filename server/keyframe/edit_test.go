package keyframe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnionDetections(t *testing.T) {
	require.Nil(t, UnionDetections(nil))

	a := box(0.1, 0.1, 0.3, 0.3, SideLeft)
	single := UnionDetections([]BoundingBox{a})
	require.Equal(t, a, *single)

	b := box(0.2, 0.2, 0.5, 0.6, SideLeft)
	b.Confidence = 0.55
	u := UnionDetections([]BoundingBox{a, b})
	require.Equal(t, float32(0.1), u.XMin)
	require.Equal(t, float32(0.1), u.YMin)
	require.Equal(t, float32(0.5), u.XMax)
	require.Equal(t, float32(0.6), u.YMax)
	require.InDelta(t, (0.95+0.55)/2, u.Confidence, 1e-6)
	require.Equal(t, SideLeft, u.Side)
	require.False(t, u.Rect().IsEmpty())
}

func TestDeleteRange(t *testing.T) {
	store := newTestStore(t)
	left := []BoundingBox{box(0.1, 0.1, 0.3, 0.3, SideLeft)}
	right := []BoundingBox{box(0.6, 0.1, 0.8, 0.3, SideRight)}
	writeDoc(t, store, "0001", testDoc(map[int]*Keyframe{
		0:   kf(0, left, right),
		50:  kf(1, left, right),
		100: kf(2, left, right),
		150: kf(3, left, right),
	}))

	result, err := store.Apply("0001", EditOp{
		Kind:      OpDelete,
		StartTime: 1,
		EndTime:   2,
		Sides:     []Side{SideLeft},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Affected[SideLeft])
	require.NotEmpty(t, result.Backup)

	doc, err := store.Load("0001")
	require.NoError(t, err)
	for _, idx := range []int{50, 100} {
		require.False(t, doc.Keyframes[idx].HasLeftOctopus)
		require.Empty(t, doc.Keyframes[idx].LeftDetections)
		// the other side is untouched
		require.True(t, doc.Keyframes[idx].HasRightOctopus)
	}
	// keyframes outside the range are untouched
	for _, idx := range []int{0, 150} {
		require.True(t, doc.Keyframes[idx].HasLeftOctopus)
		require.Len(t, doc.Keyframes[idx].LeftDetections, 1)
	}
}

func TestDeleteZeroFramesStillSnapshots(t *testing.T) {
	store := newTestStore(t)
	writeDoc(t, store, "0001", testDoc(map[int]*Keyframe{0: kf(0, nil, nil)}))

	result, err := store.Apply("0001", EditOp{
		Kind:      OpDelete,
		StartTime: 100,
		EndTime:   200,
		Sides:     []Side{SideLeft, SideRight},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.Affected[SideLeft])

	backups, err := store.ListBackups("0001")
	require.NoError(t, err)
	require.Len(t, backups, 1)
}

func TestEditReplace(t *testing.T) {
	store := newTestStore(t)
	writeDoc(t, store, "0001", testDoc(map[int]*Keyframe{
		0:  kf(0, []BoundingBox{box(0.1, 0.1, 0.3, 0.3, SideLeft)}, nil),
		50: kf(1, nil, nil),
	}))

	replacement := BoundingBox{XMin: 0.4, YMin: 0.4, XMax: 0.6, YMax: 0.7}
	result, err := store.Apply("0001", EditOp{
		Kind:      OpEdit,
		StartTime: 0,
		EndTime:   1,
		Sides:     []Side{SideLeft},
		Boxes:     map[Side]BoundingBox{SideLeft: replacement},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Affected[SideLeft])

	doc, err := store.Load("0001")
	require.NoError(t, err)
	for _, idx := range []int{0, 50} {
		dets := doc.Keyframes[idx].LeftDetections
		require.Len(t, dets, 1)
		require.Equal(t, float32(0.4), dets[0].XMin)
		require.True(t, dets[0].Edited)
		require.Equal(t, SideLeft, dets[0].Side)
		// confidence defaults when the caller didn't give one
		require.Equal(t, float32(DefaultEditConfidence), dets[0].Confidence)
		require.True(t, doc.Keyframes[idx].HasLeftOctopus)
	}
}

func TestEditRejectsInvalidBox(t *testing.T) {
	store := newTestStore(t)
	writeDoc(t, store, "0001", testDoc(map[int]*Keyframe{
		0: kf(0, []BoundingBox{box(0.1, 0.1, 0.3, 0.3, SideLeft)}, nil),
	}))
	before := readDocFile(t, store, "0001")

	// x_min >= x_max
	_, err := store.Apply("0001", EditOp{
		Kind:      OpEdit,
		StartTime: 0,
		EndTime:   1,
		Sides:     []Side{SideLeft},
		Boxes:     map[Side]BoundingBox{SideLeft: {XMin: 0.6, YMin: 0.1, XMax: 0.6, YMax: 0.5}},
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	// rejected before mutation: no change, and no backup either
	require.Equal(t, before, readDocFile(t, store, "0001"))
	backups, err := store.ListBackups("0001")
	require.NoError(t, err)
	require.Empty(t, backups)

	// a box missing for a requested side is rejected the same way
	_, err = store.Apply("0001", EditOp{
		Kind:      OpEdit,
		StartTime: 0,
		EndTime:   1,
		Sides:     []Side{SideLeft, SideRight},
		Boxes:     map[Side]BoundingBox{SideLeft: box(0.1, 0.1, 0.2, 0.2, SideLeft)},
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestInfillBothBoundaries(t *testing.T) {
	store := newTestStore(t)
	prev := box(0.1, 0.1, 0.3, 0.3, SideLeft)
	prev.Confidence = 0.8
	next := box(0.5, 0.3, 0.7, 0.5, SideLeft)
	next.Confidence = 0.6
	writeDoc(t, store, "0001", testDoc(map[int]*Keyframe{
		0:   kf(0, []BoundingBox{prev}, nil),
		50:  kf(1, nil, nil),
		100: kf(2, nil, nil),
		150: kf(3, nil, nil),
		200: kf(4, []BoundingBox{next}, nil),
	}))

	result, err := store.Apply("0001", EditOp{
		Kind:      OpInfill,
		StartTime: 1,
		EndTime:   3,
		Sides:     []Side{SideLeft},
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Affected[SideLeft])

	doc, err := store.Load("0001")
	require.NoError(t, err)

	// weight 0.25 at t=1, 0.5 at t=2, 0.75 at t=3
	mid := doc.Keyframes[100].LeftDetections[0]
	require.InDelta(t, 0.3, mid.XMin, 1e-6)
	require.InDelta(t, 0.5, mid.XMax, 1e-6)
	require.InDelta(t, 0.7, mid.Confidence, 1e-6)
	require.True(t, mid.Interpolated)
	require.True(t, doc.Keyframes[100].HasLeftOctopus)

	first := doc.Keyframes[50].LeftDetections[0]
	require.InDelta(t, 0.2, first.XMin, 1e-6)
	last := doc.Keyframes[150].LeftDetections[0]
	require.InDelta(t, 0.4, last.XMin, 1e-6)

	// boundaries themselves are untouched
	require.False(t, doc.Keyframes[0].LeftDetections[0].Interpolated)
	require.False(t, doc.Keyframes[200].LeftDetections[0].Interpolated)
}

func TestInfillBoundaryWeights(t *testing.T) {
	// At weight 0 the infilled box reproduces prev exactly; at weight 1, next.
	a := box(0.1, 0.2, 0.3, 0.4, SideLeft)
	b := box(0.5, 0.6, 0.7, 0.8, SideLeft)
	at0 := lerpBox(&a, &b, 0)
	require.Equal(t, a.XMin, at0.XMin)
	require.Equal(t, a.YMax, at0.YMax)
	require.Equal(t, a.Confidence, at0.Confidence)
	at1 := lerpBox(&a, &b, 1)
	require.Equal(t, b.XMin, at1.XMin)
	require.Equal(t, b.YMax, at1.YMax)
}

func TestInfillSingleBoundary(t *testing.T) {
	store := newTestStore(t)
	prev := box(0.1, 0.1, 0.3, 0.3, SideRight)
	writeDoc(t, store, "0001", testDoc(map[int]*Keyframe{
		0:   kf(0, nil, []BoundingBox{prev}),
		50:  kf(1, nil, nil),
		100: kf(2, nil, nil),
	}))

	result, err := store.Apply("0001", EditOp{
		Kind:      OpInfill,
		StartTime: 1,
		EndTime:   2,
		Sides:     []Side{SideRight},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Affected[SideRight])

	doc, err := store.Load("0001")
	require.NoError(t, err)
	for _, idx := range []int{50, 100} {
		dets := doc.Keyframes[idx].RightDetections
		require.Len(t, dets, 1)
		// verbatim copy of the boundary, marked interpolated
		require.Equal(t, prev.XMin, dets[0].XMin)
		require.Equal(t, prev.Confidence, dets[0].Confidence)
		require.True(t, dets[0].Interpolated)
	}
}

func TestInfillNoBoundaries(t *testing.T) {
	store := newTestStore(t)
	writeDoc(t, store, "0001", testDoc(map[int]*Keyframe{
		0:  kf(0, nil, nil),
		50: kf(1, nil, nil),
	}))

	result, err := store.Apply("0001", EditOp{
		Kind:      OpInfill,
		StartTime: 0,
		EndTime:   1,
		Sides:     []Side{SideLeft},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.Affected[SideLeft])

	doc, err := store.Load("0001")
	require.NoError(t, err)
	require.False(t, doc.Keyframes[0].HasLeftOctopus)
	require.False(t, doc.Keyframes[50].HasLeftOctopus)
}

func TestCleanupDedup(t *testing.T) {
	store := newTestStore(t)
	good := box(0.1, 0.1, 0.3, 0.3, SideLeft)
	near := box(0.11, 0.1, 0.31, 0.3, SideLeft)
	far := box(0.6, 0.6, 0.9, 0.9, SideLeft)
	writeDoc(t, store, "0001", testDoc(map[int]*Keyframe{
		0:  kf(0, []BoundingBox{good}, nil),
		50: kf(1, []BoundingBox{far, near}, nil),
	}))

	result, err := store.Apply("0001", EditOp{
		Kind:  OpCleanup,
		Sides: []Side{SideLeft, SideRight},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Affected[SideLeft])
	require.Equal(t, 0, result.Affected[SideRight])

	doc, err := store.Load("0001")
	require.NoError(t, err)
	dets := doc.Keyframes[50].LeftDetections
	require.Len(t, dets, 1)
	// kept the candidate that overlaps the last single detection
	require.Equal(t, near.XMin, dets[0].XMin)
	require.True(t, doc.Keyframes[50].HasLeftOctopus)
}

func TestApplyUnknownOp(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Apply("0001", EditOp{Kind: "explode", Sides: []Side{SideLeft}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

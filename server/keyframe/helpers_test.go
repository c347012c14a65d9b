package keyframe

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	store, err := NewStore(logs.NewTestingLog(t), t.TempDir())
	require.NoError(t, err)
	return store
}

func box(x0, y0, x1, y1 float32, side Side) BoundingBox {
	return BoundingBox{
		XMin:       x0,
		YMin:       y0,
		XMax:       x1,
		YMax:       y1,
		Confidence: 0.95,
		Side:       side,
	}
}

// testDoc builds a document with one keyframe per second at 2 fps sampling:
// frame indices 0, 50, 100, ... at 50 fps.
func testDoc(keyframes map[int]*Keyframe) *Document {
	return &Document{
		VideoInfo: VideoInfo{
			FPS:    50,
			Width:  1920,
			Height: 1080,
		},
		TankInfo: TankInfo{
			BBox: TankBBox{XMin: 100, YMin: 200, XMax: 1800, YMax: 1000, CenterX: 950},
		},
		DetectionParams: DetectionParams{
			Object:              "octopus",
			Hertz:               2,
			ConfidenceThreshold: 0.75,
			BatchSize:           1,
		},
		Keyframes: keyframes,
	}
}

func kf(ts float64, left, right []BoundingBox) *Keyframe {
	k := &Keyframe{Timestamp: ts}
	k.SetDetections(SideLeft, left)
	k.SetDetections(SideRight, right)
	return k
}

func writeDoc(t *testing.T, store *Store, code string, doc *Document) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.DocumentPath(code), raw, 0666))
}

func readDocFile(t *testing.T, store *Store, code string) []byte {
	raw, err := os.ReadFile(store.DocumentPath(code))
	require.NoError(t, err)
	return raw
}

package server

import (
	"net/http"
	"strconv"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"github.com/tanklab/octowatch/server/keyframe"
)

func (s *Server) httpGetKeyframes(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	code := params.ByName("code")
	checkStore(keyframe.ValidateCode(code))
	doc, err := s.store.Load(code)
	checkStore(err)
	www.SendJSON(w, doc)
}

func queryFloat64(r *http.Request, key string) (float64, bool) {
	str := www.QueryValue(r, key)
	if str == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		www.PanicBadRequestf("Invalid value for '%v': %v", key, str)
	}
	return v, true
}

func requiredQueryFloat64(r *http.Request, key string) float64 {
	v, ok := queryFloat64(r, key)
	if !ok {
		www.PanicBadRequestf("Missing required parameter '%v'", key)
	}
	return v
}

// querySides parses the "side" parameter ("left", "right" or "both"),
// defaulting to both.
func querySides(r *http.Request) []keyframe.Side {
	str := www.QueryValue(r, "side")
	if str == "" {
		str = "both"
	}
	sides, err := keyframe.ParseSides(str)
	checkStore(err)
	return sides
}

// Locate the contiguous interval of similar detections around a timestamp.
// GET /api/keyframes/:code/interval?timestamp=12.5&side=left&threshold=0.8
func (s *Server) httpLocateInterval(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	code := params.ByName("code")
	checkStore(keyframe.ValidateCode(code))
	timestamp := requiredQueryFloat64(r, "timestamp")
	sides := querySides(r)
	threshold := float32(keyframe.DefaultSimilarityThreshold)
	if v, ok := queryFloat64(r, "threshold"); ok {
		if v <= 0 || v > 1 {
			www.PanicBadRequestf("Invalid threshold %v: must be in (0, 1]", v)
		}
		threshold = float32(v)
	}

	doc, err := s.store.Load(code)
	checkStore(err)
	interval, err := keyframe.Locate(s.Log, doc, timestamp, sides, threshold)
	checkStore(err)
	www.SendJSON(w, interval)
}

// editRequestJSON is the body of POST /api/keyframes/:code/edit.
// The target range is either [startTime, endTime], or derived by the interval
// locator when only a timestamp is given.
type editRequestJSON struct {
	Operation string   `json:"operation"` // "delete", "edit" or "infill"
	Side      string   `json:"side"`      // "left", "right" or "both" (default both)
	StartTime *float64 `json:"startTime,omitempty"`
	EndTime   *float64 `json:"endTime,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
	Threshold float64  `json:"threshold,omitempty"` // interval locator similarity, when timestamp is used

	// One replacement box per side, for operation "edit"
	Boxes map[string]keyframe.BoundingBox `json:"boxes,omitempty"`

	// True when the boxes were drawn by hand. Hand-drawn boxes get full
	// confidence instead of the 0.9 default.
	UserDrawn bool `json:"userDrawn,omitempty"`
}

type editResponseJSON struct {
	Affected  map[keyframe.Side]int `json:"affected"`
	Backup    string                `json:"backup"`
	StartTime float64               `json:"startTime"`
	EndTime   float64               `json:"endTime"`
}

func (s *Server) httpEditKeyframes(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	code := params.ByName("code")
	checkStore(keyframe.ValidateCode(code))

	req := editRequestJSON{}
	www.ReadJSON(w, r, &req, 1024*1024)

	if req.Side == "" {
		req.Side = "both"
	}
	sides, err := keyframe.ParseSides(req.Side)
	checkStore(err)

	op := keyframe.EditOp{
		Kind:  keyframe.OpKind(req.Operation),
		Sides: sides,
	}

	switch {
	case req.StartTime != nil && req.EndTime != nil:
		op.StartTime = *req.StartTime
		op.EndTime = *req.EndTime
	case req.Timestamp != nil:
		threshold := float32(keyframe.DefaultSimilarityThreshold)
		if req.Threshold != 0 {
			threshold = float32(req.Threshold)
		}
		doc, err := s.store.Load(code)
		checkStore(err)
		interval, err := keyframe.Locate(s.Log, doc, *req.Timestamp, sides, threshold)
		checkStore(err)
		op.StartTime = interval.StartTime
		op.EndTime = interval.EndTime
	default:
		www.PanicBadRequestf("Either startTime+endTime or timestamp must be given")
	}

	if len(req.Boxes) != 0 {
		op.Boxes = map[keyframe.Side]keyframe.BoundingBox{}
		for sideStr, box := range req.Boxes {
			side, err := keyframe.ParseSide(sideStr)
			checkStore(err)
			if req.UserDrawn && box.Confidence == 0 {
				box.Confidence = keyframe.UserDrawnConfidence
			}
			op.Boxes[side] = box
		}
	}

	result, err := s.store.Apply(code, op)
	checkStore(err)
	www.SendJSON(w, &editResponseJSON{
		Affected:  result.Affected,
		Backup:    result.Backup,
		StartTime: op.StartTime,
		EndTime:   op.EndTime,
	})
}

func (s *Server) httpListBackups(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	code := params.ByName("code")
	checkStore(keyframe.ValidateCode(code))
	backups, err := s.store.ListBackups(code)
	checkStore(err)
	www.SendJSON(w, backups)
}

// Restore a named backup. The current document is snapshotted first, and the
// name of that snapshot is returned so the restore itself can be undone.
func (s *Server) httpRestoreBackup(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	code := params.ByName("code")
	checkStore(keyframe.ValidateCode(code))
	type restoreJSON struct {
		Backup string `json:"backup"`
	}
	req := restoreJSON{Backup: www.QueryValue(r, "backup")}
	if req.Backup == "" && r.ContentLength > 0 {
		www.ReadJSON(w, r, &req, 1024*1024)
	}
	if req.Backup == "" {
		www.PanicBadRequestf("Missing 'backup' name")
	}
	preRestore, err := s.store.Restore(code, req.Backup)
	checkStore(err)
	www.SendJSON(w, &restoreJSON{Backup: preRestore})
}

// Drop extra detections on frames where the detector saw more than one
// animal per side, keeping the box most similar to the last single detection.
func (s *Server) httpCleanupKeyframes(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	code := params.ByName("code")
	checkStore(keyframe.ValidateCode(code))
	sides := querySides(r)
	result, err := s.store.Apply(code, keyframe.EditOp{
		Kind:  keyframe.OpCleanup,
		Sides: sides,
	})
	checkStore(err)
	www.SendJSON(w, result)
}

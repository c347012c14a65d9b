package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"github.com/tanklab/octowatch/server/detect"
	"github.com/tanklab/octowatch/server/keyframe"
)

// If the detector is quiet for this long, we send a heartbeat on the progress
// websocket so the client can tell a slow job from a dead connection.
const progressHeartbeatInterval = 5 * time.Second

// Start a detection run for a video.
// POST /api/detect/:code/start, body is a detect.Params JSON (all optional).
func (s *Server) httpStartDetection(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	code := params.ByName("code")
	checkStore(keyframe.ValidateCode(code))
	videoPath, ok := s.proxyPath(code)
	if !ok {
		www.Panic(http.StatusNotFound, fmt.Sprintf("No video found for code %v", code))
	}

	jobParams := detect.Params{}
	if r.ContentLength > 0 {
		www.ReadJSON(w, r, &jobParams, 1024*1024)
	}

	job, err := s.detect.Start(code, videoPath, jobParams)
	www.Check(err)
	if err := s.catalog.SetLastJob(code, job.ID); err != nil {
		// The video may be on disk without being registered (eg copied in by
		// hand), in which case there's no catalog row to update.
		s.Log.Warnf("Failed to record job %v on video %v: %v", job.ID, code, err)
	}
	www.SendJSON(w, job.Info())
}

func (s *Server) jobOrPanic(params httprouter.Params) *detect.Job {
	id := params.ByName("id")
	job := s.detect.Job(id)
	if job == nil {
		www.Panic(http.StatusNotFound, fmt.Sprintf("No detection job %v", id))
	}
	return job
}

func (s *Server) httpJobStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.jobOrPanic(params).Info())
}

func (s *Server) httpCancelJob(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	job := s.jobOrPanic(params)
	www.SendJSONBool(w, s.detect.Cancel(job.ID))
}

// Stream a job's progress events over a websocket. Events are relayed as
// JSON text messages, with heartbeats during silence. The socket closes
// after the terminal event.
func (s *Server) httpJobProgress(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	job := s.jobOrPanic(params)

	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("Job progress websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	s.Log.Infof("Streaming progress of job %v", job.ID)

	// Drain client messages so pings/closes are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(progressHeartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case ev, ok := <-job.Events():
			if !ok {
				// Stream is over. The terminal event was already relayed.
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				s.Log.Infof("Job %v progress client went away: %v", job.ID, err)
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteJSON(detect.Event{Type: detect.EventHeartbeat}); err != nil {
				return
			}
		}
	}
}

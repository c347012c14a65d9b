package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
	"github.com/tanklab/octowatch/server/catalog"
	"github.com/tanklab/octowatch/server/keyframe"
)

func (s *Server) setupHttpRoutes() {
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// ratelimited wraps a handler with a per-IP rate limiter. Uploads and
	// detection starts are expensive, so don't let a misbehaving client
	// hammer them.
	ratelimited := func(method, route string, handle httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)

	ratelimited("POST", "/api/upload", s.httpUploadVideo, 6, time.Minute)
	handle("GET", "/api/load/:code", s.httpLoadVideo)
	handle("GET", "/api/videos", s.httpListVideos)
	handle("GET", "/api/video/:code", s.httpGetVideo)

	handle("GET", "/api/keyframes/:code", s.httpGetKeyframes)
	handle("GET", "/api/keyframes/:code/interval", s.httpLocateInterval)
	handle("POST", "/api/keyframes/:code/edit", s.httpEditKeyframes)
	handle("GET", "/api/keyframes/:code/backups", s.httpListBackups)
	handle("POST", "/api/keyframes/:code/restore", s.httpRestoreBackup)
	handle("POST", "/api/keyframes/:code/cleanup", s.httpCleanupKeyframes)

	ratelimited("POST", "/api/detect/:code/start", s.httpStartDetection, 6, time.Minute)
	handle("GET", "/api/detect/job/:id/status", s.httpJobStatus)
	handle("POST", "/api/detect/job/:id/cancel", s.httpCancelJob)
	handle("GET", "/api/detect/job/:id/progress", s.httpJobProgress)

	s.httpRouter = router
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time int64 `json:"time"`
	}
	ping := &pingJSON{
		Time: time.Now().Unix(),
	}
	www.SendJSON(w, ping)
}

// checkStore turns keyframe package errors into their HTTP status codes.
// Anything unrecognized is a 500, same as www.Check.
func checkStore(err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, keyframe.ErrInvalidInput):
		www.Panic(http.StatusBadRequest, err.Error())
	case errors.Is(err, keyframe.ErrNotFound), errors.Is(err, catalog.ErrNotRegistered):
		www.Panic(http.StatusNotFound, err.Error())
	case errors.Is(err, keyframe.ErrCorrupt):
		www.Panic(http.StatusUnprocessableEntity, err.Error())
	default:
		www.PanicServerError(err.Error())
	}
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"github.com/tanklab/octowatch/server/catalog"
	"github.com/tanklab/octowatch/server/keyframe"
)

// Proxy videos are long but low bitrate, so 2GB covers a full tank session.
const maxUploadSize = int64(2 * 1024 * 1024 * 1024)

var videoCodeInName = regexp.MustCompile(`(\d{4})`)

// codeFromFilename extracts the 4 digit video code from an original filename
// such as "MVI_0023_proxy.mp4" or "MVI_0023.MP4".
func codeFromFilename(filename string) (string, error) {
	m := videoCodeInName.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return "", fmt.Errorf("no 4 digit video code in filename '%v'", filepath.Base(filename))
	}
	return m[1], nil
}

// proxyPath returns the path of the proxy video for the given code, trying
// the lowercase extension first, then the uppercase one that cameras write.
// The second return value is false if neither file exists.
func (s *Server) proxyPath(code string) (string, bool) {
	lower := filepath.Join(s.cfg.VideoRoot, "MVI_"+code+"_proxy.mp4")
	if _, err := os.Stat(lower); err == nil {
		return lower, true
	}
	upper := filepath.Join(s.cfg.VideoRoot, "MVI_"+code+"_proxy.MP4")
	if _, err := os.Stat(upper); err == nil {
		return upper, true
	}
	return lower, false
}

// Upload a proxy video. The request is a multipart form with a single "video"
// part. The video code is taken from the uploaded filename, and the file is
// stored as MVI_<code>_proxy.mp4 under the video root.
func (s *Server) httpUploadVideo(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if r.ContentLength > maxUploadSize {
		www.PanicBadRequestf("Request body is too large: %v. Maximum size: %v MB", r.ContentLength, maxUploadSize/(1024*1024))
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("video")
	if err != nil {
		www.PanicBadRequestf("Missing 'video' form file: %v", err)
	}
	defer file.Close()

	code, err := codeFromFilename(header.Filename)
	if err != nil {
		www.PanicBadRequestf("%v", err)
	}

	videoPath := filepath.Join(s.cfg.VideoRoot, "MVI_"+code+"_proxy.mp4")
	out, err := os.Create(videoPath)
	www.Check(err)
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		os.Remove(videoPath)
		www.PanicServerErrorf("Failed to store video: %v", err)
	}
	www.Check(out.Close())

	// An existing keyframe document can ride along with the video, eg when
	// moving a curated session between machines.
	if kfFile, _, err := r.FormFile("keyframes"); err == nil {
		defer kfFile.Close()
		raw, err := io.ReadAll(kfFile)
		www.Check(err)
		doc := keyframe.Document{}
		if err := json.Unmarshal(raw, &doc); err != nil || doc.Keyframes == nil {
			www.PanicBadRequestf("Uploaded keyframes are not a valid keyframe document")
		}
		www.Check(s.store.Save(code, &doc, ""))
	}

	www.Check(s.catalog.Register(&catalog.Video{
		Code:          code,
		OriginalName:  header.Filename,
		VideoPath:     videoPath,
		KeyframesPath: s.store.DocumentPath(code),
		UploadedAt:    dbh.MakeIntTime(time.Now()),
	}))
	s.Log.Infof("Uploaded video %v (%v, %v bytes)", code, header.Filename, header.Size)

	type uploadJSON struct {
		Code     string `json:"code"`
		VideoUrl string `json:"videoUrl"`
	}
	www.SendJSON(w, &uploadJSON{
		Code:     code,
		VideoUrl: "/api/video/" + code,
	})
}

// Load a video by its 4 digit code. Returns the video URL plus the keyframe
// document, if one exists yet.
func (s *Server) httpLoadVideo(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	code := params.ByName("code")
	checkStore(keyframe.ValidateCode(code))

	if _, ok := s.proxyPath(code); !ok {
		www.Panic(http.StatusNotFound, fmt.Sprintf("No video found for code %v", code))
	}

	type loadJSON struct {
		Code      string             `json:"code"`
		VideoUrl  string             `json:"videoUrl"`
		Keyframes *keyframe.Document `json:"keyframes,omitempty"`
	}
	resp := &loadJSON{
		Code:     code,
		VideoUrl: "/api/video/" + code,
	}
	doc, err := s.store.Load(code)
	if err == nil {
		resp.Keyframes = doc
	} else if !errors.Is(err, keyframe.ErrNotFound) {
		checkStore(err)
	}
	www.SendJSON(w, resp)
}

func (s *Server) httpListVideos(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	videos, err := s.catalog.List()
	www.Check(err)
	www.SendJSON(w, videos)
}

// Serve the proxy video file itself
func (s *Server) httpGetVideo(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	code := params.ByName("code")
	checkStore(keyframe.ValidateCode(code))
	path, ok := s.proxyPath(code)
	if !ok {
		www.Panic(http.StatusNotFound, fmt.Sprintf("No video found for code %v", code))
	}
	www.SendFile(w, r, path, "video/mp4")
}

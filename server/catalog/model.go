package catalog

import (
	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Video is one registered video/document pair, keyed by its 4-digit code.
type Video struct {
	BaseModel
	Code          string      `json:"code"`                    // 4-digit code, unique
	OriginalName  string      `json:"originalName,omitempty"`  // Filename the uploader gave us, if uploaded
	VideoPath     string      `json:"videoPath"`               // Path to the proxy video file
	KeyframesPath string      `json:"keyframesPath"`           // Path to the keyframe document
	UploadedAt    dbh.IntTime `json:"uploadedAt"`              // When the video entered the library
	LastJobID     string      `json:"lastJobId,omitempty"`     // Most recent detection job for this code
}

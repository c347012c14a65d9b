package server

// Config is the top-level JSON config file of octowatch.
type Config struct {
	// Path to the sqlite catalog database, e.g. "/var/lib/octowatch/catalog.sqlite"
	DB string `json:"db"`

	// Root directory of proxy videos (MVI_<code>_proxy.mp4)
	VideoRoot string `json:"videoRoot"`

	// Root directory of keyframe documents and their backups.
	// If empty, we use VideoRoot.
	KeyframeRoot string `json:"keyframeRoot"`

	// Detector command, e.g. ["python3", "detect_with_yolo.py"].
	// The server appends the video path and detection parameters.
	Detector []string `json:"detector"`
}

func (c *Config) keyframeRoot() string {
	if c.KeyframeRoot != "" {
		return c.KeyframeRoot
	}
	return c.VideoRoot
}

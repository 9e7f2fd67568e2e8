package dao

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ListVideosResponse struct {
	Videos    []string `json:"videos"`
	VideosDir string   `json:"videos_dir,omitempty"`
	Message   string   `json:"message,omitempty"`
}

type UploadInfoResponse struct {
	Message          string            `json:"message"`
	VideosDirectory  string            `json:"videos_directory"`
	WatchDirectory   string            `json:"watch_directory"`
	SupportedFormats []string          `json:"supported_formats"`
	NamingConvention map[string]string `json:"naming_convention"`
}

type PPEStatusResponse struct {
	// YoloAvailable reports whether a real inference backend is configured.
	YoloAvailable         bool   `json:"yolo_available"`
	ModelLoaded           bool   `json:"model_loaded"`
	VideoDecoderAvailable bool   `json:"imageio_available"`
	Detector              string `json:"detector"`
	Simulated             bool   `json:"simulated"`
	ModelError            string `json:"model_error,omitempty"`
	WatcherRunning        bool   `json:"watcher_running"`
	NSQEnabled            bool   `json:"nsq_enabled"`
	S3Enabled             bool   `json:"s3_enabled"`
	ActiveStreams         int64  `json:"active_streams"`
	MaxStreams            int64  `json:"max_streams"`
}

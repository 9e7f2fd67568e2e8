package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"siteguard/internal/dao"
)

// isVideo accepts the extensions the watcher ingests, so both list the same files.
func (s *Server) isVideo(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range s.conf.Watcher.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// handleHealth
// @Summary Health check
// @Tags status
// @Produce json
// @Success 200 {object} dao.HealthResponse
// @Router /health [get]
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, dao.HealthResponse{
		Status:  "ok",
		Message: "Video server is running",
	})
}

// handleListVideos
// @Summary List the video files available for the feeds
// @Tags status
// @Produce json
// @Success 200 {object} dao.ListVideosResponse
// @Failure 500 {object} ErrorResponse
// @Router /videos [get]
func (s *Server) handleListVideos(c *gin.Context) {
	entries, err := os.ReadDir(s.conf.VideosDir)
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusOK, dao.ListVideosResponse{
			Videos:  []string{},
			Message: "Videos directory not found",
		})
		return
	} else if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}

	videos := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && s.isVideo(e.Name()) {
			videos = append(videos, e.Name())
		}
	}
	sort.Strings(videos)
	abs, err := filepath.Abs(s.conf.VideosDir)
	if err != nil {
		abs = s.conf.VideosDir
	}
	c.JSON(http.StatusOK, dao.ListVideosResponse{
		Videos:    videos,
		VideosDir: abs,
	})
}

// handleUploadInfo
// @Summary Where and how to place site videos
// @Tags status
// @Produce json
// @Success 200 {object} dao.UploadInfoResponse
// @Router /upload_info [get]
func (s *Server) handleUploadInfo(c *gin.Context) {
	videosDir, _ := filepath.Abs(s.conf.VideosDir)
	watchDir, _ := filepath.Abs(s.conf.Watcher.Dir)
	naming := make(map[string]string, len(s.conf.Sites))
	for _, site := range s.conf.Sites {
		if site.Video != "" {
			naming[site.Id] = filepath.Base(site.Video)
		}
	}
	c.JSON(http.StatusOK, dao.UploadInfoResponse{
		Message:          "Place your construction site videos in the videos folder, or drop them into the watch folder for analysis",
		VideosDirectory:  videosDir,
		WatchDirectory:   watchDir,
		SupportedFormats: s.conf.Watcher.Extensions,
		NamingConvention: naming,
	})
}

// handlePPEStatus
// @Summary Detector and optional dependency availability
// @Tags ppe
// @Produce json
// @Success 200 {object} dao.PPEStatusResponse
// @Router /api/ppe/status [get]
func (s *Server) handlePPEStatus(c *gin.Context) {
	st := s.opts.Analyzer.Status()
	c.JSON(http.StatusOK, dao.PPEStatusResponse{
		YoloAvailable:         s.conf.Detector.Backend == "triton",
		ModelLoaded:           st.ModelLoaded,
		VideoDecoderAvailable: s.opts.DecoderAvailable,
		Detector:              st.Detector,
		Simulated:             st.Simulated,
		ModelError:            st.ModelError,
		WatcherRunning:        s.opts.Watcher != nil && s.opts.Watcher.Running(),
		NSQEnabled:            s.opts.NSQEnabled,
		S3Enabled:             s.opts.S3Enabled,
		ActiveStreams:         s.opts.Metrics.ActiveStreams.Load(),
		MaxStreams:            s.conf.Stream.MaxConcurrent,
	})
}

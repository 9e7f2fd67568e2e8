package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"siteguard/internal/source"
)

const feedTitle = "ConstructGuard-AI Live Feed"

// feedPath resolves the video behind a feed. Unknown or missing site ids resolve to "",
// which the stream opener serves from the capture device or the test pattern.
func (s *Server) feedPath(siteId string) string {
	registry := s.overview.Registry()
	if siteId == "" {
		sites := registry.Sites()
		if len(sites) == 0 {
			return ""
		}
		return s.conf.VideoPath(sites[0])
	}
	if site, ok := registry.Lookup(siteId); ok {
		return s.conf.VideoPath(site)
	}
	return ""
}

func overlay(src *source.Source, frame *source.Frame, now time.Time) []string {
	lines := []string{
		feedTitle,
		"Time: " + now.Format("15:04:05"),
	}
	switch {
	case src.Simulated():
		lines = append(lines, fmt.Sprintf("Frame: %d", frame.Seq+1), "Status: SIMULATED FEED")
	case src.Live():
		lines = append(lines, "Status: LIVE MONITORING")
	default:
		lines = append(lines, fmt.Sprintf("Frame: %d/%d", frame.Pos+1, src.FrameCount()), "Status: VIDEO PLAYBACK")
	}
	return lines
}

func writeMJPEGPart(w io.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

// handleVideoFeed
// @Summary Live MJPEG feed of a site
// @Description Every request decodes its own copy of the source. Missing videos fall back to the
// @Description capture device or a simulated test pattern.
// @Tags stream
// @Produce multipart/x-mixed-replace
// @Param site_id path string false "site id"
// @Success 200 {file} binary
// @Failure 503 {object} ErrorResponse
// @Router /video_feed/{site_id} [get]
func (s *Server) handleVideoFeed(c *gin.Context) {
	siteId := c.Param("site_id")
	logger := s.logger.WithField("site", siteId)

	if !s.streamSem.TryAcquire(1) {
		s.opts.Metrics.StreamRejected()
		s.writeError(c, http.StatusServiceUnavailable, fmt.Errorf("too many open video feeds, limit is %d", s.conf.Stream.MaxConcurrent))
		return
	}
	defer s.streamSem.Release(1)

	path := s.feedPath(siteId)
	src, err := s.opts.StreamOpener.Open(path, source.Options{Loop: s.conf.Stream.Loop})
	if err != nil {
		logger.WithError(err).Warn("open video feed")
		s.writeError(c, http.StatusServiceUnavailable, err)
		return
	}
	defer src.Close()

	s.opts.Metrics.StreamOpened()
	defer s.opts.Metrics.StreamClosed()
	logger.Infof("video feed opened, source %q simulated=%v", path, src.Simulated())

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	pacer := source.NewPacer(src.FPS(), s.conf.Stream.DefaultFps)
	for {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return
		} else if err != nil {
			logger.WithError(err).Warn("read video feed")
			return
		}

		frame.Picture.DrawText(overlay(src, frame, time.Now()))
		jpeg, err := frame.Picture.EncodeJPEG(s.conf.Stream.JpegQuality)
		frame.Close()
		if err != nil {
			logger.WithError(err).Warn("encode video feed frame")
			return
		}
		if err := writeMJPEGPart(c.Writer, jpeg); err != nil {
			// client went away
			return
		}
		c.Writer.Flush()
		s.opts.Metrics.FrameStreamed()

		if err := pacer.Wait(ctx); err != nil {
			return
		}
	}
}

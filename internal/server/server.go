package server

import (
	"context"
	goerrors "errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	_ "siteguard/docs"
	"siteguard/internal/config"
	"siteguard/internal/metrics"
	"siteguard/internal/ppe"
	"siteguard/internal/site"
	"siteguard/internal/source"
	"siteguard/internal/store"
	"siteguard/internal/task"
	"siteguard/internal/watcher"
	"siteguard/pkg/log"
)

// Options carries the services the handlers work with. Everything is constructed by the
// caller so that the server holds no global state.
type Options struct {
	Analyzer *ppe.Analyzer
	Store    *store.Store
	Tasks    *task.Manager
	// Watcher is nil when ingestion runs in another process or is disabled.
	Watcher *watcher.Watcher
	Metrics *metrics.Metrics
	// StreamOpener opens the per-request source of /video_feed.
	StreamOpener     source.Opener
	DecoderAvailable bool
	NSQEnabled       bool
	S3Enabled        bool
}

type Server struct {
	conf       *config.Config
	opts       Options
	overview   *site.Overview
	streamSem  *semaphore.Weighted
	httpServer *http.Server
	logger     *logrus.Entry
}

func NewServer(ctx context.Context, conf *config.Config, opts Options) (*Server, error) {
	if opts.Analyzer == nil || opts.Store == nil || opts.Tasks == nil {
		return nil, fmt.Errorf("analyzer, store and task manager are required")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.StreamOpener == nil {
		opts.StreamOpener = source.PatternOpener{
			Width:  conf.Stream.Width,
			Height: conf.Stream.Height,
			Rate:   conf.Stream.DefaultFps,
		}
	}
	maxStreams := conf.Stream.MaxConcurrent
	if maxStreams <= 0 {
		maxStreams = 1
	}
	s := &Server{
		conf:      conf,
		opts:      opts,
		overview:  site.NewOverview(ctx, site.NewRegistry(conf.Sites), opts.Store, opts.Analyzer.Simulated),
		streamSem: semaphore.NewWeighted(maxStreams),
		logger:    log.ComponentLogger(ctx, "server"),
	}

	return s, nil
}

func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader(log.HttpXRequestId)
		if requestId == "" {
			requestId = strings.ReplaceAll(uuid.New().String(), "-", "")
		}
		c.Header(log.HttpXRequestId, requestId)
		c.Request = c.Request.WithContext(log.WithRequestId(c.Request.Context(), requestId))
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := time.Now()
		c.Next()
		latency := time.Since(t)
		status := c.Writer.Status()

		log.GetLogger(c.Request.Context()).Info("ip: ", c.ClientIP(), " method: ", c.Request.Method, " path: ",
			c.Request.URL.Path, " status: ", status, " latency: ", latency)
	}
}

// Cors lets the dashboard, served from another origin, read the API and the feeds.
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+log.HttpXRequestId)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) Start() {
	gin.SetMode(gin.ReleaseMode)
	router := s.SetUpRouter()
	pprof.Register(router)
	s.httpServer = &http.Server{
		Addr:    s.conf.Addr,
		Handler: router,
	}

	var err error
	if s.conf.SSLCert != "" && s.conf.SSLKey != "" {
		s.logger.Infof("start https server on %s", s.conf.Addr)
		err = s.httpServer.ListenAndServeTLS(s.conf.SSLCert, s.conf.SSLKey)
	} else {
		s.logger.Infof("start http server on %s", s.conf.Addr)
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && !goerrors.Is(err, http.ErrServerClosed) {
		s.logger.Fatal(err)
	}
}

// Shutdown stops accepting requests. Open video feeds end when their request context is canceled.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func errorCode(err error) string {
	switch {
	case goerrors.Is(err, ppe.ErrUnknownSite):
		return "unknown_site"
	case goerrors.Is(err, ppe.ErrInvalidAlertType):
		return "invalid_alert_type"
	case goerrors.Is(err, ppe.ErrMalformedState):
		return "malformed_state"
	case goerrors.Is(err, ppe.ErrRunFailed):
		return "run_failed"
	default:
		return ""
	}
}

func (s *Server) writeError(c *gin.Context, code int, err error) {
	c.JSON(code, ErrorResponse{
		Error: err.Error(),
		Code:  errorCode(err),
	})
}

var siteIdPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("siteid", func(fl validator.FieldLevel) bool {
			return siteIdPattern.MatchString(fl.Field().String())
		})
	}
}

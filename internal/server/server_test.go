package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteguard/internal/config"
	"siteguard/internal/dao"
	"siteguard/internal/metrics"
	"siteguard/internal/ppe"
	"siteguard/internal/source"
	"siteguard/internal/store"
	"siteguard/internal/task"
	"siteguard/pkg/log"
)

// brokenDecoder fails after failAt frames.
type brokenDecoder struct {
	*source.PatternDecoder
	failAt int
	n      int
}

func (d *brokenDecoder) Read() (source.Picture, error) {
	if d.n >= d.failAt {
		return nil, errors.New("corrupt frame")
	}
	d.n++
	return d.PatternDecoder.Read()
}

// videoOpener serves short generated clips for known file names.
type videoOpener struct {
	videos map[string]func() source.Decoder
}

func (o videoOpener) Open(path string, opts source.Options) (*source.Source, error) {
	newDec, ok := o.videos[filepath.Base(path)]
	if !ok || path == "" {
		return nil, fmt.Errorf("%w: %s", source.ErrUnavailable, path)
	}
	return source.New(newDec(), opts), nil
}

func clip(frames int) func() source.Decoder {
	return func() source.Decoder {
		return &source.PatternDecoder{Width: 64, Height: 48, Rate: 30, Frames: frames}
	}
}

// feedOpener ignores looping so that feeds end after a few frames.
type feedOpener struct {
	frames int
}

func (o feedOpener) Open(path string, opts source.Options) (*source.Source, error) {
	return source.New(&source.PatternDecoder{Width: 64, Height: 48, Rate: 1000, Frames: o.frames}, source.Options{}), nil
}

type emptyDetector struct{}

func (emptyDetector) Name() string    { return "empty" }
func (emptyDetector) Simulated() bool { return false }
func (emptyDetector) Detect(ctx context.Context, f *source.Frame) ([]*dao.DetectionBox, error) {
	return nil, nil
}

type testEnv struct {
	conf    *config.Config
	srv     *Server
	router  *gin.Engine
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, mutate func(conf *config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	conf := config.DefaultConfig()
	conf.WorkDir = t.TempDir()
	conf.VideosDir = filepath.Join(conf.WorkDir, "videos")
	conf.Watcher.Dir = filepath.Join(conf.WorkDir, "incoming")
	conf.Sites = []config.SiteConfig{
		{Id: "SITE_001", Name: "Downtown Plaza Construction", Video: "good.mp4", Workers: 45, Cameras: 12},
		{Id: "SITE_002", Name: "Riverside Complex", Video: "broken.mp4", Workers: 32, Cameras: 8},
		{Id: "SITE_003", Name: "Tech Hub Center", Video: "missing.mp4", Workers: 28, Cameras: 10},
	}
	if mutate != nil {
		mutate(conf)
	}

	db, err := store.NewMetadataDB("", log.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st, err := store.New(ctx, conf.ResultsDir(), db)
	require.NoError(t, err)

	opener := videoOpener{videos: map[string]func() source.Decoder{
		"good.mp4": clip(90),
		"broken.mp4": func() source.Decoder {
			return &brokenDecoder{PatternDecoder: &source.PatternDecoder{Width: 64, Height: 48, Rate: 30, Frames: 90}, failAt: 40}
		},
	}}
	m := metrics.New()
	analyzer := ppe.NewAnalyzer(ctx, conf, opener, emptyDetector{}, st)
	analyzer.AddNotifier(m)

	tasks := task.NewManager(ctx, 2, time.Hour, db)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tasks.Shutdown(shutdownCtx)
	})

	srv, err := NewServer(ctx, conf, Options{
		Analyzer:     analyzer,
		Store:        st,
		Tasks:        tasks,
		Metrics:      m,
		StreamOpener: feedOpener{frames: 3},
	})
	require.NoError(t, err)
	return &testEnv{
		conf:    conf,
		srv:     srv,
		router:  srv.SetUpRouter(),
		metrics: m,
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dao.HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, rec.Header().Get(log.HttpXRequestId))
}

func TestRequestIdIsEchoed(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/health", "", map[string]string{log.HttpXRequestId: "abc123"})
	assert.Equal(t, "abc123", rec.Header().Get(log.HttpXRequestId))
}

func TestListVideos(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/videos", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dao.ListVideosResponse](t, rec)
	assert.Empty(t, resp.Videos)
	assert.Equal(t, "Videos directory not found", resp.Message)

	require.NoError(t, os.MkdirAll(env.conf.VideosDir, 0755))
	for _, name := range []string{"site2.MOV", "site1.mp4", "site3.flv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(env.conf.VideosDir, name), []byte("x"), 0644))
	}
	rec = env.do(t, "GET", "/videos", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[dao.ListVideosResponse](t, rec)
	assert.Equal(t, []string{"site1.mp4", "site2.MOV", "site3.flv"}, resp.Videos)
	assert.True(t, filepath.IsAbs(resp.VideosDir))
}

func TestUploadInfo(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/upload_info", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dao.UploadInfoResponse](t, rec)
	assert.Equal(t, "good.mp4", resp.NamingConvention["SITE_001"])
	assert.Equal(t, env.conf.Watcher.Extensions, resp.SupportedFormats)
	assert.Contains(t, resp.SupportedFormats, ".wmv")
}

func TestResultsForUnknownSiteAreSimulated(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/api/ppe/results/SITE_999", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[dao.AnalysisResult](t, rec)
	assert.True(t, res.Simulated)
	assert.Equal(t, dao.StatusSimulatedDemo, res.Status)
	assert.Equal(t, "SITE_999", res.SiteId)
	assert.Equal(t, 65, res.ComplianceScore)
}

func TestResultsOfUnregisteredSiteIgnoreCase(t *testing.T) {
	env := newTestEnv(t, nil)
	stored, err := env.srv.opts.Analyzer.Analyze(context.Background(), "SITE_NORTH", filepath.Join(env.conf.VideosDir, "good.mp4"))
	require.NoError(t, err)

	rec := env.do(t, "GET", "/api/ppe/results/site_north", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[dao.AnalysisResult](t, rec)
	assert.Equal(t, stored.RunId, res.RunId)
	assert.Equal(t, "SITE_NORTH", res.SiteId)
	assert.False(t, res.Simulated)
}

func TestAlertErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/alerts/SITE_404", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_site", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, "GET", "/api/alerts/SITE_404/critical", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "GET", "/api/alerts/SITE_001/urgent", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_alert_type", decode[ErrorResponse](t, rec).Code)
}

func TestAlertsFallBackToSimulated(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/alerts/SITE_001/critical", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dao.SiteAlertsByTypeResponse](t, rec)
	assert.True(t, resp.Simulated)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, dao.AlertTypeNoHelmet, resp.Alerts[0].Type)

	rec = env.do(t, "GET", "/api/alerts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[dao.ListAlertsResponse](t, rec)
	assert.Len(t, all.Sites, 3)
	assert.Equal(t, 6, all.Total)
}

func TestAnalyzeThenRead(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/api/ppe/analyze/SITE_001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[dao.AnalysisResult](t, rec)
	assert.Equal(t, dao.RunStateComplete, res.State)
	assert.False(t, res.Simulated)
	assert.Equal(t, 90, res.TotalFramesProcessed)
	assert.Equal(t, 3, res.SampledFrames)
	// helmet on frames 0, 30, 60 and vest on frames 0, 60
	assert.Equal(t, 5, res.TotalViolations)
	assert.Equal(t, 75, res.ComplianceScore)

	rec = env.do(t, "GET", "/api/ppe/results/site_1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decode[dao.AnalysisResult](t, rec)
	assert.Equal(t, res.RunId, latest.RunId)

	rec = env.do(t, "GET", "/api/alerts/1/critical", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	crit := decode[dao.SiteAlertsByTypeResponse](t, rec)
	assert.False(t, crit.Simulated)
	assert.Equal(t, "SITE_001", crit.SiteId)
	assert.Equal(t, 3, crit.Total)

	rec = env.do(t, "GET", "/api/sites", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sites := decode[dao.ListSitesResponse](t, rec)
	require.Len(t, sites.Items, 3)
	assert.Equal(t, 75, sites.Items[0].Compliance)
	assert.Equal(t, 2.5, sites.Items[0].RiskScore)
	assert.Equal(t, "Low", sites.Items[0].RiskLevel)
	assert.False(t, sites.Items[0].Simulated)

	rec = env.do(t, "GET", "/api/dashboard/summary", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[dao.DashboardSummary](t, rec)
	assert.Equal(t, 3, sum.TotalSites)
	assert.Equal(t, 1, sum.TotalRuns)
	assert.Equal(t, 2, sum.SimulatedSites)
}

func TestAnalyzeMissingVideoIsSimulated(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "POST", "/api/ppe/analyze/SITE_003", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[dao.AnalysisResult](t, rec)
	assert.True(t, res.Simulated)
	assert.Contains(t, res.Error, "source unavailable")
}

func TestAnalyzeDecodeFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "POST", "/api/ppe/analyze/SITE_002", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[dao.AnalyzeErrorResponse](t, rec)
	assert.Contains(t, resp.Error, "corrupt frame")
	require.NotNil(t, resp.Result)
	assert.Equal(t, dao.RunStateFailed, resp.Result.State)
	assert.Equal(t, 40, resp.Result.TotalFramesProcessed)
}

func TestAnalyzeUnknownSite(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "POST", "/api/ppe/analyze/SITE_404", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchAnalyze(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/api/ppe/batch-analyze", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[dao.BatchAnalyzeResponse](t, rec)
	require.Len(t, resp.Tasks, 3)

	status := func(id string) dao.TaskStatus {
		rec := env.do(t, "GET", "/api/ppe/tasks/"+id, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		return decode[dao.TaskSpec](t, rec).Status
	}
	require.Eventually(t, func() bool {
		for _, spec := range resp.Tasks {
			if !status(spec.Id).Terminal() {
				return false
			}
		}
		return true
	}, 10*time.Second, 10*time.Millisecond)

	want := map[string]dao.TaskStatus{
		"SITE_001": dao.TaskStatusSucceeded,
		"SITE_002": dao.TaskStatusFailed,
		"SITE_003": dao.TaskStatusSucceeded,
	}
	for _, spec := range resp.Tasks {
		assert.Equal(t, want[spec.SiteId], status(spec.Id), spec.SiteId)
	}

	rec = env.do(t, "GET", "/api/ppe/tasks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[dao.ListTasksResponse](t, rec).Total)

	rec = env.do(t, "DELETE", "/api/ppe/tasks/"+resp.Tasks[0].Id, "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBatchAnalyzeSelectedSites(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/api/ppe/batch-analyze", `{"sites":["site-1","SITE_003"]}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[dao.BatchAnalyzeResponse](t, rec)
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, "SITE_001", resp.Tasks[0].SiteId)

	rec = env.do(t, "POST", "/api/ppe/batch-analyze", `{"sites":["SITE_404"]}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "POST", "/api/ppe/batch-analyze", `{"sites":["no such site!"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/ppe/tasks/nope", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, "DELETE", "/api/ppe/tasks/nope", "", nil).Code)
}

func TestAdminAuth(t *testing.T) {
	const secret = "s3cret"
	env := newTestEnv(t, func(conf *config.Config) {
		conf.JwtSecret = secret
	})

	rec := env.do(t, "POST", "/api/ppe/analyze/SITE_001", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "POST", "/api/ppe/analyze/SITE_001", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	viewer, err := NewToken(secret, "viewer", false, time.Hour)
	require.NoError(t, err)
	rec = env.do(t, "POST", "/api/ppe/analyze/SITE_001", "", map[string]string{"Authorization": "Bearer " + viewer})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	other, err := NewToken("other", "admin", true, time.Hour)
	require.NoError(t, err)
	rec = env.do(t, "POST", "/api/ppe/analyze/SITE_001", "", map[string]string{"Authorization": "Bearer " + other})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	admin, err := NewToken(secret, "admin", true, time.Hour)
	require.NoError(t, err)
	rec = env.do(t, "POST", "/api/ppe/analyze/SITE_001", "", map[string]string{"Authorization": "Bearer " + admin})
	assert.Equal(t, http.StatusOK, rec.Code)

	// reads stay open
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/api/ppe/results/SITE_001", "", nil).Code)
}

func TestVideoFeed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/video_feed/SITE_001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Equal(t, 3, strings.Count(body, "--frame\r\nContent-Type: image/jpeg\r\n"))

	assert.EqualValues(t, 3, env.metrics.FramesStreamed.Load())
	assert.EqualValues(t, 1, env.metrics.TotalStreams.Load())
	assert.EqualValues(t, 0, env.metrics.ActiveStreams.Load())

	rec = env.do(t, "GET", "/video_feed", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVideoFeedLimit(t *testing.T) {
	env := newTestEnv(t, func(conf *config.Config) {
		conf.Stream.MaxConcurrent = 1
	})
	require.True(t, env.srv.streamSem.TryAcquire(1))

	rec := env.do(t, "GET", "/video_feed/SITE_001", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.EqualValues(t, 1, env.metrics.RejectedStreams.Load())

	env.srv.streamSem.Release(1)
	rec = env.do(t, "GET", "/video_feed/SITE_001", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOverlay(t *testing.T) {
	playback := source.New(&source.PatternDecoder{Frames: 10}, source.Options{})
	frame := &source.Frame{Seq: 14, Pos: 4}
	lines := overlay(playback, frame, time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC))
	assert.Equal(t, []string{feedTitle, "Time: 08:30:00", "Frame: 5/10", "Status: VIDEO PLAYBACK"}, lines)

	live := source.New(&source.PatternDecoder{}, source.Options{})
	lines = overlay(live, frame, time.Now())
	assert.Equal(t, "Status: LIVE MONITORING", lines[len(lines)-1])

	simulated, err := source.PatternOpener{}.Open("", source.Options{})
	require.NoError(t, err)
	lines = overlay(simulated, frame, time.Now())
	assert.Equal(t, []string{"Frame: 15", "Status: SIMULATED FEED"}, lines[2:])
}

func TestStatusAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/ppe/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[dao.PPEStatusResponse](t, rec)
	assert.Equal(t, "empty", st.Detector)
	assert.True(t, st.ModelLoaded)
	assert.False(t, st.YoloAvailable)
	assert.False(t, st.WatcherRunning)
	assert.EqualValues(t, 16, st.MaxStreams)

	rec = env.do(t, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "siteguard_streams_active")
}

func TestCorsPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "OPTIONS", "/api/ppe/analyze/SITE_001", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownApiRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/api/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[ErrorResponse](t, rec).Error)
}

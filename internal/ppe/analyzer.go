package ppe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"siteguard/internal/config"
	"siteguard/internal/dao"
	"siteguard/internal/source"
	"siteguard/pkg/log"
)

// RunLog receives one row per sampled frame.
type RunLog interface {
	Append(s dao.ComplianceSample) error
	Path() string
	Close() error
}

type ResultStore interface {
	CreateRunLog(siteId string, started time.Time) (RunLog, error)
	SaveResult(ctx context.Context, r *dao.AnalysisResult) error
	SaveSnapshot(siteId, runId string, frame int, jpeg []byte) (string, error)
}

// Notifier is told about every persisted run. Implementations log their own failures.
type Notifier interface {
	RunFinished(ctx context.Context, r *dao.AnalysisResult)
}

type ModelStatus struct {
	Detector    string
	Simulated   bool
	ModelLoaded bool
	ModelError  string
}

type Analyzer struct {
	opener         source.Opener
	detector       Detector
	classifier     *Classifier
	policy         AlertPolicy
	store          ResultStore
	notifiers      []Notifier
	sampleInterval int
	defaultFps     float64
	keepAlerts     int
	jpegQuality    int
	modelErr       error
	now            func() time.Time
	logger         *logrus.Entry
}

func NewAnalyzer(ctx context.Context, conf *config.Config, opener source.Opener, detector Detector, store ResultStore) *Analyzer {
	if detector == nil {
		detector = PresentDetector{}
	}
	return &Analyzer{
		opener:   opener,
		detector: detector,
		classifier: NewClassifier(conf.Detector.ConfThreshold, map[dao.Category][]string{
			dao.CategoryHeadCovering: conf.Classifier.HeadCovering,
			dao.CategoryFaceCovering: conf.Classifier.FaceCovering,
			dao.CategoryVest:         conf.Classifier.Vest,
		}),
		policy:         NewAlertPolicy(conf.Analysis.Policy),
		store:          store,
		sampleInterval: conf.Analysis.SampleInterval,
		defaultFps:     conf.Analysis.DefaultFps,
		keepAlerts:     conf.Analysis.KeepAlerts,
		jpegQuality:    conf.Stream.JpegQuality,
		now:            time.Now,
		logger:         log.ComponentLogger(ctx, "analyzer"),
	}
}

func (a *Analyzer) AddNotifier(n Notifier) {
	a.notifiers = append(a.notifiers, n)
}

// SetModelError records why the real model could not be loaded.
func (a *Analyzer) SetModelError(err error) {
	a.modelErr = err
}

func (a *Analyzer) Policy() AlertPolicy {
	return a.policy
}

func (a *Analyzer) Status() ModelStatus {
	st := ModelStatus{
		Detector:    a.detector.Name(),
		Simulated:   a.detector.Simulated(),
		ModelLoaded: !a.detector.Simulated(),
	}
	if a.modelErr != nil {
		st.ModelError = a.modelErr.Error()
	}
	return st
}

// Simulated builds the flagged placeholder result for a site.
func (a *Analyzer) Simulated(siteId string) *dao.AnalysisResult {
	return SimulatedResult(siteId, a.now(), a.policy)
}

type run struct {
	result *dao.AnalysisResult
	logger *logrus.Entry
}

func (r *run) transition(to dao.RunState) {
	r.logger.Debugf("run %s: %s -> %s", r.result.RunId, r.result.State, to)
	r.result.State = to
}

// Analyze decodes the video at path and runs the compliance pipeline on every sampled frame.
// An unavailable source yields a simulated result and no error. A decode failure or
// cancellation ends the run in the failed state: the partial result is still persisted and
// returned together with an error wrapping ErrRunFailed.
func (a *Analyzer) Analyze(ctx context.Context, siteId, path string) (*dao.AnalysisResult, error) {
	logger := a.logger.WithField("site", siteId)
	started := a.now()

	src, err := a.opener.Open(path, source.Options{Loop: false})
	if err != nil {
		logger.WithError(err).Warnf("video %s unavailable, serving simulated result", path)
		res := a.Simulated(siteId)
		res.Error = fmt.Errorf("%w: %w", ErrSourceUnavailable, err).Error()
		return res, nil
	}
	defer src.Close()

	fps := src.FPS()
	if fps <= 0 {
		fps = a.defaultFps
	}

	r := &run{
		result: &dao.AnalysisResult{
			RunId:     uuid.NewString(),
			SiteId:    siteId,
			VideoPath: path,
			State:     dao.RunStateIdle,
			StartedAt: started,
			Detector:  a.detector.Name(),
			Simulated: a.detector.Simulated(),
			Status:    dao.StatusMeasured,
		},
		logger: logger,
	}
	if r.result.Simulated {
		r.result.Status = dao.StatusSimulatedDetection
	}

	runLog, err := a.store.CreateRunLog(siteId, started)
	if err != nil {
		return nil, fmt.Errorf("%w: create run log: %w", ErrRunFailed, err)
	}
	r.result.CsvLog = runLog.Path()

	logger.Infof("analysis %s started: %s, fps %.2f, frames %d, detector %s",
		r.result.RunId, path, fps, src.FrameCount(), a.detector.Name())

	gen := NewAlertGenerator(a.policy, fps, src.FrameCount(), a.now)
	r.transition(dao.RunStateRunning)
	runErr := a.loop(ctx, r, src, runLog, gen, fps)
	if runErr == nil && r.result.SampledFrames == 0 && r.result.SkippedSamples > 0 {
		// no sample was measured, the score would only reflect the empty generator
		runErr = fmt.Errorf("%w: detection failed on all %d samples", ErrModelUnavailable, r.result.SkippedSamples)
	}

	r.transition(dao.RunStateFinalizing)
	if err := runLog.Close(); err != nil {
		logger.WithError(err).Error("close run log")
	}
	res := r.result
	res.AnalysisTimestamp = a.now()
	res.TotalViolations = gen.Violations()
	res.ComplianceScore = gen.Score()
	res.Summary = gen.Summary()
	res.Alerts = gen.Last(a.keepAlerts)
	if runErr != nil {
		res.Error = runErr.Error()
		r.transition(dao.RunStateFailed)
	} else {
		r.transition(dao.RunStateComplete)
	}

	if err := a.store.SaveResult(ctx, res); err != nil {
		logger.WithError(err).Error("save analysis result")
		if runErr == nil {
			runErr = fmt.Errorf("save result: %w", err)
			res.Error = runErr.Error()
			res.State = dao.RunStateFailed
		}
	} else {
		for _, n := range a.notifiers {
			n.RunFinished(context.WithoutCancel(ctx), res)
		}
	}

	logger.Infof("analysis %s %s: frames %d, sampled %d, violations %d, score %d",
		res.RunId, res.State, res.TotalFramesProcessed, res.SampledFrames, res.TotalViolations, res.ComplianceScore)

	if runErr != nil {
		return res, fmt.Errorf("%w: %w", ErrRunFailed, runErr)
	}
	return res, nil
}

func (a *Analyzer) loop(ctx context.Context, r *run, src *source.Source, runLog RunLog, gen *AlertGenerator, fps float64) error {
	res := r.result
	lastLog := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("decode frame %d: %w", res.TotalFramesProcessed, err)
		}
		res.TotalFramesProcessed++

		if frame.Seq%a.sampleInterval == 0 {
			if err := a.sampleFrame(ctx, r, frame, runLog, gen, fps); err != nil {
				res.SkippedSamples++
				r.logger.WithError(err).Warnf("skip sample at frame %d", frame.Seq)
			}
		}
		frame.Close()

		if time.Since(lastLog) > 5*time.Second {
			r.logger.Infof("processed %d frames, %d violations", res.TotalFramesProcessed, gen.Violations())
			lastLog = time.Now()
		}
	}
}

func (a *Analyzer) sampleFrame(ctx context.Context, r *run, frame *source.Frame, runLog RunLog, gen *AlertGenerator, fps float64) error {
	t := float64(frame.Seq) / fps

	var sample dao.ComplianceSample
	var boxes []*dao.DetectionBox
	if _, ok := a.detector.(PresentDetector); ok {
		sample = a.classifier.AssumePresent(frame.Seq, t)
	} else {
		var err error
		boxes, err = a.detector.Detect(ctx, frame)
		if err != nil {
			return fmt.Errorf("detect: %w", err)
		}
		sample = a.classifier.Classify(frame.Seq, t, boxes)
		sample.Simulated = a.detector.Simulated()
	}
	r.result.SampledFrames++

	raised := gen.Add(sample)
	if err := runLog.Append(sample); err != nil {
		r.logger.WithError(err).Errorf("append run log at frame %d", frame.Seq)
	}
	if len(raised) > 0 && frame.Picture != nil {
		a.snapshot(r, frame, boxes, raised)
	}
	return nil
}

func (a *Analyzer) snapshot(r *run, frame *source.Frame, boxes []*dao.DetectionBox, raised []*dao.Alert) {
	frame.Picture.DrawBoxes(boxes)
	data, err := frame.Picture.EncodeJPEG(a.jpegQuality)
	if err != nil {
		r.logger.WithError(err).Warn("encode alert snapshot")
		return
	}
	p, err := a.store.SaveSnapshot(r.result.SiteId, r.result.RunId, frame.Seq, data)
	if err != nil {
		r.logger.WithError(err).Warn("save alert snapshot")
		return
	}
	for _, al := range raised {
		al.Image = p
	}
}

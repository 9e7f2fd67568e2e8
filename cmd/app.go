package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"

	"siteguard/internal/config"
	"siteguard/internal/metrics"
	"siteguard/internal/notify"
	"siteguard/internal/ppe"
	"siteguard/internal/source"
	"siteguard/internal/store"
	"siteguard/internal/task"
	"siteguard/internal/vision"
	"siteguard/pkg/log"
)

// app owns the long lived services of one process.
type app struct {
	conf     *config.Config
	db       *store.MetadataDB
	store    *store.Store
	metrics  *metrics.Metrics
	analyzer *ppe.Analyzer
	tasks    *task.Manager
	producer *nsq.Producer
	s3       bool
	logger   *logrus.Entry
}

func loadConfig() *config.Config {
	conf, err := config.InitConfig(configFile)
	if err != nil {
		logrus.Fatal("initConfig error, ", err.Error())
	}
	logrus.Infof("config: %s", conf)
	return conf
}

func newDetector(ctx context.Context, conf *config.Config) (ppe.Detector, error) {
	fallback := func() ppe.Detector {
		if conf.Detector.Fallback == "present" {
			return ppe.PresentDetector{}
		}
		seed := conf.Detector.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return ppe.NewRandomDetector(seed)
	}
	if conf.Detector.Backend != "triton" {
		return fallback(), nil
	}

	detector, err := vision.NewTritonDetector(conf.Detector.Triton)
	if err != nil {
		return fallback(), fmt.Errorf("%w: %w", ppe.ErrModelUnavailable, err)
	}
	readyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := detector.Ready(readyCtx); err != nil {
		return fallback(), fmt.Errorf("%w: %w", ppe.ErrModelUnavailable, err)
	}
	return detector, nil
}

// streamOpener serves the video file, else the capture device, else the test pattern.
func streamOpener(ctx context.Context, conf *config.Config) source.Opener {
	logger := log.ComponentLogger(ctx, "stream")
	pattern := source.PatternOpener{
		Width:  conf.Stream.Width,
		Height: conf.Stream.Height,
		Rate:   conf.Stream.DefaultFps,
	}
	var fallback source.Opener = pattern
	if conf.Stream.Device >= 0 {
		fallback = source.FallbackOpener{
			Primary: vision.DeviceOpener{
				Device: conf.Stream.Device,
				Width:  conf.Stream.Width,
				Height: conf.Stream.Height,
			},
			Fallback: pattern,
			OnError: func(path string, err error) {
				logger.WithError(err).Warn("capture device unavailable, serving simulated feed")
			},
		}
	}
	return source.FallbackOpener{
		Primary:  vision.FileOpener{},
		Fallback: fallback,
		OnError: func(path string, err error) {
			logger.WithError(err).Warnf("video %q unavailable", path)
		},
	}
}

func newApp(ctx context.Context, conf *config.Config) (*app, error) {
	a := &app{
		conf:    conf,
		metrics: metrics.New(),
		logger:  log.ComponentLogger(ctx, "app"),
	}

	db, err := store.NewMetadataDB(conf.DataDir(), a.logger)
	if err != nil {
		return nil, err
	}
	a.db = db

	a.store, err = store.New(ctx, conf.ResultsDir(), db)
	if err != nil {
		a.close()
		return nil, err
	}

	detector, modelErr := newDetector(ctx, conf)
	a.analyzer = ppe.NewAnalyzer(ctx, conf, vision.FileOpener{}, detector, a.store)
	if modelErr != nil {
		a.logger.WithError(modelErr).Warnf("falling back to %s detector", detector.Name())
		a.analyzer.SetModelError(modelErr)
	}
	a.analyzer.AddNotifier(a.metrics)

	if conf.NSQ.Enabled {
		a.producer, err = notify.NewNSQProducer(conf.NSQ)
		if err != nil {
			a.close()
			return nil, err
		}
		a.analyzer.AddNotifier(notify.NewNSQNotifier(ctx, a.producer, conf.NSQ.Topic))
	}
	if conf.S3.Enabled {
		cli, err := notify.NewMinioClient(conf.S3)
		if err != nil {
			a.close()
			return nil, err
		}
		a.analyzer.AddNotifier(notify.NewS3Uploader(ctx, cli, conf.S3.Bucket))
		a.s3 = true
	}

	a.tasks = task.NewManager(ctx, conf.Task.MaxConcurrent, conf.TaskRetention(), db)
	a.logger.Infof("detector %s, decoder available %v", detector.Name(), vision.DecoderAvailable())
	return a, nil
}

// close waits for running tasks, then releases the stores.
func (a *app) close() {
	if a.tasks != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := a.tasks.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Warn("tasks did not stop in time")
		}
		cancel()
	}
	if a.producer != nil {
		a.producer.Stop()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).Error("close metadata db")
		}
	}
}

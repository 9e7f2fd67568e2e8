package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"siteguard/internal/config"
	"siteguard/internal/dao"
	"siteguard/internal/ppe"
	"siteguard/internal/task"
	"siteguard/pkg/log"
)

// AnalyzeFunc runs one analysis of the video at path for siteId.
type AnalyzeFunc func(ctx context.Context, siteId, path string) (*dao.AnalysisResult, error)

// Recorder counts watcher outcomes, see metrics.Metrics.
type Recorder interface {
	WatcherFile(outcome string)
}

type Watcher struct {
	dir        string
	exts       map[string]bool
	stableWait time.Duration
	state      *State
	resolver   SiteResolver
	tasks      *task.Manager
	analyze    AnalyzeFunc
	recorder   Recorder
	// sleep waits between the two size probes of the stability check.
	sleep   func(ctx context.Context, d time.Duration) error
	running atomic.Bool
	wg      sync.WaitGroup
	logger  *logrus.Entry
}

func New(ctx context.Context, conf config.WatcherConfig, tasks *task.Manager, analyze AnalyzeFunc, recorder Recorder) (*Watcher, error) {
	if err := os.MkdirAll(conf.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create watch dir: %w", err)
	}
	state, err := LoadState(filepath.Join(conf.Dir, processedLogName))
	if err != nil {
		return nil, err
	}
	exts := make(map[string]bool, len(conf.Extensions))
	for _, ext := range conf.Extensions {
		exts[strings.ToLower(ext)] = true
	}
	w := &Watcher{
		dir:        conf.Dir,
		exts:       exts,
		stableWait: time.Duration(conf.StableWaitSec) * time.Second,
		state:      state,
		tasks:      tasks,
		analyze:    analyze,
		recorder:   recorder,
		sleep:      sleepCtx,
		logger:     log.ComponentLogger(ctx, "watcher"),
	}
	w.resolver = Chain{
		SiteNumberRule{},
		GenericSiteRule{},
		RoundRobin{Sites: conf.SiteCount, Count: state.CompletedCount},
	}
	return w, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SetResolver replaces the default site resolver chain.
func (w *Watcher) SetResolver(r SiteResolver) {
	w.resolver = r
}

func (w *Watcher) Dir() string {
	return w.dir
}

func (w *Watcher) State() *State {
	return w.state
}

func (w *Watcher) Running() bool {
	return w.running.Load()
}

func (w *Watcher) record(outcome string) {
	if w.recorder != nil {
		w.recorder.WatcherFile(outcome)
	}
}

// Run queues the unprocessed files already in the directory, then follows
// directory events until ctx is done. It returns after in-flight files settle.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.running.Store(true)
	defer func() {
		w.running.Store(false)
		w.wg.Wait()
		w.logger.Info("watcher stopped")
	}()

	abs, _ := filepath.Abs(w.dir)
	w.logger.Infof("watching %s for %s", abs, strings.Join(w.extensions(), ", "))
	w.QueueExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			// a move into the directory shows up as Create, some platforms also report Rename
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.Handle(ctx, ev.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("fsnotify error")
		}
	}
}

func (w *Watcher) extensions() []string {
	exts := make([]string, 0, len(w.exts))
	for ext := range w.exts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// QueueExisting handles every supported file already present in the directory.
func (w *Watcher) QueueExisting(ctx context.Context) int {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.WithError(err).Error("list watch dir")
		return 0
	}
	queued := 0
	for _, e := range entries {
		if !e.IsDir() && w.Handle(ctx, filepath.Join(w.dir, e.Name())) {
			queued++
		}
	}
	if queued > 0 {
		w.logger.Infof("found %d existing video files to process", queued)
	}
	return queued
}

func (w *Watcher) Supported(path string) bool {
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

// Handle starts processing path in the background. It returns false when the
// file is not a supported video or its name is already completed or in flight.
func (w *Watcher) Handle(ctx context.Context, path string) bool {
	name := filepath.Base(path)
	if !w.Supported(name) {
		return false
	}
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		return false
	}
	if !w.state.TryBegin(name) {
		w.record("skipped")
		return false
	}

	w.logger.Infof("new video detected: %s", name)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.process(ctx, path, name)
	}()
	return true
}

// Wait blocks until every file handed to Handle has settled.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) process(ctx context.Context, path, name string) {
	logger := w.logger.WithField("file", name)
	completed := false
	defer func() {
		if err := w.state.Finish(name, completed); err != nil {
			logger.WithError(err).Error("record processed file")
		}
	}()

	if err := w.waitStable(ctx, path); err != nil {
		logger.WithError(err).Warn("file appears incomplete, leaving it for a later event")
		w.record("unstable")
		return
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	assignment, _ := w.resolver.Resolve(stem)
	if assignment.Fallback {
		logger.Warnf("no site id in file name, assigned %s by %s", assignment.SiteId, assignment.Rule)
	}
	logger.Infof("processing for %s", assignment.SiteId)

	t, err := w.tasks.Submit("watch "+name, assignment.SiteId, func(ctx context.Context) (*dao.AnalysisResult, error) {
		return w.analyze(ctx, assignment.SiteId, path)
	})
	if err != nil {
		logger.WithError(err).Error("submit analysis")
		w.record("error")
		return
	}
	w.record("dispatched")

	res, err := t.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		// interrupted by shutdown, the file is picked up again on the next start.
		// A task canceled by a user while the watcher runs counts as finished.
		logger.WithError(err).Warn("analysis interrupted")
		return
	}
	completed = true
	if err != nil {
		logger.WithError(err).Error("analysis failed")
		w.record("failed")
	} else {
		w.record("completed")
	}
	if res == nil {
		return
	}
	res.Assignment = &assignment
	logger.Infof("analysis complete: site %s, compliance %d%%, violations %d",
		assignment.SiteId, res.ComplianceScore, res.TotalViolations)
	if res.TotalViolations > 0 {
		logger.Warnf("%d safety violations detected", res.TotalViolations)
	}
	if err := w.writeSummary(name, res); err != nil {
		logger.WithError(err).Error("write video summary")
	}
}

// waitStable is a heuristic upload check: the size must be non zero and
// unchanged across the stability interval.
func (w *Watcher) waitStable(ctx context.Context, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ppe.ErrIncompleteUpload, err)
	}
	initial := fi.Size()
	if err := w.sleep(ctx, w.stableWait); err != nil {
		return err
	}
	fi, err = os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ppe.ErrIncompleteUpload, err)
	}
	if fi.Size() == 0 || fi.Size() != initial {
		return fmt.Errorf("%w: size %d -> %d", ppe.ErrIncompleteUpload, initial, fi.Size())
	}
	return nil
}

func (w *Watcher) writeSummary(name string, res *dao.AnalysisResult) error {
	dir := filepath.Join(w.dir, "summaries")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "PPE Analysis Summary\n")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("=", 50))
	fmt.Fprintf(&b, "Video File: %s\n", name)
	fmt.Fprintf(&b, "Site ID: %s\n", res.SiteId)
	if res.Assignment != nil {
		fmt.Fprintf(&b, "Site Rule: %s (fallback: %v)\n", res.Assignment.Rule, res.Assignment.Fallback)
	}
	fmt.Fprintf(&b, "Status: %s (%s)\n", res.State, res.Status)
	fmt.Fprintf(&b, "Simulated: %v\n", res.Simulated)
	fmt.Fprintf(&b, "Analysis Time: %s\n", res.AnalysisTimestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Compliance Score: %d%%\n", res.ComplianceScore)
	fmt.Fprintf(&b, "Total Violations: %d\n", res.TotalViolations)
	fmt.Fprintf(&b, "Frames Processed: %d\n", res.TotalFramesProcessed)
	if res.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", res.Error)
	}
	fmt.Fprintf(&b, "\nViolation Breakdown:\n")
	fmt.Fprintf(&b, "- Helmet Violations: %d\n", res.Summary.HelmetViolations)
	fmt.Fprintf(&b, "- Mask Violations: %d\n", res.Summary.MaskViolations)
	fmt.Fprintf(&b, "- Vest Violations: %d\n", res.Summary.VestViolations)
	fmt.Fprintf(&b, "\nRecent Alerts:\n")
	for i, a := range res.Alerts {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", a.Type, a.Description)
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return os.WriteFile(filepath.Join(dir, stem+"_summary.txt"), []byte(b.String()), 0644)
}

package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"siteguard/internal/dao"
	"siteguard/internal/ppe"
	"siteguard/pkg/log"
)

const (
	csvPrefix  = "ppe_analysis_"
	jsonPrefix = "ppe_alerts_"
	stampFmt   = "20060102_150405"
)

// ErrNoResults is returned by Latest when a site has never been analyzed.
var ErrNoResults = fmt.Errorf("%w: no persisted results", ppe.ErrMalformedState)

var csvHeader = []string{
	"frame", "time_s", "hat_present", "mask_present", "vest_present",
	"hat_count", "mask_count", "vest_count",
	"alert_hat", "alert_mask", "alert_vest",
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SafeName makes a site id usable inside a file name.
func SafeName(siteId string) string {
	s := unsafeChars.ReplaceAllString(siteId, "_")
	if s == "" {
		return "_"
	}
	return s
}

// Store keeps run artifacts as files under dir and indexes them in the metadata DB.
type Store struct {
	dir    string
	db     *MetadataDB
	logger *logrus.Entry
}

// New creates dir if needed. db may be nil, lookups then scan the directory.
func New(ctx context.Context, dir string, db *MetadataDB) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Store{
		dir:    dir,
		db:     db,
		logger: log.ComponentLogger(ctx, "store"),
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// CSVLog writes one row per sampled frame and flushes after every row,
// so a failed run leaves a readable partial log.
type CSVLog struct {
	f    *os.File
	w    *csv.Writer
	path string
}

func (s *Store) CreateRunLog(siteId string, started time.Time) (ppe.RunLog, error) {
	base := csvPrefix + SafeName(siteId) + "_" + started.Format(stampFmt)
	var f *os.File
	var p string
	for i := 0; ; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		p = filepath.Join(s.dir, name+".csv")
		var err error
		f, err = os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) || i >= 100 {
			return nil, fmt.Errorf("create run log: %w", err)
		}
	}

	l := &CSVLog{f: f, w: csv.NewWriter(f), path: p}
	if err := l.write(csvHeader); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *CSVLog) write(row []string) error {
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func status(present bool, missing string) string {
	if present {
		return "OK"
	}
	return missing
}

func (l *CSVLog) Append(smp dao.ComplianceSample) error {
	hat := smp.Present[dao.CategoryHeadCovering]
	mask := smp.Present[dao.CategoryFaceCovering]
	vest := smp.Present[dao.CategoryVest]
	return l.write([]string{
		strconv.Itoa(smp.Frame),
		strconv.FormatFloat(smp.Time, 'f', 3, 64),
		flag(hat), flag(mask), flag(vest),
		strconv.Itoa(smp.Counts[dao.CategoryHeadCovering]),
		strconv.Itoa(smp.Counts[dao.CategoryFaceCovering]),
		strconv.Itoa(smp.Counts[dao.CategoryVest]),
		status(hat, "NO_HAT"),
		status(mask, "NO_MASK"),
		status(vest, "NO_VEST"),
	})
}

func (l *CSVLog) Path() string {
	return l.path
}

func (l *CSVLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

func (s *Store) summaryPath(r *dao.AnalysisResult) string {
	if r.CsvLog != "" {
		base := strings.TrimSuffix(filepath.Base(r.CsvLog), ".csv")
		return filepath.Join(s.dir, jsonPrefix+strings.TrimPrefix(base, csvPrefix)+".json")
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s%s_%s.json", jsonPrefix, SafeName(r.SiteId), r.StartedAt.Format(stampFmt)))
}

// SaveResult writes the JSON summary next to the run's CSV log and indexes it.
func (s *Store) SaveResult(ctx context.Context, r *dao.AnalysisResult) error {
	r.SummaryPath = s.summaryPath(r)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis result: %w", err)
	}

	tmpPath := r.SummaryPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write summary file: %w", err)
	}
	if err := os.Rename(tmpPath, r.SummaryPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename summary file: %w", err)
	}

	if s.db != nil {
		if err := s.db.AddRun(NewRunRecord(r)); err != nil {
			return fmt.Errorf("index run %s: %w", r.RunId, err)
		}
	}
	s.logger.Debugf("saved run %s to %s", r.RunId, r.SummaryPath)
	return nil
}

func (s *Store) SaveSnapshot(siteId, runId string, frame int, jpeg []byte) (string, error) {
	dir := filepath.Join(s.dir, "snapshots", SafeName(siteId), runId)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, fmt.Sprintf("frame_%06d.jpg", frame))
	if err := os.WriteFile(p, jpeg, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return p, nil
}

// Latest returns the persisted run of a site that started last, which is not
// necessarily the one that finished last. Missing or unreadable
// results are reported as ppe.ErrMalformedState so callers can fall back.
func (s *Store) Latest(siteId string) (*dao.AnalysisResult, error) {
	p, err := s.latestPath(siteId)
	if err != nil {
		return nil, err
	}
	return ReadResult(p)
}

func (s *Store) latestPath(siteId string) (string, error) {
	if s.db != nil {
		rec, err := s.db.GetLatestRun(siteId)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ppe.ErrMalformedState, err)
		}
		if rec != nil {
			return rec.SummaryPath, nil
		}
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, jsonPrefix+SafeName(siteId)+"_*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrNoResults
	}
	// stamps sort lexically in time order
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func ReadResult(p string) (*dao.AnalysisResult, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ppe.ErrMalformedState, err)
	}
	r := &dao.AnalysisResult{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ppe.ErrMalformedState, filepath.Base(p), err)
	}
	if r.SiteId == "" {
		return nil, fmt.Errorf("%w: %s has no site id", ppe.ErrMalformedState, filepath.Base(p))
	}
	return r, nil
}

// Runs lists indexed runs, newest first. Without a metadata DB nothing is indexed.
func (s *Store) Runs(siteId string) ([]*RunRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.ListRuns(siteId)
}

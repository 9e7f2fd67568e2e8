package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteguard/internal/dao"
	"siteguard/internal/ppe"
)

func newTestDB(t *testing.T) *MetadataDB {
	t.Helper()
	db, err := NewMetadataDB("", logrus.NewEntry(logrus.StandardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T, db *MetadataDB) *Store {
	t.Helper()
	s, err := New(context.Background(), t.TempDir(), db)
	require.NoError(t, err)
	return s
}

func sample(frame int, hat, mask, vest bool) dao.ComplianceSample {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	return dao.ComplianceSample{
		Frame: frame,
		Time:  float64(frame) / 30,
		Present: map[dao.Category]bool{
			dao.CategoryHeadCovering: hat,
			dao.CategoryFaceCovering: mask,
			dao.CategoryVest:         vest,
		},
		Counts: map[dao.Category]int{
			dao.CategoryHeadCovering: b(hat),
			dao.CategoryFaceCovering: b(mask),
			dao.CategoryVest:         b(vest),
		},
	}
}

func TestRunLogColumns(t *testing.T) {
	s := newTestStore(t, nil)
	started := time.Date(2026, 5, 4, 10, 30, 0, 0, time.Local)
	l, err := s.CreateRunLog("SITE_001", started)
	require.NoError(t, err)
	require.NoError(t, l.Append(sample(30, false, true, true)))
	require.NoError(t, l.Append(sample(60, true, true, false)))
	require.NoError(t, l.Close())

	assert.Equal(t, "ppe_analysis_SITE_001_20260504_103000.csv", filepath.Base(l.Path()))
	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "frame,time_s,hat_present,mask_present,vest_present,hat_count,mask_count,vest_count,alert_hat,alert_mask,alert_vest", lines[0])
	assert.Equal(t, "30,1.000,0,1,1,0,1,1,NO_HAT,OK,OK", lines[1])
	assert.Equal(t, "60,2.000,1,1,0,1,1,0,OK,OK,NO_VEST", lines[2])

	// a second run in the same second gets its own file
	l2, err := s.CreateRunLog("SITE_001", started)
	require.NoError(t, err)
	defer l2.Close()
	assert.NotEqual(t, l.Path(), l2.Path())
}

func result(siteId string, started time.Time, score int) *dao.AnalysisResult {
	return &dao.AnalysisResult{
		RunId:             "run-" + started.Format("150405"),
		SiteId:            siteId,
		VideoPath:         "site.mp4",
		State:             dao.RunStateComplete,
		StartedAt:         started,
		AnalysisTimestamp: started.Add(time.Minute),
		ComplianceScore:   score,
		Alerts:            []*dao.Alert{{Id: "a1", Type: dao.AlertTypeNoHelmet, Severity: dao.SeverityCritical}},
		Status:            dao.StatusMeasured,
	}
}

func TestSaveAndLatest(t *testing.T) {
	for _, withDB := range []bool{true, false} {
		var db *MetadataDB
		if withDB {
			db = newTestDB(t)
		}
		s := newTestStore(t, db)
		t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)

		first := result("SITE_002", t0, 90)
		l, err := s.CreateRunLog(first.SiteId, first.StartedAt)
		require.NoError(t, err)
		require.NoError(t, l.Close())
		first.CsvLog = l.Path()
		require.NoError(t, s.SaveResult(context.Background(), first))
		assert.Equal(t, "ppe_alerts_SITE_002_20260504_100000.json", filepath.Base(first.SummaryPath))

		second := result("SITE_002", t0.Add(time.Hour), 40)
		require.NoError(t, s.SaveResult(context.Background(), second))

		latest, err := s.Latest("SITE_002")
		require.NoError(t, err, "withDB=%v", withDB)
		assert.Equal(t, second.RunId, latest.RunId)
		assert.Equal(t, 40, latest.ComplianceScore)
		require.Len(t, latest.Alerts, 1)
		assert.Equal(t, dao.AlertTypeNoHelmet, latest.Alerts[0].Type)

		_, err = s.Latest("SITE_009")
		assert.ErrorIs(t, err, ErrNoResults)
		assert.ErrorIs(t, err, ppe.ErrMalformedState)
	}
}

func TestLatestMalformed(t *testing.T) {
	s := newTestStore(t, nil)
	p := filepath.Join(s.Dir(), "ppe_alerts_SITE_003_20260504_100000.json")
	require.NoError(t, os.WriteFile(p, []byte("{not json"), 0644))

	_, err := s.Latest("SITE_003")
	assert.ErrorIs(t, err, ppe.ErrMalformedState)

	db := newTestDB(t)
	s = newTestStore(t, db)
	r := result("SITE_003", time.Now(), 80)
	require.NoError(t, s.SaveResult(context.Background(), r))
	require.NoError(t, os.Remove(r.SummaryPath))
	_, err = s.Latest("SITE_003")
	assert.ErrorIs(t, err, ppe.ErrMalformedState)
}

func TestRunsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	s := newTestStore(t, db)
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveResult(context.Background(), result("SITE_001", t0.Add(time.Duration(i)*time.Hour), 100-i)))
	}
	require.NoError(t, s.SaveResult(context.Background(), result("SITE_0010", t0, 50)))

	runs, err := s.Runs("SITE_001")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 98, runs[0].ComplianceScore)
	assert.Equal(t, 100, runs[2].ComplianceScore)

	all, err := s.Runs("")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestLatestFollowsStartTime(t *testing.T) {
	for _, withDB := range []bool{true, false} {
		var db *MetadataDB
		if withDB {
			db = newTestDB(t)
		}
		s := newTestStore(t, db)
		t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)

		// the later run finishes first
		later := result("SITE_001", t0.Add(time.Minute), 80)
		earlier := result("SITE_001", t0, 60)
		require.NoError(t, s.SaveResult(context.Background(), later))
		require.NoError(t, s.SaveResult(context.Background(), earlier))

		latest, err := s.Latest("SITE_001")
		require.NoError(t, err)
		assert.Equal(t, later.RunId, latest.RunId, "withDB=%v", withDB)
		assert.Equal(t, 80, latest.ComplianceScore)
	}
}

func TestSaveSnapshot(t *testing.T) {
	s := newTestStore(t, nil)
	p, err := s.SaveSnapshot("SITE/../x", "run1", 30, []byte{0xff, 0xd8})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, s.Dir()))
	assert.Equal(t, "frame_000030.jpg", filepath.Base(p))
}

func TestTaskRecords(t *testing.T) {
	db := newTestDB(t)
	task := &dao.TaskSpec{Id: "t1", Name: "analyze", SiteId: "SITE_001", Status: dao.TaskStatusPending, CreateTime: time.Now()}
	require.NoError(t, db.SetTask(task))

	got, err := db.GetTask("t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "SITE_001", got.SiteId)

	missing, err := db.GetTask("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	tasks, err := db.ListTasks()
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	require.NoError(t, db.DeleteTask("t1"))
	tasks, err = db.ListTasks()
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

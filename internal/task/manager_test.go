package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteguard/internal/dao"
	"siteguard/internal/store"
)

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmitAndWait(t *testing.T) {
	m := NewManager(context.Background(), 2, time.Hour, nil)
	task, err := m.Submit("analyze", "SITE_001", func(ctx context.Context) (*dao.AnalysisResult, error) {
		return &dao.AnalysisResult{SiteId: "SITE_001", ComplianceScore: 95}, nil
	})
	require.NoError(t, err)

	res, err := task.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 95, res.ComplianceScore)

	spec, err := m.Get(task.Id())
	require.NoError(t, err)
	assert.Equal(t, dao.TaskStatusSucceeded, spec.Status)
	assert.NotNil(t, spec.StartTime)
	assert.NotNil(t, spec.FinishTime)
}

func TestFailedTaskKeepsResult(t *testing.T) {
	m := NewManager(context.Background(), 1, time.Hour, nil)
	task, err := m.Submit("analyze", "SITE_002", func(ctx context.Context) (*dao.AnalysisResult, error) {
		return &dao.AnalysisResult{State: dao.RunStateFailed}, errors.New("decode failed")
	})
	require.NoError(t, err)
	res, err := task.Wait(waitCtx(t))
	require.Error(t, err)
	require.NotNil(t, res)

	spec := task.Snapshot()
	assert.Equal(t, dao.TaskStatusFailed, spec.Status)
	assert.Equal(t, "decode failed", spec.Error)
}

func TestConcurrencyBound(t *testing.T) {
	m := NewManager(context.Background(), 1, time.Hour, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	first, err := m.Submit("first", "", func(ctx context.Context) (*dao.AnalysisResult, error) {
		close(started)
		<-release
		return nil, nil
	})
	require.NoError(t, err)
	<-started

	second, err := m.Submit("second", "", func(ctx context.Context) (*dao.AnalysisResult, error) {
		return nil, nil
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, dao.TaskStatusRunning, first.Snapshot().Status)
	assert.Equal(t, dao.TaskStatusPending, second.Snapshot().Status)

	close(release)
	_, err = second.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, dao.TaskStatusSucceeded, second.Snapshot().Status)
}

func TestCancel(t *testing.T) {
	m := NewManager(context.Background(), 1, time.Hour, nil)
	started := make(chan struct{})
	running, err := m.Submit("running", "", func(ctx context.Context) (*dao.AnalysisResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	<-started
	pending, err := m.Submit("pending", "", func(ctx context.Context) (*dao.AnalysisResult, error) {
		t.Error("pending task must not run")
		return nil, nil
	})
	require.NoError(t, err)

	assert.True(t, m.Cancel(pending.Id()))
	<-pending.Done()
	assert.Equal(t, dao.TaskStatusCanceled, pending.Snapshot().Status)
	assert.Nil(t, pending.Snapshot().StartTime)

	assert.True(t, m.Cancel(running.Id()))
	_, err = running.Wait(waitCtx(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, dao.TaskStatusCanceled, running.Snapshot().Status)

	assert.False(t, m.Cancel("unknown"))
}

func TestPersistenceAndRecovery(t *testing.T) {
	db, err := store.NewMetadataDB("", logrus.NewEntry(logrus.StandardLogger()))
	require.NoError(t, err)
	defer db.Close()

	stale := &dao.TaskSpec{Id: "stale", Name: "analyze", Status: dao.TaskStatusRunning, CreateTime: time.Now().Add(-time.Minute)}
	require.NoError(t, db.SetTask(stale))

	m := NewManager(context.Background(), 1, time.Hour, db)
	recovered, err := m.Get("stale")
	require.NoError(t, err)
	require.NotNil(t, recovered)
	assert.Equal(t, dao.TaskStatusFailed, recovered.Status)
	assert.Equal(t, "interrupted by restart", recovered.Error)

	task, err := m.Submit("analyze", "SITE_003", func(ctx context.Context) (*dao.AnalysisResult, error) {
		return &dao.AnalysisResult{SiteId: "SITE_003"}, nil
	})
	require.NoError(t, err)
	_, err = task.Wait(waitCtx(t))
	require.NoError(t, err)

	persisted, err := db.GetTask(task.Id())
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, dao.TaskStatusSucceeded, persisted.Status)

	items, err := m.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, task.Id(), items[0].Id)
}

func TestShutdown(t *testing.T) {
	m := NewManager(context.Background(), 1, time.Hour, nil)
	task, err := m.Submit("long", "", func(ctx context.Context) (*dao.AnalysisResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	require.NoError(t, m.Shutdown(waitCtx(t)))
	assert.Equal(t, dao.TaskStatusCanceled, task.Snapshot().Status)

	_, err = m.Submit("late", "", func(ctx context.Context) (*dao.AnalysisResult, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrShutdown)
}

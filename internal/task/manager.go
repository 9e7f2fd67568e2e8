package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"siteguard/internal/dao"
	"siteguard/pkg/log"
)

var ErrShutdown = errors.New("task manager is shut down")

// Func is the body of a task. It must return promptly once ctx is canceled.
type Func func(ctx context.Context) (*dao.AnalysisResult, error)

// Store persists task records so they outlive the process.
type Store interface {
	SetTask(task *dao.TaskSpec) error
	GetTask(id string) (*dao.TaskSpec, error)
	DeleteTask(id string) error
	ListTasks() ([]*dao.TaskSpec, error)
}

// Task is a handle on one submitted unit of work.
type Task struct {
	mu     sync.Mutex
	spec   dao.TaskSpec
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *Task) Id() string {
	return t.spec.Id
}

// Done is closed once the task reached a terminal status.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (*dao.AnalysisResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spec.Result, t.err
}

func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) Snapshot() *dao.TaskSpec {
	t.mu.Lock()
	defer t.mu.Unlock()
	spec := t.spec
	return &spec
}

func (t *Task) update(fn func(spec *dao.TaskSpec)) *dao.TaskSpec {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.spec)
	spec := t.spec
	return &spec
}

// Manager runs tasks in the background with a bound on how many run at once.
type Manager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	sem       *semaphore.Weighted
	db        Store
	retention time.Duration
	logger    *logrus.Entry

	mu     sync.RWMutex
	tasks  map[string]*Task
	closed bool
	wg     sync.WaitGroup
}

// NewManager marks records left unfinished by a previous process as failed. db may be nil.
func NewManager(parentCtx context.Context, maxConcurrent int64, retention time.Duration, db Store) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(parentCtx)
	m := &Manager{
		ctx:       ctx,
		cancel:    cancel,
		sem:       semaphore.NewWeighted(maxConcurrent),
		db:        db,
		retention: retention,
		logger:    log.ComponentLogger(ctx, "task"),
		tasks:     make(map[string]*Task),
	}
	m.recover()
	return m
}

func (m *Manager) recover() {
	if m.db == nil {
		return
	}
	records, err := m.db.ListTasks()
	if err != nil {
		m.logger.WithError(err).Error("list persisted tasks")
		return
	}
	now := time.Now()
	for _, rec := range records {
		if rec.Status.Terminal() {
			continue
		}
		rec.Status = dao.TaskStatusFailed
		rec.Error = "interrupted by restart"
		rec.FinishTime = &now
		if err := m.db.SetTask(rec); err != nil {
			m.logger.WithError(err).Errorf("mark task %s interrupted", rec.Id)
		}
	}
}

// Submit queues fn. The returned task starts once a slot is free.
func (m *Manager) Submit(name, siteId string, fn Func) (*Task, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	ctx, cancel := context.WithCancel(m.ctx)
	t := &Task{
		spec: dao.TaskSpec{
			Id:         uuid.NewString(),
			Name:       name,
			SiteId:     siteId,
			Status:     dao.TaskStatusPending,
			CreateTime: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.tasks[t.spec.Id] = t
	m.wg.Add(1)
	m.mu.Unlock()

	m.persist(t.Snapshot())
	m.prune()

	go m.run(ctx, t, fn)
	return t, nil
}

func (m *Manager) run(ctx context.Context, t *Task, fn Func) {
	defer m.wg.Done()
	defer close(t.done)
	defer t.cancel()
	logger := m.logger.WithField("task", t.Id())

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.finish(t, nil, err)
		logger.Infof("%s canceled before start", t.spec.Name)
		return
	}
	defer m.sem.Release(1)

	m.persist(t.update(func(spec *dao.TaskSpec) {
		now := time.Now()
		spec.Status = dao.TaskStatusRunning
		spec.StartTime = &now
	}))
	logger.Infof("%s started", t.spec.Name)

	res, err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	spec := m.finish(t, res, err)
	logger.Infof("%s %s", spec.Name, spec.Status)
}

func (m *Manager) finish(t *Task, res *dao.AnalysisResult, err error) *dao.TaskSpec {
	spec := t.update(func(spec *dao.TaskSpec) {
		now := time.Now()
		spec.FinishTime = &now
		spec.Result = res
		switch {
		case errors.Is(err, context.Canceled):
			spec.Status = dao.TaskStatusCanceled
			spec.Error = err.Error()
		case err != nil:
			spec.Status = dao.TaskStatusFailed
			spec.Error = err.Error()
		default:
			spec.Status = dao.TaskStatusSucceeded
		}
	})
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	m.persist(spec)
	return spec
}

func (m *Manager) persist(spec *dao.TaskSpec) {
	if m.db == nil {
		return
	}
	if err := m.db.SetTask(spec); err != nil {
		m.logger.WithError(err).Errorf("persist task %s", spec.Id)
	}
}

// prune forgets finished tasks older than the retention period.
func (m *Manager) prune() {
	if m.retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-m.retention)
	var expired []string
	m.mu.Lock()
	for id, t := range m.tasks {
		spec := t.Snapshot()
		if spec.Status.Terminal() && spec.FinishTime != nil && spec.FinishTime.Before(cutoff) {
			delete(m.tasks, id)
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	if m.db == nil {
		return
	}
	for _, id := range expired {
		if err := m.db.DeleteTask(id); err != nil {
			m.logger.WithError(err).Errorf("delete task %s", id)
		}
	}
}

func (m *Manager) Task(id string) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Get looks the task up in memory first, then in the persisted records.
func (m *Manager) Get(id string) (*dao.TaskSpec, error) {
	if t, ok := m.Task(id); ok {
		return t.Snapshot(), nil
	}
	if m.db == nil {
		return nil, nil
	}
	spec, err := m.db.GetTask(id)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return spec, nil
}

// List returns every known task, newest first.
func (m *Manager) List() ([]*dao.TaskSpec, error) {
	specs := make(map[string]*dao.TaskSpec)
	if m.db != nil {
		records, err := m.db.ListTasks()
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		for _, rec := range records {
			specs[rec.Id] = rec
		}
	}
	m.mu.RLock()
	for id, t := range m.tasks {
		specs[id] = t.Snapshot()
	}
	m.mu.RUnlock()

	items := make([]*dao.TaskSpec, 0, len(specs))
	for _, spec := range specs {
		items = append(items, spec)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreateTime.After(items[j].CreateTime)
	})
	return items, nil
}

// Cancel reports false when the task is unknown to this process.
func (m *Manager) Cancel(id string) bool {
	t, ok := m.Task(id)
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// Shutdown cancels every task and waits for them to return or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

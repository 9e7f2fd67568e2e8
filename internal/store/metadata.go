package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"siteguard/internal/dao"
)

const (
	latestKeyPrefix = "latest:"
	runKeyPrefix    = "run:"
	taskKeyPrefix   = "task:"
)

// RunRecord indexes one persisted analysis run.
type RunRecord struct {
	RunId           string       `json:"runId"`
	SiteId          string       `json:"siteId"`
	State           dao.RunState `json:"state"`
	StartedAt       time.Time    `json:"startedAt"`
	FinishedAt      time.Time    `json:"finishedAt"`
	ComplianceScore int          `json:"complianceScore"`
	TotalViolations int          `json:"totalViolations"`
	Simulated       bool         `json:"simulated"`
	SummaryPath     string       `json:"summaryPath"`
	CsvLog          string       `json:"csvLog"`
}

func NewRunRecord(r *dao.AnalysisResult) *RunRecord {
	return &RunRecord{
		RunId:           r.RunId,
		SiteId:          r.SiteId,
		State:           r.State,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.AnalysisTimestamp,
		ComplianceScore: r.ComplianceScore,
		TotalViolations: r.TotalViolations,
		Simulated:       r.Simulated,
		SummaryPath:     r.SummaryPath,
		CsvLog:          r.CsvLog,
	}
}

type KV struct {
	Key   []byte
	Value []byte
}

type MetadataDB struct {
	db     *badger.DB
	logger *logrus.Entry
}

// NewMetadataDB opens the database in dir. An empty dir keeps everything in memory.
func NewMetadataDB(dir string, logger *logrus.Entry) (*MetadataDB, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &MetadataDB{
		db:     db,
		logger: logger,
	}, nil
}

func (m *MetadataDB) Close() error {
	return m.db.Close()
}

func (m *MetadataDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (m *MetadataDB) Set(key, val []byte) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func (m *MetadataDB) Delete(key []byte) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// List copies out every pair under prefix in key order.
func (m *MetadataDB) List(prefix []byte) ([]KV, error) {
	var kvs []KV
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			kvs = append(kvs, KV{Key: item.KeyCopy(nil), Value: val})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return kvs, nil
}

func (m *MetadataDB) getJSON(key string, v any) (bool, error) {
	val, err := m.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(val, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (m *MetadataDB) setJSON(key string, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.Set([]byte(key), val)
}

func runKey(siteId string, started time.Time, runId string) string {
	// zero padded so that key order is time order
	return fmt.Sprintf("%s%s:%020d:%s", runKeyPrefix, siteId, started.UnixNano(), runId)
}

// AddRun indexes rec. It becomes the latest run of its site unless a run that
// started later is already indexed, so overlapping runs are ordered by start time
// like the summary files are.
func (m *MetadataDB) AddRun(rec *RunRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	latestKey := []byte(latestKeyPrefix + rec.SiteId)
	update := func(txn *badger.Txn) error {
		if err := txn.Set([]byte(runKey(rec.SiteId, rec.StartedAt, rec.RunId)), val); err != nil {
			return err
		}
		item, err := txn.Get(latestKey)
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err == nil {
			cur := &RunRecord{}
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, cur) }); err == nil && cur.StartedAt.After(rec.StartedAt) {
				return nil
			}
		}
		return txn.Set(latestKey, val)
	}

	for i := 0; ; i++ {
		err = m.db.Update(update)
		if !errors.Is(err, badger.ErrConflict) || i == 2 {
			return err
		}
	}
}

// GetLatestRun returns the indexed run with the latest start time, or nil when
// the site has no indexed run.
func (m *MetadataDB) GetLatestRun(siteId string) (*RunRecord, error) {
	rec := &RunRecord{}
	ok, err := m.getJSON(latestKeyPrefix+siteId, rec)
	if err != nil || !ok {
		return nil, err
	}
	return rec, nil
}

// ListRuns returns the runs of a site, newest first. An empty siteId lists every site.
func (m *MetadataDB) ListRuns(siteId string) ([]*RunRecord, error) {
	prefix := runKeyPrefix
	if siteId != "" {
		prefix += siteId + ":"
	}
	kvs, err := m.List([]byte(prefix))
	if err != nil {
		return nil, err
	}
	runs := make([]*RunRecord, 0, len(kvs))
	for i := len(kvs) - 1; i >= 0; i-- {
		rec := &RunRecord{}
		if err := json.Unmarshal(kvs[i].Value, rec); err != nil {
			m.logger.WithError(err).Errorf("unmarshal run %s", kvs[i].Key)
			continue
		}
		runs = append(runs, rec)
	}
	return runs, nil
}

func (m *MetadataDB) SetTask(task *dao.TaskSpec) error {
	return m.setJSON(taskKeyPrefix+task.Id, task)
}

// GetTask returns nil when the task is unknown.
func (m *MetadataDB) GetTask(id string) (*dao.TaskSpec, error) {
	task := &dao.TaskSpec{}
	ok, err := m.getJSON(taskKeyPrefix+id, task)
	if err != nil || !ok {
		return nil, err
	}
	return task, nil
}

func (m *MetadataDB) DeleteTask(id string) error {
	return m.Delete([]byte(taskKeyPrefix + id))
}

func (m *MetadataDB) ListTasks() ([]*dao.TaskSpec, error) {
	kvs, err := m.List([]byte(taskKeyPrefix))
	if err != nil {
		return nil, err
	}
	tasks := make([]*dao.TaskSpec, 0, len(kvs))
	for _, kv := range kvs {
		task := &dao.TaskSpec{}
		if err := json.Unmarshal(kv.Value, task); err != nil {
			m.logger.WithError(err).Errorf("unmarshal task %s", kv.Key)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

package watcher

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

const processedLogName = "processed_files.log"

// State tracks which file names are being processed and which are done.
// Completed names are appended to a log so they survive restarts.
type State struct {
	mu        sync.Mutex
	inFlight  map[string]struct{}
	completed map[string]struct{}
	logPath   string
}

func LoadState(logPath string) (*State, error) {
	s := &State{
		inFlight:  make(map[string]struct{}),
		completed: make(map[string]struct{}),
		logPath:   logPath,
	}
	f, err := os.Open(logPath)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("open processed log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			s.completed[name] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read processed log: %w", err)
	}
	return s, nil
}

// TryBegin marks name in flight unless it is already in flight or completed.
func (s *State) TryBegin(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.completed[name]; ok {
		return false
	}
	if _, ok := s.inFlight[name]; ok {
		return false
	}
	s.inFlight[name] = struct{}{}
	return true
}

// Finish clears the in-flight mark. With completed set the name is also
// recorded as done, in memory and in the log.
func (s *State) Finish(name string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, name)
	if !completed {
		return nil
	}
	s.completed[name] = struct{}{}

	f, err := os.OpenFile(s.logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open processed log: %w", err)
	}
	if _, err := fmt.Fprintln(f, name); err != nil {
		f.Close()
		return fmt.Errorf("append processed log: %w", err)
	}
	return f.Close()
}

func (s *State) Completed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[name]
	return ok
}

func (s *State) InFlight(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[name]
	return ok
}

func (s *State) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed)
}

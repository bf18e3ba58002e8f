package scheduler

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Sink receives the human readable lines each job appends to its log.
type Sink interface {
	Append(ctx context.Context, path string, lines []string) error
}

// FileSink appends lines to plain files, creating them as needed.
type FileSink struct {
	mu sync.Mutex
}

func NewFileSink() *FileSink {
	return &FileSink{}
}

func (s *FileSink) Append(_ context.Context, path string, lines []string) error {
	if path == "" {
		return errors.New("sink path is empty")
	}
	if len(lines) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// MemorySink keeps appended lines per path.
type MemorySink struct {
	mu    sync.Mutex
	lines map[string][]string
}

func NewMemorySink() *MemorySink {
	return &MemorySink{lines: map[string][]string{}}
}

func (s *MemorySink) Append(_ context.Context, path string, lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[path] = append(s.lines[path], lines...)
	return nil
}

func (s *MemorySink) Lines(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines[path]...)
}

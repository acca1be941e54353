package log

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// FileSink appends JSON records to a day-stamped file, rotating when the
// date changes mid-process (backups often straddle midnight).
type FileSink struct {
	dir     string
	mu      sync.Mutex
	file    *os.File
	curDate string
}

// NewFileSink opens (creating if needed) dir/berm-YYYY-MM-DD.jsonl.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating debug log dir: %w", err)
	}
	s := &FileSink{dir: dir}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rotateLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Write implements io.Writer with daily rotation.
func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if today := time.Now().Format(time.DateOnly); today != s.curDate {
		if err := s.rotateLocked(); err != nil {
			return 0, err
		}
	}
	return s.file.Write(p)
}

// Close closes the current file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

func (s *FileSink) rotateLocked() error {
	if s.file != nil {
		s.file.Close()
	}

	today := time.Now().Format(time.DateOnly)
	path := filepath.Join(s.dir, "berm-"+today+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening debug log: %w", err)
	}
	s.file = f
	s.curDate = today
	return nil
}

var debugFilePattern = regexp.MustCompile(`^berm-\d{4}-\d{2}-\d{2}\.jsonl$`)

// Cleanup removes debug files older than retentionDays. Best effort; a
// missing or unreadable directory is ignored.
func Cleanup(dir string, retentionDays int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !debugFilePattern.MatchString(name) {
			continue
		}
		day, err := time.Parse(time.DateOnly, name[len("berm-"):len("berm-")+10])
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			os.Remove(filepath.Join(dir, name))
		}
	}
}

package cleanup

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Scheduler periodically removes stale transient files, such as abandoned
// uploads and waveforms left behind by a crash
type Scheduler struct {
	dirs     []string
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler creates a scheduler sweeping dirs
func NewScheduler(dirs []string, intervalMinutes, maxAgeHours int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		dirs:     dirs,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		logger:   logger.With("component", "cleanup"),
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start sweeps once, then on every interval until Stop
func (s *Scheduler) Start() {
	s.logger.Info("running initial temp file cleanup")
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				return
			}
		}
	}()

	s.logger.Info("cleanup scheduler started", "interval", s.interval, "max_age", s.maxAge, "dirs", s.dirs)
}

// Stop stops the scheduler and waits for a running sweep
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		s.logger.Info("cleanup scheduler stopped")
	})
}

// Sweep removes files older than the max age and reports how many were deleted
func (s *Scheduler) Sweep() int {
	now := s.now()

	var deletedCount int
	var deletedSize int64

	for _, dir := range s.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}

			if d.IsDir() {
				// Remove emptied scratch directories, never the root itself
				if path != dir && now.Sub(info.ModTime()) > s.maxAge {
					os.Remove(path)
				}
				return nil
			}

			age := now.Sub(info.ModTime())
			if age <= s.maxAge {
				return nil
			}
			if err := os.Remove(path); err != nil {
				s.logger.Warn("failed to delete old file", "path", path, "err", err)
				return nil
			}
			deletedCount++
			deletedSize += info.Size()
			s.logger.Debug("deleted old temp file", "file", filepath.Base(path),
				"age", age.Round(time.Hour), "size_kb", info.Size()/1024)
			return nil
		})
		if err != nil {
			s.logger.Error("error during cleanup", "dir", dir, "err", err)
		}
	}

	if deletedCount > 0 {
		s.logger.Info("cleanup complete", "files", deletedCount,
			"freed", fmt.Sprintf("%.2fMB", float64(deletedSize)/(1024*1024)))
	}
	return deletedCount
}

// EnsureDirs creates every directory in dirs
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

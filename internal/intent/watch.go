package intent

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/capitalize-ai/medical-assistant/pkg/logger"
)

const (
	reloadDebounce = 250 * time.Millisecond
	// reloadMaxWait caps how long a steady stream of writes can postpone a reload.
	reloadMaxWait = 2 * time.Second
)

// FileSource serves an intent table loaded from a file and swaps it
// atomically when the file is reloaded. A table that fails to load or
// validate never replaces the current one.
type FileSource struct {
	path    string
	current atomic.Pointer[Table]
	logger  *logger.Logger

	debounce time.Duration
	maxWait  time.Duration
}

// NewFileSource loads path and returns a source serving it.
func NewFileSource(path string, log *logger.Logger) (*FileSource, error) {
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	s := &FileSource{
		path:     path,
		logger:   log,
		debounce: reloadDebounce,
		maxWait:  reloadMaxWait,
	}
	s.current.Store(t)
	return s, nil
}

// Current returns the most recently loaded table.
func (s *FileSource) Current() *Table {
	return s.current.Load()
}

// Reload re-reads the file. On error the previous table stays in place.
func (s *FileSource) Reload() error {
	t, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.current.Store(t)
	s.logger.Info("intent table reloaded",
		zap.String("path", s.path),
		zap.Int("intents", t.Len()),
	)
	return nil
}

// Watch reloads the table whenever the file changes, until ctx is done.
// The parent directory is watched so editors that replace the file by
// rename are picked up. Bursts of changes are debounced, but a reload is
// never postponed for longer than the max wait.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := s.newWatcher()
	if err != nil {
		return err
	}
	return s.watch(ctx, watcher)
}

func (s *FileSource) newWatcher() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch intent table: %w", err)
	}
	return watcher, nil
}

func (s *FileSource) watch(ctx context.Context, watcher *fsnotify.Watcher) error {
	defer watcher.Close()

	target := filepath.Clean(s.path)
	timer := time.NewTimer(s.debounce)
	stopTimer(timer)
	defer timer.Stop()

	// first is when the oldest change not yet reloaded was seen.
	var first time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			now := time.Now()
			if first.IsZero() {
				first = now
			}
			wait := s.debounce
			if left := s.maxWait - now.Sub(first); left < wait {
				wait = max(left, 0)
			}
			stopTimer(timer)
			timer.Reset(wait)

		case <-timer.C:
			first = time.Time{}
			if err := s.Reload(); err != nil {
				s.logger.Error("intent table reload failed, keeping previous table",
					zap.String("path", s.path),
					zap.Error(err),
				)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("intent table watcher error", zap.Error(err))
		}
	}
}

// stopTimer stops t and discards a pending fire so Reset starts clean.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

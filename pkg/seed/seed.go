// Package seed loads fixture songs into the app server and re-seeds it when the fixture file changes.
package seed

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/umputun/tunecheck/pkg/server"
	"github.com/umputun/tunecheck/pkg/song"
)

//go:generate moq -out mocks/importer.go -pkg mocks -skip-ensure -fmt goimports . Importer
//go:generate moq -out mocks/logger.go -pkg mocks -skip-ensure -fmt goimports . Logger

// DefaultDebounce is the quiet period after the last file event before re-seeding.
const DefaultDebounce = 200 * time.Millisecond

// Importer sends songs to the app server, implemented by server.Client.
type Importer interface {
	Clear(ctx context.Context) error
	Import(ctx context.Context, songs []song.Song, opts server.ImportOpts) error
}

// Logger is the subset of progress.Logger used for reporting.
type Logger interface {
	Print(format string, args ...any)
	Warn(format string, args ...any)
}

// Seeder imports fixture files.
type Seeder struct {
	Importer        Importer
	Logger          Logger
	Clear           bool          // clear server data before importing
	ReplaceUserData bool          // replace ratings, tags and plays of existing songs
	Debounce        time.Duration // DefaultDebounce if zero
}

// Load reads the fixture file at path and imports its songs, returning the number of imported songs.
func (s *Seeder) Load(ctx context.Context, path string) (int, error) {
	songs, err := song.LoadFile(path)
	if err != nil {
		return 0, fmt.Errorf("load fixtures: %w", err)
	}
	if s.Clear {
		if err := s.Importer.Clear(ctx); err != nil {
			return 0, fmt.Errorf("clear server data: %w", err)
		}
	}
	if len(songs) > 0 {
		if err := s.Importer.Import(ctx, songs, server.ImportOpts{ReplaceUserData: s.ReplaceUserData}); err != nil {
			return 0, fmt.Errorf("import %d song(s): %w", len(songs), err)
		}
	}
	s.Logger.Print("imported %d song(s) from %s", len(songs), path)
	return len(songs), nil
}

// Watch re-seeds the server from path whenever the file is written, created or renamed,
// until ctx is canceled. Failed loads are reported and don't stop watching.
// The parent directory is watched since editors often replace files instead of writing them.
func (s *Seeder) Watch(ctx context.Context, path string) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	s.Logger.Print("watching %s", path)

	debounce := s.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, target) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.Logger.Warn("watch %s: %v", path, err)
		case <-fire:
			fire = nil
			if _, err := s.Load(ctx, path); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				s.Logger.Warn("reseed from %s: %v", path, err)
			}
		}
	}
}

// relevant reports whether ev changes the watched file.
func relevant(ev fsnotify.Event, target string) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return name == target
}

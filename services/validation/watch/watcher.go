// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoPaths is returned when a watcher is created without paths.
var ErrNoPaths = errors.New("no paths to watch")

// ChangeHandler is called with the deduplicated paths of a change batch.
type ChangeHandler func(paths []string)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is how long to wait for more changes before calling the
	// handler.
	// Default: 200ms
	Debounce time.Duration

	// IgnorePatterns are base names or globs of files and directories to
	// skip.
	IgnorePatterns []string

	// BufferSize is the size of the change channel.
	// Default: 256
	BufferSize int

	// Logger receives watch errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultWatcherOptions returns the defaults used by the CLI.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Debounce:       200 * time.Millisecond,
		IgnorePatterns: []string{".git", "node_modules", ".idea", "*.swp", "*.tmp", "*~"},
		BufferSize:     256,
	}
}

// Watcher reports file changes under a set of paths.
//
// Description:
//
//	Directories are watched recursively and new subdirectories are added
//	as they appear. A watched file is watched through its parent
//	directory, and only events for that file are reported. Changes are
//	collected until Debounce passes without a new one, then handed to the
//	handler as one batch.
//
// Thread Safety:
//
//	Safe for concurrent use. The handler is called from a single
//	goroutine.
type Watcher struct {
	fsw     *fsnotify.Watcher
	handler ChangeHandler
	opts    WatcherOptions
	logger  *slog.Logger

	// files are watched through their parent directory; tree holds the
	// directories watched recursively.
	files map[string]struct{}
	tree  map[string]struct{}
	dirs  map[string]struct{}

	changes  chan string
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for paths.
//
// Inputs:
//
//	paths - Files or directories. Each must exist.
//	handler - Called with each change batch. Must not be nil.
//	opts - Options. Zero fields take their defaults.
//
// Outputs:
//
//	*Watcher - The watcher, not yet started.
//	error - ErrNoPaths, or a stat or fsnotify error.
func NewWatcher(paths []string, handler ChangeHandler, opts WatcherOptions) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	if handler == nil {
		return nil, errors.New("change handler must not be nil")
	}
	defaults := DefaultWatcherOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}
	if opts.IgnorePatterns == nil {
		opts.IgnorePatterns = defaults.IgnorePatterns
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		fsw:     fsw,
		handler: handler,
		opts:    opts,
		logger:  logger.With(slog.String("component", "watcher")),
		files:   make(map[string]struct{}),
		tree:    make(map[string]struct{}),
		dirs:    make(map[string]struct{}),
		changes: make(chan string, opts.BufferSize),
		done:    make(chan struct{}),
	}

	for _, p := range paths {
		if err := w.add(p); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// add registers one path.
func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	if !info.IsDir() {
		w.files[abs] = struct{}{}
		return w.addDir(filepath.Dir(abs))
	}
	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != abs && w.shouldIgnore(p) {
			return filepath.SkipDir
		}
		w.tree[p] = struct{}{}
		return w.addDir(p)
	})
}

func (w *Watcher) addDir(dir string) error {
	if _, ok := w.dirs[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.dirs[dir] = struct{}{}
	return nil
}

// Run processes events until ctx is cancelled or Stop is called.
//
// Description:
//
//	Pending changes are flushed to the handler before Run returns.
//
// Outputs:
//
//	error - Always nil; watch errors are logged.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.debounceLoop(ctx)
	}()

	w.processEvents(ctx)
	wg.Wait()
	return nil
}

// Stop closes the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
	})
}

// shouldIgnore checks the base name of path against the ignore patterns.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.opts.IgnorePatterns {
		if base == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// relevant reports whether an event on path should trigger a batch.
func (w *Watcher) relevant(path string) bool {
	if w.shouldIgnore(path) {
		return false
	}
	if _, ok := w.files[path]; ok {
		return true
	}
	_, ok := w.tree[filepath.Dir(path)]
	return ok
}

// processEvents forwards relevant fsnotify events to the change channel.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}

			select {
			case w.changes <- event.Name:
			default:
				w.logger.Warn("Change buffer full, dropping event", slog.String("path", event.Name))
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.add(event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory",
							slog.String("path", event.Name),
							slog.String("error", err.Error()),
						)
					}
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watch error", slog.String("error", err.Error()))
		}
	}
}

// debounceLoop batches changes and calls the handler after the debounce
// window.
func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []string
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			slices.Sort(batch)
			w.handler(slices.Compact(batch))
			batch = nil
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case path := <-w.changes:
			batch = append(batch, path)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

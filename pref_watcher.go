package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"PrefEditor/pkg/edit"
)

const watchDebounce = 300 * time.Millisecond

// PrefWatcher refreshes a desktop edit session when its file is modified by another process.
// The parent directory is watched so that editors replacing the file by rename are noticed.
type PrefWatcher struct {
	session  *EditSession
	path     string
	onChange func(err error)
	debounce time.Duration

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	done    chan struct{}
	mu      sync.Mutex
}

// NewPrefWatcher creates a watcher for the session's file. onChange is called after every
// refresh with the refresh error, if any.
func NewPrefWatcher(session *EditSession, onChange func(err error)) (*PrefWatcher, error) {
	target := session.Target()
	if target.Kind != edit.TargetDesktop {
		return nil, fmt.Errorf("only desktop files can be watched, got %s", target)
	}
	path, err := filepath.Abs(target.Path)
	if err != nil {
		return nil, err
	}
	return &PrefWatcher{
		session:  session,
		path:     path,
		onChange: onChange,
		debounce: watchDebounce,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching
func (w *PrefWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	LogInfo("pref_watcher").Str("path", w.path).Msg("Started watching preference file")
	go w.watch(watcher)
	return nil
}

// Stop stops watching and waits for the watch loop to exit
func (w *PrefWatcher) Stop() {
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.watcher.Close()
	w.watcher = nil
	w.mu.Unlock()

	<-w.done
	LogInfo("pref_watcher").Str("path", w.path).Msg("Stopped watching preference file")
}

func (w *PrefWatcher) watch(watcher *fsnotify.Watcher) {
	defer close(w.done)

	var debounceTimer *time.Timer
	refresh := func() {
		err := w.session.Refresh(context.Background())
		if err != nil {
			LogWarn("pref_watcher").Err(err).Str("path", w.path).Msg("Refresh after external change failed")
		} else {
			LogDebug("pref_watcher").Str("path", w.path).Int("pending", len(w.session.Pending())).Msg("Refreshed after external change")
		}
		if w.onChange != nil {
			w.onChange(err)
		}
	}

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, refresh)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			LogError("pref_watcher").Err(err).Msg("Watcher error")
		}
	}
}

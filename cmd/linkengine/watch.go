package main

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/signalsfoundry/rf-link-engine/internal/logging"
)

// scenarioDebounce collapses the burst of events an editor save produces.
const scenarioDebounce = 250 * time.Millisecond

// scenarioWatcher calls onChange after the scenario file is written,
// created or renamed into place. It watches the parent directory so
// atomic-rename saves are seen.
type scenarioWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	log      logging.Logger
	onChange func()

	mu    sync.Mutex
	timer *time.Timer
}

func newScenarioWatcher(path string, log logging.Logger, onChange func()) (*scenarioWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	return &scenarioWatcher{path: abs, watcher: w, log: log, onChange: onChange}, nil
}

// Run processes events until ctx is done or the watcher is closed.
func (w *scenarioWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn(ctx, "scenario watch error", logging.Err(err))
		}
	}
}

func (w *scenarioWatcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(scenarioDebounce, w.onChange)
}

// Close stops the watcher and any pending reload.
func (w *scenarioWatcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

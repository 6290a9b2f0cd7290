package gateway

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"indexgateway/pkg/logger"
)

// CorruptionWatcher watches the index directory for segments.new or
// deleteable.new artifacts that appear outside of a gateway-driven
// write (a crash mid-merge, an external process touching the index
// directory) and runs the same repair path the Recovery Helper applies
// when a writer call fails with one of those errors directly, so a
// stuck partial write doesn't wait for the next operation to surface it.
type CorruptionWatcher struct {
	helper  *RecoveryHelper
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewCorruptionWatcher creates a watcher rooted at the index directory.
// An empty dir (in-memory index) is a no-op watcher: nothing to watch.
func NewCorruptionWatcher(dir string, helper *RecoveryHelper) (*CorruptionWatcher, error) {
	if dir == "" {
		return &CorruptionWatcher{helper: helper}, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	return &CorruptionWatcher{
		helper:  helper,
		watcher: w,
		done:    make(chan struct{}),
	}, nil
}

// Start runs the event loop in a goroutine. A no-op watcher (in-memory
// index) returns immediately without spawning anything.
func (cw *CorruptionWatcher) Start() {
	if cw.watcher == nil {
		return
	}
	go cw.eventLoop()
}

func (cw *CorruptionWatcher) eventLoop() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(event)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("corruption watcher error: %v", err)

		case <-cw.done:
			return
		}
	}
}

func (cw *CorruptionWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	switch filepath.Base(event.Name) {
	case "segments.new":
		logger.Warn("detected externally-written segments.new, repairing")
		if err := cw.helper.renameOver("segments.new", "segments"); err != nil {
			logger.Error("segments.new repair failed: %v", err)
		}
	case "deleteable.new":
		logger.Warn("detected externally-written deleteable.new, repairing")
		if err := cw.helper.renameOver("deleteable.new", "deleteable"); err != nil {
			logger.Error("deleteable.new repair failed: %v", err)
		}
	}
}

// Stop closes the watcher. Safe to call on a no-op watcher.
func (cw *CorruptionWatcher) Stop() {
	if cw.watcher == nil {
		return
	}
	close(cw.done)
	cw.watcher.Close()
}

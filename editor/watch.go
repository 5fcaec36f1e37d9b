package editor

import (
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gdamore/tcell/v2"
)

const watchDebounce = 100 * time.Millisecond

// FileWatchEvent carries file system change notifications to the main event loop.
type FileWatchEvent struct {
	tcell.EventTime
	Path string
	Op   fsnotify.Op
}

// Watcher reports changes to a fixed set of files. It watches their parent
// directories, so editors that save by rename are still seen.
type Watcher struct {
	fw     *fsnotify.Watcher
	files  map[string]bool
	post   func(tcell.Event) error
	logger *slog.Logger
	done   chan struct{}
}

// NewWatcher starts watching files; events are debounced and handed to post,
// typically a screen's PostEvent.
func NewWatcher(files []string, post func(tcell.Event) error, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fw:     fw,
		files:  make(map[string]bool),
		post:   post,
		logger: logger,
		done:   make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs := key(f)
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			logger.Debug("watch: cannot watch directory", "dir", dir, "err", err)
		}
	}

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)

	// Debounce: collect events and send after quiet period
	debounceTimer := time.NewTimer(watchDebounce)
	debounceTimer.Stop()
	pending := make(map[string]fsnotify.Op)

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !w.files[event.Name] {
				continue
			}
			pending[event.Name] |= event.Op
			debounceTimer.Reset(watchDebounce)

		case <-debounceTimer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				ev := &FileWatchEvent{Path: p, Op: pending[p]}
				ev.SetEventNow()
				if err := w.post(ev); err != nil {
					w.logger.Debug("watch: event dropped", "path", p, "err", err)
				}
			}
			pending = make(map[string]fsnotify.Op)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch: error", "err", err)
		}
	}
}

func (w *Watcher) Close() error {
	err := w.fw.Close()
	<-w.done
	return err
}

package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"sweep/buffer"
	"sweep/config"
	"sweep/replace"
)

// ErrBinaryFile is returned when a replace pass reaches a file that loads as
// binary content.
var ErrBinaryFile = errors.New("binary file")

// Workspace owns the buffers a replace pass works on. Files opened as
// editors stay in memory and are saved on request; every other file is read
// into a temporary buffer and written back when the pass leaves it.
type Workspace struct {
	cfg     *config.Config
	logger  *slog.Logger
	workDir string

	editors  map[string]*buffer.Buffer
	order    []string
	written  map[string]time.Time
	backedUp map[string]bool
}

func NewWorkspace(cfg *config.Config, workDir string, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		cfg:      cfg,
		logger:   logger,
		workDir:  workDir,
		editors:  make(map[string]*buffer.Buffer),
		written:  make(map[string]time.Time),
		backedUp: make(map[string]bool),
	}
}

func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (w *Workspace) load(path string) (*buffer.Buffer, error) {
	buf, err := buffer.NewBufferFromFile(path, buffer.LoadOptions{
		Charset: config.CharsetFor(path),
		MaxSize: w.cfg.MaxFileSize(),
	})
	if err != nil {
		return nil, err
	}
	if buf.ReadOnly {
		return nil, fmt.Errorf("%s: %w", path, ErrBinaryFile)
	}
	return buf, nil
}

// Open registers an editor buffer for path, loading it on first use.
func (w *Workspace) Open(path string) (*buffer.Buffer, error) {
	k := key(path)
	if buf, ok := w.editors[k]; ok {
		return buf, nil
	}
	buf, err := w.load(path)
	if err != nil {
		return nil, err
	}
	w.editors[k] = buf
	w.order = append(w.order, k)
	w.logger.Debug("workspace: opened editor", "path", path)
	return buf, nil
}

// Editor returns the open editor buffer of path.
func (w *Workspace) Editor(path string) (*buffer.Buffer, bool) {
	buf, ok := w.editors[key(path)]
	return buf, ok
}

// Close drops the editor of path, discarding unsaved changes.
func (w *Workspace) Close(path string) {
	k := key(path)
	if _, ok := w.editors[k]; !ok {
		return
	}
	delete(w.editors, k)
	for i, p := range w.order {
		if p == k {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// DirtyEditors lists editors with unsaved changes in opening order.
func (w *Workspace) DirtyEditors() []string {
	var out []string
	for _, k := range w.order {
		if w.editors[k].Dirty {
			out = append(out, w.editors[k].Path)
		}
	}
	return out
}

// Save writes the editor buffer of path to disk.
func (w *Workspace) Save(path string) error {
	buf, ok := w.Editor(path)
	if !ok {
		return fmt.Errorf("%s is not open", path)
	}
	return w.write(buf)
}

// Reload replaces a clean editor buffer with the file's current content.
func (w *Workspace) Reload(path string) error {
	k := key(path)
	old, ok := w.editors[k]
	if !ok {
		return nil
	}
	if old.Dirty {
		return fmt.Errorf("%s has unsaved changes", path)
	}
	buf, err := w.load(old.Path)
	if err != nil {
		return err
	}
	w.editors[k] = buf
	return nil
}

// UndoLast reverts the latest replace pass applied to the editor of path.
func (w *Workspace) UndoLast(path string) bool {
	buf, ok := w.Editor(path)
	if !ok {
		return false
	}
	return buf.ApplyUndo()
}

// WrittenAt reports when the workspace last wrote path, so the watcher can
// ignore its own writes.
func (w *Workspace) WrittenAt(path string) time.Time {
	return w.written[key(path)]
}

func (w *Workspace) write(buf *buffer.Buffer) error {
	// one backup per file and session: it holds the content from before
	// the first rewrite
	k := key(buf.Path)
	if w.cfg.Backup && !w.backedUp[k] {
		if err := SaveBackup(buf.Path, w.workDir); err != nil {
			return fmt.Errorf("backup %s: %w", buf.Path, err)
		}
		w.backedUp[k] = true
	}
	if err := buf.Save(); err != nil {
		return err
	}
	w.written[k] = buf.LastSaveTime
	w.logger.Info("workspace: wrote file", "path", buf.Path, "encoding", buf.Encoding)
	return nil
}

// fileBuffer adapts a buffer to the replace engine.
type fileBuffer struct {
	buf     *buffer.Buffer
	editor  bool
	changed bool
}

func (f *fileBuffer) Path() string              { return f.buf.Path }
func (f *fileBuffer) Line(n int) (string, bool) { return f.buf.Line(n) }
func (f *fileBuffer) Modified() bool            { return f.changed }
func (f *fileBuffer) IsEditor() bool            { return f.editor }

func (f *fileBuffer) Replace(line, col, length int, text string) {
	if f.buf.ReplaceAt(line, col, length, text) {
		f.changed = true
	}
}

// AcquireBuffer implements replace.BufferProvider. The edits of one pass on
// an editor form a single undo step.
func (w *Workspace) AcquireBuffer(path string) (replace.Buffer, error) {
	if buf, ok := w.Editor(path); ok {
		buf.BeginGroup()
		return &fileBuffer{buf: buf, editor: true}, nil
	}
	buf, err := w.load(path)
	if err != nil {
		return nil, err
	}
	return &fileBuffer{buf: buf}, nil
}

// ReleaseBuffer implements replace.BufferProvider.
func (w *Workspace) ReleaseBuffer(b replace.Buffer, persist bool) error {
	fb, ok := b.(*fileBuffer)
	if !ok {
		return fmt.Errorf("buffer for %s does not belong to this workspace", b.Path())
	}
	if fb.editor {
		fb.buf.EndGroup()
		return nil
	}
	if !persist {
		return nil
	}
	return w.write(fb.buf)
}

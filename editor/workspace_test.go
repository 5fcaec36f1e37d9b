package editor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sweep/config"
	"sweep/replace"
	"sweep/search"
)

// setup points HOME at a scratch directory and writes files under a fresh
// work directory.
func setup(t *testing.T, files map[string]string) (string, *config.Config) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	return dir, config.Default()
}

func find(t *testing.T, dir, pattern string) *replace.MatchIndex {
	t.Helper()
	s, err := search.New(search.Options{FindWhat: pattern, MatchCase: true}, nil)
	if err != nil {
		t.Fatalf("search setup failed: %v", err)
	}
	idx, _, err := s.Search(context.Background(), dir)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	return idx
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return string(data)
}

func TestTemporaryBufferIsWrittenWithBackup(t *testing.T) {
	dir, cfg := setup(t, map[string]string{"a.txt": "foo bar foo\n"})
	path := filepath.Join(dir, "a.txt")
	ws := NewWorkspace(cfg, dir, nil)

	idx := find(t, dir, "foo")
	idx.SelectAll()
	rep := replace.NewEngine(ws, nil).Apply(idx, "baz")

	if rep.Applied != 2 || len(rep.FilesModified) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if got := readFile(t, path); got != "baz bar baz\n" {
		t.Fatalf("unexpected content %q", got)
	}
	if ws.WrittenAt(path).IsZero() {
		t.Fatalf("expected write time to be recorded")
	}

	backups := CheckBackups(dir)
	if len(backups) != 1 || backups[0].OriginalPath != path {
		t.Fatalf("expected one backup of %s, got %+v", path, backups)
	}
	if err := RestoreBackup(backups[0]); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if got := readFile(t, path); got != "foo bar foo\n" {
		t.Fatalf("expected original content back, got %q", got)
	}
	if len(CheckBackups(dir)) != 0 {
		t.Fatalf("restored backup must be removed")
	}
}

func TestBackupKeepsContentBeforeFirstPass(t *testing.T) {
	dir, cfg := setup(t, map[string]string{"a.txt": "one\n"})
	path := filepath.Join(dir, "a.txt")
	ws := NewWorkspace(cfg, dir, nil)
	engine := replace.NewEngine(ws, nil)

	idx := find(t, dir, "one")
	idx.SelectAll()
	engine.Apply(idx, "two")
	idx = find(t, dir, "two")
	idx.SelectAll()
	engine.Apply(idx, "three")

	if got := readFile(t, path); got != "three\n" {
		t.Fatalf("unexpected content %q", got)
	}
	backups := CheckBackups(dir)
	if len(backups) != 1 {
		t.Fatalf("expected one backup, got %d", len(backups))
	}
	if err := RestoreBackup(backups[0]); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if got := readFile(t, path); got != "one\n" {
		t.Fatalf("expected content from before the first pass, got %q", got)
	}
}

func TestNoBackupWhenDisabled(t *testing.T) {
	dir, cfg := setup(t, map[string]string{"a.txt": "x\n"})
	cfg.Backup = false
	ws := NewWorkspace(cfg, dir, nil)

	idx := find(t, dir, "x")
	idx.SelectAll()
	replace.NewEngine(ws, nil).Apply(idx, "y")

	if len(CheckBackups(dir)) != 0 {
		t.Fatalf("expected no backups")
	}
}

func TestEditorBufferStaysInMemoryUntilSaved(t *testing.T) {
	dir, cfg := setup(t, map[string]string{"a.go": "var foo = foo()\n"})
	path := filepath.Join(dir, "a.go")
	ws := NewWorkspace(cfg, dir, nil)
	if _, err := ws.Open(path); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	idx := find(t, dir, "foo")
	idx.SelectAll()
	rep := replace.NewEngine(ws, nil).Apply(idx, "bar")

	if len(rep.EditorsModified) != 1 || rep.EditorsModified[0] != path {
		t.Fatalf("expected editor listed for saving, got %v", rep.EditorsModified)
	}
	if len(rep.FilesModified) != 0 {
		t.Fatalf("editor files must not be written by the pass")
	}
	if got := readFile(t, path); got != "var foo = foo()\n" {
		t.Fatalf("disk changed before save: %q", got)
	}
	if dirty := ws.DirtyEditors(); len(dirty) != 1 {
		t.Fatalf("expected one dirty editor, got %v", dirty)
	}

	if err := ws.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if got := readFile(t, path); got != "var bar = bar()\n" {
		t.Fatalf("unexpected saved content %q", got)
	}
	if len(ws.DirtyEditors()) != 0 {
		t.Fatalf("saved editor must be clean")
	}
}

func TestUndoLastRevertsWholePass(t *testing.T) {
	dir, cfg := setup(t, map[string]string{"a.go": "foo foo\nfoo\n"})
	path := filepath.Join(dir, "a.go")
	ws := NewWorkspace(cfg, dir, nil)
	buf, err := ws.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	idx := find(t, dir, "foo")
	idx.SelectAll()
	replace.NewEngine(ws, nil).Apply(idx, "quux")
	if buf.Lines[0] != "quux quux" || buf.Lines[1] != "quux" {
		t.Fatalf("unexpected buffer %q", buf.Lines)
	}

	if !ws.UndoLast(path) {
		t.Fatalf("expected undo to succeed")
	}
	if buf.Lines[0] != "foo foo" || buf.Lines[1] != "foo" {
		t.Fatalf("expected one undo to revert the pass, got %q", buf.Lines)
	}
	if buf.Dirty {
		t.Fatalf("buffer must be clean after undoing to the saved state")
	}
	if ws.UndoLast(path) {
		t.Fatalf("nothing left to undo")
	}
}

func TestBinaryFileFailsAcquire(t *testing.T) {
	dir, cfg := setup(t, nil)
	path := filepath.Join(dir, "blob.bin")
	if err := os.WriteFile(path, []byte("foo\x00"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ws := NewWorkspace(cfg, dir, nil)

	idx := replace.NewMatchIndex()
	id := idx.Add(replace.MatchRecord{FileName: path, LineNumber: 1, Len: 3, LenInChars: 3, Pattern: "foo\x00"})
	idx.Select(id)
	rep := replace.NewEngine(ws, nil).Apply(idx, "bar")

	if rep.Outcome(id) != replace.OutcomeFailed {
		t.Fatalf("expected failure, got %v", rep.Outcome(id))
	}
	var readErr *replace.FileReadError
	if len(rep.Errors) != 1 || !errors.As(rep.Errors[0], &readErr) || !errors.Is(readErr, ErrBinaryFile) {
		t.Fatalf("expected binary read error, got %v", rep.Errors)
	}
}

func TestLatin1FileKeepsEncoding(t *testing.T) {
	dir, cfg := setup(t, nil)
	path := filepath.Join(dir, "old.txt")
	// "déjà vu" in ISO-8859-1
	if err := os.WriteFile(path, []byte{'d', 0xE9, 'j', 0xE0, ' ', 'v', 'u', '\n'}, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ws := NewWorkspace(cfg, dir, nil)

	idx := find(t, dir, "vu")
	idx.SelectAll()
	replace.NewEngine(ws, nil).Apply(idx, "été")

	want := []byte{'d', 0xE9, 'j', 0xE0, ' ', 0xE9, 't', 0xE9, '\n'}
	if got := []byte(readFile(t, path)); !bytes.Equal(got, want) {
		t.Fatalf("expected latin-1 output %v, got %v", want, got)
	}
}

func TestReloadRefusesDirtyEditor(t *testing.T) {
	dir, cfg := setup(t, map[string]string{"a.txt": "old\n"})
	path := filepath.Join(dir, "a.txt")
	ws := NewWorkspace(cfg, dir, nil)
	buf, _ := ws.Open(path)

	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := ws.Reload(path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got, _ := ws.Editor(path); got.Lines[0] != "new" {
		t.Fatalf("expected reloaded content, got %q", got.Lines)
	}

	buf, _ = ws.Editor(path)
	buf.ReplaceAt(0, 0, 3, "mine")
	if err := ws.Reload(path); err == nil {
		t.Fatalf("expected dirty editor to refuse reload")
	}
}

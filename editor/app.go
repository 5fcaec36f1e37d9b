package editor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gdamore/tcell/v2"

	"sweep/clipboardx"
	"sweep/config"
	"sweep/highlight"
	"sweep/replace"
	"sweep/ui"
)

type Component interface {
	Render(screen tcell.Screen, x, y, width, height int)
	HandleKey(ev *tcell.EventKey) bool
	HandleMouse(ev *tcell.EventMouse) bool
	IsFocused() bool
	SetFocused(bool)
}

// AppOptions describe the search whose results the app presents.
type AppOptions struct {
	Index    *replace.MatchIndex
	FindWhat string
	Replace  string // initial replace-with text
	Root     string
}

// App is the interactive front end: results panel, replace bar and status
// line around one MatchIndex.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	ws      *Workspace
	engine  *replace.Engine
	idx     *replace.MatchIndex
	history *History
	watcher *Watcher

	screen    tcell.Screen
	results   *ui.ResultsPanel
	input     *ui.InputBar
	statusBar *ui.StatusBar
	dialog    *ui.SaveFilesDialog

	findWhat    string
	focusTarget string // "results" or "input"
	quit        bool
	quitPending bool // true after first Ctrl+Q with unsaved editors

	// index file names by absolute path, for watcher events
	indexNames map[string]string

	statusMessageTime time.Time
}

func NewApp(cfg *config.Config, ws *Workspace, history *History, logger *slog.Logger, opts AppOptions) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		cfg:         cfg,
		logger:      logger,
		ws:          ws,
		engine:      replace.NewEngine(ws, logger),
		idx:         opts.Index,
		history:     history,
		findWhat:    opts.FindWhat,
		focusTarget: "results",
		indexNames:  make(map[string]string),
	}
	theme := cfg.GetTheme()

	// every hit starts marked
	a.idx.SelectAll()

	a.results = ui.NewResultsPanel(a.idx, highlight.New())
	a.results.Theme = theme
	a.results.Root = opts.Root
	a.results.OnOpen = a.toggleEditor
	a.results.OnCopy = a.copyLocation
	a.results.OnReplace = a.runReplace
	a.results.OnFocusInput = func() { a.setFocus("input") }

	a.input = ui.NewInputBar("Replace with: ")
	a.input.Theme = theme
	a.input.Hint = "Enter replace marked · Tab results "
	a.input.SetHistory(history.Replace)
	switch {
	case opts.Replace != "":
		a.input.SetText(opts.Replace)
	case a.idx.Len() == 1:
		a.input.SetText(a.idx.Records()[0].FindWhat)
	}
	a.input.OnSubmit = func(string) { a.runReplace() }
	a.input.OnCancel = func() { a.setFocus("results") }

	a.statusBar = ui.NewStatusBar()
	a.statusBar.Theme = theme
	a.statusBar.Pattern = opts.FindWhat

	for _, f := range a.idx.Files() {
		a.indexNames[key(f)] = f
	}

	a.engine.Progress = func(done, total int) {
		if a.screen == nil || done%200 != 0 {
			return
		}
		a.statusBar.Message = fmt.Sprintf("Replacing %d/%d…", done, total)
		a.render()
	}
	a.setFocus("results")
	return a
}

func (a *App) Run() error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	screen.EnableMouse()
	screen.SetStyle(tcell.StyleDefault)
	screen.Clear()
	a.screen = screen

	if w, err := NewWatcher(a.idx.Files(), screen.PostEvent, a.logger); err != nil {
		a.logger.Warn("app: file watching disabled", "err", err)
	} else {
		a.watcher = w
	}

	for !a.quit {
		a.clearExpiredMessages()
		a.render()
		ev := screen.PollEvent()
		if ev == nil {
			break
		}
		a.handleEvent(ev)
	}

	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.findWhat != "" {
		a.history.AddFind(a.findWhat)
	}
	if err := a.history.Save(); err != nil {
		a.logger.Warn("app: history not saved", "err", err)
	}

	screen.Clear()
	screen.Fini()
	return nil
}

func (a *App) handleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		a.screen.Sync()
	case *tcell.EventKey:
		a.handleKey(ev)
	case *tcell.EventMouse:
		a.focused().HandleMouse(ev)
	case *FileWatchEvent:
		a.handleFileWatchEvent(ev)
	}
}

func (a *App) focused() Component {
	if a.dialog != nil {
		return a.dialog
	}
	if a.focusTarget == "input" {
		return a.input
	}
	return a.results
}

func (a *App) handleKey(ev *tcell.EventKey) {
	if a.dialog != nil {
		a.dialog.HandleKey(ev)
		return
	}

	switch ev.Key() {
	case tcell.KeyCtrlQ:
		a.requestQuit()
		return
	case tcell.KeyCtrlS:
		a.saveEditors(a.ws.DirtyEditors())
		return
	case tcell.KeyCtrlZ:
		a.undoCurrentEditor()
		return
	case tcell.KeyCtrlR:
		a.runReplace()
		return
	}
	a.quitPending = false

	if a.focusTarget == "results" && ev.Key() == tcell.KeyEscape {
		a.requestQuit()
		return
	}
	a.focused().HandleKey(ev)
}

func (a *App) setFocus(target string) {
	a.focusTarget = target
	a.results.SetFocused(target == "results")
	a.input.SetFocused(target == "input")
	if target == "input" {
		a.statusBar.Mode = "REPLACE"
	} else {
		a.statusBar.Mode = "RESULTS"
	}
}

func (a *App) requestQuit() {
	if dirty := a.ws.DirtyEditors(); len(dirty) > 0 && !a.quitPending {
		a.quitPending = true
		a.setTemporaryError(fmt.Sprintf("%d editor(s) unsaved: Ctrl+S saves, Ctrl+Q again quits", len(dirty)))
		return
	}
	a.quit = true
}

// runReplace applies the replace-with text to every marked match, then drops
// the replaced rows from the listing.
func (a *App) runReplace() {
	if a.dialog != nil {
		return
	}
	if a.idx.SelectedCount() == 0 {
		a.setTemporaryError("No matches marked: Space marks a match, a marks all")
		return
	}
	template := a.input.Text()
	a.history.AddReplace(template)
	a.input.SetHistory(a.history.Replace)

	var follow replace.MatchID
	if rec, ok := a.results.CurrentRecord(); ok {
		follow = rec.ID
	}

	rep := a.engine.Apply(a.idx, template)
	for _, err := range rep.Errors {
		a.logger.Warn("app: replace error", "err", err)
	}
	res := a.idx.Compact()
	for _, f := range res.RemovedFiles {
		delete(a.results.Changed, f)
	}
	a.results.Follow(follow)

	msg := fmt.Sprintf("Replaced %d match(es) in %d file(s)", rep.Applied, len(rep.FilesModified)+len(rep.EditorsModified))
	if rep.Unchanged > 0 {
		msg += fmt.Sprintf(", %d unchanged", rep.Unchanged)
	}
	if rep.Failed > 0 {
		a.setTemporaryError(fmt.Sprintf("%s, %d failed: %v", msg, rep.Failed, rep.Errors[0]))
	} else {
		a.setTemporaryMessage(msg)
	}

	if len(rep.EditorsModified) > 0 {
		a.promptSave(rep.EditorsModified)
	}
}

func (a *App) promptSave(paths []string) {
	d := ui.NewSaveFilesDialog(paths)
	d.Theme = a.cfg.GetTheme()
	d.OnConfirm = func(selected []string) {
		a.dialog = nil
		a.saveEditors(selected)
	}
	d.OnCancel = func() {
		a.dialog = nil
		a.setTemporaryMessage("Changes kept in open editors")
	}
	a.dialog = d
}

func (a *App) saveEditors(paths []string) {
	saved := 0
	for _, p := range paths {
		if err := a.ws.Save(p); err != nil {
			a.logger.Error("app: save failed", "path", p, "err", err)
			a.setTemporaryError("Error: " + err.Error())
			return
		}
		saved++
	}
	if saved > 0 {
		a.setTemporaryMessage(fmt.Sprintf("Saved %d file(s)", saved))
	}
}

// toggleEditor opens path as an editor buffer, so later passes keep their
// edits in memory, or closes a clean one again.
func (a *App) toggleEditor(path string) {
	if buf, ok := a.ws.Editor(path); ok {
		if buf.Dirty {
			a.setTemporaryError(filepath.Base(path) + " has unsaved changes")
			return
		}
		a.ws.Close(path)
		delete(a.results.Open, path)
		a.setTemporaryMessage("Closed " + filepath.Base(path))
		return
	}
	if _, err := a.ws.Open(path); err != nil {
		a.setTemporaryError("Error: " + err.Error())
		return
	}
	a.results.Open[path] = true
	a.setTemporaryMessage("Opened " + filepath.Base(path) + ": replacements stay in memory until saved")
}

func (a *App) undoCurrentEditor() {
	row, ok := a.results.Current()
	if !ok {
		return
	}
	if !a.ws.UndoLast(row.File) {
		a.setTemporaryError("Nothing to undo in " + filepath.Base(row.File))
		return
	}
	a.setTemporaryMessage("Undid last replace in " + filepath.Base(row.File))
}

func (a *App) copyLocation(rec *replace.MatchRecord) {
	loc := clipboardx.Location(rec.FileName, rec.LineNumber, rec.ColumnInChars+1)
	if err := clipboardx.Write(loc); err != nil {
		a.setTemporaryError("Copy failed: " + err.Error())
		return
	}
	a.setTemporaryMessage("Copied " + loc)
}

func (a *App) handleFileWatchEvent(ev *FileWatchEvent) {
	name, ok := a.indexNames[ev.Path]
	if !ok {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	// Allow 1 second grace period after our last save
	if written := a.ws.WrittenAt(name); !written.IsZero() {
		if info, err := os.Stat(ev.Path); err == nil && info.ModTime().Sub(written) <= time.Second {
			return
		}
	}

	a.results.Changed[name] = true
	a.logger.Info("app: file changed on disk", "path", name, "op", ev.Op.String())

	if buf, ok := a.ws.Editor(name); ok && !buf.Dirty && ev.Op&fsnotify.Remove == 0 {
		if err := a.ws.Reload(name); err == nil {
			a.setTemporaryMessage("↻ " + filepath.Base(name) + " (reloaded)")
			return
		}
	}
	a.setTemporaryError("⚠ " + filepath.Base(name) + " changed on disk: its matches may be stale")
}

func (a *App) updateStatus() {
	a.statusBar.Files = len(a.idx.Files())
	a.statusBar.Matches = a.idx.Len()
	a.statusBar.Marked = a.idx.SelectedCount()
	failed := 0
	for _, rec := range a.idx.Records() {
		if rec.State == replace.Failed {
			failed++
		}
	}
	a.statusBar.Failed = failed
}

func (a *App) render() {
	if a.screen == nil {
		return
	}
	w, h := a.screen.Size()
	a.updateStatus()

	a.input.Render(a.screen, 0, 0, w, 1)
	a.results.Render(a.screen, 0, 1, w, h-2)
	a.statusBar.Render(a.screen, 0, h-1, w, 1)
	if a.dialog != nil {
		a.dialog.Render(a.screen, 0, 1, w, h-2)
	}
	a.screen.Show()
}

// setTemporaryMessage sets a message that will auto-clear after 5 seconds
func (a *App) setTemporaryMessage(msg string) {
	a.statusBar.Message = msg
	a.statusBar.IsError = false
	a.statusMessageTime = time.Now()
}

func (a *App) setTemporaryError(msg string) {
	a.statusBar.Message = msg
	a.statusBar.IsError = true
	a.statusMessageTime = time.Now()
}

func (a *App) clearExpiredMessages() {
	if !a.statusMessageTime.IsZero() && time.Since(a.statusMessageTime) > 5*time.Second {
		a.statusBar.Message = ""
		a.statusBar.IsError = false
		a.statusMessageTime = time.Time{}
	}
}

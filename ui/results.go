package ui

import (
	"fmt"
	"path/filepath"

	"github.com/gdamore/tcell/v2"

	"sweep/config"
	"sweep/highlight"
	"sweep/replace"
)

const tabWidth = 4

// ResultsPanel lists the hits of a MatchIndex under per-file headers and
// lets the user mark the ones to replace.
type ResultsPanel struct {
	Index *replace.MatchIndex
	Theme *config.ColorScheme
	Root  string // headers show paths relative to Root

	// Changed flags files modified on disk since the search; Open flags files
	// with an editor buffer.
	Changed map[string]bool
	Open    map[string]bool

	hl      *highlight.Highlighter
	langs   map[string]string
	cursor  int
	scroll  int
	height  int
	top     int
	focused bool

	OnOpen       func(path string)
	OnCopy       func(rec *replace.MatchRecord)
	OnReplace    func()
	OnFocusInput func()
}

func NewResultsPanel(idx *replace.MatchIndex, hl *highlight.Highlighter) *ResultsPanel {
	if hl == nil {
		hl = highlight.New()
	}
	p := &ResultsPanel{
		Index:   idx,
		Changed: make(map[string]bool),
		Open:    make(map[string]bool),
		hl:      hl,
		langs:   make(map[string]string),
		height:  10,
		focused: true,
	}
	p.cursor = p.firstMatchRow()
	return p
}

func (p *ResultsPanel) firstMatchRow() int {
	for i, r := range p.Index.Rows() {
		if r.Kind == replace.MatchRow {
			return i
		}
	}
	return 0
}

func (p *ResultsPanel) Cursor() int { return p.cursor }

// Current returns the row under the cursor.
func (p *ResultsPanel) Current() (replace.Row, bool) {
	rows := p.Index.Rows()
	if p.cursor < 0 || p.cursor >= len(rows) {
		return replace.Row{}, false
	}
	return rows[p.cursor], true
}

// CurrentRecord returns the record under the cursor, if the cursor is on a
// match row.
func (p *ResultsPanel) CurrentRecord() (*replace.MatchRecord, bool) {
	row, ok := p.Current()
	if !ok || row.Kind != replace.MatchRow {
		return nil, false
	}
	return p.Index.Get(row.ID)
}

func (p *ResultsPanel) MoveCursor(delta int) {
	p.cursor += delta
	p.Clamp()
}

// Clamp keeps the cursor on an existing row, e.g. after rows were removed.
func (p *ResultsPanel) Clamp() {
	n := len(p.Index.Rows())
	if p.cursor >= n {
		p.cursor = n - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// Follow moves the cursor to the row of id when the record still exists.
func (p *ResultsPanel) Follow(id replace.MatchID) {
	if row := p.Index.RowOf(id); row >= 0 {
		p.cursor = row
	}
	p.Clamp()
}

// ToggleCurrent flips the mark of the current match; on a header it marks
// every match of the file, or unmarks them all when they already are.
func (p *ResultsPanel) ToggleCurrent() {
	row, ok := p.Current()
	if !ok {
		return
	}
	if row.Kind == replace.MatchRow {
		p.Index.Toggle(row.ID)
		return
	}
	var ids []replace.MatchID
	all := true
	for _, r := range p.Index.Rows() {
		if r.Kind != replace.MatchRow || r.File != row.File {
			continue
		}
		ids = append(ids, r.ID)
		if rec, ok := p.Index.Get(r.ID); ok && rec.State != replace.Selected {
			all = false
		}
	}
	for _, id := range ids {
		if all {
			p.Index.Deselect(id)
		} else {
			p.Index.Select(id)
		}
	}
}

func (p *ResultsPanel) MarkAll()   { p.Index.SelectAll() }
func (p *ResultsPanel) UnmarkAll() { p.Index.UnselectAll() }

func (p *ResultsPanel) language(path string) string {
	lang, ok := p.langs[path]
	if !ok {
		lang = highlight.DetectLanguage(filepath.Base(path))
		p.langs[path] = lang
	}
	return lang
}

func (p *ResultsPanel) displayPath(path string) string {
	if p.Root == "" {
		return path
	}
	if rel, err := filepath.Rel(p.Root, path); err == nil && !filepath.IsAbs(rel) && rel != "" && rel[0] != '.' {
		return rel
	}
	return path
}

func (p *ResultsPanel) Render(screen tcell.Screen, x, y, width, height int) {
	theme := p.Theme
	if theme == nil {
		theme = config.Themes["monokai"]
	}
	p.height = height
	p.top = y
	bg := tcell.StyleDefault.Background(theme.Background).Foreground(theme.Foreground)

	rows := p.Index.Rows()
	if p.cursor < p.scroll {
		p.scroll = p.cursor
	}
	if p.cursor >= p.scroll+height {
		p.scroll = p.cursor - height + 1
	}
	if p.scroll < 0 {
		p.scroll = 0
	}

	for i := 0; i < height; i++ {
		fillLine(screen, x, y+i, width, bg)
		ri := p.scroll + i
		if ri >= len(rows) {
			continue
		}
		style := bg
		if ri == p.cursor && p.focused {
			style = style.Background(theme.Selection)
			fillLine(screen, x, y+i, width, style)
		}
		row := rows[ri]
		if row.Kind == replace.HeaderRow {
			p.renderHeader(screen, x, y+i, width, row, style, theme)
			continue
		}
		if rec, ok := p.Index.Get(row.ID); ok {
			p.renderMatch(screen, x, y+i, width, rec, style, theme)
		}
	}

	if len(rows) == 0 {
		drawString(screen, x+1, y, x+width, "No matches", bg.Foreground(theme.LineNumber))
	}
}

func (p *ResultsPanel) renderHeader(screen tcell.Screen, x, y, width int, row replace.Row, style tcell.Style, theme *config.ColorScheme) {
	maxX := x + width
	col := drawString(screen, x, y, maxX, "▾ ", style.Foreground(theme.HeaderFg))

	suffix := fmt.Sprintf(" (%d)", row.Count)
	if lang := p.language(row.File); lang != "" {
		suffix += " " + lang
	}
	if p.Open[row.File] {
		suffix += " [open]"
	}
	if p.Changed[row.File] {
		suffix += " ● changed on disk"
	}

	name := truncateLeft(p.displayPath(row.File), maxX-col-len([]rune(suffix)))
	col = drawString(screen, col, y, maxX, name, style.Foreground(theme.HeaderFg).Bold(true))
	suffixStyle := style.Foreground(theme.LineNumber)
	if p.Changed[row.File] {
		suffixStyle = style.Foreground(theme.Changed)
	}
	drawString(screen, col, y, maxX, suffix, suffixStyle)
}

func (p *ResultsPanel) glyph(s replace.State, style tcell.Style, theme *config.ColorScheme) (string, tcell.Style) {
	switch s {
	case replace.Selected:
		return "[x]", style.Foreground(theme.Marked).Bold(true)
	case replace.Applied:
		return " ✓ ", style.Foreground(theme.Applied)
	case replace.Failed:
		return " ✗ ", style.Foreground(theme.Failed).Bold(true)
	default:
		return "[ ]", style.Foreground(theme.LineNumber)
	}
}

type cell struct {
	r     rune
	style tcell.Style
}

func (p *ResultsPanel) renderMatch(screen tcell.Screen, x, y, width int, rec *replace.MatchRecord, style tcell.Style, theme *config.ColorScheme) {
	maxX := x + width
	col := drawString(screen, x, y, maxX, "  ", style)
	glyph, gs := p.glyph(rec.State, style, theme)
	col = drawString(screen, col, y, maxX, glyph, gs)
	loc := fmt.Sprintf(" %4d:%-3d ", rec.LineNumber, rec.ColumnInChars+1)
	col = drawString(screen, col, y, maxX, loc, style.Foreground(theme.LineNumber))

	from, to := rec.ColumnInChars, rec.ColumnInChars+rec.LenInChars
	var cells []cell
	matchEnd := 0
	ri := 0
	for _, tok := range p.hl.Line(p.language(rec.FileName), rec.Pattern, style) {
		for _, r := range tok.Text {
			st := tok.Style
			if ri >= from && ri < to {
				st = st.Foreground(theme.Match).Reverse(true)
			}
			if r == '\t' {
				cells = append(cells, cell{' ', st})
				for len(cells)%tabWidth != 0 {
					cells = append(cells, cell{' ', st})
				}
			} else {
				cells = append(cells, cell{r, st})
			}
			ri++
			if ri == to {
				matchEnd = len(cells)
			}
		}
	}

	// scroll the snippet so the match stays visible
	avail := maxX - col
	offset := 0
	if matchEnd > avail {
		offset = matchEnd - avail + avail/4
		if offset > len(cells) {
			offset = len(cells)
		}
	}
	for _, c := range cells[offset:] {
		next := drawString(screen, col, y, maxX, string(c.r), c.style)
		if next == col {
			break
		}
		col = next
	}
}

func (p *ResultsPanel) HandleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyUp:
		p.MoveCursor(-1)
	case tcell.KeyDown:
		p.MoveCursor(1)
	case tcell.KeyPgUp:
		p.MoveCursor(-p.height)
	case tcell.KeyPgDn:
		p.MoveCursor(p.height)
	case tcell.KeyHome:
		p.cursor = 0
	case tcell.KeyEnd:
		p.cursor = len(p.Index.Rows()) - 1
		p.Clamp()
	case tcell.KeyEnter:
		if row, ok := p.Current(); ok && p.OnOpen != nil {
			p.OnOpen(row.File)
		}
	case tcell.KeyTab:
		if p.OnFocusInput != nil {
			p.OnFocusInput()
		}
	case tcell.KeyCtrlR:
		if p.OnReplace != nil {
			p.OnReplace()
		}
	case tcell.KeyRune:
		switch ev.Rune() {
		case ' ':
			p.ToggleCurrent()
			p.MoveCursor(1)
		case 'a':
			p.MarkAll()
		case 'u':
			p.UnmarkAll()
		case 'y':
			if rec, ok := p.CurrentRecord(); ok && p.OnCopy != nil {
				p.OnCopy(rec)
			}
		default:
			return false
		}
	default:
		return false
	}
	return true
}

func (p *ResultsPanel) HandleMouse(ev *tcell.EventMouse) bool {
	switch {
	case ev.Buttons()&tcell.WheelUp != 0:
		p.MoveCursor(-3)
	case ev.Buttons()&tcell.WheelDown != 0:
		p.MoveCursor(3)
	case ev.Buttons()&tcell.Button1 != 0:
		_, my := ev.Position()
		p.cursor = p.scroll + my - p.top
		p.Clamp()
	default:
		return false
	}
	return true
}

func (p *ResultsPanel) IsFocused() bool   { return p.focused }
func (p *ResultsPanel) SetFocused(f bool) { p.focused = f }

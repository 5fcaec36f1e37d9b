package ui

import (
	"github.com/gdamore/tcell/v2"

	"sweep/clipboardx"
	"sweep/config"
)

// InputBar is a one-line text field with a history of earlier entries.
type InputBar struct {
	Prompt string
	Hint   string
	Theme  *config.ColorScheme

	text    []rune
	cursor  int
	focused bool

	history []string // newest first
	histPos int      // -1 while editing the draft
	draft   string

	OnSubmit func(text string)
	OnCancel func()
}

func NewInputBar(prompt string) *InputBar {
	return &InputBar{Prompt: prompt, histPos: -1}
}

func (b *InputBar) Text() string { return string(b.text) }

func (b *InputBar) SetText(s string) {
	b.text = []rune(s)
	b.cursor = len(b.text)
	b.histPos = -1
}

// SetHistory replaces the entries reachable with Up, newest first.
func (b *InputBar) SetHistory(entries []string) {
	b.history = entries
	b.histPos = -1
}

func (b *InputBar) Insert(s string) {
	rs := []rune(s)
	text := make([]rune, 0, len(b.text)+len(rs))
	text = append(text, b.text[:b.cursor]...)
	text = append(text, rs...)
	text = append(text, b.text[b.cursor:]...)
	b.text = text
	b.cursor += len(rs)
}

// Older recalls the previous history entry; the text being typed is kept
// and comes back with Newer.
func (b *InputBar) Older() {
	if b.histPos+1 >= len(b.history) {
		return
	}
	if b.histPos == -1 {
		b.draft = string(b.text)
	}
	b.histPos++
	b.text = []rune(b.history[b.histPos])
	b.cursor = len(b.text)
}

func (b *InputBar) Newer() {
	if b.histPos < 0 {
		return
	}
	b.histPos--
	if b.histPos == -1 {
		b.text = []rune(b.draft)
	} else {
		b.text = []rune(b.history[b.histPos])
	}
	b.cursor = len(b.text)
}

func (b *InputBar) Render(screen tcell.Screen, x, y, width, height int) {
	theme := b.Theme
	if theme == nil {
		theme = config.Themes["monokai"]
	}
	style := tcell.StyleDefault.Background(theme.InputBg).Foreground(theme.Foreground)
	promptStyle := style.Foreground(theme.HeaderFg).Bold(true)
	if !b.focused {
		promptStyle = style.Foreground(theme.LineNumber)
	}
	fillLine(screen, x, y, width, style)

	maxX := x + width
	col := drawString(screen, x, y, maxX, b.Prompt, promptStyle)
	for i, ch := range b.text {
		st := style
		if b.focused && i == b.cursor {
			st = st.Reverse(true)
		}
		next := drawString(screen, col, y, maxX, string(ch), st)
		if next == col {
			break
		}
		col = next
	}
	if b.focused && b.cursor >= len(b.text) && col < maxX {
		screen.SetContent(col, y, ' ', nil, style.Reverse(true))
		col++
	}

	if b.Hint != "" {
		hintStart := maxX - len([]rune(b.Hint))
		if hintStart > col {
			drawString(screen, hintStart, y, maxX, b.Hint, style.Foreground(theme.LineNumber))
		}
	}
}

func (b *InputBar) HandleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEnter:
		if b.OnSubmit != nil {
			b.OnSubmit(b.Text())
		}
	case tcell.KeyEscape, tcell.KeyTab, tcell.KeyBacktab:
		if b.OnCancel != nil {
			b.OnCancel()
		}
	case tcell.KeyUp:
		b.Older()
	case tcell.KeyDown:
		b.Newer()
	case tcell.KeyLeft:
		if b.cursor > 0 {
			b.cursor--
		}
	case tcell.KeyRight:
		if b.cursor < len(b.text) {
			b.cursor++
		}
	case tcell.KeyHome, tcell.KeyCtrlA:
		b.cursor = 0
	case tcell.KeyEnd, tcell.KeyCtrlE:
		b.cursor = len(b.text)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if b.cursor > 0 {
			b.text = append(b.text[:b.cursor-1], b.text[b.cursor:]...)
			b.cursor--
		}
	case tcell.KeyDelete:
		if b.cursor < len(b.text) {
			b.text = append(b.text[:b.cursor], b.text[b.cursor+1:]...)
		}
	case tcell.KeyCtrlU:
		b.SetText("")
	case tcell.KeyCtrlV:
		b.Insert(clipboardx.Read())
	case tcell.KeyRune:
		b.Insert(string(ev.Rune()))
	default:
		return false
	}
	return true
}

func (b *InputBar) HandleMouse(ev *tcell.EventMouse) bool { return false }
func (b *InputBar) IsFocused() bool                      { return b.focused }
func (b *InputBar) SetFocused(f bool)                    { b.focused = f }

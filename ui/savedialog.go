package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"sweep/config"
)

// SaveFilesDialog asks which modified editor buffers to write after a
// replace pass. Every file starts checked.
type SaveFilesDialog struct {
	Files []string
	Theme *config.ColorScheme

	checked []bool
	cursor  int

	OnConfirm func(paths []string)
	OnCancel  func()
}

func NewSaveFilesDialog(files []string) *SaveFilesDialog {
	checked := make([]bool, len(files))
	for i := range checked {
		checked[i] = true
	}
	return &SaveFilesDialog{Files: files, checked: checked}
}

func (d *SaveFilesDialog) Move(delta int) {
	d.cursor += delta
	if d.cursor >= len(d.Files) {
		d.cursor = len(d.Files) - 1
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
}

func (d *SaveFilesDialog) Toggle() {
	if d.cursor < len(d.checked) {
		d.checked[d.cursor] = !d.checked[d.cursor]
	}
}

// Selected returns the checked files in list order.
func (d *SaveFilesDialog) Selected() []string {
	var out []string
	for i, f := range d.Files {
		if d.checked[i] {
			out = append(out, f)
		}
	}
	return out
}

func (d *SaveFilesDialog) Render(screen tcell.Screen, x, y, width, height int) {
	theme := d.Theme
	if theme == nil {
		theme = config.Themes["monokai"]
	}
	style := tcell.StyleDefault.Background(theme.DialogBg).Foreground(theme.DialogFg)
	border := style.Foreground(theme.HeaderFg)

	boxW := width * 2 / 3
	if boxW < 40 {
		boxW = width
	}
	boxH := len(d.Files) + 4
	if boxH > height {
		boxH = height
	}
	bx := x + (width-boxW)/2
	by := y + (height-boxH)/2

	for row := 0; row < boxH; row++ {
		fillLine(screen, bx, by+row, boxW, style)
		screen.SetContent(bx, by+row, '│', nil, border)
		screen.SetContent(bx+boxW-1, by+row, '│', nil, border)
	}
	for col := bx; col < bx+boxW; col++ {
		screen.SetContent(col, by, '─', nil, border)
		screen.SetContent(col, by+boxH-1, '─', nil, border)
	}
	screen.SetContent(bx, by, '┌', nil, border)
	screen.SetContent(bx+boxW-1, by, '┐', nil, border)
	screen.SetContent(bx, by+boxH-1, '└', nil, border)
	screen.SetContent(bx+boxW-1, by+boxH-1, '┘', nil, border)

	title := fmt.Sprintf(" Save %d modified file(s)? ", len(d.Files))
	drawString(screen, bx+2, by, bx+boxW-1, title, border.Bold(true))

	visible := boxH - 4
	start := 0
	if d.cursor >= visible {
		start = d.cursor - visible + 1
	}
	for i := 0; i < visible && start+i < len(d.Files); i++ {
		fi := start + i
		st := style
		if fi == d.cursor {
			st = st.Background(theme.Selection)
		}
		mark := "[ ] "
		if d.checked[fi] {
			mark = "[x] "
		}
		inner := boxW - 4
		fillLine(screen, bx+2, by+2+i, inner, st)
		col := drawString(screen, bx+2, by+2+i, bx+2+inner, mark, st)
		drawString(screen, col, by+2+i, bx+2+inner, truncateLeft(d.Files[fi], bx+2+inner-col), st)
	}

	hint := " Space toggle · Enter save · Esc keep unsaved "
	drawString(screen, bx+2, by+boxH-1, bx+boxW-1, hint, border)
}

func (d *SaveFilesDialog) HandleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyUp:
		d.Move(-1)
	case tcell.KeyDown:
		d.Move(1)
	case tcell.KeyEnter:
		if d.OnConfirm != nil {
			d.OnConfirm(d.Selected())
		}
	case tcell.KeyEscape:
		if d.OnCancel != nil {
			d.OnCancel()
		}
	case tcell.KeyRune:
		if ev.Rune() == ' ' {
			d.Toggle()
		}
	}
	return true
}

func (d *SaveFilesDialog) HandleMouse(ev *tcell.EventMouse) bool { return true }
func (d *SaveFilesDialog) IsFocused() bool                      { return true }
func (d *SaveFilesDialog) SetFocused(bool)                      {}

package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"sweep/config"
)

type StatusBar struct {
	Mode    string // "RESULTS" or "REPLACE"
	Pattern string
	Files   int
	Matches int
	Marked  int
	Failed  int
	Message string // temporary status message
	IsError bool
	Theme   *config.ColorScheme
}

func NewStatusBar() *StatusBar {
	return &StatusBar{Mode: "RESULTS"}
}

func (s *StatusBar) Render(screen tcell.Screen, x, y, width, height int) {
	theme := s.Theme
	if theme == nil {
		theme = config.Themes["monokai"]
	}

	style := tcell.StyleDefault.Background(theme.StatusBarBg).Foreground(theme.StatusBarFg)
	modeStyle := tcell.StyleDefault.Background(theme.StatusMode).Foreground(tcell.ColorBlack).Bold(true)
	fillLine(screen, x, y, width, style)

	maxX := x + width
	col := drawString(screen, x, y, maxX, " "+s.Mode+" ", modeStyle)
	col = drawString(screen, col, y, maxX, " ", style)

	// A temporary message replaces the pattern and counts
	if s.Message != "" {
		msgStyle := style
		if s.IsError {
			msgStyle = style.Foreground(theme.Failed).Bold(true)
		}
		drawString(screen, col, y, maxX, s.Message, msgStyle)
		return
	}

	col = drawString(screen, col, y, maxX, s.Pattern, style.Bold(true))

	right := fmt.Sprintf("%d files │ %d matches │ %d marked ", s.Files, s.Matches, s.Marked)
	failed := ""
	if s.Failed > 0 {
		failed = fmt.Sprintf("│ %d failed ", s.Failed)
	}
	total := len([]rune(right)) + len([]rune(failed))
	start := maxX - total
	if start > col+2 {
		c := drawString(screen, start, y, maxX, right, style)
		drawString(screen, c, y, maxX, failed, style.Foreground(theme.Failed))
	}
}

func (s *StatusBar) HandleKey(ev *tcell.EventKey) bool     { return false }
func (s *StatusBar) HandleMouse(ev *tcell.EventMouse) bool { return false }
func (s *StatusBar) IsFocused() bool                      { return false }
func (s *StatusBar) SetFocused(f bool)                    {}

package render

import (
	"context"

	"github.com/gdamore/tcell/v2"

	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/orbit"
)

// panelRows is the screen height reserved below the map.
const panelRows = 6 + logLines

var (
	styleDefault    = tcell.StyleDefault
	stylePlanet     = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleAtmosphere = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	stylePath       = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleRocket     = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleWreck      = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleError      = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// ScreenRenderer draws the map and panel full-screen on a tcell screen,
// resizing the map to the terminal.
type ScreenRenderer struct {
	screen tcell.Screen
	opts   TerminalOptions
	layout *TerminalRenderer
}

// NewScreenRenderer initialises screen and takes it over. Close restores
// the terminal.
func NewScreenRenderer(screen tcell.Screen, opts TerminalOptions) (*ScreenRenderer, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	screen.Clear()
	return &ScreenRenderer{screen: screen, opts: opts}, nil
}

// Close releases the terminal.
func (s *ScreenRenderer) Close() {
	s.screen.Fini()
}

// Render implements Renderer.
func (s *ScreenRenderer) Render(tel engine.Telemetry, traj orbit.Trajectory) error {
	width, height := s.screen.Size()
	mapHeight := height - panelRows
	if s.layout == nil || s.layout.opts.Width != width || s.layout.opts.Height != mapHeight {
		opts := s.opts
		opts.Width, opts.Height = width, mapHeight
		s.layout = NewTerminalRenderer(nil, opts)
	}
	s.layout.compose(tel, traj)

	s.screen.Clear()
	for y, row := range s.layout.buffer {
		for x, glyph := range row {
			s.screen.SetContent(x, y, glyph, nil, glyphStyle(glyph))
		}
	}

	y := len(s.layout.buffer)
	for _, line := range Panel(tel) {
		style := styleDefault
		if len(line) > 6 && line[2:6] == "ERR:" {
			style = styleError
		}
		for x, r := range []rune(line) {
			if x >= width {
				break
			}
			s.screen.SetContent(x, y, r, nil, style)
		}
		y++
	}
	s.screen.Show()
	return nil
}

// WatchKeys cancels the returned context when the operator presses q,
// Escape or Ctrl-C, or when parent is done.
func (s *ScreenRenderer) WatchKeys(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer cancel()
		for {
			switch ev := s.screen.PollEvent().(type) {
			case nil:
				return
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					return
				}
			case *tcell.EventResize:
				s.screen.Sync()
			}
		}
	}()
	return ctx, cancel
}

func glyphStyle(glyph rune) tcell.Style {
	switch glyph {
	case glyphPlanet:
		return stylePlanet
	case glyphAtmosphere:
		return styleAtmosphere
	case glyphPath:
		return stylePath
	case glyphRocket:
		return styleRocket
	case glyphWreck:
		return styleWreck
	}
	return styleDefault
}

package render

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/orbit"
	"github.com/opd-ai/go-orbit/pkg/physics"
)

// Map glyphs.
const (
	glyphSpace      = ' '
	glyphPlanet     = '#'
	glyphAtmosphere = ':'
	glyphPath       = '.'
	glyphRocket     = 'A'
	glyphWreck      = 'X'
)

// cellAspect is the height of a terminal cell relative to its width.
const cellAspect = 2.0

// logLines is how many autopilot log lines the panel shows.
const logLines = 4

// TerminalOptions sizes the map.
type TerminalOptions struct {
	Width            int
	Height           int
	PlanetRadius     float64
	AtmosphereHeight float64
	// ClearScreen prefixes every frame with an ANSI home-and-clear.
	ClearScreen bool
}

// TerminalRenderer provides a simple ASCII-based rendering for terminals.
// The map is planet-centred and rescales to keep the rocket and its
// projected path in view.
type TerminalRenderer struct {
	out    io.Writer
	opts   TerminalOptions
	buffer [][]rune
	scale  float64 // metres per column
}

// NewTerminalRenderer creates a renderer writing frames to out.
func NewTerminalRenderer(out io.Writer, opts TerminalOptions) *TerminalRenderer {
	if opts.Width < 10 {
		opts.Width = 10
	}
	if opts.Height < 5 {
		opts.Height = 5
	}
	if opts.PlanetRadius <= 0 {
		opts.PlanetRadius = physics.DefaultPlanetRadius
	}
	buffer := make([][]rune, opts.Height)
	for i := range buffer {
		buffer[i] = make([]rune, opts.Width)
	}
	r := &TerminalRenderer{out: out, opts: opts, buffer: buffer}
	r.fit(0)
	return r
}

// fit sets the scale so a disc of the given radius, and at least the
// planet, fills the map.
func (r *TerminalRenderer) fit(radius float64) {
	view := math.Max(radius*1.1, r.opts.PlanetRadius*1.25)
	horizontal := 2 * view / float64(r.opts.Width)
	vertical := 2 * view / (float64(r.opts.Height) * cellAspect)
	r.scale = math.Max(horizontal, vertical)
}

// worldToScreen converts planet-centred metres to a cell. Y grows upward
// in the world and downward on screen.
func (r *TerminalRenderer) worldToScreen(pos physics.Vector2D) (int, int) {
	x := int(math.Floor(pos.X/r.scale + float64(r.opts.Width)/2))
	y := int(math.Floor(-pos.Y/(r.scale*cellAspect) + float64(r.opts.Height)/2))
	return x, y
}

// screenToWorld returns the world position of a cell centre.
func (r *TerminalRenderer) screenToWorld(x, y int) physics.Vector2D {
	return physics.Vector2D{
		X: (float64(x) + 0.5 - float64(r.opts.Width)/2) * r.scale,
		Y: -(float64(y) + 0.5 - float64(r.opts.Height)/2) * r.scale * cellAspect,
	}
}

func (r *TerminalRenderer) plot(pos physics.Vector2D, glyph rune) {
	x, y := r.worldToScreen(pos)
	if x >= 0 && x < r.opts.Width && y >= 0 && y < r.opts.Height {
		r.buffer[y][x] = glyph
	}
}

// Clear blanks the map.
func (r *TerminalRenderer) Clear() {
	for y := range r.buffer {
		for x := range r.buffer[y] {
			r.buffer[y][x] = glyphSpace
		}
	}
}

// DrawPlanet fills the planet disc and its atmosphere shell.
func (r *TerminalRenderer) DrawPlanet() {
	top := r.opts.PlanetRadius + r.opts.AtmosphereHeight
	for y := range r.buffer {
		for x := range r.buffer[y] {
			d := r.screenToWorld(x, y).Length()
			switch {
			case d <= r.opts.PlanetRadius:
				r.buffer[y][x] = glyphPlanet
			case r.opts.AtmosphereHeight > 0 && d <= top:
				r.buffer[y][x] = glyphAtmosphere
			}
		}
	}
}

// DrawTrajectory plots the projected path.
func (r *TerminalRenderer) DrawTrajectory(traj orbit.Trajectory) {
	for _, p := range traj.Points {
		r.plot(p, glyphPath)
	}
}

// DrawRocket marks the rocket, or its wreck.
func (r *TerminalRenderer) DrawRocket(tel engine.Telemetry) {
	glyph := glyphRocket
	if tel.Status == engine.StatusDestroyed {
		glyph = glyphWreck
	}
	r.plot(tel.Position, glyph)
}

// Render implements Renderer: it rescales, draws the map and writes it
// with the telemetry panel.
func (r *TerminalRenderer) Render(tel engine.Telemetry, traj orbit.Trajectory) error {
	r.compose(tel, traj)
	return r.Present(tel)
}

// compose rescales and redraws the map buffer.
func (r *TerminalRenderer) compose(tel engine.Telemetry, traj orbit.Trajectory) {
	radius := tel.Position.Length()
	for _, p := range traj.Points {
		radius = math.Max(radius, p.Length())
	}
	r.fit(radius)

	r.Clear()
	r.DrawPlanet()
	r.DrawTrajectory(traj)
	r.DrawRocket(tel)
}

// Present writes the map and the telemetry panel.
func (r *TerminalRenderer) Present(tel engine.Telemetry) error {
	w := bufio.NewWriter(r.out)
	if r.opts.ClearScreen {
		w.WriteString("\033[H\033[2J")
	}

	border := "+" + strings.Repeat("-", r.opts.Width) + "+\n"
	w.WriteString(border)
	for _, row := range r.buffer {
		w.WriteByte('|')
		w.WriteString(string(row))
		w.WriteString("|\n")
	}
	w.WriteString(border)

	for _, line := range Panel(tel) {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	return w.Flush()
}

// Panel formats the telemetry readout.
func Panel(tel engine.Telemetry) []string {
	flightID := tel.FlightID
	if len(flightID) > 8 {
		flightID = flightID[:8]
	}
	status := tel.Status
	if tel.DestroyReason != "" {
		status += ": " + tel.DestroyReason
	}

	engineState := "OFF"
	if tel.EngineOn {
		engineState = "ON"
	}

	lines := []string{
		fmt.Sprintf("Flight %s  %s  %s", flightID, MissionClock(tel.MissionTime), status),
		fmt.Sprintf("Alt %s  Speed %.0f m/s  VSpd %+.0f m/s  Mach %.2f",
			Distance(tel.Altitude), tel.Speed, tel.VerticalSpeed, tel.Mach),
		fmt.Sprintf("Apo %s  Peri %s  Ecc %.3f", apsis(tel.Apoapsis), apsis(tel.Periapsis), tel.Eccentricity),
		fmt.Sprintf("Engine %s  Throttle %3.0f%%  Stage %d/%d  Fuel %3.0f%%  TWR %.2f  dV %.0f m/s",
			engineState, tel.Throttle*100, tel.ActiveStage+1, len(tel.Stages), stageFuel(tel), tel.TWR, tel.DeltaV),
		fmt.Sprintf("q %.1f kPa  Heat %.2f  Hold %s  Warp x%.0f", tel.DynamicPressure/1000, tel.Heat, tel.Hold, tel.TimeWarp),
	}

	autopilot := "Autopilot idle"
	if tel.AutopilotRunning && len(tel.AutopilotQueue) > 0 {
		autopilot = fmt.Sprintf("Autopilot %d steps, next: %s", len(tel.AutopilotQueue), tel.AutopilotQueue[0])
	}
	lines = append(lines, autopilot)

	log := tel.Log
	if len(log) > logLines {
		log = log[len(log)-logLines:]
	}
	for _, l := range log {
		lines = append(lines, "  "+l)
	}
	return lines
}

// MissionClock formats seconds as T+hh:mm:ss.
func MissionClock(seconds float64) string {
	s := int(math.Max(0, seconds))
	return fmt.Sprintf("T+%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// Distance formats metres with a unit suited to the magnitude.
func Distance(m float64) string {
	switch {
	case math.IsInf(m, 0) || math.IsNaN(m):
		return "n/a"
	case math.Abs(m) < 10000:
		return fmt.Sprintf("%.0f m", m)
	default:
		return fmt.Sprintf("%.1f km", m/1000)
	}
}

func apsis(f engine.Float) string {
	if !f.IsFinite() {
		return "escape"
	}
	return Distance(float64(f))
}

func stageFuel(tel engine.Telemetry) float64 {
	if tel.ActiveStage < 0 || tel.ActiveStage >= len(tel.Stages) {
		return 0
	}
	s := tel.Stages[tel.ActiveStage]
	if s.Capacity <= 0 {
		return 0
	}
	return 100 * s.Fuel / s.Capacity
}

package autopilot

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/opd-ai/go-orbit/pkg/flight"
)

// ParseError describes one rejected script line.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Line is one normalized command line with its source line number.
type Line struct {
	Number int
	Text   string
}

// Normalize lowercases a script, strips comments and splits it into one
// command per line. Separators are newlines, the literal "////", the word
// "then", and the start of any command keyword.
func Normalize(script string) []Line {
	script = strings.ToLower(strings.ReplaceAll(script, "\r\n", "\n"))

	var lines []Line
	for i, raw := range strings.Split(script, "\n") {
		for _, segment := range strings.Split(raw, "////") {
			for _, words := range splitCommands(tokenize(stripComment(segment))) {
				lines = append(lines, Line{Number: i + 1, Text: strings.Join(words, " ")})
			}
		}
	}
	return lines
}

func stripComment(s string) string {
	if i := strings.Index(s, "#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}
	return s
}

// tokenize splits on whitespace and separates comparison operators, so
// "apoapsis>=100km" yields "apoapsis", ">=", "100km".
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			flush()
		case c == '>' || c == '<' || c == '=':
			flush()
			if (c == '>' || c == '<') && i+1 < len(s) && s[i+1] == '=' {
				tokens = append(tokens, s[i:i+2])
				i++
			} else {
				tokens = append(tokens, string(c))
			}
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

// splitCommands breaks a token stream into commands at "then" and before
// every command keyword.
func splitCommands(words []string) [][]string {
	var out [][]string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, cur)
			cur = nil
		}
	}

	for i, w := range words {
		if w == "then" {
			flush()
			continue
		}
		if len(cur) > 0 && startsCommand(words, i, cur) {
			flush()
		}
		cur = append(cur, w)
	}
	flush()
	return out
}

func startsCommand(words []string, i int, cur []string) bool {
	prev := cur[len(cur)-1]
	switch words[i] {
	case "ignite", "ignit", "start", "cut", "stop", "hold", "wait", "burn_until", "pitch":
		return true
	case "engine":
		return i+1 < len(words) && (words[i+1] == "on" || words[i+1] == "off")
	case "throttle":
		// "until apoapsis 100km throttle 0.5" keeps its throttle argument.
		return cur[0] != "until" && cur[0] != "burn_until"
	case "until":
		return prev != "wait"
	case "stage":
		return prev != "until"
	}
	return false
}

// Parse normalizes and parses a script. All lines are parsed; the returned
// errors are *ParseError values, one per rejected line.
func Parse(script string) ([]Command, []error) {
	var (
		commands []Command
		errs     []error
	)
	for _, line := range Normalize(script) {
		cmd, reason := parseLine(strings.Fields(line.Text))
		if reason != "" {
			errs = append(errs, &ParseError{Line: line.Number, Text: line.Text, Reason: reason})
			continue
		}
		commands = append(commands, cmd)
	}
	return commands, errs
}

func parseLine(words []string) (Command, string) {
	args := words[1:]
	switch words[0] {
	case "ignite", "ignit", "start":
		return noArgs(Ignite{}, args)
	case "cut", "stop":
		return noArgs(Cut{}, args)
	case "engine":
		if len(args) == 1 && args[0] == "on" {
			return Ignite{}, ""
		}
		if len(args) == 1 && args[0] == "off" {
			return Cut{}, ""
		}
		return nil, "engine requires on or off"
	case "stage":
		return noArgs(Stage{}, args)
	case "throttle":
		if len(args) != 1 {
			return nil, "throttle requires a single value"
		}
		v, err := parseNumber(args[0])
		if err != nil {
			return nil, "invalid throttle value"
		}
		return SetThrottle{Value: clamp01(v)}, ""
	case "wait":
		return parseWait(args)
	case "hold":
		if len(args) != 1 {
			return nil, "hold requires a mode"
		}
		mode, ok := flight.ParseHoldMode(args[0])
		if !ok || mode == flight.HoldTarget {
			return nil, "hold mode must be prograde, retrograde, up or none"
		}
		return Hold{Mode: mode}, ""
	case "pitch":
		return parsePitch(args)
	case "until":
		if len(args) > 0 && args[0] == "twr" {
			return parseUntilTWR(args[1:])
		}
		return parseUntilOrbit(args, false)
	case "burn_until":
		return parseUntilOrbit(args, true)
	}
	return nil, "unknown command"
}

func noArgs(cmd Command, args []string) (Command, string) {
	if len(args) > 0 {
		return nil, fmt.Sprintf("%s takes no arguments", cmd)
	}
	return cmd, ""
}

func parseWait(args []string) (Command, string) {
	if len(args) == 0 {
		return nil, "wait requires a duration or until condition"
	}
	if args[0] != "until" {
		if len(args) > 2 || (len(args) == 2 && !isSecondsUnit(args[1])) {
			return nil, "invalid wait duration"
		}
		s := strings.TrimSuffix(args[0], "s")
		v, err := parseNumber(s)
		if err != nil || v < 0 {
			return nil, "invalid wait duration"
		}
		return Wait{Seconds: v}, ""
	}

	cond := args[1:]
	switch {
	case len(cond) == 1 && cond[0] == "apoapsis":
		return WaitUntil{Condition: UntilApoapsis}, ""
	case len(cond) == 1 && cond[0] == "periapsis":
		return WaitUntil{Condition: UntilPeriapsis}, ""
	case len(cond) == 2 && cond[0] == "stage" && (cond[1] == "empty" || cond[1] == "depleted"):
		return WaitUntil{Condition: UntilStageEmpty}, ""
	case len(cond) >= 2 && cond[0] == "altitude":
		rest := cond[1:]
		if rest[0] == ">=" || rest[0] == ">" {
			rest = rest[1:]
		}
		v, n, err := parseDistance(rest)
		if err != nil || n != len(rest) {
			return nil, "invalid altitude"
		}
		return WaitUntil{Condition: UntilAltitude, Value: v}, ""
	}
	return nil, "unknown wait condition"
}

func isSecondsUnit(s string) bool {
	switch s {
	case "s", "sec", "secs", "second", "seconds":
		return true
	}
	return false
}

func parsePitch(args []string) (Command, string) {
	if len(args) != 2 || (args[0] != "east" && args[0] != "west") {
		return nil, "pitch requires east or west and an angle"
	}
	deg, err := parseNumber(strings.TrimSuffix(args[1], "deg"))
	if err != nil {
		return nil, "invalid pitch angle"
	}
	return Pitch{East: args[0] == "east", Degrees: deg}, ""
}

func parseUntilOrbit(args []string, burn bool) (Command, string) {
	if len(args) == 0 || (args[0] != string(Apoapsis) && args[0] != string(Periapsis)) {
		return nil, "until requires apoapsis, periapsis or twr"
	}
	cmd := UntilOrbit{Quantity: Quantity(args[0]), Burn: burn}
	rest := args[1:]

	op, hasOp := parseComparison(rest)
	if hasOp {
		cmd.Op = op
		rest = rest[1:]
	}
	if len(rest) == 0 {
		if hasOp {
			return nil, "missing target"
		}
		if cmd.Quantity == Periapsis {
			return WaitUntil{Condition: UntilPeriapsis}, ""
		}
		return WaitUntil{Condition: UntilApoapsis}, ""
	}

	target, n, err := parseDistance(rest)
	if err != nil {
		return nil, "invalid target"
	}
	cmd.Target = target
	rest = rest[n:]

	thr, hasThr, reason := parseThrottleSuffix(rest)
	if reason != "" {
		return nil, reason
	}
	cmd.Throttle, cmd.HasThrottle = thr, hasThr
	if burn && !hasThr {
		cmd.Throttle, cmd.HasThrottle = 1, true
	}
	return cmd, ""
}

func parseUntilTWR(args []string) (Command, string) {
	op, ok := parseComparison(args)
	if !ok || op == CompareEqual || len(args) < 2 {
		return nil, "until twr requires <= or >= and a value"
	}
	v, err := parseNumber(args[1])
	if err != nil {
		return nil, "invalid twr value"
	}
	thr, hasThr, reason := parseThrottleSuffix(args[2:])
	if reason != "" {
		return nil, reason
	}
	return UntilTWR{Op: op, Value: v, Throttle: thr, HasThrottle: hasThr}, ""
}

func parseThrottleSuffix(rest []string) (float64, bool, string) {
	switch {
	case len(rest) == 0:
		return 0, false, ""
	case len(rest) == 2 && rest[0] == "throttle":
		v, err := parseNumber(rest[1])
		if err != nil {
			return 0, false, "invalid throttle value"
		}
		return clamp01(v), true, ""
	}
	return 0, false, fmt.Sprintf("unexpected %q", strings.Join(rest, " "))
}

func parseComparison(args []string) (Comparison, bool) {
	if len(args) == 0 {
		return CompareAtLeast, false
	}
	switch args[0] {
	case ">=", ">":
		return CompareAtLeast, true
	case "<=", "<":
		return CompareAtMost, true
	case "=":
		return CompareEqual, true
	}
	return CompareAtLeast, false
}

// parseDistance reads a distance in meters with an optional km suffix,
// attached ("100km") or separate ("100 km"). It returns the tokens used.
func parseDistance(args []string) (float64, int, error) {
	if len(args) == 0 {
		return 0, 0, fmt.Errorf("missing distance")
	}
	s := args[0]
	scale := 1.0
	switch {
	case strings.HasSuffix(s, "km"):
		s, scale = strings.TrimSuffix(s, "km"), 1000
	case strings.HasSuffix(s, "m"):
		s = strings.TrimSuffix(s, "m")
	}
	v, err := parseNumber(s)
	if err != nil {
		return 0, 0, err
	}
	used := 1
	if len(args) > 1 && scale == 1 && args[0] == s {
		switch args[1] {
		case "km":
			scale, used = 1000, 2
		case "m":
			used = 2
		}
	}
	return v * scale, used, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %s", s)
	}
	return v, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

package autopilot

import (
	"errors"
	"fmt"

	"github.com/opd-ai/go-orbit/pkg/flight"
)

// ErrScriptRejected is returned by Run when any line fails to parse.
var ErrScriptRejected = errors.New("autopilot script rejected")

// LogFunc receives autopilot log lines. Error lines start with "ERR: ".
type LogFunc func(line string)

// Autopilot executes a queue of steps, one head step per tick. It is driven
// from the simulation tick and is not safe for concurrent use.
type Autopilot struct {
	port  EnginePort
	log   LogFunc
	queue []*step
}

// New creates an idle autopilot bound to port. log may be nil.
func New(port EnginePort, log LogFunc) *Autopilot {
	if log == nil {
		log = func(string) {}
	}
	return &Autopilot{port: port, log: log}
}

func (a *Autopilot) logf(format string, args ...any) {
	a.log(fmt.Sprintf(format, args...))
}

// Run parses script and replaces the current queue with it. Loading is all
// or nothing: if any line is rejected, every error is logged, the queue is
// left empty and the joined errors are returned wrapped in
// ErrScriptRejected.
func (a *Autopilot) Run(script string) error {
	if a.IsRunning() {
		a.Stop()
	}

	commands, errs := Parse(script)
	if len(errs) > 0 {
		for _, err := range errs {
			a.logf("ERR: %v", err)
		}
		a.queue = nil
		return fmt.Errorf("%w: %w", ErrScriptRejected, errors.Join(errs...))
	}

	queue := make([]*step, 0, len(commands))
	for _, cmd := range commands {
		queue = append(queue, a.compile(cmd))
	}
	a.queue = queue
	if len(queue) > 0 {
		a.logf("Loaded %d commands", len(queue))
	}
	return nil
}

// Update ticks the head step. A finished step is removed and its
// onComplete hook receives the number of steps left. When the queue drains,
// attitude hold is released and game speed returns to normal.
func (a *Autopilot) Update(dt float64) {
	if len(a.queue) == 0 {
		return
	}

	head := a.queue[0]
	if !head.tick(dt) {
		return
	}
	if len(a.queue) == 0 || a.queue[0] != head {
		// the step's own action stopped or replaced the queue
		return
	}

	a.queue = a.queue[1:]
	if head.onComplete != nil {
		head.onComplete(len(a.queue))
	}
	if len(a.queue) == 0 {
		a.queue = nil
		a.port.SetAutopilotHold(flight.HoldNone)
		a.port.SetGameSpeed(NormalGameSpeed)
		a.logf("Script complete")
	}
}

// Stop discards the queue. Only the head step's onStop hook runs.
func (a *Autopilot) Stop() {
	if len(a.queue) == 0 {
		return
	}
	if head := a.queue[0]; head.onStop != nil {
		head.onStop()
	}
	a.queue = nil
	a.port.SetAutopilotHold(flight.HoldNone)
	a.logf("Autopilot stopped")
}

// IsRunning reports whether steps remain.
func (a *Autopilot) IsRunning() bool {
	return len(a.queue) > 0
}

// Pending returns the labels of the queued steps, head first.
func (a *Autopilot) Pending() []string {
	out := make([]string, len(a.queue))
	for i, s := range a.queue {
		out[i] = s.label
	}
	return out
}

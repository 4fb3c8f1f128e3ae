// Package controller runs the capture, analyze and render cycle for one view.
// A Controller owns a small state machine and guarantees at most one
// outstanding analysis at any time.
package controller

// State is the lifecycle position of a controller.
type State int

const (
	Idle State = iota
	Connecting
	Active
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Event drives state transitions.
type Event int

const (
	EventStart Event = iota
	EventReady
	EventFail
	EventStop
	EventClosed
	EventStopped
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventReady:
		return "ready"
	case EventFail:
		return "fail"
	case EventStop:
		return "stop"
	case EventClosed:
		return "closed"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Next returns the state after e is applied to s. Pairs without a
// transition leave the state unchanged.
func Next(s State, e Event) State {
	switch s {
	case Idle:
		if e == EventStart {
			return Connecting
		}
	case Connecting:
		switch e {
		case EventReady:
			return Active
		case EventFail:
			return Idle
		case EventStop, EventClosed:
			return Stopping
		}
	case Active:
		switch e {
		case EventStop, EventClosed:
			return Stopping
		}
	case Stopping:
		if e == EventStopped {
			return Idle
		}
	}
	return s
}

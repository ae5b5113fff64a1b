package mode

import "time"

// Mode identifies the controller's operating mode.
type Mode int

const (
	// Normal matches scans against the registry and actuates outputs.
	Normal Mode = iota
	// Enroll consumes the next scan as an enrollment.
	Enroll
	// Unenroll consumes the next scan as a removal.
	Unenroll
)

// String returns the mode name for logs and wire payloads.
func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Enroll:
		return "enroll"
	case Unenroll:
		return "unenroll"
	default:
		return "unknown"
	}
}

// Parse maps a wire payload to a Mode.
func Parse(s string) (Mode, bool) {
	switch s {
	case "normal":
		return Normal, true
	case "enroll":
		return Enroll, true
	case "unenroll":
		return Unenroll, true
	default:
		return 0, false
	}
}

// Machine tracks the current mode and the administrative-mode deadline.
//
// Enroll and Unenroll are mutually exclusive and time-bounded: entering
// either arms a deadline, a later request supersedes the current mode and
// re-arms, and returning to Normal disarms it. CheckTimeout reverts an
// expired administrative mode to Normal and reports the reversion exactly
// once.
//
// Not safe for concurrent use; the control loop is the only caller.
type Machine struct {
	current  Mode
	deadline time.Time
	timeout  time.Duration
}

// NewMachine creates a mode machine starting in Normal.
// timeout bounds how long Enroll or Unenroll may remain active.
func NewMachine(timeout time.Duration) *Machine {
	return &Machine{current: Normal, timeout: timeout}
}

// Current returns the active mode.
func (m *Machine) Current() Mode {
	return m.current
}

// Deadline returns the expiry of the active administrative mode,
// or the zero time in Normal.
func (m *Machine) Deadline() time.Time {
	return m.deadline
}

// Request switches to the given mode at time now.
//
// Any previously armed mode is superseded without comment: requesting
// Enroll while Unenroll is active simply replaces it and re-arms the
// deadline. Requesting Normal disarms the deadline. Requesting the mode
// already active re-arms its deadline.
//
// Returns the mode that was active before the request.
func (m *Machine) Request(target Mode, now time.Time) Mode {
	prev := m.current
	m.current = target
	if target == Normal {
		m.deadline = time.Time{}
	} else {
		m.deadline = now.Add(m.timeout)
	}
	return prev
}

// CheckTimeout reverts an expired administrative mode to Normal.
//
// Returns the mode that expired and true if a reversion happened at this
// call; callers report the reversion exactly once off that signal.
func (m *Machine) CheckTimeout(now time.Time) (Mode, bool) {
	if m.current == Normal {
		return Normal, false
	}
	if now.Before(m.deadline) {
		return Normal, false
	}
	expired := m.current
	m.current = Normal
	m.deadline = time.Time{}
	return expired, true
}

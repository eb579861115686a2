// Package idle tracks user inactivity and drives the automatic
// sign-out lifecycle.
package idle

import "time"

// Timeout presets selectable by the user.
const (
	Timeout15 = 15 * time.Minute
	Timeout30 = 30 * time.Minute
	Timeout60 = 60 * time.Minute

	DefaultTimeout = Timeout30
)

// warningLead is how long before expiry the warning fires, clamped so
// short timeouts still spend at least a fifth of their span warned.
const warningLead = 2 * time.Minute

// Presets lists the selectable idle timeouts in menu order.
var Presets = []time.Duration{Timeout15, Timeout30, Timeout60}

// Event is what a tick observed.
type Event int

// Tick outcomes.
const (
	EventNone Event = iota
	EventWarn
	EventExpire
)

// Monitor is a clock-driven inactivity tracker. It holds no timers of
// its own: the owner feeds it activity through Touch and the current
// time through Tick, which makes it a fit for an event-loop tick and
// keeps expiry deterministic under test.
type Monitor struct {
	timeout      time.Duration
	lastActivity time.Time
	warningShown bool
	armed        bool
}

// NewMonitor returns a suspended monitor with the given timeout.
// Non-positive timeouts fall back to the default.
func NewMonitor(timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Monitor{timeout: timeout}
}

// Resume arms the monitor, counting idleness from now. Called on
// sign-in.
func (m *Monitor) Resume(now time.Time) {
	m.armed = true
	m.lastActivity = now
	m.warningShown = false
}

// Suspend disarms the monitor. Called on sign-out; a suspended monitor
// emits no events.
func (m *Monitor) Suspend() {
	m.armed = false
	m.warningShown = false
}

// Touch records user activity, dismissing any pending warning and
// restarting the idle span. No-op while suspended.
func (m *Monitor) Touch(now time.Time) {
	if !m.armed {
		return
	}
	m.lastActivity = now
	m.warningShown = false
}

// Tick evaluates the clock. It returns EventWarn once per idle span
// when the warning threshold passes, EventExpire when the timeout
// passes (disarming the monitor), and EventNone otherwise.
func (m *Monitor) Tick(now time.Time) Event {
	if !m.armed {
		return EventNone
	}
	idle := now.Sub(m.lastActivity)
	if idle >= m.timeout {
		m.armed = false
		return EventExpire
	}
	if idle >= m.warnAfter() && !m.warningShown {
		m.warningShown = true
		return EventWarn
	}
	return EventNone
}

// SetTimeout switches the timeout and re-arms immediately: the idle
// span restarts from now under the new threshold.
func (m *Monitor) SetTimeout(timeout time.Duration, now time.Time) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m.timeout = timeout
	if m.armed {
		m.lastActivity = now
		m.warningShown = false
	}
}

// Timeout returns the configured timeout.
func (m *Monitor) Timeout() time.Duration {
	return m.timeout
}

// Remaining returns the time left before expiry, zero when suspended or
// already past.
func (m *Monitor) Remaining(now time.Time) time.Duration {
	if !m.armed {
		return 0
	}
	left := m.timeout - now.Sub(m.lastActivity)
	if left < 0 {
		return 0
	}
	return left
}

// Warned reports whether the current idle span has already warned.
func (m *Monitor) Warned() bool {
	return m.warningShown
}

func (m *Monitor) warnAfter() time.Duration {
	lead := m.timeout - warningLead
	floor := m.timeout * 4 / 5
	if lead > floor {
		return lead
	}
	return floor
}

// internal/status/tracker.go
package status

// Outcome is what the runner learned from one poll cycle.
type Outcome struct {
	Health              uint16 // HealthOK, HealthStale or HealthError
	ErrorCode           uint16 // ignored when Health is HealthOK
	ConsecutiveFailures uint16
	RecoveryRate        uint16
}

// Tracker owns the status snapshot of one device.
// It is not safe for concurrent use; the runner goroutine owns it.
type Tracker struct {
	snap Snapshot
}

// NewTracker starts in HealthUnknown.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown}}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot { return t.snap }

// Observe folds one poll outcome in and reports whether anything changed.
// Recovery to OK clears the error code and seconds in error.
// seconds_in_error only advances on Tick.
func (t *Tracker) Observe(o Outcome) (Snapshot, bool) {
	next := t.snap
	next.Health = o.Health
	next.ConsecutiveFailures = o.ConsecutiveFailures
	next.RecoveryRate = o.RecoveryRate

	if o.Health == HealthOK {
		next.LastErrorCode = 0
		next.SecondsInError = 0
	} else {
		next.LastErrorCode = o.ErrorCode
	}

	changed := next != t.snap
	t.snap = next
	return next, changed
}

// Disable marks the device as intentionally not polled.
// Counters are cleared and Tick no longer advances.
func (t *Tracker) Disable() (Snapshot, bool) {
	next := Snapshot{Health: HealthDisabled}
	changed := next != t.snap
	t.snap = next
	return next, changed
}

// Tick advances seconds_in_error while the device is in error or stale.
// It saturates at 65535.
func (t *Tracker) Tick() (Snapshot, bool) {
	if t.snap.Health != HealthError && t.snap.Health != HealthStale {
		return t.snap, false
	}
	if t.snap.SecondsInError == 65535 {
		return t.snap, false
	}
	t.snap.SecondsInError++
	return t.snap, true
}

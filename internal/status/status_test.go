// internal/status/status_test.go
package status

import "testing"

func TestEncode(t *testing.T) {
	regs := Encode(Snapshot{
		Health:              HealthStale,
		LastErrorCode:       ErrorCodeUnreachable,
		SecondsInError:      12,
		ConsecutiveFailures: 2,
		RecoveryRate:        70,
	})
	if len(regs) != SlotsPerDevice {
		t.Fatalf("len=%d", len(regs))
	}
	want := []uint16{HealthStale, ErrorCodeUnreachable, 12, 2, 70}
	for i, v := range want {
		if regs[i] != v {
			t.Fatalf("slot %d=%d want %d", i, regs[i], v)
		}
	}
	for i := SlotReservedStart; i < SlotsPerDevice; i++ {
		if regs[i] != 0 {
			t.Fatalf("slot %d not zero", i)
		}
	}
}

func TestEncodeDeviceName(t *testing.T) {
	regs := EncodeDeviceName("AB\x01")
	if regs[0] != uint16('A')<<8|'B' || regs[1] != uint16('?')<<8 {
		t.Fatalf("regs=%v", regs)
	}
	long := EncodeDeviceName("0123456789abcdefXYZ")
	if long[7] != uint16('e')<<8|'f' {
		t.Fatalf("not truncated at 16: %v", long)
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()

	if _, changed := tr.Tick(); changed {
		t.Fatalf("unknown state must not tick")
	}

	s, changed := tr.Observe(Outcome{Health: HealthOK, RecoveryRate: 100})
	if !changed || s.Health != HealthOK || s.RecoveryRate != 100 {
		t.Fatalf("ok: %+v changed=%v", s, changed)
	}
	if _, changed := tr.Observe(Outcome{Health: HealthOK, RecoveryRate: 100}); changed {
		t.Fatalf("identical outcome reported as change")
	}

	s, _ = tr.Observe(Outcome{Health: HealthStale, ErrorCode: ErrorCodeUnreachable, ConsecutiveFailures: 1})
	if s.Health != HealthStale || s.LastErrorCode != ErrorCodeUnreachable {
		t.Fatalf("stale: %+v", s)
	}
	tr.Tick()
	s, _ = tr.Tick()
	if s.SecondsInError != 2 {
		t.Fatalf("seconds=%d", s.SecondsInError)
	}

	s, _ = tr.Observe(Outcome{Health: HealthError, ErrorCode: 9, ConsecutiveFailures: 4})
	if s.SecondsInError != 2 || s.LastErrorCode != 9 {
		t.Fatalf("error must keep counting: %+v", s)
	}

	s, _ = tr.Observe(Outcome{Health: HealthOK})
	if s.SecondsInError != 0 || s.LastErrorCode != 0 || s.ConsecutiveFailures != 0 {
		t.Fatalf("recovery did not reset: %+v", s)
	}
}

func TestTracker_Saturates(t *testing.T) {
	tr := NewTracker()
	tr.Observe(Outcome{Health: HealthError, ErrorCode: 1})
	tr.snap.SecondsInError = 65534
	if s, changed := tr.Tick(); !changed || s.SecondsInError != 65535 {
		t.Fatalf("s=%+v", s)
	}
	if s, changed := tr.Tick(); changed || s.SecondsInError != 65535 {
		t.Fatalf("wrapped: %+v", s)
	}
}

func TestTracker_Disable(t *testing.T) {
	tr := NewTracker()
	tr.Observe(Outcome{Health: HealthError, ErrorCode: 9, ConsecutiveFailures: 2})
	tr.Tick()

	s, changed := tr.Disable()
	if !changed || s != (Snapshot{Health: HealthDisabled}) {
		t.Fatalf("disable: %+v changed=%v", s, changed)
	}
	if _, changed := tr.Tick(); changed {
		t.Fatalf("disabled state must not tick")
	}
	if _, changed := tr.Disable(); changed {
		t.Fatalf("second disable reported as change")
	}
}

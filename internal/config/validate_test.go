// internal/config/validate_test.go
package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/tamzrod/lxp-replicator/internal/lxp"
)

// helper to build a unit quickly
func unit(id string, endpoint string, unitID uint8, kind string, input, hold uint16) UnitConfig {
	return UnitConfig{
		ID: id,
		Source: SourceConfig{
			Host:           "192.168.1.50",
			DongleSerial:   "BA12345678",
			InverterSerial: "1234567890",
		},
		Targets: []TargetConfig{
			{
				ID:       1,
				Kind:     kind,
				Endpoint: endpoint,
				UnitID:   unitID,
				Offsets:  OffsetsConfig{Input: input, Hold: hold},
			},
		},
	}
}

func u8(v uint8) *uint8    { return &v }
func u16(v uint16) *uint16 { return &v }

// ---- tests ----

func TestValidate_NoOverlapDifferentEndpoints(t *testing.T) {
	cfg := &Config{
		Units: []UnitConfig{
			unit("u1", "ep1", 1, TargetModbus, 0, 1000),
			unit("u2", "ep2", 1, TargetModbus, 0, 1000),
		},
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NoOverlapDifferentUnitID(t *testing.T) {
	cfg := &Config{
		Units: []UnitConfig{
			unit("u1", "ep1", 1, TargetModbus, 0, 1000),
			unit("u2", "ep1", 2, TargetModbus, 0, 1000),
		},
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_IngestBanksUseSeparateAreas(t *testing.T) {
	cfg := &Config{
		Units: []UnitConfig{
			unit("u1", "ep1", 1, TargetIngest, 0, 0),
		},
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ModbusBanksShareHoldingArea(t *testing.T) {
	cfg := &Config{
		Units: []UnitConfig{
			unit("u1", "ep1", 1, TargetModbus, 0, 0),
		},
	}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected overlap error, got nil")
	}
}

func TestValidate_TouchingRangesAllowed(t *testing.T) {
	cfg := &Config{
		Units: []UnitConfig{
			unit("u1", "ep1", 1, TargetModbus, 0, 750),     // 0–749, 750–1499
			unit("u2", "ep1", 1, TargetModbus, 1500, 2250), // 1500–2249, 2250–2999
		},
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_OverlapViaOffsetDetected(t *testing.T) {
	cfg := &Config{
		Units: []UnitConfig{
			unit("u1", "ep1", 1, TargetModbus, 0, 1000),
			unit("u2", "ep1", 1, TargetModbus, 2000, 1500), // hold 1500–2249 vs u1 hold 1000–1749
		},
	}

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "memory overlap") {
		t.Fatalf("expected overlap error, got %v", err)
	}
}

func TestValidate_OffsetOverflow(t *testing.T) {
	cfg := &Config{
		Units: []UnitConfig{
			unit("u1", "ep1", 1, TargetModbus, 0, 65000),
		},
	}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected overflow error, got nil")
	}
}

func TestValidate_Source(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*UnitConfig)
	}{
		{"empty host", func(u *UnitConfig) { u.Source.Host = "" }},
		{"short dongle serial", func(u *UnitConfig) { u.Source.DongleSerial = "BA123" }},
		{"long inverter serial", func(u *UnitConfig) { u.Source.InverterSerial = "12345678901" }},
		{"non ascii serial", func(u *UnitConfig) { u.Source.InverterSerial = "12345678\xc3\xa9" }},
		{"block size", func(u *UnitConfig) { u.Source.BlockSize = 100 }},
		{"negative retries", func(u *UnitConfig) { u.Source.ConnectionRetries = -1 }},
		{"negative interval", func(u *UnitConfig) { u.Poll.IntervalMs = -5 }},
		{"non ascii device name", func(u *UnitConfig) { u.Source.DeviceName = "gar\xc3\xa4ge" }},
		{"unknown target kind", func(u *UnitConfig) { u.Targets[0].Kind = "mqtt" }},
		{"empty endpoint", func(u *UnitConfig) { u.Targets[0].Endpoint = "" }},
	}
	for _, tc := range cases {
		u := unit("u1", "ep1", 1, TargetModbus, 0, 1000)
		tc.mutate(&u)
		if err := Validate(&Config{Units: []UnitConfig{u}}); err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestValidate_SerialErrorWrapsSentinel(t *testing.T) {
	u := unit("u1", "ep1", 1, TargetModbus, 0, 1000)
	u.Source.DongleSerial = "short"
	err := Validate(&Config{Units: []UnitConfig{u}})
	if !errors.Is(err, lxp.ErrInvalidSerialLength) {
		t.Fatalf("expected ErrInvalidSerialLength, got %v", err)
	}
}

func TestValidate_DuplicateUnit(t *testing.T) {
	cfg := &Config{
		Units: []UnitConfig{
			unit("u1", "ep1", 1, TargetModbus, 0, 1000),
			unit("u1", "ep2", 1, TargetModbus, 0, 1000),
		},
	}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidate_StatusSlot(t *testing.T) {
	a := unit("u1", "ep1", 1, TargetModbus, 0, 1000)
	a.Source.StatusSlot = u16(0)
	a.Targets[0].StatusUnitID = u8(9)

	b := unit("u2", "ep1", 2, TargetModbus, 0, 1000)
	b.Source.StatusSlot = u16(1)
	b.Targets[0].StatusUnitID = u8(9)

	if err := Validate(&Config{Units: []UnitConfig{a, b}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b.Source.StatusSlot = u16(0)
	if err := Validate(&Config{Units: []UnitConfig{a, b}}); err == nil {
		t.Fatalf("expected status_slot collision")
	}

	b.Source.StatusSlot = u16(1)
	b.Targets[0].StatusUnitID = nil
	if err := Validate(&Config{Units: []UnitConfig{a, b}}); err == nil {
		t.Fatalf("expected missing status_unit_id error")
	}
}

func TestValidate_Logging(t *testing.T) {
	u := unit("u1", "ep1", 1, TargetModbus, 0, 1000)

	cfg := &Config{Logging: LoggingConfig{Level: "verbose"}, Units: []UnitConfig{u}}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected level error")
	}

	cfg = &Config{Logging: LoggingConfig{Level: "debug", Format: "xml"}, Units: []UnitConfig{u}}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected format error")
	}
}

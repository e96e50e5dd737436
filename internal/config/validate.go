// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tamzrod/lxp-replicator/internal/lxp"
)

// Validate checks configuration correctness.
// It performs declarative validation only; zero values that Normalize
// fills in are accepted.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: empty")
	}

	if cfg.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
			return fmt.Errorf("logging: invalid level %q", cfg.Logging.Level)
		}
	}
	switch cfg.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging: format must be console or json, got %q", cfg.Logging.Format)
	}

	if len(cfg.Units) == 0 {
		return fmt.Errorf("config: at least one unit required")
	}

	seen := make(map[string]bool)
	for _, u := range cfg.Units {
		if u.ID == "" {
			return fmt.Errorf("unit id required")
		}
		if seen[u.ID] {
			return fmt.Errorf("unit %q: duplicate id", u.ID)
		}
		seen[u.ID] = true

		if err := validateSource(u); err != nil {
			return err
		}
		if u.Poll.IntervalMs < 0 {
			return fmt.Errorf("unit %q: poll.interval_ms must be > 0", u.ID)
		}
		for _, t := range u.Targets {
			if t.Endpoint == "" {
				return fmt.Errorf("unit %q: target %d has no endpoint", u.ID, t.ID)
			}
			switch t.Kind {
			case "", TargetModbus, TargetIngest:
			default:
				return fmt.Errorf("unit %q: target %d: unknown kind %q", u.ID, t.ID, t.Kind)
			}
		}
	}

	if err := validateStatus(cfg); err != nil {
		return err
	}
	return validateGeometry(cfg)
}

func validateSource(u UnitConfig) error {
	s := u.Source

	if s.Host == "" {
		return fmt.Errorf("unit %q: source.host required", u.ID)
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("unit %q: source.port %d out of range", u.ID, s.Port)
	}
	if err := checkSerial(s.DongleSerial); err != nil {
		return fmt.Errorf("unit %q: source.dongle_serial: %w", u.ID, err)
	}
	if err := checkSerial(s.InverterSerial); err != nil {
		return fmt.Errorf("unit %q: source.inverter_serial: %w", u.ID, err)
	}
	switch s.BlockSize {
	case 0, lxp.BlockSizeDefault, lxp.BlockSizeLegacy:
	default:
		return fmt.Errorf("unit %q: source.block_size must be %d or %d", u.ID, lxp.BlockSizeDefault, lxp.BlockSizeLegacy)
	}
	if s.ConnectionRetries < 0 {
		return fmt.Errorf("unit %q: source.connection_retries must be >= 1", u.ID)
	}
	if s.TimeoutMs < 0 {
		return fmt.Errorf("unit %q: source.timeout_ms must be > 0", u.ID)
	}
	if !isASCII(s.DeviceName) {
		return fmt.Errorf("unit %q: device_name must contain ASCII characters only", u.ID)
	}
	return nil
}

func checkSerial(s string) error {
	if len(s) != lxp.SerialLength {
		return fmt.Errorf("%w: %q", lxp.ErrInvalidSerialLength, s)
	}
	if !isASCII(s) {
		return fmt.Errorf("serial must be ASCII: %q", s)
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

// ------------------------------------------------------------
// DEVICE STATUS BLOCK VALIDATION (PER-TARGET, OPT-IN)
// ------------------------------------------------------------

func validateStatus(cfg *Config) error {
	// key = endpoint | status_unit_id | status_slot
	statusOwner := make(map[string]string)

	for _, u := range cfg.Units {
		// status is opt-in
		if u.Source.StatusSlot == nil {
			continue
		}

		// status requires at least one target
		if len(u.Targets) == 0 {
			return fmt.Errorf("unit %q: status_slot is set but no targets are defined", u.ID)
		}

		slot := *u.Source.StatusSlot

		for _, t := range u.Targets {
			// each target must declare status_unit_id
			if t.StatusUnitID == nil {
				return fmt.Errorf(
					"unit %q: status_slot is set but target %q has no status_unit_id",
					u.ID,
					t.Endpoint,
				)
			}

			key := fmt.Sprintf("%s|%d|%d", t.Endpoint, *t.StatusUnitID, slot)

			if prev, exists := statusOwner[key]; exists {
				return fmt.Errorf(
					"status_slot collision: endpoint=%s status_unit_id=%d slot=%d used by units %q and %q",
					t.Endpoint,
					*t.StatusUnitID,
					slot,
					prev,
					u.ID,
				)
			}

			statusOwner[key] = u.ID
		}
	}
	return nil
}

// ------------------------------------------------------------
// DESTINATION MEMORY GEOMETRY VALIDATION
// ------------------------------------------------------------

// Area is the destination register area a bank is mirrored into.
// Modbus targets only accept holding registers.
func Area(kind string, bank lxp.Bank) byte {
	if kind == TargetIngest && bank == lxp.BankInput {
		return 4
	}
	return 3
}

// Offset returns the destination offset of bank.
func (o OffsetsConfig) Offset(bank lxp.Bank) uint16 {
	if bank == lxp.BankHold {
		return o.Hold
	}
	return o.Input
}

func validateGeometry(cfg *Config) error {
	type span struct {
		start int
		end   int
		unit  string
		bank  lxp.Bank
	}

	// key = endpoint | unit_id | area
	spans := make(map[string][]span)

	for _, u := range cfg.Units {
		for _, t := range u.Targets {
			for _, bank := range []lxp.Bank{lxp.BankInput, lxp.BankHold} {
				start := int(t.Offsets.Offset(bank))
				end := start + lxp.TotalRegisters - 1
				if end > 0xFFFF {
					return fmt.Errorf(
						"unit %q: target %s %s offset %d leaves no room for %d registers",
						u.ID, t.Endpoint, bank, start, lxp.TotalRegisters,
					)
				}

				area := Area(t.Kind, bank)
				key := fmt.Sprintf("%s|%d|%d", t.Endpoint, t.UnitID, area)

				for _, s := range spans[key] {
					// overlap check (inclusive)
					if !(end < s.start || start > s.end) {
						return fmt.Errorf(
							"memory overlap: endpoint=%s unit_id=%d area=%d %s range=%d-%d overlaps with unit=%s %s range=%d-%d",
							t.Endpoint, t.UnitID, area,
							bank, start, end,
							s.unit, s.bank, s.start, s.end,
						)
					}
				}

				spans[key] = append(spans[key], span{start: start, end: end, unit: u.ID, bank: bank})
			}
		}
	}
	return nil
}

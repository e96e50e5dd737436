// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Units   []UnitConfig  `yaml:"units"`
}

// ---- AMBIENT ----

type LoggingConfig struct {
	Level  string `yaml:"level"`  // zerolog level name, default info
	Format string `yaml:"format"` // console | json, default console
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

// ---- UNIT ----

type UnitConfig struct {
	ID       string         `yaml:"id"`
	Disabled bool           `yaml:"disabled"` // not polled; status reports HealthDisabled
	Source   SourceConfig   `yaml:"source"`
	Poll     PollConfig     `yaml:"poll"`
	Targets  []TargetConfig `yaml:"targets"`
}

// ---- SOURCE ----

type SourceConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	DongleSerial   string `yaml:"dongle_serial"`
	InverterSerial string `yaml:"inverter_serial"`

	BlockSize         int   `yaml:"block_size"`
	ConnectionRetries int   `yaml:"connection_retries"`
	TimeoutMs         int   `yaml:"timeout_ms"`
	Batteries         bool  `yaml:"batteries"`
	SkipInitialData   *bool `yaml:"skip_initial_data"`
	ReadOnly          bool  `yaml:"read_only"` // refuse register writes

	// Device status block (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot"`
	DeviceName string  `yaml:"device_name"`
}

// ---- TARGET ----

const (
	TargetModbus = "modbus"
	TargetIngest = "ingest"
)

type TargetConfig struct {
	ID           uint32        `yaml:"id"`
	Kind         string        `yaml:"kind"` // modbus | ingest, default modbus
	Endpoint     string        `yaml:"endpoint"`
	UnitID       uint8         `yaml:"unit_id"`        // data memory
	StatusUnitID *uint8        `yaml:"status_unit_id"` // per-target status memory (optional)
	Offsets      OffsetsConfig `yaml:"offsets"`
}

// OffsetsConfig places each bank in the destination memory.
type OffsetsConfig struct {
	Input uint16 `yaml:"input"`
	Hold  uint16 `yaml:"hold"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// Load reads a YAML config file. Unknown keys are rejected.
// The result is neither validated nor normalized.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes YAML config bytes.
func Parse(raw []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Unit returns the unit with the given id.
func (c *Config) Unit(id string) (UnitConfig, bool) {
	for _, u := range c.Units {
		if u.ID == id {
			return u, true
		}
	}
	return UnitConfig{}, false
}

// internal/config/normalize.go
package config

import "github.com/tamzrod/lxp-replicator/internal/lxp"

// Defaults applied by Normalize.
const (
	DefaultPort              = 8000
	DefaultBlockSize         = lxp.BlockSizeDefault
	DefaultConnectionRetries = 3
	DefaultTimeoutMs         = 10000
	DefaultIntervalMs        = 60000
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	for ui := range cfg.Units {
		u := &cfg.Units[ui]
		s := &u.Source

		// ------------------------------------------------------------
		// SOURCE DEFAULTS
		// ------------------------------------------------------------

		if s.Port == 0 {
			s.Port = DefaultPort
		}
		if s.BlockSize == 0 {
			s.BlockSize = DefaultBlockSize
		}
		if s.ConnectionRetries == 0 {
			s.ConnectionRetries = DefaultConnectionRetries
		}
		if s.TimeoutMs == 0 {
			s.TimeoutMs = DefaultTimeoutMs
		}
		if s.SkipInitialData == nil {
			on := true
			s.SkipInitialData = &on
		}
		if u.Poll.IntervalMs == 0 {
			u.Poll.IntervalMs = DefaultIntervalMs
		}

		for ti := range u.Targets {
			if u.Targets[ti].Kind == "" {
				u.Targets[ti].Kind = TargetModbus
			}
		}

		// ------------------------------------------------------------
		// DEVICE STATUS BLOCK NORMALIZATION (OPT-IN)
		// ------------------------------------------------------------

		if s.StatusSlot == nil {
			continue
		}

		// ASCII already validated; truncate to 16 characters.
		if len(s.DeviceName) > 16 {
			s.DeviceName = s.DeviceName[:16]
		}
	}
}

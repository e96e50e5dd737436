// internal/poller/builder.go
package poller

import (
	"time"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/lxp-replicator/internal/config"
	"github.com/tamzrod/lxp-replicator/internal/dongle"
)

// ClientConfig maps a normalized unit source onto the dongle client config.
func ClientConfig(u cfg.UnitConfig) dongle.Config {
	s := u.Source
	skip := s.SkipInitialData == nil || *s.SkipInitialData
	return dongle.Config{
		Host:              s.Host,
		Port:              s.Port,
		DongleSerial:      s.DongleSerial,
		InverterSerial:    s.InverterSerial,
		BlockSize:         s.BlockSize,
		ConnectionRetries: s.ConnectionRetries,
		Timeout:           time.Duration(s.TimeoutMs) * time.Millisecond,
		Batteries:         s.Batteries,
		ReadOnly:          s.ReadOnly,
		SkipInitialData:   skip,
	}
}

// Build constructs the dongle client and the Poller driving it.
// No connection is made here; the client connects per call.
func Build(u cfg.UnitConfig, log zerolog.Logger) (*Poller, *dongle.Client, error) {
	client, err := dongle.New(ClientConfig(u), log.With().Str("unit", u.ID).Logger())
	if err != nil {
		return nil, nil, err
	}

	p, err := New(
		Config{
			UnitID:   u.ID,
			Interval: time.Duration(u.Poll.IntervalMs) * time.Millisecond,
		},
		client,
		log,
	)
	if err != nil {
		return nil, nil, err
	}
	return p, client, nil
}

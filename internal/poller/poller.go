// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/lxp-replicator/internal/dongle"
)

// Fetcher abstracts the inverter client the poller drives.
type Fetcher interface {
	FetchData(ctx context.Context) (dongle.Snapshot, error)
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	UnitID   string
	Interval time.Duration
}

// Poller is a dumb, clock-driven reader.
type Poller struct {
	cfg     Config
	fetcher Fetcher
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a poller with immutable config.
func New(cfg Config, fetcher Fetcher, log zerolog.Logger) (*Poller, error) {
	if cfg.UnitID == "" {
		return nil, errors.New("poller: unit id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if fetcher == nil {
		return nil, errors.New("poller: fetcher required")
	}
	return &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		log:     log.With().Str("unit", cfg.UnitID).Logger(),
		now:     time.Now,
	}, nil
}

// PollOnce performs exactly one poll cycle.
func (p *Poller) PollOnce(ctx context.Context) PollResult {
	start := p.now()
	res := PollResult{
		UnitID: p.cfg.UnitID,
		At:     start,
	}

	snap, err := p.fetcher.FetchData(ctx)
	res.Duration = p.now().Sub(start)
	if err != nil {
		res.Err = err
		p.log.Error().Err(err).Dur("took", res.Duration).Msg("poll failed")
		return res
	}

	res.Snapshot = snap
	res.Stale = snap.Stale
	p.log.Debug().
		Int("input", len(snap.Input)).
		Int("hold", len(snap.Hold)).
		Int("batteries", len(snap.Battery)).
		Bool("stale", snap.Stale).
		Dur("took", res.Duration).
		Msg("poll done")
	return res
}

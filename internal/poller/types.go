// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/lxp-replicator/internal/dongle"
)

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	UnitID   string
	At       time.Time
	Duration time.Duration

	// Snapshot is the client's last known good state. Its maps are
	// shared read-only.
	Snapshot dongle.Snapshot

	// Stale means the dongle could not be reached and Snapshot came
	// from cache.
	Stale bool

	Err error // non-nil means the source is unavailable
}

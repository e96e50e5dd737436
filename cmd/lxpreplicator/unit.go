// cmd/lxpreplicator/unit.go
package main

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"

	"github.com/tamzrod/lxp-replicator/internal/dongle"
	"github.com/tamzrod/lxp-replicator/internal/poller"
	"github.com/tamzrod/lxp-replicator/internal/status"
	"github.com/tamzrod/lxp-replicator/internal/writer"
)

type statsSource interface {
	RecoveryStats() dongle.RecoveryStats
	ConnectionStats() dongle.ConnectionStats
}

// unitRunner owns the status state of one unit and delivers its poll results.
type unitRunner struct {
	unitID  string
	data    writer.Writer
	status  writer.StatusWriter // nil when the unit has no status block
	stats   statsSource
	observe func(poller.PollResult)
	log     zerolog.Logger

	tracker *status.Tracker
}

// run consumes poll results until ctx is done. tick drives seconds_in_error.
func (u *unitRunner) run(ctx context.Context, in <-chan poller.PollResult, tick time.Duration) {
	u.tracker = status.NewTracker()

	secTicker := time.NewTicker(tick)
	defer secTicker.Stop()

	// Full block write on start (identity re-assert).
	u.writeStatus(u.tracker.Snapshot(), "start")

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-in:
			u.handle(res)

		case <-secTicker.C:
			if snap, changed := u.tracker.Tick(); changed {
				u.writeStatus(snap, "tick")
			}
		}
	}
}

// announceDisabled writes the disabled status once. No poller runs for the unit.
func (u *unitRunner) announceDisabled() {
	u.tracker = status.NewTracker()
	snap, _ := u.tracker.Disable()
	u.writeStatus(snap, "disabled")
}

func (u *unitRunner) handle(res poller.PollResult) {
	if u.observe != nil {
		u.observe(res)
	}

	// --- data delivery ---
	if err := u.data.Write(res); err != nil {
		u.log.Error().Err(err).Msg("writer error")
	}

	// --- status update (device-level truth) ---
	if snap, changed := u.tracker.Observe(u.outcome(res)); changed {
		u.writeStatus(snap, "poll")
	}
}

func (u *unitRunner) outcome(res poller.PollResult) status.Outcome {
	o := status.Outcome{Health: status.HealthOK}

	switch {
	case res.Err != nil:
		o.Health = status.HealthError
		o.ErrorCode = errorCode(res.Err)
	case res.Stale:
		o.Health = status.HealthStale
		o.ErrorCode = status.ErrorCodeUnreachable
	}

	if u.stats != nil {
		o.ConsecutiveFailures = saturate(float64(u.stats.ConnectionStats().ConsecutiveFailures))
		o.RecoveryRate = saturate(math.Round(u.stats.RecoveryStats().SuccessRate))
	}
	return o
}

func (u *unitRunner) writeStatus(snap status.Snapshot, reason string) {
	if u.status == nil {
		return
	}
	if err := u.status.WriteStatus(snap); err != nil {
		u.log.Warn().Err(err).Str("reason", reason).Msg("status write failed")
	}
}

// errorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, returns 1 (generic error).
func errorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	if errors.Is(err, dongle.ErrUnavailable) {
		return status.ErrorCodeUnreachable
	}

	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return uint16(me.ExceptionCode)
	}

	type coderA interface{ Code() uint16 }
	type coderB interface{ ErrorCode() uint16 }

	var a coderA
	if errors.As(err, &a) {
		return a.Code()
	}
	var b coderB
	if errors.As(err, &b) {
		return b.ErrorCode()
	}

	return status.ErrorCodeGeneric
}

func saturate(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(v)
	}
}

// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/lxp-replicator/internal/status"
)

// StatusWriter is the delivery-only contract for device status.
// It receives a snapshot and writes it verbatim.
// No logic, no state, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// deviceStatusWriter writes one status block into one status memory.
type deviceStatusWriter struct {
	plan StatusPlan
	cli  endpointClient

	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

// multiStatusWriter fans a snapshot out to every status memory of a unit.
type multiStatusWriter []*deviceStatusWriter

const statusAreaHoldingRegisters byte = 3

// live slots in write order
var liveSlots = []struct {
	slot int
	name string
}{
	{status.SlotHealthCode, "health"},
	{status.SlotLastErrorCode, "last_error"},
	{status.SlotSecondsInError, "seconds_in_error"},
	{status.SlotConsecutiveFailures, "consecutive_failures"},
	{status.SlotRecoveryRate, "recovery_rate"},
}

// NewDeviceStatusWriter builds a status writer if status is enabled for the unit.
// If plan.Status is empty, status is disabled.
func NewDeviceStatusWriter(plan Plan, clients map[string]endpointClient) (StatusWriter, bool) {
	if len(plan.Status) == 0 {
		return nil, false
	}

	out := make(multiStatusWriter, 0, len(plan.Status))
	for _, sp := range plan.Status {
		out = append(out, &deviceStatusWriter{
			plan:     sp,
			cli:      clients[sp.Endpoint],
			needFull: true, // full re-assert on first successful write
			last:     status.Snapshot{Health: status.HealthUnknown},
			nameRegs: status.EncodeDeviceName(sp.DeviceName),
		})
	}
	return out, true
}

func (m multiStatusWriter) WriteStatus(s status.Snapshot) error {
	var errs []error
	for _, sw := range m {
		if err := sw.WriteStatus(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteStatus delivers a device status snapshot into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw.cli == nil {
		return fmt.Errorf("status writer: missing client for endpoint %s", sw.plan.Endpoint)
	}

	baseAddr := sw.baseAddr()
	unitID := sw.plan.UnitID

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(
			statusAreaHoldingRegisters,
			unitID,
			baseAddr,
			sw.fullBlockRegs(s),
		); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}

		sw.needFull = false
		sw.last = s
		return nil
	}

	// ------------------------------------------------------------
	// Incremental: only slots that changed
	// ------------------------------------------------------------
	var errs []string

	prev := status.Encode(sw.last)
	next := status.Encode(s)

	for _, ls := range liveSlots {
		if prev[ls.slot] == next[ls.slot] {
			continue
		}
		if err := sw.cli.WriteRegisters(
			statusAreaHoldingRegisters,
			unitID,
			baseAddr+uint16(ls.slot),
			[]uint16{next[ls.slot]},
		); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d %s write failed: %v", ls.slot, ls.name, err))
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next success.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	sw.last = s
	return nil
}

func (sw *deviceStatusWriter) baseAddr() uint16 {
	// Each device owns a fixed SlotsPerDevice block.
	return sw.plan.BaseSlot * status.SlotsPerDevice
}

func (sw *deviceStatusWriter) fullBlockRegs(s status.Snapshot) []uint16 {
	regs := status.Encode(s)

	// Device name always lives at the end of the block
	copy(regs[status.SlotDeviceNameStart:status.SlotDeviceNameEnd+1], sw.nameRegs)

	return regs
}

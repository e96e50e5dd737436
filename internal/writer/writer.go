// internal/writer/writer.go
package writer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	cfg "github.com/tamzrod/lxp-replicator/internal/config"
	"github.com/tamzrod/lxp-replicator/internal/lxp"
	"github.com/tamzrod/lxp-replicator/internal/poller"
)

// MaxRegistersPerWrite is the FC16 quantity limit.
const MaxRegistersPerWrite = 123

// endpointClient is the exact contract the writer uses.
// IMPORTANT: There must be NO other version of this interface anywhere.
type endpointClient interface {
	WriteRegisters(area byte, unitID uint8, addr uint16, regs []uint16) error
}

type writerImpl struct {
	plan    Plan
	clients map[string]endpointClient
}

func New(plan Plan, clients map[string]endpointClient) Writer {
	return &writerImpl{
		plan:    plan,
		clients: clients,
	}
}

// Write mirrors both banks of the snapshot into every target.
// A failed poll writes nothing; a stale snapshot is re-asserted.
func (w *writerImpl) Write(res poller.PollResult) error {
	if res.Err != nil {
		return nil
	}

	var errs []string

	for _, tgt := range w.plan.Targets {
		cli := w.clients[tgt.Endpoint]
		if cli == nil {
			errs = append(errs, fmt.Sprintf(
				"writer: missing client for endpoint %s",
				tgt.Endpoint,
			))
			continue
		}

		banks := []struct {
			bank lxp.Bank
			regs map[uint16]uint16
		}{
			{lxp.BankInput, res.Snapshot.Input},
			{lxp.BankHold, res.Snapshot.Hold},
		}

		for _, b := range banks {
			area := cfg.Area(tgt.Kind, b.bank)
			base := tgt.Offsets.Offset(b.bank)

			for _, r := range contiguousRuns(b.regs, MaxRegistersPerWrite) {
				dstAddr := base + r.start
				if err := cli.WriteRegisters(area, tgt.UnitID, dstAddr, r.values); err != nil {
					errs = append(errs, fmt.Sprintf(
						"writer: ep=%s unit=%d bank=%s area=%d addr=%d err=%v",
						tgt.Endpoint, tgt.UnitID, b.bank, area, dstAddr, err,
					))
				}
			}
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}

	return nil
}

// ---- runs ----

type run struct {
	start  uint16
	values []uint16
}

// contiguousRuns splits a sparse register map into ascending runs of
// consecutive addresses, each at most limit long.
func contiguousRuns(regs map[uint16]uint16, limit int) []run {
	if len(regs) == 0 {
		return nil
	}

	addrs := make([]int, 0, len(regs))
	for a := range regs {
		addrs = append(addrs, int(a))
	}
	sort.Ints(addrs)

	var out []run
	cur := run{start: uint16(addrs[0])}
	prev := addrs[0] - 1

	for _, a := range addrs {
		if a != prev+1 || len(cur.values) == limit {
			out = append(out, cur)
			cur = run{start: uint16(a)}
		}
		cur.values = append(cur.values, regs[uint16(a)])
		prev = a
	}
	return append(out, cur)
}

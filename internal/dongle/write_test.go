// internal/dongle/write_test.go
package dongle

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/tamzrod/lxp-replicator/internal/lxp"
	"github.com/tamzrod/lxp-replicator/internal/lxp/lxptest"
)

func echo(req *lxp.Frame, value uint16) [][]byte {
	return lxptest.Reply(respond(req, []uint16{value}))
}

func TestWriteRegister_Confirmed(t *testing.T) {
	var seen atomic.Pointer[lxp.Frame]
	peer := lxptest.NewPeer(t, func(_ int, req *lxp.Frame) [][]byte {
		seen.Store(req)
		return echo(req, req.Values()[0])
	})
	c := newTestClient(t, peer, nil)

	if !c.WriteRegister(context.Background(), 21, 0xBEEF) {
		t.Fatalf("write not confirmed")
	}
	if peer.Connections() != 1 {
		t.Fatalf("connections=%d", peer.Connections())
	}
	got := seen.Load()
	if got == nil || got.DeviceFunction != 6 || got.Register != 21 || got.Values()[0] != 0xBEEF {
		t.Fatalf("request: %s", got.Summary())
	}
}

func TestWriteRegister_RetriesOnWrongEcho(t *testing.T) {
	peer := lxptest.NewPeer(t, func(conn int, req *lxp.Frame) [][]byte {
		if conn == 1 {
			return echo(req, req.Values()[0]+1)
		}
		return echo(req, req.Values()[0])
	})
	c := newTestClient(t, peer, nil)

	if !c.WriteRegister(context.Background(), 64, 100) {
		t.Fatalf("write not confirmed on second attempt")
	}
	if peer.Connections() != 2 {
		t.Fatalf("connections=%d want 2", peer.Connections())
	}
}

func TestWriteRegister_GivesUp(t *testing.T) {
	peer := lxptest.NewPeer(t, func(_ int, req *lxp.Frame) [][]byte {
		return lxptest.Reply(exceptionReply(req))
	})
	c := newTestClient(t, peer, nil)

	if c.WriteRegister(context.Background(), 64, 100) {
		t.Fatalf("exception reply treated as success")
	}
	if peer.Connections() != 3 {
		t.Fatalf("connections=%d want 3", peer.Connections())
	}
}

func TestWriteRegister_WrongRegisterEcho(t *testing.T) {
	peer := lxptest.NewPeer(t, func(_ int, req *lxp.Frame) [][]byte {
		return lxptest.Reply(respond(&lxp.Frame{DeviceFunction: 6, Register: req.Register + 1}, []uint16{req.Values()[0]}))
	})
	c := newTestClient(t, peer, func(cfg *Config) { cfg.ConnectionRetries = 1 })

	if c.WriteRegister(context.Background(), 64, 100) {
		t.Fatalf("echo of another register accepted")
	}
}

func TestWriteRegister_RejectsRangeCoveringEcho(t *testing.T) {
	peer := lxptest.NewPeer(t, func(_ int, req *lxp.Frame) [][]byte {
		// A read-style reply starting one register early that still covers the target.
		return lxptest.Reply(lxptest.EncodeResponse(lxptest.Response{
			DongleSerial: testDongle,
			UnitSerial:   testUnit,
			Function:     3,
			Register:     req.Register - 1,
			Values:       []uint16{0, req.Values()[0]},
		}))
	})
	c := newTestClient(t, peer, func(cfg *Config) { cfg.ConnectionRetries = 1 })

	if c.WriteRegister(context.Background(), 64, 100) {
		t.Fatalf("multi-register echo covering the target accepted")
	}
}

func TestWriteRegister_RejectsForeignUnitEcho(t *testing.T) {
	peer := lxptest.NewPeer(t, func(_ int, req *lxp.Frame) [][]byte {
		return lxptest.Reply(lxptest.EncodeResponse(lxptest.Response{
			DongleSerial: testDongle,
			UnitSerial:   "9999999999",
			Function:     6,
			Register:     req.Register,
			Values:       []uint16{req.Values()[0]},
		}))
	})
	c := newTestClient(t, peer, func(cfg *Config) { cfg.ConnectionRetries = 1 })

	if c.WriteRegister(context.Background(), 64, 100) {
		t.Fatalf("echo from another unit accepted")
	}
}

func TestWriteRegister_ReadOnly(t *testing.T) {
	peer := lxptest.NewPeer(t, func(_ int, req *lxp.Frame) [][]byte {
		return echo(req, req.Values()[0])
	})
	c := newTestClient(t, peer, func(cfg *Config) { cfg.ReadOnly = true })

	if c.WriteRegister(context.Background(), 21, 1) {
		t.Fatalf("read-only client wrote a register")
	}
	if peer.Connections() != 0 {
		t.Fatalf("connections=%d want 0", peer.Connections())
	}
}

// internal/dongle/client.go
package dongle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/lxp-replicator/internal/lxp"
)

// Snapshot is the last known good state of one inverter.
// Maps are shared with the client cache and must be treated as read-only;
// the client replaces them wholesale and never mutates them.
type Snapshot struct {
	Input   map[uint16]uint16
	Hold    map[uint16]uint16
	Battery map[string]lxp.BatteryRecord

	// Stale is set when no connection could be made and the cache was served.
	Stale bool
}

// Client polls and writes one inverter through its dongle.
// All socket use is serialized; each call opens and closes its own connection.
type Client struct {
	cfg          Config
	dongleSerial []byte
	unitSerial   []byte
	dial         DialFunc
	log          zerolog.Logger

	mu sync.Mutex // guards the socket

	cacheMu sync.RWMutex
	input   map[uint16]uint16
	hold    map[uint16]uint16
	battery map[string]lxp.BatteryRecord

	sleep           func(ctx context.Context, d time.Duration) error
	recoveryTimeout time.Duration

	recoveryAttempts    atomic.Uint64
	recoverySuccesses   atomic.Uint64
	recoveryFailures    atomic.Uint64
	connectRetries      atomic.Uint64
	consecutiveFailures atomic.Int64
}

// New validates cfg and creates a client with an empty cache.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dial := cfg.Dial
	if dial == nil {
		d := &net.Dialer{Timeout: cfg.Timeout}
		dial = d.DialContext
	}

	return &Client{
		cfg:          cfg,
		dongleSerial: []byte(cfg.DongleSerial),
		unitSerial:   []byte(cfg.InverterSerial),
		dial:         dial,
		log:          log.With().Str("dongle", cfg.DongleSerial).Str("addr", cfg.Address()).Logger(),
		input:        map[uint16]uint16{},
		hold:         map[uint16]uint16{},
		battery:      map[string]lxp.BatteryRecord{},

		sleep:           sleep,
		recoveryTimeout: recoveryTimeout,
	}, nil
}

// Cached returns the current cache without touching the network.
func (c *Client) Cached() Snapshot {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return Snapshot{Input: c.input, Hold: c.hold, Battery: c.battery}
}

// FetchData sweeps both banks, merges the result into the cache and returns it.
// Rejected blocks are skipped. The only error is ErrUnavailable, after the
// connection has failed more than FailureThreshold times in a row.
func (c *Client) FetchData(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connectWithRetry(ctx)
	if err != nil {
		return c.onConnectFailure(err)
	}
	c.consecutiveFailures.Store(0)

	c.discardInitialData(conn)

	input, inputOK := c.sweep(conn, lxp.BankInput)
	hold, holdOK := c.sweep(conn, lxp.BankHold)

	var batteries map[string]lxp.BatteryRecord
	if c.shouldReadBatteries(input) {
		batteries = c.readBatteries(conn)
	}

	if err := conn.Close(); err != nil {
		c.log.Debug().Err(err).Msg("close")
	}

	c.publish(input, inputOK, hold, holdOK, batteries)
	return c.Cached(), nil
}

func (c *Client) onConnectFailure(err error) (Snapshot, error) {
	n := int(c.consecutiveFailures.Add(1))
	if n > c.cfg.FailureThreshold {
		c.log.Error().Err(err).Int("failures", n).Msg("connection failed, giving up")
		return Snapshot{}, fmt.Errorf("%w after %d consecutive failures: %w", ErrUnavailable, n, err)
	}

	snap := c.Cached()
	snap.Stale = true
	if len(snap.Input) == 0 && len(snap.Hold) == 0 {
		c.log.Warn().Err(err).Int("failures", n).Msg("connection failed, no data yet")
	} else {
		c.log.Warn().Err(err).Int("failures", n).Msg("connection failed, serving cached data")
	}
	return snap, nil
}

// ---- sweep ----

func (c *Client) sweep(conn net.Conn, bank lxp.Bank) (map[uint16]uint16, bool) {
	out := make(map[uint16]uint16, lxp.TotalRegisters)
	ok := false

	for start := 0; start < lxp.TotalRegisters; start += c.cfg.BlockSize {
		count := min(c.cfg.BlockSize, lxp.TotalRegisters-start)

		f, err := c.readBlock(conn, bank, uint16(start), uint16(count))
		if err != nil {
			c.log.Warn().Err(err).
				Str("bank", bank.String()).
				Int("start", start).
				Int("count", count).
				Msg("block rejected")
			continue
		}
		regs := f.ValuesByRegister()
		for reg, v := range regs {
			out[reg] = v
		}
		if len(regs) > 0 {
			ok = true
		}
	}
	return out, ok
}

func (c *Client) shouldReadBatteries(input map[uint16]uint16) bool {
	return c.cfg.Batteries &&
		input[lxp.InputBatteryParallelCount] != 0 &&
		c.cfg.BlockSize >= lxp.BatteryInfoRegisters
}

func (c *Client) readBatteries(conn net.Conn) map[string]lxp.BatteryRecord {
	f, err := c.readBlock(conn, lxp.BankInput, lxp.BatteryInfoStartRegister, lxp.BatteryInfoRegisters)
	if err != nil {
		c.log.Warn().Err(err).Msg("battery block rejected")
		return nil
	}
	batteries := lxp.DecodeBatteries(f)
	c.log.Debug().Int("batteries", len(batteries)).Msg("battery info decoded")
	return batteries
}

// publish swaps in this cycle's banks. A bank with no accepted block keeps
// its previous map. Batteries merge per serial.
func (c *Client) publish(input map[uint16]uint16, inputOK bool, hold map[uint16]uint16, holdOK bool, batteries map[string]lxp.BatteryRecord) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if inputOK {
		c.input = input
	} else {
		c.log.Warn().Msg("input sweep failed, retaining previous input registers")
	}
	if holdOK {
		c.hold = hold
	} else {
		c.log.Warn().Msg("hold sweep failed, retaining previous hold registers")
	}
	if len(batteries) > 0 {
		c.battery = lxp.MergeBatteries(c.battery, batteries)
	}
}

// ---- one request ----

// readBlock sends one read request and returns the validated response.
func (c *Client) readBlock(conn net.Conn, bank lxp.Bank, start, count uint16) (*lxp.Frame, error) {
	req, err := lxp.BuildReadRequest(c.dongleSerial, c.unitSerial, start, count, bank.Function())
	if err != nil {
		return nil, err
	}
	if err := c.send(conn, req); err != nil {
		return nil, err
	}

	buf, err := c.receive(conn, lxp.ResponseOverhead+2*int(count))
	if err != nil {
		return nil, err
	}

	f := lxp.Parse(buf)
	if f.Kind() == lxp.KindLengthMismatch {
		f, buf = c.recoverPacket(conn, buf, f)
	}

	c.log.Debug().
		Str("bank", bank.String()).
		Uint16("start", start).
		Uint16("count", count).
		Hex("req", req).
		Hex("resp", buf).
		Str("frame", f.Summary()).
		Msg("block")

	if err := c.validate(f, bank.Function(), start, bank); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) send(conn net.Conn, req []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.Timeout))
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("dongle: write: %w", err)
	}
	return nil
}

// receive performs a single read of at most size bytes.
func (c *Client) receive(conn net.Conn, size int) ([]byte, error) {
	buf := make([]byte, size)
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.Timeout))
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil {
			err = errors.New("empty read")
		}
		return nil, fmt.Errorf("dongle: read: %w", err)
	}
	return buf[:n], nil
}

func (c *Client) validate(f *lxp.Frame, function uint8, start uint16, bank lxp.Bank) error {
	if err := f.Err(); err != nil {
		return err
	}
	if err := f.Exception(); err != nil {
		return err
	}
	if !bytes.Equal(f.UnitSerial, c.unitSerial) {
		return &ValidationError{Field: "unit serial", Expected: string(c.unitSerial), Actual: fmt.Sprintf("%q", f.UnitSerial)}
	}
	if f.DeviceFunction != function {
		return &ValidationError{Field: "function", Expected: fmt.Sprint(function), Actual: fmt.Sprint(f.DeviceFunction)}
	}
	if f.Register != start {
		return &ValidationError{Field: "register", Expected: fmt.Sprint(start), Actual: fmt.Sprint(f.Register)}
	}
	if len(f.Values()) == 0 {
		return &ValidationError{Field: "payload", Expected: "whole registers", Actual: fmt.Sprintf("%d bytes", len(f.Value))}
	}
	regs := f.ValuesByRegister()
	if reg, ok := lxp.CheckSanity(bank, regs); !ok {
		h, m := lxp.UnpackTime(regs[reg])
		return &ValidationError{
			Field:    fmt.Sprintf("time register %d", reg),
			Expected: "hour<=23 minute<=59",
			Actual:   fmt.Sprintf("%d:%02d", h, m),
		}
	}
	return nil
}

// internal/dongle/write.go
package dongle

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/lxp-replicator/internal/lxp"
)

// WriteRegister writes one hold register and waits for the echo.
// It returns true only when the dongle echoed exactly register and value,
// retrying up to ConnectionRetries times.
func (c *Client) WriteRegister(ctx context.Context, register, value uint16) bool {
	log := c.log.With().Uint16("register", register).Uint16("value", value).Logger()

	if c.cfg.ReadOnly {
		log.Error().Err(ErrReadOnly).Msg("write refused")
		return false
	}

	for attempt := 1; attempt <= c.cfg.ConnectionRetries; attempt++ {
		err := c.writeOnce(ctx, register, value)
		if err == nil {
			log.Info().Int("attempt", attempt).Msg("register written")
			return true
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("write attempt failed")

		if attempt < c.cfg.ConnectionRetries {
			if err := c.sleep(ctx, c.cfg.WriteRetryDelay); err != nil {
				break
			}
		}
	}

	log.Error().Int("attempts", c.cfg.ConnectionRetries).Msg("write failed")
	return false
}

func (c *Client) writeOnce(ctx context.Context, register, value uint16) error {
	req, err := lxp.BuildWriteRequest(c.dongleSerial, c.unitSerial, register, value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.dialOnce(ctx)
	if err != nil {
		return fmt.Errorf("dongle: connect: %w", err)
	}
	defer conn.Close()

	c.discardInitialData(conn)

	if err := c.send(conn, req); err != nil {
		return err
	}
	buf, err := c.receive(conn, lxp.WriteResponseLength)
	if err != nil {
		return err
	}

	f := lxp.Parse(buf)
	c.log.Debug().Hex("req", req).Hex("resp", buf).Str("frame", f.Summary()).Msg("write")

	if err := f.Err(); err != nil {
		return err
	}
	if err := f.Exception(); err != nil {
		return err
	}
	if !bytes.Equal(f.UnitSerial, c.unitSerial) {
		return &ValidationError{Field: "echo unit serial", Expected: string(c.unitSerial), Actual: fmt.Sprintf("%q", f.UnitSerial)}
	}
	if f.DeviceFunction != modbus.FuncCodeWriteSingleRegister {
		return &ValidationError{Field: "echo function", Expected: fmt.Sprint(modbus.FuncCodeWriteSingleRegister), Actual: fmt.Sprint(f.DeviceFunction)}
	}
	if f.Register != register {
		return &ValidationError{Field: "echo register", Expected: fmt.Sprint(register), Actual: fmt.Sprint(f.Register)}
	}
	vals := f.Values()
	if len(vals) != 1 {
		return &ValidationError{Field: "echo length", Expected: "1 register", Actual: fmt.Sprintf("%d registers", len(vals))}
	}
	if vals[0] != value {
		return &ValidationError{Field: "echo value", Expected: fmt.Sprint(value), Actual: fmt.Sprint(vals[0])}
	}
	return nil
}

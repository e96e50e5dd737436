// internal/dongle/conn.go
package dongle

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/tamzrod/lxp-replicator/internal/lxp"
)

// connectWithRetry dials up to ConnectionRetries times, sleeping
// RetryDelay * 1.5^attempt between failures.
func (c *Client) connectWithRetry(ctx context.Context) (net.Conn, error) {
	delay := c.cfg.RetryDelay
	var last error

	for attempt := 1; attempt <= c.cfg.ConnectionRetries; attempt++ {
		conn, err := c.dialOnce(ctx)
		if err == nil {
			if attempt > 1 {
				c.log.Info().Int("attempt", attempt).Msg("connected after retry")
			}
			return conn, nil
		}
		last = err

		if attempt == c.cfg.ConnectionRetries {
			break
		}
		c.connectRetries.Add(1)
		c.log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("connect failed, retrying")

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = time.Duration(float64(delay) * retryBackoffFactor)
	}
	return nil, last
}

func (c *Client) dialOnce(ctx context.Context) (net.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	return c.dial(dctx, "tcp", c.cfg.Address())
}

// discardInitialData drains whatever the dongle sends unprompted after
// accept. Silence is normal.
func (c *Client) discardInitialData(conn net.Conn) {
	if !c.cfg.SkipInitialData {
		return
	}
	buf := make([]byte, initialDataMax)
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.InitialDataWait))
	n, err := conn.Read(buf)
	if n > 0 {
		c.log.Debug().Hex("data", buf[:n]).Msg("discarded initial data")
	}
	var ne net.Error
	if err != nil && !(errors.As(err, &ne) && ne.Timeout()) {
		c.log.Debug().Err(err).Msg("initial data read")
	}
}

// recoverPacket keeps reading while the frame claims more bytes than
// were received. It stops on success, a changed declared length, a
// timeout, the attempt budget or the size ceiling. It returns the last
// parse and the bytes it was made from.
func (c *Client) recoverPacket(conn net.Conn, buf []byte, f *lxp.Frame) (*lxp.Frame, []byte) {
	c.recoveryAttempts.Add(1)
	want := f.PacketLength()
	log := c.log.With().Int("have", len(buf)).Int("want", want).Logger()

	if want > recoveryCeiling {
		c.recoveryFailures.Add(1)
		log.Warn().Msg("declared length exceeds recovery ceiling")
		return f, buf
	}

	chunk := make([]byte, recoveryCeiling)
	for attempt := 1; attempt <= recoveryAttempts; attempt++ {
		_ = conn.SetReadDeadline(time.Now().Add(c.recoveryTimeout))
		n, err := conn.Read(chunk[:recoveryCeiling-len(buf)])
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			f = lxp.Parse(buf)
			if f.Err() == nil {
				c.recoverySuccesses.Add(1)
				log.Debug().Int("attempt", attempt).Int("len", len(buf)).Msg("packet recovered")
				return f, buf
			}
			if f.Kind() != lxp.KindLengthMismatch || f.PacketLength() != want {
				break
			}
		}
		if err != nil || len(buf) >= recoveryCeiling {
			break
		}
	}

	c.recoveryFailures.Add(1)
	log.Warn().Str("frame", f.Summary()).Msg("packet recovery failed")
	return f, buf
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

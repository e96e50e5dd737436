// internal/dongle/config.go
package dongle

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/tamzrod/lxp-replicator/internal/lxp"
)

// DialFunc opens the TCP connection to the dongle.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Defaults applied by New when a field is zero.
const (
	DefaultPort              = 8000
	DefaultConnectionRetries = 3
	DefaultTimeout           = 10 * time.Second
	DefaultRetryDelay        = 30 * time.Second
	DefaultWriteRetryDelay   = 1 * time.Second
	DefaultFailureThreshold  = 3
	DefaultInitialDataWait   = 1 * time.Second

	retryBackoffFactor = 1.5

	initialDataMax = 300

	recoveryAttempts = 3
	recoveryTimeout  = 2 * time.Second
	recoveryCeiling  = 1024
)

// Config is the runtime configuration of one dongle client.
type Config struct {
	Host           string
	Port           int
	DongleSerial   string
	InverterSerial string

	BlockSize         int // lxp.BlockSizeDefault or lxp.BlockSizeLegacy
	ConnectionRetries int
	Timeout           time.Duration // per connect and per read
	Batteries         bool
	ReadOnly          bool // WriteRegister refuses without connecting

	// SkipInitialData drains the burst some dongles send right after accept.
	SkipInitialData bool
	InitialDataWait time.Duration

	RetryDelay       time.Duration // first connect backoff, grows by 1.5 per attempt
	WriteRetryDelay  time.Duration
	FailureThreshold int // consecutive connect failures tolerated before ErrUnavailable

	Dial DialFunc // nil uses net.Dialer
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.BlockSize == 0 {
		c.BlockSize = lxp.BlockSizeDefault
	}
	if c.ConnectionRetries == 0 {
		c.ConnectionRetries = DefaultConnectionRetries
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.InitialDataWait == 0 {
		c.InitialDataWait = DefaultInitialDataWait
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.WriteRetryDelay == 0 {
		c.WriteRetryDelay = DefaultWriteRetryDelay
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
}

func (c Config) validate() error {
	if c.Host == "" {
		return errors.New("dongle: host required")
	}
	if len(c.DongleSerial) != lxp.SerialLength || len(c.InverterSerial) != lxp.SerialLength {
		return lxp.ErrInvalidSerialLength
	}
	if c.BlockSize != lxp.BlockSizeDefault && c.BlockSize != lxp.BlockSizeLegacy {
		return errors.New("dongle: block size must be 125 or 40")
	}
	if c.ConnectionRetries < 1 {
		return errors.New("dongle: connection retries must be >= 1")
	}
	return nil
}

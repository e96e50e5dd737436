// internal/writer/ingest/client.go
package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	magicHi byte = 0x52 // 'R'
	magicLo byte = 0x49 // 'I'

	versionV1 byte = 0x01

	headerLen = 10

	respOK       byte = 0x00
	respRejected byte = 0x01
)

// Raw Ingest v1 client (stateless, 1 packet = 1 connection)
type EndpointClient struct {
	endpoint string
	timeout  time.Duration
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer ingest: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &EndpointClient{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
	}, nil
}

func (c *EndpointClient) Close() error { return nil }

// WriteRegisters sends regs into area 3 (holding) or 4 (input).
func (c *EndpointClient) WriteRegisters(
	area byte,
	unitID uint8,
	addr uint16,
	regs []uint16,
) error {
	if area != 3 && area != 4 {
		return fmt.Errorf("writer ingest: area %d is not a register area", area)
	}
	pkt := buildPacketV1(area, unitID, addr, regs)

	conn, err := net.DialTimeout("tcp", c.endpoint, c.timeout)
	if err != nil {
		return fmt.Errorf("writer ingest: dial: %w", err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := conn.Write(pkt); err != nil {
		return fmt.Errorf("writer ingest: write: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.timeout))
	var resp [1]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return fmt.Errorf("writer ingest: read status: %w", err)
	}

	switch resp[0] {
	case respOK:
		return nil
	case respRejected:
		return errors.New("writer ingest: rejected")
	default:
		return fmt.Errorf("writer ingest: unknown status 0x%02x", resp[0])
	}
}

//
// ---- Raw Ingest v1 packet builder (LOCKED) ----
//
// Layout (10 bytes header, big-endian):
// 0-1  Magic "RI"
// 2    Version (0x01)
// 3    Area
// 4-5  UnitID
// 6-7  Address
// 8-9  Count
// 10+  Payload, registers big-endian
//

func buildPacketV1(area byte, unitID uint8, addr uint16, regs []uint16) []byte {
	pkt := make([]byte, 0, headerLen+2*len(regs))

	pkt = append(pkt, magicHi, magicLo, versionV1, area)
	pkt = binary.BigEndian.AppendUint16(pkt, uint16(unitID))
	pkt = binary.BigEndian.AppendUint16(pkt, addr)
	pkt = binary.BigEndian.AppendUint16(pkt, uint16(len(regs)))

	for _, r := range regs {
		pkt = binary.BigEndian.AppendUint16(pkt, r)
	}
	return pkt
}

// internal/lxp/frame.go
package lxp

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/goburrow/modbus"
)

// Preamble opens every frame in both directions.
var Preamble = [2]byte{0xA1, 0x1A}

const (
	// TranslatedData is the tcp function of normal register traffic.
	TranslatedData byte = 194
	// VendorMessage is the unframed passthrough tcp function.
	VendorMessage byte = 193

	// SerialLength is the size of dongle and unit serial fields.
	SerialLength = 10

	headerSize            = 8  // preamble + protocol + frame length + seq + tcp function
	translatedMinSize     = 37 // header + dongle serial + data length + minimal data frame + crc
	vendorMessageMinSize  = 19
	unsupportedFrameStart = 8
	frameLengthOverhead   = 6
)

// Frame is a decoded response. Parse always returns one; failures are
// reported through Err so callers keep the partial fields for diagnostics.
type Frame struct {
	ProtocolNumber uint16
	FrameLength    uint16
	Sequence       byte
	TCPFunction    byte
	DongleSerial   []byte
	DataLength     uint16

	AddressAction  byte
	DeviceFunction byte
	UnitSerial     []byte
	Register       uint16
	Value          []byte
	ExceptionCode  byte
	CRC            uint16

	err *FrameError
}

// Parse decodes buf. It never panics on malformed input.
func Parse(buf []byte) *Frame {
	f := &Frame{}

	if len(buf) < headerSize {
		f.err = &FrameError{Kind: KindTooSmall, Expected: headerSize, Actual: len(buf)}
		return f
	}
	if buf[0] != Preamble[0] || buf[1] != Preamble[1] {
		f.err = &FrameError{Kind: KindBadHeader, Actual: int(binary.BigEndian.Uint16(buf[0:2]))}
		return f
	}

	f.ProtocolNumber = binary.LittleEndian.Uint16(buf[2:4])
	f.FrameLength = binary.LittleEndian.Uint16(buf[4:6])
	f.Sequence = buf[6]
	f.TCPFunction = buf[7]

	total := f.PacketLength()
	if len(buf) < total {
		f.err = &FrameError{Kind: KindLengthMismatch, Expected: total, Actual: len(buf)}
		return f
	}
	packet := buf[:total]

	switch f.TCPFunction {
	case TranslatedData:
		f.err = f.decodeTranslated(packet)
	case VendorMessage:
		f.err = f.decodeVendorMessage(packet)
	default:
		// Whether other functions carry a CRC is unknown; decode for diagnostics only.
		if len(packet) >= unsupportedFrameStart+2 {
			_ = f.decodeProtected(packet, unsupportedFrameStart)
		}
		f.err = &FrameError{Kind: KindUnsupported, Function: f.TCPFunction}
	}
	return f
}

func (f *Frame) decodeTranslated(packet []byte) *FrameError {
	if len(packet) < translatedMinSize {
		return &FrameError{Kind: KindTranslatedTooSmall, Expected: translatedMinSize, Actual: len(packet)}
	}

	c := cursor{buf: packet, off: headerSize}
	serial, err := c.bytes(SerialLength, "dongle_serial")
	if err != nil {
		return err
	}
	f.DongleSerial = serial
	if f.DataLength, err = c.u16("data_length"); err != nil {
		return err
	}
	return f.decodeProtected(packet, c.off)
}

func (f *Frame) decodeVendorMessage(packet []byte) *FrameError {
	if len(packet) < vendorMessageMinSize {
		return &FrameError{Kind: KindTooSmall, Expected: vendorMessageMinSize, Actual: len(packet)}
	}
	c := cursor{buf: packet, off: headerSize}
	serial, err := c.bytes(SerialLength, "dongle_serial")
	if err != nil {
		return err
	}
	f.DongleSerial = serial
	f.Value = c.rest()
	return nil
}

// decodeProtected checks the CRC of packet[start:len-2] and decodes it as
// a data frame.
func (f *Frame) decodeProtected(packet []byte, start int) *FrameError {
	end := len(packet) - 2
	if end < start {
		return &FrameError{Kind: KindFieldOverrun, Field: "crc", Expected: start + 2, Actual: len(packet)}
	}
	data := packet[start:end]
	f.CRC = binary.LittleEndian.Uint16(packet[end:])
	if calc := ComputeCRC(data); calc != f.CRC {
		return &FrameError{Kind: KindCRCMismatch, Expected: int(f.CRC), Actual: int(calc)}
	}
	return f.decodeDataFrame(data)
}

func (f *Frame) decodeDataFrame(data []byte) *FrameError {
	c := cursor{buf: data}
	var err *FrameError

	if f.AddressAction, err = c.u8("address_action"); err != nil {
		return err
	}
	if f.DeviceFunction, err = c.u8("device_function"); err != nil {
		return err
	}
	if f.UnitSerial, err = c.bytes(SerialLength, "unit_serial"); err != nil {
		return err
	}
	if f.Register, err = c.u16("register"); err != nil {
		return err
	}

	switch {
	case f.DeviceFunction >= 0x80:
		f.ExceptionCode, err = c.u8("exception_code")
		return err
	case f.lengthPrefixed():
		n, err := c.u8("value_length")
		if err != nil {
			return err
		}
		f.Value, err = c.bytes(int(n), "value")
		return err
	default:
		f.Value, err = c.bytes(2, "value")
		return err
	}
}

func (f *Frame) lengthPrefixed() bool {
	return (f.ProtocolNumber == 2 || f.ProtocolNumber == 5) &&
		f.DeviceFunction != modbus.FuncCodeWriteSingleRegister
}

// ---- accessors ----

// Err returns the decode failure, or nil.
func (f *Frame) Err() error {
	if f.err == nil {
		return nil
	}
	return f.err
}

// Kind returns the decode outcome.
func (f *Frame) Kind() Kind {
	if f.err == nil {
		return KindNone
	}
	return f.err.Kind
}

// PacketLength is the total length declared by the header.
func (f *Frame) PacketLength() int {
	return int(f.FrameLength) + frameLengthOverhead
}

// IsException reports whether the peer rejected the request.
func (f *Frame) IsException() bool {
	return f.err == nil && f.TCPFunction == TranslatedData && f.DeviceFunction >= 0x80
}

// Exception returns the exception reply as a Modbus error, or nil.
func (f *Frame) Exception() error {
	if !f.IsException() {
		return nil
	}
	return &modbus.ModbusError{FunctionCode: f.DeviceFunction, ExceptionCode: f.ExceptionCode}
}

// Values returns the payload as little-endian words. Empty when the frame
// is malformed, an exception, not register data, or has an odd payload.
func (f *Frame) Values() []uint16 {
	if f.err != nil || f.TCPFunction != TranslatedData || f.IsException() || len(f.Value)%2 != 0 {
		return nil
	}
	out := make([]uint16, len(f.Value)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(f.Value[2*i:])
	}
	return out
}

// ValuesByRegister maps each decoded word to its absolute register address.
func (f *Frame) ValuesByRegister() map[uint16]uint16 {
	vals := f.Values()
	out := make(map[uint16]uint16, len(vals))
	for i, v := range vals {
		out[f.Register+uint16(i)] = v
	}
	return out
}

// Summary is a one-line diagnostic description.
func (f *Frame) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status=%s", f.Kind())
	if f.err != nil {
		fmt.Fprintf(&b, " (%s)", f.err.Error())
	}
	fmt.Fprintf(&b, " protocol=%d frame_len=%d data_len=%d tcp_fn=%d dev_fn=%d",
		f.ProtocolNumber, f.FrameLength, f.DataLength, f.TCPFunction, f.DeviceFunction)
	if f.IsException() {
		fmt.Fprintf(&b, " exception=%d", f.ExceptionCode)
	}
	if n := len(f.Values()); n > 0 {
		fmt.Fprintf(&b, " registers=%d-%d", f.Register, int(f.Register)+n-1)
	}
	return b.String()
}

// ---- bounds-checked reads ----

type cursor struct {
	buf []byte
	off int
}

func (c *cursor) need(n int, field string) *FrameError {
	if n < 0 || c.off+n > len(c.buf) {
		return &FrameError{Kind: KindFieldOverrun, Field: field, Expected: c.off + n, Actual: len(c.buf)}
	}
	return nil
}

func (c *cursor) u8(field string) (byte, *FrameError) {
	if err := c.need(1, field); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

func (c *cursor) u16(field string) (uint16, *FrameError) {
	if err := c.need(2, field); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

func (c *cursor) bytes(n int, field string) ([]byte, *FrameError) {
	if err := c.need(n, field); err != nil {
		return nil, err
	}
	v := c.buf[c.off : c.off+n]
	c.off += n
	return v, nil
}

func (c *cursor) rest() []byte {
	return c.buf[c.off:]
}

// internal/lxp/builder.go
package lxp

import (
	"encoding/binary"
	"errors"

	"github.com/goburrow/modbus"
)

// ErrInvalidSerialLength is returned when a dongle or unit serial is not 10 bytes.
var ErrInvalidSerialLength = errors.New("lxp: serial must be exactly 10 bytes")

// ---- request geometry (LOCKED) ----
//
// 0–1    Preamble 0xA1 0x1A
// 2–3    Protocol version (LE)
// 4–5    Frame length (LE), total length minus 6
// 6      Sequence
// 7      TCP function
// 8–17   Dongle serial
// 18–19  Data length (LE)
// 20     Action
// 21     Device function
// 22–31  Unit serial
// 32–33  Register (LE)
// 34–35  Count or value (LE)
// 36–37  CRC16 over [20:36) (LE)

const (
	requestProtocol    uint16 = 1
	requestFrameLength uint16 = 32
	requestDataLength  uint16 = 18
	requestSequence    byte   = 1
	actionWrite        byte   = 0

	// RequestLength is the fixed size of every request frame.
	RequestLength = 38

	dataFrameStart = 20
	dataFrameEnd   = 36
)

// BuildReadRequest builds a request for count registers starting at start.
// function selects the bank: 4 (input) or 3 (hold).
func BuildReadRequest(dongleSerial, unitSerial []byte, start, count uint16, function uint8) ([]byte, error) {
	return buildRequest(dongleSerial, unitSerial, function, start, count)
}

// BuildWriteRequest builds a single-register write request.
func BuildWriteRequest(dongleSerial, unitSerial []byte, register, value uint16) ([]byte, error) {
	return buildRequest(dongleSerial, unitSerial, modbus.FuncCodeWriteSingleRegister, register, value)
}

func buildRequest(dongleSerial, unitSerial []byte, function uint8, register, word uint16) ([]byte, error) {
	if len(dongleSerial) != SerialLength || len(unitSerial) != SerialLength {
		return nil, ErrInvalidSerialLength
	}

	buf := make([]byte, 0, RequestLength)
	buf = append(buf, Preamble[0], Preamble[1])
	buf = binary.LittleEndian.AppendUint16(buf, requestProtocol)
	buf = binary.LittleEndian.AppendUint16(buf, requestFrameLength)
	buf = append(buf, requestSequence, TranslatedData)
	buf = append(buf, dongleSerial...)
	buf = binary.LittleEndian.AppendUint16(buf, requestDataLength)

	buf = append(buf, actionWrite, function)
	buf = append(buf, unitSerial...)
	buf = binary.LittleEndian.AppendUint16(buf, register)
	buf = binary.LittleEndian.AppendUint16(buf, word)

	crc := ComputeCRC(buf[dataFrameStart:dataFrameEnd])
	return binary.LittleEndian.AppendUint16(buf, crc), nil
}

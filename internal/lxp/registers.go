// internal/lxp/registers.go
package lxp

import (
	"strings"

	"github.com/goburrow/modbus"
)

// Register space geometry. Vendor-defined, not configurable.
const (
	TotalRegisters = 750

	BlockSizeDefault = 125
	BlockSizeLegacy  = 40 // older firmware rejects larger reads

	// ResponseOverhead is the size of a read response carrying zero registers.
	ResponseOverhead = 37
	// WriteResponseLength bounds the read of a single write acknowledgement.
	WriteResponseLength = 76
)

// Input registers that drive polling decisions.
const (
	InputBatteryParallelCount uint16 = 96
)

// Hold registers carrying the model code, two ASCII chars each.
const (
	HoldModelHigh uint16 = 7
	HoldModelLow  uint16 = 8
)

// Bank is one of the two register spaces.
type Bank int

const (
	BankInput Bank = iota
	BankHold
)

func (b Bank) String() string {
	switch b {
	case BankInput:
		return "input"
	case BankHold:
		return "hold"
	default:
		return "unknown"
	}
}

// Function is the device function code used to read the bank.
func (b Bank) Function() uint8 {
	if b == BankHold {
		return modbus.FuncCodeReadHoldingRegisters
	}
	return modbus.FuncCodeReadInputRegisters
}

// Registers packed as hour | minute<<8.
var holdTimeRegisters = map[uint16]struct{}{
	68: {}, 69: {}, // AC charge
	70: {}, 71: {}, // AC charge 1
	72: {}, 73: {}, // AC charge 2
	152: {}, 153: {}, // AC first
	154: {}, 155: {}, // AC first 1
	209: {}, 210: {}, // peak shaving
	211: {}, 212: {}, // peak shaving 1
}

// IsTimeRegister reports whether reg holds a packed time of day in bank.
// No input register is known to.
func IsTimeRegister(bank Bank, reg uint16) bool {
	if bank != BankHold {
		return false
	}
	_, ok := holdTimeRegisters[reg]
	return ok
}

// UnpackTime splits a packed time register.
func UnpackTime(v uint16) (hour, minute uint8) {
	return uint8(v & 0xFF), uint8(v >> 8)
}

// PackTime is the inverse of UnpackTime.
func PackTime(hour, minute uint8) uint16 {
	return uint16(hour) | uint16(minute)<<8
}

// CheckSanity rejects blocks whose time registers cannot be a time of day,
// the usual symptom of a misaligned frame. It returns the first offending
// register.
func CheckSanity(bank Bank, regs map[uint16]uint16) (uint16, bool) {
	for reg, v := range regs {
		if !IsTimeRegister(bank, reg) {
			continue
		}
		if h, m := UnpackTime(v); h > 23 || m > 59 {
			return reg, false
		}
	}
	return 0, true
}

// DecodeModel reads the model code from hold registers 7 and 8.
func DecodeModel(hold map[uint16]uint16) string {
	var b []byte
	for _, reg := range []uint16{HoldModelHigh, HoldModelLow} {
		v := hold[reg]
		b = append(b, byte(v>>8), byte(v))
	}
	return strings.TrimSpace(strings.Trim(string(b), "\x00"))
}

// GetBits extracts count bits starting at start.
func GetBits(v uint16, start, count uint) uint16 {
	mask := uint16(1)<<count - 1
	return (v >> start) & mask
}

// SetBits replaces count bits starting at start with bits.
func SetBits(v uint16, start, count uint, bits uint16) uint16 {
	mask := uint16(1)<<count - 1
	return v&^(mask<<start) | (bits&mask)<<start
}

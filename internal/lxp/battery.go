// internal/lxp/battery.go
package lxp

import "bytes"

// Battery info geometry, discovered from packet captures.
const (
	BatteryInfoStartRegister uint16 = 5000
	BatteryBlockRegisters           = 30
	BatteryBlocks                   = 4

	// BatteryInfoRegisters is the span read in one battery request.
	BatteryInfoRegisters = BatteryBlockRegisters * BatteryBlocks

	// Serial occupies block offsets 19..26. Offsets 27..29 have only been seen zero.
	batterySerialStart     = 19
	batterySerialRegisters = 8
)

// BatteryRecord maps a block offset (0..29) to its raw value.
// Offsets 0..18 are known to be capacity, currents, voltage, soc/soh,
// cycles, temperatures, cell extremes and firmware; the rest is undecoded.
type BatteryRecord map[uint16]uint16

// DecodeBatteryBlock extracts block b (0-based) from a battery info frame.
// ok is false when the frame is not battery info or the serial is empty,
// which the dongle sometimes reports as all zero, or not printable ASCII.
func DecodeBatteryBlock(f *Frame, b int) (serial string, rec BatteryRecord, ok bool) {
	if f.Err() != nil || f.Register != BatteryInfoStartRegister || b < 0 || b >= BatteryBlocks {
		return "", nil, false
	}

	base := f.Register + uint16(b*BatteryBlockRegisters)
	start := b*BatteryBlockRegisters*2 + batterySerialStart*2
	end := start + batterySerialRegisters*2
	if end > len(f.Value) {
		return "", nil, false
	}

	raw := f.Value[start:end]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if len(raw) == 0 || !printableASCII(raw) {
		return "", nil, false
	}

	regs := f.ValuesByRegister()
	rec = make(BatteryRecord, BatteryBlockRegisters)
	for off := uint16(0); off < BatteryBlockRegisters; off++ {
		if off >= batterySerialStart && off < batterySerialStart+batterySerialRegisters {
			continue
		}
		if v, present := regs[base+off]; present {
			rec[off] = v
		}
	}
	return string(raw), rec, true
}

func printableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}

// DecodeBatteries decodes every block of a battery info frame, keyed by serial.
func DecodeBatteries(f *Frame) map[string]BatteryRecord {
	out := make(map[string]BatteryRecord)
	for b := 0; b < BatteryBlocks; b++ {
		serial, rec, ok := DecodeBatteryBlock(f, b)
		if !ok {
			continue
		}
		out[serial] = rec
	}
	return out
}

// MergeBatteries returns a new map holding dst with src merged in per serial.
// Neither input is modified.
func MergeBatteries(dst, src map[string]BatteryRecord) map[string]BatteryRecord {
	out := make(map[string]BatteryRecord, len(dst)+len(src))
	for serial, rec := range dst {
		out[serial] = rec
	}
	for serial, rec := range src {
		merged := make(BatteryRecord, len(out[serial])+len(rec))
		for k, v := range out[serial] {
			merged[k] = v
		}
		for k, v := range rec {
			merged[k] = v
		}
		out[serial] = merged
	}
	return out
}

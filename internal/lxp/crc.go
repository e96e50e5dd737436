// internal/lxp/crc.go
package lxp

import "github.com/sigurn/crc16"

// CRC-16/MODBUS: init 0xFFFF, reflected poly 0xA001, no final XOR.
var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// ComputeCRC returns the checksum the dongle expects over an inner data frame.
// Pure, total function.
func ComputeCRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

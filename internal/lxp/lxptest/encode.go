// internal/lxp/lxptest/encode.go
package lxptest

import (
	"encoding/binary"

	"github.com/tamzrod/lxp-replicator/internal/lxp"
)

// Response describes a dongle reply to encode.
type Response struct {
	Protocol     uint16 // 2 unless set
	DongleSerial string
	UnitSerial   string
	Function     uint8
	Register     uint16
	Values       []uint16
	Raw          []byte // used instead of Values when non-nil
	Exception    uint8  // sent with Function|0x80 when non-zero
}

// EncodeResponse builds a translated-data frame as a dongle would send it.
func EncodeResponse(r Response) []byte {
	if r.Protocol == 0 {
		r.Protocol = 2
	}

	payload := r.Raw
	if payload == nil {
		payload = make([]byte, 0, 2*len(r.Values))
		for _, v := range r.Values {
			payload = binary.LittleEndian.AppendUint16(payload, v)
		}
	}

	fn := r.Function
	data := make([]byte, 0, 15+len(payload))
	data = append(data, 1) // address action
	if r.Exception != 0 {
		fn |= 0x80
	}
	data = append(data, fn)
	data = append(data, fixed(r.UnitSerial)...)
	data = binary.LittleEndian.AppendUint16(data, r.Register)

	switch {
	case r.Exception != 0:
		data = append(data, r.Exception)
	case (r.Protocol == 2 || r.Protocol == 5) && fn != 6:
		data = append(data, byte(len(payload)))
		data = append(data, payload...)
	default:
		data = append(data, payload...)
	}

	total := 20 + len(data) + 2
	buf := make([]byte, 0, total)
	buf = append(buf, lxp.Preamble[0], lxp.Preamble[1])
	buf = binary.LittleEndian.AppendUint16(buf, r.Protocol)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(total-6))
	buf = append(buf, 1, lxp.TranslatedData)
	buf = append(buf, fixed(r.DongleSerial)...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(data)+2))
	buf = append(buf, data...)
	return binary.LittleEndian.AppendUint16(buf, lxp.ComputeCRC(data))
}

// fixed pads or truncates s to a serial field.
func fixed(s string) []byte {
	b := make([]byte, lxp.SerialLength)
	copy(b, s)
	return b
}

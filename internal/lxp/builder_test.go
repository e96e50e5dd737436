// internal/lxp/builder_test.go
package lxp

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"testing"
)

var (
	testDongle = []byte("BA12345678")
	testUnit   = []byte("1234567890")
)

func TestBuildReadRequest_Golden(t *testing.T) {
	got, err := BuildReadRequest(testDongle, testUnit, 0, 125, 4)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want, _ := hex.DecodeString("a11a0100200001c242413132333435363738120000043132333435363738393000007d009286")
	if !bytes.Equal(got, want) {
		t.Fatalf("frame mismatch:\n got=%x\nwant=%x", got, want)
	}
}

func TestBuildRequest_CRCCoversDataFrame(t *testing.T) {
	for _, reg := range []uint16{0, 125, 749, 5000} {
		req, err := BuildReadRequest(testDongle, testUnit, reg, 40, 3)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if len(req) != RequestLength {
			t.Fatalf("len=%d want=%d", len(req), RequestLength)
		}
		crc := binary.LittleEndian.Uint16(req[36:38])
		if calc := ComputeCRC(req[20:36]); calc != crc {
			t.Fatalf("reg=%d crc=0x%04X calc=0x%04X", reg, crc, calc)
		}
	}
}

func TestBuildRequest_InvalidSerialLength(t *testing.T) {
	cases := []struct {
		name   string
		dongle []byte
		unit   []byte
	}{
		{"short dongle", []byte("BA123"), testUnit},
		{"long unit", testDongle, []byte("12345678901")},
		{"empty", nil, nil},
	}
	for _, tc := range cases {
		if _, err := BuildReadRequest(tc.dongle, tc.unit, 0, 1, 4); !errors.Is(err, ErrInvalidSerialLength) {
			t.Fatalf("%s: read err=%v", tc.name, err)
		}
		if _, err := BuildWriteRequest(tc.dongle, tc.unit, 0, 1); !errors.Is(err, ErrInvalidSerialLength) {
			t.Fatalf("%s: write err=%v", tc.name, err)
		}
	}
}

func TestBuildWriteRequest_ParsesBack(t *testing.T) {
	cases := []struct{ reg, val uint16 }{
		{0, 0},
		{21, 0xFFFF},
		{68, PackTime(23, 59)},
		{749, 1234},
	}
	for _, tc := range cases {
		req, err := BuildWriteRequest(testDongle, testUnit, tc.reg, tc.val)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		f := Parse(req)
		if err := f.Err(); err != nil {
			t.Fatalf("reg=%d parse: %v", tc.reg, err)
		}
		if f.Register != tc.reg {
			t.Fatalf("register=%d want=%d", f.Register, tc.reg)
		}
		vals := f.Values()
		if len(vals) != 1 || vals[0] != tc.val {
			t.Fatalf("values=%v want=[%d]", vals, tc.val)
		}
		if f.DeviceFunction != 6 {
			t.Fatalf("device function=%d want=6", f.DeviceFunction)
		}
		if !bytes.Equal(f.UnitSerial, testUnit) || !bytes.Equal(f.DongleSerial, testDongle) {
			t.Fatalf("serials not echoed: %q %q", f.DongleSerial, f.UnitSerial)
		}
	}
}

// internal/lxp/errors.go
package lxp

import "fmt"

// Kind tags the outcome of Parse.
type Kind int

const (
	KindNone Kind = iota
	KindTooSmall
	KindBadHeader
	KindLengthMismatch
	KindTranslatedTooSmall
	KindCRCMismatch
	KindFieldOverrun
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindTooSmall:
		return "too_small"
	case KindBadHeader:
		return "bad_header"
	case KindLengthMismatch:
		return "length_mismatch"
	case KindTranslatedTooSmall:
		return "translated_too_small"
	case KindCRCMismatch:
		return "crc_mismatch"
	case KindFieldOverrun:
		return "field_overrun"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// FrameError describes why a buffer could not be decoded.
// Expected/Actual carry lengths, or CRC values for KindCRCMismatch.
type FrameError struct {
	Kind     Kind
	Expected int
	Actual   int
	Function uint8
	Field    string
}

func (e *FrameError) Error() string {
	switch e.Kind {
	case KindTooSmall, KindTranslatedTooSmall:
		return fmt.Sprintf("lxp: %s: %d bytes (minimum %d)", e.Kind, e.Actual, e.Expected)
	case KindBadHeader:
		return fmt.Sprintf("lxp: bad header: got 0x%04X", e.Actual)
	case KindLengthMismatch:
		return fmt.Sprintf("lxp: length mismatch: expected %d bytes, got %d", e.Expected, e.Actual)
	case KindCRCMismatch:
		return fmt.Sprintf("lxp: crc mismatch: expected 0x%04X, actual 0x%04X", e.Expected, e.Actual)
	case KindFieldOverrun:
		return fmt.Sprintf("lxp: field %s overruns frame: need %d bytes, have %d", e.Field, e.Expected, e.Actual)
	case KindUnsupported:
		return fmt.Sprintf("lxp: unsupported tcp function %d", e.Function)
	default:
		return "lxp: " + e.Kind.String()
	}
}

// internal/dongle/errors.go
package dongle

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by FetchData once connection failures
// exceed the configured threshold.
var ErrUnavailable = errors.New("dongle: unavailable")

// ErrReadOnly is logged when a write is attempted on a read-only client.
var ErrReadOnly = errors.New("dongle: read only")

// ValidationError rejects a structurally valid response that does not
// answer the request that was sent.
type ValidationError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dongle: %s mismatch: expected %s, got %s", e.Field, e.Expected, e.Actual)
}

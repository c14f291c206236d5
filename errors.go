package nexthop

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded is returned when a request does not fit in the
// configured message capacity.
var ErrCapacityExceeded = errors.New("request exceeds message capacity")

// UsageError reports a malformed or missing command argument. It is
// raised before any request is sent.
type UsageError struct {
	Arg    string
	Reason string
}

func (e *UsageError) Error() string {
	if e.Arg == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Arg)
}

// DecodeError reports a received record that cannot be decoded, such as
// an attribute whose length does not hold a whole number of elements.
// The record is dropped.
type DecodeError struct {
	Attr   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("BUG: %s: %s", e.Attr, e.Reason)
}

// IsUsage reports whether err is, or wraps, a UsageError.
func IsUsage(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// IsDecode reports whether err is, or wraps, a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

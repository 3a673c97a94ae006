// Package secserr defines the error taxonomy shared by every layer of the
// driver: the variable codec, the data-item registry, the HSMS transport,
// and the session state machine. Callers are expected to use errors.Is
// against the exported Kind constants rather than matching on strings.
package secserr

import "fmt"

// Kind identifies the category of a driver error.
type Kind int

const (
	// KindUnknown is never returned by this package; it is the zero value.
	KindUnknown Kind = iota

	// Codec kinds (C1/C2)
	KindEncodingRange    // payload length does not fit in 3 length bytes
	KindValueOutOfRange  // numeric value outside the variant's range
	KindValueCount       // too many values for a fixed-count container
	KindTypeMismatch     // assignment is not compatible with the declared type
	KindFormatMismatch   // wire format code disagrees with a fixed decoder
	KindFormatNotAllowed // wire format code not in a Dynamic's allowed set
	KindEncodingError    // charset encode/decode failure
	KindValueNotSupported

	// Transport kinds (C3/C4)
	KindConnectFailed
	KindSendFailed
	KindConnectionClosed

	// Session kinds (C5)
	KindTimeout
	KindNotSelected
	KindInvalidSType
	KindRejectedByPeer

	// State machine kinds (C6)
	KindInvalidTransition
	KindTransitionInProgress
)

var kindNames = map[Kind]string{
	KindEncodingRange:        "encoding range",
	KindValueOutOfRange:      "value out of range",
	KindValueCount:           "value count",
	KindTypeMismatch:         "type mismatch",
	KindFormatMismatch:       "format mismatch",
	KindFormatNotAllowed:     "format not allowed",
	KindEncodingError:        "encoding error",
	KindValueNotSupported:    "value not supported",
	KindConnectFailed:        "connect failed",
	KindSendFailed:           "send failed",
	KindConnectionClosed:     "connection closed",
	KindTimeout:              "timeout",
	KindNotSelected:          "not selected",
	KindInvalidSType:         "invalid stype",
	KindRejectedByPeer:       "rejected by peer",
	KindInvalidTransition:    "invalid transition",
	KindTransitionInProgress: "transition in progress",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is a typed driver error. It wraps an optional cause so callers can
// still reach the original error with errors.Unwrap.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

// New creates a *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a *Error of the given kind, chaining cause for errors.Unwrap.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Kind returns the error's taxonomy kind.
func (e *Error) Kind() Kind { return e.kind }

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, secserr.New(KindX, "")) match purely on kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == other.kind
}

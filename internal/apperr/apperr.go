// Package apperr classifies the error taxonomy every component reports
// through, so callers can branch on kind instead of matching strings.
package apperr

import "errors"

// Kind is the coarse error taxonomy from the appliance's error handling
// design: resource-absent conditions recover onto a fallback, transient
// I/O logs and continues, protocol violations drop the current message
// and resynchronise, heap corruption refuses the offending operation,
// and fatal errors stop everything but the Guru Meditation banner.
type Kind int

const (
	KindUnknown Kind = iota
	KindResourceAbsent
	KindTransientIO
	KindProtocolViolation
	KindCorruption
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindResourceAbsent:
		return "resource-absent"
	case KindTransientIO:
		return "transient-io"
	case KindProtocolViolation:
		return "protocol-violation"
	case KindCorruption:
		return "corruption"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so the taxonomy survives
// fmt.Errorf("...: %w", err) wrapping.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}

	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error for operation op.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}

	return false
}

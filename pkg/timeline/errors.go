package timeline

import (
	"errors"
	"fmt"
)

// Decode failure kinds. A *DecodeError matches exactly one of them with errors.Is.
var (
	ErrMalformedHeader   = errors.New("malformed header")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInvalidResolution = errors.New("invalid resolution")
	ErrTruncatedTrack    = errors.New("truncated track")
)

// ErrAlreadyParsed is returned when Parse is called a second time on a session.
var ErrAlreadyParsed = errors.New("session already parsed")

// DecodeError describes why a file could not be decoded.
// Track and Offset are -1 when unknown.
type DecodeError struct {
	Kind   error
	Track  int
	Offset int
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := e.Kind.Error()
	if e.Track >= 0 {
		msg += fmt.Sprintf(" (track %d)", e.Track)
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at byte %d", e.Offset)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the kind of this error.
func (e *DecodeError) Is(target error) bool {
	return target == e.Kind
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func headerError(kind error, offset int, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Track: -1, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

func trackError(track, offset int, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: ErrTruncatedTrack, Track: track, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

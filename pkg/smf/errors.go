package smf

import (
	"errors"
	"fmt"
)

// ErrorType classifies a decode failure.
type ErrorType string

const (
	// ErrorIO covers failures of the underlying reader: missing file, short read.
	ErrorIO ErrorType = "IO"
	// ErrorFormat covers structural violations of the SMF container or of a
	// track's event stream. Always fatal for the whole parse.
	ErrorFormat ErrorType = "FORMAT"
)

// ErrNotParsed is returned by consumers that need a header when the parser has
// not completed a parse yet.
var ErrNotParsed = errors.New("smf: no file has been parsed")

// noTrack marks a ParseError that is not tied to a particular track chunk.
const noTrack = -1

// ParseError is returned by Parse and ParseFile.
// Truncated or corrupt trailing track data is never reported here; decoding of
// the affected track just stops early.
type ParseError struct {
	Type    ErrorType
	Message string
	Track   int   // Track index if available, -1 otherwise
	Err     error // Underlying cause, if any
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := e.Message
	if e.Track >= 0 {
		msg = fmt.Sprintf("%s (track %d)", msg, e.Track)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

// Unwrap returns the underlying cause so errors.Is can see io.ErrUnexpectedEOF,
// fs.ErrNotExist and friends.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func newIOError(message string, err error) *ParseError {
	return &ParseError{Type: ErrorIO, Message: message, Track: noTrack, Err: err}
}

func newTrackIOError(track int, message string, err error) *ParseError {
	return &ParseError{Type: ErrorIO, Message: message, Track: track, Err: err}
}

func newFormatError(message string) *ParseError {
	return &ParseError{Type: ErrorFormat, Message: message, Track: noTrack}
}

func newTrackFormatError(track int, message string) *ParseError {
	return &ParseError{Type: ErrorFormat, Message: message, Track: track}
}

// IsIOError reports whether err is (or wraps) an IO ParseError.
func IsIOError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Type == ErrorIO
}

// IsFormatError reports whether err is (or wraps) a FORMAT ParseError.
func IsFormatError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Type == ErrorFormat
}

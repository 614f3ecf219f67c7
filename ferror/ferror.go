// Package ferror defines the closed set of error kinds returned by every
// layer of the decoder: bit reader, metadata parser, frame decoder, and the
// stream-level API. Keeping the kinds in their own package lets internal/bits,
// meta, and frame report them without importing the root package.
package ferror

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// UnexpectedEof indicates the byte source was exhausted while bits were
// still required to satisfy a read already in progress. Distinct from a
// clean end-of-stream, which callers observe as io.EOF from BlockReader.Next.
type UnexpectedEof struct {
	cause error
}

// NewUnexpectedEof wraps cause, the underlying read error that triggered it.
func NewUnexpectedEof(cause error) *UnexpectedEof {
	return &UnexpectedEof{cause: cause}
}

func (e *UnexpectedEof) Error() string { return "flac: unexpected end of stream" }
func (e *UnexpectedEof) Unwrap() error { return e.cause }

// FormatError reports a structural violation of the FLAC bitstream: a bad
// sync code, an illegal field combination, a reserved value, a non-minimal
// variable-length encoding, or a CRC mismatch.
type FormatError struct {
	Reason string
}

// NewFormat builds a FormatError from a format string, in the style of
// fmt.Errorf.
func NewFormat(format string, args ...interface{}) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

func (e *FormatError) Error() string { return "flac: malformed stream: " + e.Reason }

// Unsupported reports a legal FLAC feature or configuration this decoder
// does not implement.
type Unsupported struct {
	Reason string
}

// NewUnsupported builds an Unsupported error from a format string.
func NewUnsupported(format string, args ...interface{}) *Unsupported {
	return &Unsupported{Reason: fmt.Sprintf(format, args...)}
}

func (e *Unsupported) Error() string { return "flac: unsupported: " + e.Reason }

// Io wraps an opaque error surfaced by the caller-supplied byte source, as
// opposed to a problem with the bitstream itself.
type Io struct {
	cause error
}

// NewIo wraps cause with call-site context via github.com/pkg/errors.
func NewIo(cause error) *Io {
	return &Io{cause: errors.Wrap(cause, "flac: byte source")}
}

func (e *Io) Error() string { return e.cause.Error() }
func (e *Io) Unwrap() error { return e.cause }

// FromRead classifies an error returned by a read against the byte source:
// nil stays nil, io.EOF/io.ErrUnexpectedEOF become UnexpectedEof (the read
// was mid-field, not at a frame boundary), anything else becomes Io.
func FromRead(err error) error {
	switch {
	case err == nil:
		return nil
	case err == io.EOF, err == io.ErrUnexpectedEOF:
		return NewUnexpectedEof(err)
	default:
		return NewIo(err)
	}
}

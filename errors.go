package bgen

import (
	"errors"
	"fmt"
)

// Error kinds reported while decoding. Every DecodeError matches exactly one
// of these through errors.Is.
var (
	ErrBadMagic               = errors.New("bad magic number")
	ErrHeaderAlreadyRead      = errors.New("header was already read")
	ErrUnsupportedLayout      = errors.New("unsupported layout")
	ErrUnsupportedCompression = errors.New("unsupported compression")
	ErrCorruptBlock           = errors.New("corrupt block")
	ErrSampleCountMismatch    = errors.New("sample count mismatch")
	ErrBadPloidy              = errors.New("bad ploidy")
	ErrBadBitWidth            = errors.New("bad bit width")
	ErrIntegerOverflow        = errors.New("integer overflow")
	ErrRead                   = errors.New("read failure")
)

// DecodeError describes a decode failure along with the byte offset, relative
// to the start of the source, at which it was detected.
type DecodeError struct {
	Kind   error
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("bgen: %v at byte %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("bgen: %v at byte %d: %v", e.Kind, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == e.Kind
}

func newDecodeError(kind error, offset int64, format string, args ...interface{}) *DecodeError {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &DecodeError{Kind: kind, Offset: offset, Err: err}
}

package bgen

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Fields longer than this are read incrementally so that a corrupt length
// prefix cannot force a huge allocation before the shortfall is noticed.
const maxPreallocatedField = 1 << 20

// source is a strictly forward byte reader that remembers how many bytes it
// has consumed, so that failures can be reported with their offset.
type source struct {
	r       io.Reader
	offset  int64
	scratch [8]byte
}

func newSource(r io.Reader, offset int64) *source {
	return &source{r: r, offset: offset}
}

// fill reads exactly len(p) bytes. It returns io.EOF if no byte was available
// and io.ErrUnexpectedEOF if the source ran dry partway through.
func (s *source) fill(p []byte) error {
	n, err := io.ReadFull(s.r, p)
	s.offset += int64(n)
	return err
}

// wrap converts a read failure at offset into a DecodeError. Running out of
// input inside a field is always corruption.
func (s *source) wrap(err error, offset int64) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return newDecodeError(ErrCorruptBlock, offset, "unexpected end of input")
	}
	return &DecodeError{Kind: ErrRead, Offset: offset, Err: err}
}

func (s *source) field(n int) ([]byte, error) {
	start := s.offset
	if err := s.fill(s.scratch[:n]); err != nil {
		return nil, s.wrap(err, start)
	}
	return s.scratch[:n], nil
}

func (s *source) uint8() (uint8, error) {
	b, err := s.field(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *source) uint16() (uint16, error) {
	b, err := s.field(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (s *source) uint32() (uint32, error) {
	b, err := s.field(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// bytes reads n bytes into a freshly allocated slice owned by the caller.
func (s *source) bytes(n uint64) ([]byte, error) {
	start := s.offset
	if n > math.MaxInt {
		return nil, newDecodeError(ErrIntegerOverflow, start, "length %d is not representable", n)
	}

	if n <= maxPreallocatedField {
		buf := make([]byte, n)
		if n == 0 {
			return buf, nil
		}
		if err := s.fill(buf); err != nil {
			return nil, s.wrap(err, start)
		}
		return buf, nil
	}

	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, s.r, int64(n))
	s.offset += copied
	if err != nil {
		return nil, s.wrap(err, start)
	}
	return buf.Bytes(), nil
}

// string16 reads a string prefixed by its uint16 length.
func (s *source) string16() (string, error) {
	n, err := s.uint16()
	if err != nil {
		return "", err
	}
	b, err := s.bytes(uint64(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// string32 reads a string prefixed by its uint32 length.
func (s *source) string32() (string, error) {
	n, err := s.uint32()
	if err != nil {
		return "", err
	}
	b, err := s.bytes(uint64(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *source) discard(n int64) error {
	start := s.offset
	skipped, err := io.CopyN(io.Discard, s.r, n)
	s.offset += skipped
	if err != nil {
		return s.wrap(err, start)
	}
	return nil
}

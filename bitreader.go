package bgen

import (
	"fmt"
	"io"
)

// Via https://play.golang.org/p/rn0bAjeEGtK, extended with a least significant
// bit first order.

type bitOrder uint8

const (
	// msbFirst yields bit 7 of each byte first, and the first bit read is the
	// most significant bit of a multi-bit value.
	msbFirst bitOrder = iota

	// lsbFirst yields bit 0 of each byte first, and the first bit read is the
	// least significant bit of a multi-bit value. BGEN probabilities are packed
	// this way.
	lsbFirst
)

type bitReader struct {
	reader io.ByteReader
	order  bitOrder
	byte   byte
	offset byte // Bits of byte already consumed; 8 means a new byte is needed
}

func newBitReader(r io.ByteReader) *bitReader {
	return &bitReader{reader: r, order: msbFirst, offset: 8}
}

func newLSBBitReader(r io.ByteReader) *bitReader {
	return &bitReader{reader: r, order: lsbFirst, offset: 8}
}

func (r *bitReader) ReadBit() (bool, error) {
	if r.offset == 8 {
		b, err := r.reader.ReadByte()
		if err != nil {
			return false, err
		}
		r.byte = b
		r.offset = 0
	}

	var bit bool
	if r.order == lsbFirst {
		bit = (r.byte>>r.offset)&1 != 0
	} else {
		bit = (r.byte & (0x80 >> r.offset)) != 0
	}
	r.offset++
	return bit, nil
}

// ReadUint reads nbits bits and composes them into an unsigned integer. If the
// reader is exhausted before the first bit, io.EOF is returned; if it runs out
// partway through, io.ErrUnexpectedEOF is returned. Bits are never padded.
func (r *bitReader) ReadUint(nbits int) (uint64, error) {
	if nbits < 0 || nbits > 64 {
		return 0, fmt.Errorf("cannot read %d bits into a uint64", nbits)
	}

	var result uint64
	for i := 0; i < nbits; {
		// Whole bytes can be taken at once when aligned in lsbFirst order
		if r.order == lsbFirst && r.offset == 8 && nbits-i >= 8 {
			b, err := r.reader.ReadByte()
			if err != nil {
				return 0, r.eof(err, i)
			}
			result |= uint64(b) << uint(i)
			i += 8
			continue
		}

		bit, err := r.ReadBit()
		if err != nil {
			return 0, r.eof(err, i)
		}
		if bit {
			if r.order == lsbFirst {
				result |= 1 << uint(i)
			} else {
				result |= 1 << uint(nbits-1-i)
			}
		}
		i++
	}

	return result, nil
}

// Skip consumes nbits bits without interpreting them.
func (r *bitReader) Skip(nbits int) error {
	for nbits > 0 {
		n := nbits
		if n > 64 {
			n = 64
		}
		if _, err := r.ReadUint(n); err != nil {
			return err
		}
		nbits -= n
	}
	return nil
}

func (r *bitReader) eof(err error, bitsRead int) error {
	if err == io.EOF && bitsRead > 0 {
		return io.ErrUnexpectedEOF
	}
	return err
}

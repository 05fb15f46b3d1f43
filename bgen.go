package bgen

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/carbocation/pfx"
)

// BGENVersion is the supported version of the BGEN file format
const BGENVersion = "1.2"

const readBufferSize = 1 << 16

// BGEN is the main object used for parsing BGEN files on disk. Its header is
// parsed once by Open; variants are then read either sequentially, with
// NewVariantReader, or at known offsets, with ReadAt.
type BGEN struct {
	FilePath string
	File     *os.File
	Header   FileHeader
}

// Open attempts to read a bgen file located at path. If successful,
// this returns a new BGEN object. Otherwise, it returns an error.
func Open(path string) (*BGEN, error) {
	b := &BGEN{
		FilePath: path,
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	b.File = file

	h, err := NewDecoder(bufio.NewReaderSize(file, readBufferSize)).ReadHeader()
	if err != nil {
		file.Close()
		return nil, pfx.Err(err)
	}
	b.Header = *h

	return b, nil
}

func (b *BGEN) Close() error {
	if b.File == nil {
		return nil
	}
	return b.File.Close()
}

// ReadAt decodes the single variant whose data block begins at offset, such as
// the file_start_position of a BGI index row. It does not disturb readers
// created by NewVariantReader and is safe for concurrent use.
func (b *BGEN) ReadAt(offset int64) (*Variant, error) {
	d, err := b.decoderAt(offset)
	if err != nil {
		return nil, pfx.Err(err)
	}

	v, err := d.ReadVariant()
	if err == io.EOF {
		return nil, pfx.Err(io.ErrUnexpectedEOF)
	} else if err != nil {
		return nil, pfx.Err(err)
	}

	if _, err := d.ReadGenotypeBlock(v); err != nil {
		return nil, pfx.Err(err)
	}

	return v, nil
}

// decoderAt returns a Decoder with its own cursor positioned at offset.
func (b *BGEN) decoderAt(offset int64) (*Decoder, error) {
	if b.File == nil {
		return nil, fmt.Errorf("b.File is nil")
	}

	section := io.NewSectionReader(b.File, offset, math.MaxInt64-offset)
	return newDecoderAt(bufio.NewReaderSize(section, readBufferSize), offset, &b.Header)
}

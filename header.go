package bgen

import (
	"bytes"
	"encoding/binary"
	"io"
)

// MagicNumber contains the value required to confirm that a file is BGEN-conformant
const MagicNumber = "bgen"

const (
	offsetVariant        = 0
	offsetHeaderLength   = 4
	offsetNumberVariants = 8
	offsetNumberSamples  = 12
	offsetMagicNumber    = 16
	offsetFreeStorage    = 20
)

const (
	flagCompressionMask = 3
	flagLayoutMask      = 15 << 2
	flagLayoutShift     = 2
	flagSampleIDs       = 1 << 31
)

// FileHeader holds the layout parameters established by the header block,
// along with the sample identifiers if the file carries them. It is read once
// per stream and is not modified afterwards.
type FileHeader struct {
	VariantBlockOffset uint32
	HeaderBlockSize    uint32
	NVariants          uint64
	NSamplesDeclared   uint32
	Magic              [4]byte
	Flags              uint32

	Compression  Compression
	Layout       Layout
	HasSampleIDs bool

	// Samples is populated only when HasSampleIDs is set.
	Samples []Sample
}

// NSamples is the number of samples that genotype blocks must describe. When
// the file carries sample identifiers, the identifier block is authoritative.
func (h *FileHeader) NSamples() uint32 {
	if h.HasSampleIDs {
		return uint32(len(h.Samples))
	}
	return h.NSamplesDeclared
}

// VariantsStart is the byte offset of the first variant data block.
func (h *FileHeader) VariantsStart() int64 {
	return int64(h.VariantBlockOffset) + 4
}

// Decoder reads a BGEN container sequentially from an io.Reader. It never
// seeks and holds no state across variants other than the header. A Decoder
// must not be used from more than one goroutine at a time.
type Decoder struct {
	src          *source
	header       *FileHeader
	headerRead   bool
	decompressor Decompressor
}

// NewDecoder returns a Decoder reading from r, which must be positioned at
// the start of the container. No buffering is added; wrap r in a
// bufio.Reader if it is unbuffered.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{src: newSource(r, 0)}
}

// newDecoderAt returns a Decoder that reads variants from r, which is
// positioned at offset bytes into a container described by h.
func newDecoderAt(r io.Reader, offset int64, h *FileHeader) (*Decoder, error) {
	dc, err := NewDecompressor(h.Compression)
	if err != nil {
		return nil, &DecodeError{Kind: ErrUnsupportedCompression, Offset: offset}
	}

	return &Decoder{
		src:          newSource(r, offset),
		header:       h,
		headerRead:   true,
		decompressor: dc,
	}, nil
}

// Header returns the header, or nil if it has not been read successfully.
func (d *Decoder) Header() *FileHeader {
	return d.header
}

// Offset reports how many bytes of the container have been consumed.
func (d *Decoder) Offset() int64 {
	return d.src.offset
}

// ReadHeader parses the header block and the optional sample identifier
// block, leaving the source at the first variant data block. It may be called
// only once per Decoder.
func (d *Decoder) ReadHeader() (*FileHeader, error) {
	if d.headerRead {
		return nil, newDecodeError(ErrHeaderAlreadyRead, d.src.offset, "")
	}
	d.headerRead = true

	h, err := readHeader(d.src)
	if err != nil {
		return nil, err
	}

	dc, err := NewDecompressor(h.Compression)
	if err != nil {
		return nil, &DecodeError{Kind: ErrUnsupportedCompression, Offset: d.src.offset}
	}

	d.header = h
	d.decompressor = dc

	return h, nil
}

func readHeader(s *source) (*FileHeader, error) {
	h := &FileHeader{}
	start := s.offset

	var preamble [offsetFreeStorage]byte
	if err := s.fill(preamble[:offsetMagicNumber]); err != nil {
		return nil, s.wrap(err, start)
	}
	h.VariantBlockOffset = binary.LittleEndian.Uint32(preamble[offsetVariant:])
	h.HeaderBlockSize = binary.LittleEndian.Uint32(preamble[offsetHeaderLength:])
	h.NVariants = uint64(binary.LittleEndian.Uint32(preamble[offsetNumberVariants:]))
	h.NSamplesDeclared = binary.LittleEndian.Uint32(preamble[offsetNumberSamples:])

	magic, err := s.field(4)
	if err != nil {
		return nil, err
	}
	copy(h.Magic[:], magic)
	if string(h.Magic[:]) != MagicNumber && !bytes.Equal(h.Magic[:], []byte{0, 0, 0, 0}) {
		return nil, newDecodeError(ErrBadMagic, start+offsetMagicNumber,
			"expected %q or four zero bytes, found %v", MagicNumber, h.Magic[:])
	}

	if h.HeaderBlockSize < offsetFreeStorage {
		return nil, newDecodeError(ErrCorruptBlock, start+offsetHeaderLength,
			"header block size %d is smaller than the %d byte minimum", h.HeaderBlockSize, offsetFreeStorage)
	}

	// Free data area. This could be used to store, for example, identifying
	// information about the file; it is not retained.
	if err := s.discard(int64(h.HeaderBlockSize) - offsetFreeStorage); err != nil {
		return nil, err
	}

	flagsOffset := s.offset
	if h.Flags, err = s.uint32(); err != nil {
		return nil, err
	}
	h.Compression = Compression(h.Flags & flagCompressionMask)
	h.Layout = Layout((h.Flags & flagLayoutMask) >> flagLayoutShift)
	h.HasSampleIDs = h.Flags&flagSampleIDs != 0

	if h.Compression > CompressionZStandard {
		return nil, newDecodeError(ErrUnsupportedCompression, flagsOffset, "compression type %d", uint32(h.Compression))
	}
	if !h.Layout.valid() {
		return nil, newDecodeError(ErrUnsupportedLayout, flagsOffset, "layout %d", uint32(h.Layout))
	}

	if h.HasSampleIDs {
		if h.Samples, err = readSamples(s); err != nil {
			return nil, err
		}
	}

	// Writers may leave a gap between the sample identifiers and the first
	// variant.
	gapOffset := s.offset
	gap := start + h.VariantsStart() - gapOffset
	if gap < 0 {
		return nil, newDecodeError(ErrCorruptBlock, gapOffset,
			"variant data offset %d points inside the header", h.VariantsStart())
	}
	if err := s.discard(gap); err != nil {
		return nil, err
	}

	return h, nil
}

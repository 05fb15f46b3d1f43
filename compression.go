package bgen

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Compression indicates how (and whether) the SNP block probability is compressed
type Compression uint32

const (
	CompressionDisabled Compression = iota
	CompressionZLIB
	CompressionZStandard
)

func (c Compression) String() string {
	switch c {
	case CompressionDisabled:
		return "CompressionDisabled"
	case CompressionZLIB:
		return "CompressionZLIB"
	case CompressionZStandard:
		return "CompressionZStandard"

	default:
		return "Illegal selection"
	}
}

// Decompressor turns the payload of a genotype block into its uncompressed
// form. size is the uncompressed length the block declares: output longer
// than size fails with ErrCorruptBlock before more than size+1 bytes are
// produced. The returned slice never aliases src.
type Decompressor interface {
	Decompress(src []byte, size uint64) ([]byte, error)
}

// NewDecompressor returns the Decompressor for the given compression scheme.
func NewDecompressor(c Compression) (Decompressor, error) {
	switch c {
	case CompressionDisabled:
		return noDecompressor{}, nil
	case CompressionZLIB:
		return zlibDecompressor{}, nil
	case CompressionZStandard:
		return zstdDecompressor{}, nil
	}

	return nil, fmt.Errorf("%w: compression type %d", ErrUnsupportedCompression, uint32(c))
}

type noDecompressor struct{}

func (noDecompressor) Decompress(src []byte, size uint64) ([]byte, error) {
	if uint64(len(src)) > size {
		return nil, fmt.Errorf("%w: %d bytes exceed the declared %d", ErrCorruptBlock, len(src), size)
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

// readBounded reads r to the end, failing once more than size bytes appear.
func readBounded(r io.Reader, size uint64) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, int64(min(size, math.MaxInt64-1))+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
	}
	if uint64(len(out)) > size {
		return nil, fmt.Errorf("%w: output exceeds the declared %d bytes", ErrCorruptBlock, size)
	}
	return out, nil
}

type zlibDecompressor struct{}

func (zlibDecompressor) Decompress(src []byte, size uint64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
	}
	defer zr.Close()

	return readBounded(zr, size)
}

// Streaming decoders are pooled; each is used by one goroutine at a time.
var zstdDecoderPool sync.Pool

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	// Small inputs would otherwise be decoded whole on Reset, bypassing the
	// bound readBounded places on the output.
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecodeBuffersBelow(0))
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

type zstdDecompressor struct{}

// Decompress decompresses Zstd compressed data for bgen13.
func (zstdDecompressor) Decompress(src []byte, size uint64) ([]byte, error) {
	// Reject frames that announce more content than the block declares
	// without inflating anything.
	var fh zstd.Header
	if err := fh.Decode(src); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
	}
	if fh.HasFCS && fh.FrameContentSize > size {
		return nil, fmt.Errorf("%w: frame holds %d bytes, but the block declares %d",
			ErrCorruptBlock, fh.FrameContentSize, size)
	}

	dec, err := getZstdDecoder()
	if err != nil {
		return nil, err
	}
	defer putZstdDecoder(dec)

	if err := dec.Reset(bytes.NewReader(src)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
	}
	return readBounded(dec, size)
}

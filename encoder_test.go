package bgen

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

// The helpers in this file write synthetic BGEN containers for the tests.

type testFile struct {
	magic       string // Defaults to MagicNumber
	layout      Layout
	compression Compression
	nSamples    uint32   // Declared in the header block
	sampleIDs   []string // Written only if non-nil
	freeArea    []byte
	gap         int // Bytes between the sample block and the first variant
	variants    []testVariant
}

type testVariant struct {
	id, rsid, chrom string
	position        uint32
	alleles         []string

	// genotypes is the uncompressed layout 2 genotype data.
	genotypes []byte
}

type testSample struct {
	ploidy  uint8
	missing bool
	values  []uint64 // Every stored fixed point value, in file order
}

type testGenotypes struct {
	nSamples  uint32
	nAlleles  uint16
	minPloidy uint8
	maxPloidy uint8
	phased    bool
	nbits     uint8
	samples   []testSample
}

func (g testGenotypes) bytes() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, g.nSamples)
	binary.Write(&buf, binary.LittleEndian, g.nAlleles)
	buf.WriteByte(g.minPloidy)
	buf.WriteByte(g.maxPloidy)
	for _, s := range g.samples {
		b := s.ploidy
		if s.missing {
			b |= missingFlag
		}
		buf.WriteByte(b)
	}
	if g.phased {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	buf.WriteByte(g.nbits)

	var bw bitWriter
	for _, s := range g.samples {
		for _, v := range s.values {
			bw.write(v, int(g.nbits))
		}
	}
	buf.Write(bw.buf)

	return buf.Bytes()
}

// bitWriter packs values least significant bit first.
type bitWriter struct {
	buf []byte
	n   int
}

func (w *bitWriter) write(v uint64, nbits int) {
	for i := 0; i < nbits; i++ {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if (v>>uint(i))&1 == 1 {
			w.buf[len(w.buf)-1] |= 1 << uint(w.n%8)
		}
		w.n++
	}
}

// quantize converts a group of probabilities that sums to one into the fixed
// point values a writer stores: every member but the last.
// quantize stores all but the last probability in nbits fixed point. Running
// sums are rounded so that the stored values and the implied remainder each
// stay within one unit of their originals.
func quantize(probs []float64, nbits uint8) []uint64 {
	maxValue := float64(uint64(1)<<nbits - 1)
	out := make([]uint64, 0, len(probs)-1)
	var sum float64
	var prev uint64
	for _, p := range probs[:len(probs)-1] {
		sum += p
		cum := uint64(math.Round(sum * maxValue))
		out = append(out, cum-prev)
		prev = cum
	}
	return out
}

func putUint16(buf *bytes.Buffer, v uint16) {
	binary.Write(buf, binary.LittleEndian, v)
}

func putUint32(buf *bytes.Buffer, v uint32) {
	binary.Write(buf, binary.LittleEndian, v)
}

func (f testFile) headerBlockSize() uint32 {
	return uint32(offsetFreeStorage + len(f.freeArea))
}

func (f testFile) sampleBlock() []byte {
	if f.sampleIDs == nil {
		return nil
	}

	var names bytes.Buffer
	for _, id := range f.sampleIDs {
		putUint16(&names, uint16(len(id)))
		names.WriteString(id)
	}

	var buf bytes.Buffer
	putUint32(&buf, uint32(8+names.Len()))
	putUint32(&buf, uint32(len(f.sampleIDs)))
	buf.Write(names.Bytes())
	return buf.Bytes()
}

func (f testFile) flags() uint32 {
	flags := uint32(f.compression) | uint32(f.layout)<<flagLayoutShift
	if f.sampleIDs != nil {
		flags |= flagSampleIDs
	}
	return flags
}

// header returns every byte preceding the first variant.
func (f testFile) header() []byte {
	magic := f.magic
	if magic == "" {
		magic = MagicNumber
	}
	samples := f.sampleBlock()

	var buf bytes.Buffer
	putUint32(&buf, f.headerBlockSize()+uint32(len(samples)+f.gap))
	putUint32(&buf, f.headerBlockSize())
	putUint32(&buf, uint32(len(f.variants)))
	putUint32(&buf, f.nSamples)
	buf.WriteString(magic)
	buf.Write(f.freeArea)
	putUint32(&buf, f.flags())
	buf.Write(samples)
	buf.Write(make([]byte, f.gap))

	return buf.Bytes()
}

func (f testFile) variant(t testing.TB, v testVariant) []byte {
	var buf bytes.Buffer
	if f.layout == Layout1 {
		putUint32(&buf, f.nSamples)
	}
	for _, s := range []string{v.id, v.rsid, v.chrom} {
		putUint16(&buf, uint16(len(s)))
		buf.WriteString(s)
	}
	putUint32(&buf, v.position)
	if f.layout != Layout1 {
		putUint16(&buf, uint16(len(v.alleles)))
	}
	for _, a := range v.alleles {
		putUint32(&buf, uint32(len(a)))
		buf.WriteString(a)
	}

	if f.layout == Layout1 {
		// Stand-in genotype data; layout 1 probabilities are never decoded
		buf.Write(make([]byte, 6*f.nSamples))
		return buf.Bytes()
	}

	switch f.compression {
	case CompressionDisabled:
		putUint32(&buf, uint32(len(v.genotypes)))
		buf.Write(v.genotypes)
	case CompressionZLIB:
		compressed := zlibCompress(t, v.genotypes)
		putUint32(&buf, uint32(len(compressed)+4))
		putUint32(&buf, uint32(len(v.genotypes)))
		buf.Write(compressed)
	case CompressionZStandard:
		compressed := zstdCompress(t, v.genotypes)
		putUint32(&buf, uint32(len(compressed)+4))
		putUint32(&buf, uint32(len(v.genotypes)))
		buf.Write(compressed)
	}

	return buf.Bytes()
}

// bytes returns the whole container along with the offset of each variant.
func (f testFile) bytes(t testing.TB) ([]byte, []int64) {
	buf := bytes.NewBuffer(f.header())
	offsets := make([]int64, 0, len(f.variants))
	for _, v := range f.variants {
		offsets = append(offsets, int64(buf.Len()))
		buf.Write(f.variant(t, v))
	}
	return buf.Bytes(), offsets
}

func zlibCompress(t testing.TB, data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstdCompress(t testing.TB, data []byte) []byte {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

// threeSampleFile is the container used across the tests: three named
// diploid samples with a single biallelic, unphased variant.
func threeSampleFile(compression Compression, samples []testSample) testFile {
	return testFile{
		layout:      Layout2,
		compression: compression,
		nSamples:    3,
		sampleIDs:   []string{"S1", "S2", "S3"},
		variants: []testVariant{{
			id:       "rs1",
			rsid:     "rs1",
			chrom:    "1",
			position: 1000,
			alleles:  []string{"A", "G"},
			genotypes: testGenotypes{
				nSamples:  3,
				nAlleles:  2,
				minPloidy: 2,
				maxPloidy: 2,
				nbits:     8,
				samples:   samples,
			}.bytes(),
		}},
	}
}

// decodeSingle decodes the first variant of f with a fresh Decoder.
func decodeSingle(t testing.TB, f testFile) (*Variant, error) {
	data, _ := f.bytes(t)
	d := NewDecoder(bytes.NewReader(data))
	_, err := d.ReadHeader()
	require.NoError(t, err)

	v, err := d.ReadVariant()
	require.NoError(t, err)

	if _, err := d.ReadGenotypeBlock(v); err != nil {
		return nil, err
	}
	return v, nil
}

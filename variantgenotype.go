package bgen

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	maxPloidy          = 63
	ploidyMask         = 0x7f
	missingFlag        = 0x80
	minProbabilityBits = 1
	maxProbabilityBits = 32

	// n_samples, n_alleles, min_ploidy and max_ploidy
	genotypeScalarsSize = 8
)

// genotypeState is how far decoding of a genotype block has progressed. No
// step is skipped, and a block that fails any step is discarded.
type genotypeState uint8

const (
	genotypeStart genotypeState = iota
	genotypeLengthsRead
	genotypeDecompressed
	genotypeScalarsParsed
	genotypeBitsConsumed
)

// VariantGenotype holds the scalar fields of a layout 2 genotype block while
// its bit-packed probabilities are being unpacked.
type VariantGenotype struct {
	NSamples  uint32
	NAlleles  uint16
	Phased    bool
	NBits     uint8
	MinPloidy uint8
	MaxPloidy uint8
	PLOMiss   []byte // One byte per sample: ploidy in bits 0-6, missingness in bit 7
	Chunk     []byte // The bit-packed probabilities

	state  genotypeState
	ncombs [maxPloidy + 1]int // Unphased genotype count per ploidy; 0 if not yet computed
}

// ReadGenotypeBlock reads, decompresses and unpacks the genotype block that
// follows v, which must be the variant most recently returned by ReadVariant.
// On success the block is also stored in v.Probabilities.
func (d *Decoder) ReadGenotypeBlock(v *Variant) (*Probability, error) {
	if d.header == nil {
		return nil, newDecodeError(ErrCorruptBlock, d.src.offset, "the header has not been read")
	}

	switch d.header.Layout {
	case Layout2:
	case Layout1:
		return nil, newDecodeError(ErrUnsupportedLayout, d.src.offset, "genotype data in %s cannot be decoded", d.header.Layout)
	default:
		return nil, newDecodeError(ErrUnsupportedLayout, d.src.offset, "layout %d", uint32(d.header.Layout))
	}

	s := d.src
	blockStart := s.offset
	vg := &VariantGenotype{state: genotypeStart}

	// The genotype layout data block for Layout2 is guaranteed to have a 4
	// byte chunk that indicates how much data is left for this block.
	totalLength, err := s.uint32()
	if err != nil {
		return nil, err
	}

	var payloadLength, decompressedLength uint64
	if d.header.Compression == CompressionDisabled {
		// If compression is disabled, there is no second 4 byte chunk and the
		// data is exactly as long as the block.
		payloadLength = uint64(totalLength)
		decompressedLength = uint64(totalLength)
	} else {
		// If compression is enabled, a second 4 byte chunk indicates how large
		// the data chunk is after decompression, and it counts against the
		// block length.
		if totalLength < 4 {
			return nil, newDecodeError(ErrCorruptBlock, blockStart, "block length %d cannot hold the decompressed length", totalLength)
		}
		declared, err := s.uint32()
		if err != nil {
			return nil, err
		}
		payloadLength = uint64(totalLength) - 4
		decompressedLength = uint64(declared)
	}
	vg.state = genotypeLengthsRead

	payload, err := s.bytes(payloadLength)
	if err != nil {
		return nil, err
	}

	data, err := d.decompressor.Decompress(payload, decompressedLength)
	if err != nil {
		return nil, &DecodeError{Kind: ErrCorruptBlock, Offset: blockStart, Err: err}
	}
	if uint64(len(data)) != decompressedLength {
		return nil, newDecodeError(ErrCorruptBlock, blockStart,
			"decompressed %d bytes, but the block declares %d", len(data), decompressedLength)
	}
	vg.state = genotypeDecompressed

	p, err := vg.parse(data, d.header.NSamples(), v.NAlleles)
	if err != nil {
		if de, ok := err.(*DecodeError); ok {
			// Offsets within the uncompressed data are reported relative to
			// the block itself.
			return nil, &DecodeError{
				Kind:   de.Kind,
				Offset: blockStart,
				Err:    fmt.Errorf("byte %d of the uncompressed genotype data: %v", de.Offset, de.Err),
			}
		}
		return nil, err
	}

	v.Probabilities = p
	return p, nil
}

// parse interprets the uncompressed genotype data. Errors carry offsets into
// data rather than into the container.
func (vg *VariantGenotype) parse(data []byte, nSamples uint32, nAlleles uint16) (*Probability, error) {
	if vg.state != genotypeDecompressed {
		return nil, fmt.Errorf("genotype data parsed out of order")
	}

	if err := vg.parseScalars(data, nSamples, nAlleles); err != nil {
		return nil, err
	}

	p, err := vg.unpack(int64(len(data) - len(vg.Chunk)))
	if err != nil {
		return nil, err
	}
	vg.state = genotypeBitsConsumed

	return p, nil
}

func (vg *VariantGenotype) parseScalars(data []byte, nSamples uint32, nAlleles uint16) error {
	if len(data) < genotypeScalarsSize {
		return newDecodeError(ErrCorruptBlock, 0, "genotype data is only %d bytes", len(data))
	}

	vg.NSamples = binary.LittleEndian.Uint32(data[0:4])
	if vg.NSamples != nSamples {
		return newDecodeError(ErrSampleCountMismatch, 0, "block has %d samples, header has %d", vg.NSamples, nSamples)
	}

	vg.NAlleles = binary.LittleEndian.Uint16(data[4:6])
	if vg.NAlleles == 0 || vg.NAlleles != nAlleles {
		return newDecodeError(ErrCorruptBlock, 4, "block has %d alleles, variant has %d", vg.NAlleles, nAlleles)
	}

	vg.MinPloidy = data[6]
	if vg.MinPloidy > maxPloidy {
		return newDecodeError(ErrBadPloidy, 6, "minimum ploidy %d exceeds %d", vg.MinPloidy, maxPloidy)
	}
	vg.MaxPloidy = data[7]
	if vg.MaxPloidy > maxPloidy || vg.MaxPloidy < vg.MinPloidy {
		return newDecodeError(ErrBadPloidy, 7, "maximum ploidy %d is outside [%d, %d]", vg.MaxPloidy, vg.MinPloidy, maxPloidy)
	}

	// The per-sample bytes, the phased flag and the bit width must all be
	// present before the probabilities begin.
	pos := uint64(genotypeScalarsSize)
	if uint64(len(data)) < pos+uint64(vg.NSamples)+2 {
		return newDecodeError(ErrCorruptBlock, int64(pos), "genotype data is too short for %d samples", vg.NSamples)
	}

	vg.PLOMiss = data[pos : pos+uint64(vg.NSamples)]
	for i, b := range vg.PLOMiss {
		if ploidy := b & ploidyMask; ploidy < vg.MinPloidy || ploidy > vg.MaxPloidy {
			return newDecodeError(ErrBadPloidy, int64(pos)+int64(i),
				"sample %d has ploidy %d, outside [%d, %d]", i, ploidy, vg.MinPloidy, vg.MaxPloidy)
		}
	}
	pos += uint64(vg.NSamples)

	switch data[pos] {
	case 0:
		vg.Phased = false
	case 1:
		vg.Phased = true
	default:
		return newDecodeError(ErrCorruptBlock, int64(pos), "phased flag is %d", data[pos])
	}
	pos++

	vg.NBits = data[pos]
	if vg.NBits < minProbabilityBits || vg.NBits > maxProbabilityBits {
		return newDecodeError(ErrBadBitWidth, int64(pos), "%d bits per probability", vg.NBits)
	}
	pos++

	vg.Chunk = data[pos:]
	vg.state = genotypeScalarsParsed

	return nil
}

// unpack reconstructs each sample's probabilities from the bit-packed chunk.
// Every group of probabilities that sums to one stores all but its last
// member; the last is whatever remains of 2^B-1 in fixed point, so closure
// does not depend on floating point rounding.
func (vg *VariantGenotype) unpack(chunkOffset int64) (*Probability, error) {
	if vg.state != genotypeScalarsParsed {
		return nil, fmt.Errorf("genotype probabilities unpacked out of order")
	}

	p := &Probability{
		NSamples:            vg.NSamples,
		NAlleles:            vg.NAlleles,
		MinimumPloidy:       vg.MinPloidy,
		MaximumPloidy:       vg.MaxPloidy,
		Phased:              vg.Phased,
		NProbabilityBits:    vg.NBits,
		SampleProbabilities: make([]*SampleProbability, 0, len(vg.PLOMiss)),
	}

	nbits := int(vg.NBits)
	maxValue := uint64(1)<<vg.NBits - 1
	denominator := float64(maxValue)

	available := int64(len(vg.Chunk)) * 8
	var consumed int64

	br := newLSBBitReader(bytes.NewReader(vg.Chunk))
	for i, b := range vg.PLOMiss {
		ploidy := b & ploidyMask
		missing := b&missingFlag != 0

		groups, groupSize, err := vg.groupShape(ploidy, chunkOffset+consumed/8)
		if err != nil {
			return nil, err
		}

		// Check the bits are there before allocating anything for them. The
		// division keeps the comparison free of overflow.
		stored := int64(groups) * int64(groupSize-1)
		if stored > (available-consumed)/int64(nbits) {
			return nil, newDecodeError(ErrCorruptBlock, chunkOffset+consumed/8,
				"probability data ends before sample %d", i)
		}
		at := chunkOffset + consumed/8
		consumed += stored * int64(nbits)

		sp := &SampleProbability{
			Missing:       missing,
			Ploidy:        ploidy,
			Probabilities: make([]float64, groups*groupSize),
		}

		if missing {
			// Missing samples still occupy their bits, so skip them to keep
			// the following samples aligned.
			for k := range sp.Probabilities {
				sp.Probabilities[k] = math.NaN()
			}
			if err := br.Skip(int(stored) * nbits); err != nil {
				return nil, newDecodeError(ErrCorruptBlock, at, "sample %d: %v", i, err)
			}
			p.SampleProbabilities = append(p.SampleProbabilities, sp)
			continue
		}

		for g := 0; g < groups; g++ {
			group := sp.Probabilities[g*groupSize : (g+1)*groupSize]

			var sum uint64
			last := len(group) - 1
			for k := 0; k < last; k++ {
				u, err := br.ReadUint(nbits)
				if err != nil {
					return nil, newDecodeError(ErrCorruptBlock, at, "sample %d: %v", i, err)
				}
				sum += u
				group[k] = float64(u) / denominator
			}
			if sum > maxValue {
				return nil, newDecodeError(ErrCorruptBlock, at,
					"sample %d: probabilities sum to %d/%d", i, sum, maxValue)
			}
			group[last] = float64(maxValue-sum) / denominator
		}

		p.SampleProbabilities = append(p.SampleProbabilities, sp)
	}

	return p, nil
}

// groupShape reports how a sample's probabilities are grouped: phased samples
// have one group of NAlleles per haplotype, unphased samples a single group
// with one member per possible genotype. at locates the sample's bits for
// error reporting.
func (vg *VariantGenotype) groupShape(ploidy uint8, at int64) (groups, groupSize int, err error) {
	if vg.Phased {
		return int(ploidy), int(vg.NAlleles), nil
	}

	if vg.ncombs[ploidy] == 0 {
		n := genotypeCount(int(ploidy), int(vg.NAlleles))
		if n < 0 {
			return 0, 0, newDecodeError(ErrIntegerOverflow, at,
				"genotype count for ploidy %d and %d alleles", ploidy, vg.NAlleles)
		}
		vg.ncombs[ploidy] = n
	}

	return 1, vg.ncombs[ploidy], nil
}

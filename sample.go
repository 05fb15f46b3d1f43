package bgen

import (
	"fmt"

	"github.com/carbocation/pfx"
)

type Sample struct {
	SampleID string
}

// ReadSamples returns the sample identifiers stored in the header of b, in
// file order.
func ReadSamples(b *BGEN) ([]Sample, error) {
	if b.File == nil {
		return nil, pfx.Err(fmt.Errorf("b.File is nil"))
	}

	if !b.Header.HasSampleIDs {
		return nil, pfx.Err(fmt.Errorf("This file indicates that it does not have sample IDs"))
	}

	out := make([]Sample, len(b.Header.Samples))
	copy(out, b.Header.Samples)

	return out, nil
}

// readSamples parses the sample identifier block that follows the header
// block. The count stored in this block, not the count declared in the
// header block, is returned.
func readSamples(s *source) ([]Sample, error) {
	// The block length is not needed: every name carries its own length.
	if _, err := s.uint32(); err != nil {
		return nil, err
	}

	nSamples, err := s.uint32()
	if err != nil {
		return nil, err
	}

	// Capacity is bounded since each name needs at least two bytes on disk.
	capacity := nSamples
	if capacity > 1<<16 {
		capacity = 1 << 16
	}
	samples := make([]Sample, 0, int(capacity))

	for i := uint32(0); i < nSamples; i++ {
		id, err := s.string16()
		if err != nil {
			return nil, err
		}
		samples = append(samples, Sample{SampleID: id})
	}

	return samples, nil
}

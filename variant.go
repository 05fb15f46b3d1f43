package bgen

import "io"

// Allele is one allele of a variant, e.g. "A" or "GTT".
type Allele string

func (a Allele) String() string {
	return string(a)
}

type Variant struct {
	ID         string
	RSID       string
	Chromosome string
	Position   uint32
	NAlleles   uint16
	Alleles    []Allele

	// Probabilities is the decoded genotype block. It is nil for a variant
	// returned by Decoder.ReadVariant until ReadGenotypeBlock is called.
	Probabilities *Probability

	// Offset is the byte offset at which the variant data block begins.
	Offset int64
}

// ReadVariant reads the identifying fields of the next variant. At a clean end
// of input, between variants, it returns (nil, io.EOF). The genotype block
// that follows must be consumed with ReadGenotypeBlock before the next call.
func (d *Decoder) ReadVariant() (*Variant, error) {
	if d.header == nil {
		return nil, newDecodeError(ErrCorruptBlock, d.src.offset, "the header has not been read")
	}

	s := d.src
	v := &Variant{Offset: s.offset}

	// The first field tells a clean end of input apart from a truncated one.
	var firstWidth int
	switch d.header.Layout {
	case Layout1:
		// Layout1 repeats the sample count ahead of every variant
		firstWidth = 4
	case Layout2:
		firstWidth = 2
	default:
		return nil, newDecodeError(ErrUnsupportedLayout, s.offset, "layout %d", uint32(d.header.Layout))
	}

	first := s.scratch[:firstWidth]
	if err := s.fill(first); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, s.wrap(err, v.Offset)
	}

	var err error
	if d.header.Layout == Layout1 {
		if v.ID, err = s.string16(); err != nil {
			return nil, err
		}
	} else {
		idLength := uint64(first[0]) | uint64(first[1])<<8
		id, err := s.bytes(idLength)
		if err != nil {
			return nil, err
		}
		v.ID = string(id)
	}

	if v.RSID, err = s.string16(); err != nil {
		return nil, err
	}
	if v.Chromosome, err = s.string16(); err != nil {
		return nil, err
	}
	if v.Position, err = s.uint32(); err != nil {
		return nil, err
	}

	// NAlleles
	if d.header.Layout == Layout1 {
		// Assumed to be 2 in Layout1
		v.NAlleles = 2
	} else {
		if v.NAlleles, err = s.uint16(); err != nil {
			return nil, err
		}
	}

	// Alleles carry a 4 byte length, unlike the 2 byte identifier lengths
	v.Alleles = make([]Allele, 0, v.NAlleles)
	for i := uint16(0); i < v.NAlleles; i++ {
		allele, err := s.string32()
		if err != nil {
			return nil, err
		}
		v.Alleles = append(v.Alleles, Allele(allele))
	}

	return v, nil
}

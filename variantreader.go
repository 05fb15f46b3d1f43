package bgen

import (
	"io"
)

// VariantReader yields the variants of a BGEN container one at a time, with
// their genotype probabilities decoded. The header is read on first use.
// After an error the reader stays exhausted: the position in the source can
// no longer be trusted.
type VariantReader struct {
	VariantsSeen uint64
	d            *Decoder
	err          error
	done         bool
}

// NewVariantReader returns a VariantReader over r, which must be positioned at
// the start of the container.
func NewVariantReader(r io.Reader) *VariantReader {
	return &VariantReader{d: NewDecoder(r)}
}

// NewVariantReader returns a reader that streams every variant of b from the
// first variant block onwards. The reader shares b's open file but keeps its
// own position, so several readers may be used concurrently.
func (b *BGEN) NewVariantReader() *VariantReader {
	vr := &VariantReader{}

	d, err := b.decoderAt(b.Header.VariantsStart())
	if err != nil {
		vr.err = err
		vr.done = true
		return vr
	}
	vr.d = d

	return vr
}

// Header returns the container's header, reading it if needed.
func (vr *VariantReader) Header() (*FileHeader, error) {
	if err := vr.ensureHeader(); err != nil {
		return nil, err
	}
	return vr.d.Header(), nil
}

func (vr *VariantReader) Error() error {
	return vr.err
}

// Read returns the next variant, or nil once the input is exhausted or an
// error has occurred. Callers distinguish the two with Error.
func (vr *VariantReader) Read() *Variant {
	if vr.done {
		return nil
	}

	if err := vr.ensureHeader(); err != nil {
		return nil
	}

	v, err := vr.d.ReadVariant()
	if err == io.EOF {
		vr.done = true
		return nil
	}
	if err != nil {
		vr.fail(err)
		return nil
	}

	if _, err := vr.d.ReadGenotypeBlock(v); err != nil {
		vr.fail(err)
		return nil
	}

	vr.VariantsSeen++

	return v
}

func (vr *VariantReader) ensureHeader() error {
	if vr.err != nil {
		return vr.err
	}
	if vr.d.Header() != nil {
		return nil
	}

	if _, err := vr.d.ReadHeader(); err != nil {
		vr.fail(err)
		return err
	}
	return nil
}

func (vr *VariantReader) fail(err error) {
	vr.err = err
	vr.done = true
}

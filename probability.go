package bgen

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Probability is the decoded genotype block of one variant.
type Probability struct {
	NSamples            uint32
	NAlleles            uint16
	MinimumPloidy       uint8
	MaximumPloidy       uint8
	Phased              bool
	NProbabilityBits    uint8 // nbits. Must be 1-32 inclusive (there is no uint4 which would otherwise suffice)
	SampleProbabilities []*SampleProbability
}

// SampleProbability represents the variant data for one specfific individual at
// one specific locus, including information on whether this data is missing,
// what that individual's ploidy is, and then either (1) the probabilities for
// the phased haplotype or (2) the probabilies for the genotypes.
//
// Phased data holds Ploidy consecutive runs of NAlleles probabilities, one run
// per haplotype. Unphased data holds one probability per unordered genotype,
// in colex order. Missing samples hold the same number of slots, all NaN.
type SampleProbability struct {
	Missing       bool
	Ploidy        uint8 // Limited to 0-63
	Probabilities []float64
}

// MissingSamples returns the indices of the samples whose genotype is missing.
func (p *Probability) MissingSamples() *roaring.Bitmap {
	missing := roaring.New()
	for i, sp := range p.SampleProbabilities {
		if sp.Missing {
			missing.Add(uint32(i))
		}
	}
	return missing
}

// Haplotype returns the allele probabilities for haplotype h of a phased
// sample, or nil if h is out of range.
func (sp *SampleProbability) Haplotype(nAlleles uint16, h int) []float64 {
	n := int(nAlleles)
	if h < 0 || h >= int(sp.Ploidy) || (h+1)*n > len(sp.Probabilities) {
		return nil
	}
	return sp.Probabilities[h*n : (h+1)*n]
}

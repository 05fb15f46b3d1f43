package bgen

import (
	"fmt"

	"github.com/carbocation/genomisc"
)

// BIMRow projects a biallelic variant onto a row of a PLINK .bim file. The
// RSID is used as the variant ID when present.
func (v *Variant) BIMRow() (genomisc.BIMRow, error) {
	if len(v.Alleles) != 2 {
		return genomisc.BIMRow{}, fmt.Errorf("variant %s has %d alleles; a BIM row needs exactly 2", v.ID, len(v.Alleles))
	}

	id := v.RSID
	if id == "" {
		id = v.ID
	}

	return genomisc.BIMRow{
		Chromosome: v.Chromosome,
		Coordinate: v.Position,
		VariantID:  id,
		Allele1:    v.Alleles[0].String(),
		Allele2:    v.Alleles[1].String(),
	}, nil
}

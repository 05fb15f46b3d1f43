package main

import (
	"flag"
	"fmt"
	"log"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/carbocation/bgen/v2"
	"github.com/carbocation/pfx"
	"github.com/kelseyhightower/envconfig"
)

type config struct {
	Path    string `envconfig:"BGEN_PATH"`
	BGIPath string `envconfig:"BGEN_BGI_PATH"`
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalln(pfx.Err(err))
	}

	path := flag.String("bgen", cfg.Path, "Filename of the bgen file to process")
	idxPath := flag.String("bgi", cfg.BGIPath, "Filename of the bgi (index) file to process")
	rsID := flag.String("snp", "", "If set, print only the variant with this RSID")
	region := flag.String("region", "", "If set, print only the variants in chr:start-end")
	flag.Parse()

	if *path == "" {
		flag.PrintDefaults()
		log.Fatalln("No bgen file found")
	}

	*path = expandHome(*path)
	if *idxPath == "" {
		*idxPath = *path + ".bgi"
	}
	*idxPath = expandHome(*idxPath)

	log.Println("Opening bgen:", *path)
	bg, err := bgen.Open(*path)
	if err != nil {
		log.Fatalln(err)
	}
	defer bg.Close()

	bgi, err := bgen.OpenBGI(*idxPath)
	if err != nil {
		log.Fatalln(err)
	}
	defer bgi.Close()
	bgi.Metadata.FirstThousandBytes = nil

	log.Printf("BGI Metadata: %+v\n", bgi.Metadata)
	log.Printf("BGEN header: %+v\n", bg.Header)

	var rows []bgen.VariantIndex
	switch {
	case *rsID != "":
		row, err := bgi.FindVariant(*rsID)
		if err != nil {
			log.Fatalln(err)
		}
		rows = append(rows, row)
	case *region != "":
		chrom, start, end, err := parseRegion(*region)
		if err != nil {
			log.Fatalln(err)
		}
		if rows, err = bgi.VariantsInRegion(chrom, start, end); err != nil {
			log.Fatalln(err)
		}
	default:
		if err := bgi.DB.Select(&rows, "SELECT * FROM Variant ORDER BY chromosome ASC, position ASC"); err != nil {
			log.Fatalln(err)
		}
	}

	log.Println("Saw indexes for", len(rows), "variants")

	fmt.Printf("chr\tpos\trsid\ta0\ta1\ta0_dosage\ta1_dosage\tmissing\n")
	for _, row := range rows {
		v, err := bg.ReadAt(int64(row.FileStartPosition))
		if err != nil {
			log.Fatalln(err)
		}

		bim, err := v.BIMRow()
		if err != nil {
			log.Println("Skipping", v.ID, err)
			continue
		}

		a0, a1 := dosages(v)
		fmt.Printf("%s\t%d\t%s\t%s\t%s\t%f\t%f\t%d\n", bim.Chromosome, bim.Coordinate, bim.VariantID,
			bim.Allele1, bim.Allele2, a0, a1, v.Probabilities.MissingSamples().GetCardinality())
	}
}

// dosages sums the expected allele counts of an unphased diploid biallelic
// variant across all non-missing samples.
func dosages(v *bgen.Variant) (a0, a1 float64) {
	for _, prob := range v.Probabilities.SampleProbabilities {
		if prob.Missing || v.Probabilities.Phased || prob.Ploidy != 2 {
			continue
		}
		a0 += 2*prob.Probabilities[0] + prob.Probabilities[1]
		a1 += prob.Probabilities[1] + 2*prob.Probabilities[2]
	}
	return
}

func parseRegion(region string) (string, uint32, uint32, error) {
	var start, end uint32
	chrom, span, found := strings.Cut(region, ":")
	if !found {
		return "", 0, 0, fmt.Errorf("region %q is not of the form chr:start-end", region)
	}
	if _, err := fmt.Sscanf(span, "%d-%d", &start, &end); err != nil {
		return "", 0, 0, pfx.Err(err)
	}
	return chrom, start, end, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}
	return filepath.Join(usr.HomeDir, path[2:])
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/carbocation/bgen/v2"
	"github.com/carbocation/pfx"
	"github.com/kelseyhightower/envconfig"
)

type config struct {
	Path  string `envconfig:"BGEN_PATH" default:"example.bgen"`
	Limit int    `envconfig:"BGEN_LIMIT" default:"10"`
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalln(pfx.Err(err))
	}

	path := flag.String("filename", cfg.Path, "Filename of the bgen file to process. gs:// URIs are streamed from Google Cloud Storage")
	limit := flag.Int("limit", cfg.Limit, "Number of variants to print")
	flag.Parse()

	if strings.HasPrefix(*path, "~/") {
		usr, err := user.Current()
		if err != nil {
			log.Fatalln(pfx.Err(err))
		}
		*path = filepath.Join(usr.HomeDir, (*path)[2:])
	}

	var vr *bgen.VariantReader
	if bgen.IsGCSPath(*path) {
		g, err := bgen.OpenGCS(context.Background(), *path)
		if err != nil {
			log.Fatalln(err)
		}
		defer g.Close()
		vr = g.VariantReader
	} else {
		f, err := os.Open(*path)
		if err != nil {
			log.Fatalln(pfx.Err(err))
		}
		defer f.Close()
		vr = bgen.NewVariantReader(bufio.NewReader(f))
	}

	header, err := vr.Header()
	if err != nil {
		log.Fatalln(err)
	}
	log.Printf("Layout: %s Compression: %s Variants: %d Samples: %d\n",
		header.Layout, header.Compression, header.NVariants, header.NSamples())

	for i, sample := range header.Samples {
		if i >= *limit {
			break
		}
		fmt.Println(i, sample.SampleID)
	}

	for i := 1; ; i++ {
		v := vr.Read()
		if v == nil {
			break
		}

		if i > *limit {
			continue
		}

		log.Printf("%d) %s %s %s:%d %v\n", i, v.ID, v.RSID, v.Chromosome, v.Position, v.Alleles)
		for j, pb := range v.Probabilities.SampleProbabilities {
			if j >= *limit {
				break
			}

			if pb.Missing {
				log.Printf("\tProb %d) %s\n", j, "is missing")
			} else {
				log.Printf("\tProb %d) %+v\n", j, pb.Probabilities)
			}
		}
	}

	if vr.Error() != nil {
		log.Fatalln("VR error:", vr.Error())
	}

	log.Println("Read", vr.VariantsSeen, "variants")
}

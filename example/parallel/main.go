package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/carbocation/bgen/v2"
	"github.com/carbocation/pfx"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/sync/errgroup"
)

type config struct {
	Path    string `envconfig:"BGEN_PATH"`
	BGIPath string `envconfig:"BGEN_BGI_PATH"`
	Workers int    `envconfig:"BGEN_WORKERS"`
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalln(pfx.Err(err))
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}

	path := flag.String("bgen", cfg.Path, "Filename of the bgen file to process")
	idxPath := flag.String("bgi", cfg.BGIPath, "Filename of the bgi (index) file to process")
	workers := flag.Int("workers", cfg.Workers, "Number of concurrent variant readers")
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

	// Load the BGEN Index
	bgi, err := bgen.OpenBGI(*idxPath)
	if err != nil {
		log.Fatalln(err)
	}
	defer bgi.Close()
	bgi.Metadata.FirstThousandBytes = nil
	log.Printf("BGI Metadata: %+v\n", bgi.Metadata)

	// ReadAt opens an independent section of the file for each call, so a
	// single BGEN can be shared across workers.
	b, err := bgen.Open(*path)
	if err != nil {
		log.Fatalln(err)
	}
	defer b.Close()

	offsets := make(chan int64)
	output := make(chan AlleleCounter)

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		defer close(offsets)

		rows, err := bgi.DB.Queryx("SELECT * FROM Variant ORDER BY chromosome ASC, position ASC")
		if err != nil {
			return pfx.Err(err)
		}
		defer rows.Close()

		var row bgen.VariantIndex
		for i := 0; rows.Next(); i++ {
			if i%1000 == 0 {
				log.Println("Processed", i, "variants")
			}
			if err := rows.StructScan(&row); err != nil {
				return pfx.Err(err)
			}

			select {
			case offsets <- int64(row.FileStartPosition):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return rows.Err()
	})

	log.Println("Launching", *workers, "workers")
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return Worker(ctx, b, offsets, output)
		})
	}
	go func() {
		wg.Wait()
		close(output)
	}()

	accumulator := AlleleCounter{}
	for o := range output {
		accumulator.A += o.A
		accumulator.C += o.C
		accumulator.T += o.T
		accumulator.G += o.G
	}

	if err := g.Wait(); err != nil {
		log.Fatalln(err)
	}

	log.Println("Final accumulated stats")
	log.Printf("%+v\n", accumulator)
}

type AlleleCounter struct {
	A, C, T, G float64
}

func (a *AlleleCounter) Add(which string, val float64) error {
	switch which {
	case "A":
		a.A += val
	case "C":
		a.C += val
	case "T":
		a.T += val
	case "G":
		a.G += val
	default:
		return pfx.Err(fmt.Errorf("%s is not recognized", which))
	}

	return nil
}

// Worker decodes the variant at each incoming offset and emits the allele
// dosages of unphased biallelic sites.
func Worker(ctx context.Context, b *bgen.BGEN, offsets <-chan int64, output chan<- AlleleCounter) error {
	for incoming := range offsets {
		variant, err := b.ReadAt(incoming)
		if err != nil {
			return err
		}

		// Only unphased for now
		if variant.Probabilities.Phased {
			continue
		}

		// Only biallelic variants for now
		if variant.NAlleles != 2 {
			continue
		}

		m := [2]float64{}
		for _, prob := range variant.Probabilities.SampleProbabilities {
			if prob.Missing || prob.Ploidy != 2 {
				continue
			}
			m[0] += 2*prob.Probabilities[0] + prob.Probabilities[1]
			m[1] += prob.Probabilities[1] + 2*prob.Probabilities[2]
		}

		ac := AlleleCounter{}
		for i, allele := range variant.Alleles {
			// Indels and symbolic alleles are not tallied
			_ = ac.Add(allele.String(), m[i])
		}

		select {
		case output <- ac:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
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

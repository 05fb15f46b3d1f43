package bgen

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var indexedVariants = []struct {
	rsid     string
	chrom    string
	position uint32
}{
	{"rs10", "01", 100},
	{"rs11", "01", 250},
	{"rs12", "01", 900},
	{"rs20", "02", 120},
}

// writeIndexedFile writes a BGEN file and a matching .bgi index, returning
// their paths.
func writeIndexedFile(t *testing.T) (string, string) {
	t.Helper()

	f := testFile{
		layout:      Layout2,
		compression: CompressionZLIB,
		nSamples:    2,
		sampleIDs:   []string{"sampleA", "sampleB"},
	}
	for i, iv := range indexedVariants {
		f.variants = append(f.variants, testVariant{
			id: iv.rsid, rsid: iv.rsid, chrom: iv.chrom, position: iv.position,
			alleles: []string{"A", "G"},
			genotypes: testGenotypes{
				nSamples: 2, nAlleles: 2, minPloidy: 2, maxPloidy: 2, nbits: 8,
				samples: []testSample{
					{ploidy: 2, values: []uint64{uint64(i), 0}},
					{ploidy: 2, values: []uint64{0, uint64(i)}},
				},
			}.bytes(),
		})
	}
	data, offsets := f.bytes(t)

	dir := t.TempDir()
	bgenPath := filepath.Join(dir, "test.bgen")
	require.NoError(t, os.WriteFile(bgenPath, data, 0o644))

	bgiPath := bgenPath + ".bgi"
	db, err := sqlx.Connect(WhichSQLiteDriver(), "file:"+bgiPath)
	require.NoError(t, err)
	defer db.Close()

	db.MustExec(`CREATE TABLE Variant (
		chromosome TEXT NOT NULL,
		position INT NOT NULL,
		rsid TEXT,
		number_of_alleles INT NOT NULL,
		allele1 TEXT,
		allele2 TEXT,
		file_start_position INT NOT NULL,
		size_in_bytes INT NOT NULL
	)`)
	db.MustExec(`CREATE TABLE Metadata (
		filename TEXT NOT NULL,
		file_size INT NOT NULL,
		last_write_time INT NOT NULL,
		first_1000_bytes BLOB NOT NULL,
		index_creation_time INT NOT NULL
	)`)

	for i, iv := range indexedVariants {
		end := int64(len(data))
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		db.MustExec(`INSERT INTO Variant VALUES (?, ?, ?, 2, 'A', 'G', ?, ?)`,
			iv.chrom, iv.position, iv.rsid, offsets[i], end-offsets[i])
	}
	db.MustExec(`INSERT INTO Metadata VALUES ('test.bgen', ?, 1600000000, ?, 1600000100)`, len(data), data[:40])

	return bgenPath, bgiPath
}

func TestOpen(t *testing.T) {
	bgenPath, _ := writeIndexedFile(t)

	b, err := Open(bgenPath)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, uint64(len(indexedVariants)), b.Header.NVariants)
	assert.Equal(t, CompressionZLIB, b.Header.Compression)

	samples, err := ReadSamples(b)
	require.NoError(t, err)
	assert.Equal(t, []Sample{{"sampleA"}, {"sampleB"}}, samples)

	vr := b.NewVariantReader()
	var seen []*Variant
	for v := vr.Read(); v != nil; v = vr.Read() {
		seen = append(seen, v)
	}
	require.NoError(t, vr.Error())
	require.Len(t, seen, len(indexedVariants))

	for i, v := range seen {
		assert.Equal(t, indexedVariants[i].rsid, v.RSID)
		assert.Equal(t, float64(i)/255, v.Probabilities.SampleProbabilities[0].Probabilities[0])

		// Random access lands on the same variant
		again, err := b.ReadAt(v.Offset)
		require.NoError(t, err)
		assert.Equal(t, v.RSID, again.RSID)
		assert.Equal(t, v.Probabilities.SampleProbabilities[1].Probabilities, again.Probabilities.SampleProbabilities[1].Probabilities)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.bgen"))
	assert.Error(t, err)
}

func TestIndexedRandomAccess(t *testing.T) {
	bgenPath, bgiPath := writeIndexedFile(t)

	bgi, err := OpenBGI(bgiPath)
	require.NoError(t, err)
	defer bgi.Close()

	assert.Equal(t, "test.bgen", bgi.Metadata.Filename)
	assert.Equal(t, int64(1600000000), bgi.Metadata.LastWriteTime.Time().Unix())
	assert.Equal(t, time.Unix(1600000100, 0).Unix(), bgi.Metadata.IndexCreationTime.Time().Unix())

	b, err := Open(bgenPath)
	require.NoError(t, err)
	defer b.Close()

	row, err := bgi.FindVariant("rs12")
	require.NoError(t, err)
	assert.Equal(t, "01", row.Chromosome)
	assert.Equal(t, uint32(900), row.Position)
	assert.Equal(t, Allele("G"), row.Allele2)

	v, err := b.ReadAt(int64(row.FileStartPosition))
	require.NoError(t, err)
	assert.Equal(t, "rs12", v.RSID)
	assert.Equal(t, uint32(900), v.Position)

	_, err = bgi.FindVariant("rs404")
	assert.Error(t, err)

	rows, err := bgi.VariantsInRegion("01", 200, 1000)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "rs11", rows[0].RSID)
	assert.Equal(t, "rs12", rows[1].RSID)

	// Readers at different offsets share the file without coordination
	var wg sync.WaitGroup
	results := make([]*Variant, len(rows))
	errs := make([]error, len(rows))
	for i, r := range rows {
		wg.Add(1)
		go func(i int, offset int64) {
			defer wg.Done()
			results[i], errs[i] = b.ReadAt(offset)
		}(i, int64(r.FileStartPosition))
	}
	wg.Wait()

	for i := range rows {
		require.NoError(t, errs[i])
		assert.Equal(t, rows[i].RSID, results[i].RSID)
		assert.Equal(t, rows[i].Position, results[i].Position)
	}
}

package bgen

import (
	"strings"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
)

// BGIIndex is an open BGEN index (.bgi) file: a SQLite database mapping each
// variant to the offset of its data block.
type BGIIndex struct {
	DB       *sqlx.DB
	Metadata *BGIMetadata
}

func (b *BGIIndex) Close() error {
	return b.DB.Close()
}

func WhichSQLiteDriver() string {
	return whichSQLiteDriver
}

func OpenBGI(path string) (*BGIIndex, error) {
	bgi := &BGIIndex{
		Metadata: &BGIMetadata{},
	}

	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html . It seems that sqlite3 permitted
	// URI filenames without the file: prefix, but that is not standard.
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect(whichSQLiteDriver, path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	bgi.DB = db

	if err := configureConnection(db); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	// Not all index files have metadata; ignore any error
	_ = bgi.DB.Get(bgi.Metadata, "SELECT * FROM Metadata LIMIT 1")

	return bgi, nil
}

// FindVariant returns the first index row whose rsid matches rsID.
func (b *BGIIndex) FindVariant(rsID string) (VariantIndex, error) {
	var row VariantIndex
	if err := b.DB.Get(&row, "SELECT * FROM Variant WHERE rsid=? ORDER BY file_start_position ASC LIMIT 1", rsID); err != nil {
		return row, pfx.Err(err)
	}

	return row, nil
}

// VariantsInRegion returns the index rows on chromosome whose position lies in
// [start, end], in file order.
func (b *BGIIndex) VariantsInRegion(chromosome string, start, end uint32) ([]VariantIndex, error) {
	var rows []VariantIndex
	err := b.DB.Select(&rows,
		"SELECT * FROM Variant WHERE chromosome=? AND position BETWEEN ? AND ? ORDER BY file_start_position ASC",
		chromosome, start, end)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return rows, nil
}

// VariantIndex conforms to the data found in the rows of the SQLite table
// "Variant" from BGEN Index (.bgi) files, and can be easily parsed with sqlx.
type VariantIndex struct {
	Chromosome        string
	Position          uint32
	RSID              string `db:"rsid"`
	NAlleles          uint16 `db:"number_of_alleles"`
	Allele1           Allele
	Allele2           Allele
	FileStartPosition uint `db:"file_start_position"`
	SizeInBytes       uint `db:"size_in_bytes"`
}

// BGIMetadata conforms to the data found in the rows of the SQLite table
// "Metadata" from more recent versions of BGEN.
type BGIMetadata struct {
	Filename           string
	FileSize           uint   `db:"file_size"`
	LastWriteTime      Time   `db:"last_write_time"`
	FirstThousandBytes []byte `db:"first_1000_bytes"`
	IndexCreationTime  Time   `db:"index_creation_time"`
}

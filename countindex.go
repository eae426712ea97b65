package bcf

import (
	"fmt"
	"strings"
	"time"

	"github.com/carbocation/pfx"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const countIndexSchema = `
CREATE TABLE IF NOT EXISTS Metadata (
	run_id TEXT NOT NULL,
	source TEXT NOT NULL,
	creation_time INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS AlleleCount (
	chromosome TEXT NOT NULL,
	position INTEGER NOT NULL,
	variant_id TEXT NOT NULL,
	allele_index INTEGER NOT NULL,
	allele TEXT NOT NULL,
	count INTEGER NOT NULL,
	frequency REAL NOT NULL,
	strategy TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS AlleleCountSite ON AlleleCount (chromosome, position);
`

// CountIndex is a SQLite database of per-allele counts, one row per allele
// of every record added to it.
type CountIndex struct {
	DB       *sqlx.DB
	Metadata *CountMetadata
}

// CountMetadata conforms to the single row of the "Metadata" table.
type CountMetadata struct {
	RunID        string `db:"run_id"`
	Source       string `db:"source"`
	CreationTime Time   `db:"creation_time"`
}

// AlleleCountRow conforms to the rows of the "AlleleCount" table, and can be
// easily parsed with sqlx.
type AlleleCountRow struct {
	Chromosome  string  `db:"chromosome"`
	Position    uint32  `db:"position"` // 1-based
	VariantID   string  `db:"variant_id"`
	AlleleIndex int     `db:"allele_index"`
	Allele      string  `db:"allele"`
	Count       int     `db:"count"`
	Frequency   float64 `db:"frequency"`
	Strategy    string  `db:"strategy"`
}

// WhichSQLiteDriver names the database/sql driver backing CountIndex.
func WhichSQLiteDriver() string {
	return whichSQLiteDriver
}

func connectCountIndex(path string) (*sqlx.DB, error) {
	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html . It seems that sqlite3 permitted
	// URI filenames without the file: prefix, but that is not standard.
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect(whichSQLiteDriver, path)
	if err != nil {
		return nil, err
	}
	if driverPragmas != "" {
		if _, err := db.Exec(driverPragmas); err != nil {
			db.Close()
			return nil, fmt.Errorf("unable to set pragmas: %w", err)
		}
	}
	return db, nil
}

// CreateCountIndex creates (or extends) the index at path and records a new
// run, labeled with source, in its metadata.
func CreateCountIndex(path, source string) (*CountIndex, error) {
	db, err := connectCountIndex(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	if _, err := db.Exec(countIndexSchema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	ci := &CountIndex{
		DB: db,
		Metadata: &CountMetadata{
			RunID:        uuid.NewString(),
			Source:       source,
			CreationTime: Time(time.Unix(time.Now().Unix(), 0)),
		},
	}
	_, err = db.Exec("DELETE FROM Metadata")
	if err == nil {
		_, err = db.Exec("INSERT INTO Metadata (run_id, source, creation_time) VALUES (?, ?, ?)",
			ci.Metadata.RunID, ci.Metadata.Source, time.Time(ci.Metadata.CreationTime).Unix())
	}
	if err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return ci, nil
}

// OpenCountIndex opens an existing index.
func OpenCountIndex(path string) (*CountIndex, error) {
	db, err := connectCountIndex(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	ci := &CountIndex{
		DB:       db,
		Metadata: &CountMetadata{},
	}

	// Indexes written by other tools may lack metadata; ignore any error
	_ = ci.DB.Get(ci.Metadata, "SELECT * FROM Metadata LIMIT 1")

	return ci, nil
}

func (ci *CountIndex) Close() error {
	return ci.DB.Close()
}

// Add stores one row per allele of r. counts must have one entry per allele.
func (ci *CountIndex) Add(h *Header, r *Record, counts []int, src CountSource) error {
	if len(counts) != r.NAlleles() {
		return pfx.Err(fmt.Errorf("%s: %d counts for %d alleles", r.Site(h), len(counts), r.NAlleles()))
	}

	freqs := AlleleFrequencies(counts)
	tx, err := ci.DB.Beginx()
	if err != nil {
		return pfx.Err(err)
	}
	for i, allele := range r.Alleles {
		row := AlleleCountRow{
			Chromosome:  h.Contig(r.RID),
			Position:    uint32(r.Pos) + 1,
			VariantID:   r.ID,
			AlleleIndex: i,
			Allele:      allele,
			Count:       counts[i],
			Frequency:   freqs[i],
			Strategy:    src.String(),
		}
		if _, err := tx.NamedExec(`INSERT INTO AlleleCount
			(chromosome, position, variant_id, allele_index, allele, count, frequency, strategy)
			VALUES (:chromosome, :position, :variant_id, :allele_index, :allele, :count, :frequency, :strategy)`, row); err != nil {
			tx.Rollback()
			return pfx.Err(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return pfx.Err(err)
	}
	return nil
}

// Site returns the rows of one site ordered by allele index.
func (ci *CountIndex) Site(chromosome string, position uint32) ([]AlleleCountRow, error) {
	var rows []AlleleCountRow
	err := ci.DB.Select(&rows, "SELECT * FROM AlleleCount WHERE chromosome = ? AND position = ? ORDER BY allele_index ASC", chromosome, position)
	if err != nil {
		return nil, pfx.Err(err)
	}
	return rows, nil
}

// NSites is the number of distinct sites in the index.
func (ci *CountIndex) NSites() (int, error) {
	var n int
	if err := ci.DB.Get(&n, "SELECT COUNT(*) FROM (SELECT DISTINCT chromosome, position FROM AlleleCount)"); err != nil {
		return 0, pfx.Err(err)
	}
	return n, nil
}

package runlog

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

const SCHEMA = `CREATE TABLE IF NOT EXISTS runs (id text NOT NULL PRIMARY KEY, dtg timestamp);
CREATE TABLE IF NOT EXISTS conversions (run text, source text, output text,
 dtg timestamp, status text, detail text)`

const IRUN = `insert into runs (id, dtg) values ($1,$2)`
const IREC = `insert into conversions (run, source, output, dtg, status, detail) values ($1,$2,$3,$4,$5,$6)`

// DBL is the optional sqlite run database. Write only; the text log stays
// authoritative.
type DBL struct {
	db *sql.DB
}

func NewRunDB(fn string) (*DBL, error) {
	db, err := sql.Open("sqlite", fn)
	if err != nil {
		return nil, err
	}
	// BEGIN/COMMIT are plain statements; they must see one connection
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(SCHEMA); err != nil {
		db.Close()
		return nil, err
	}
	return &DBL{db: db}, nil
}

func (d *DBL) WriteRun(id string, dtg time.Time) error {
	_, err := d.db.Exec(IRUN, id, dtg)
	return err
}

func (d *DBL) WriteRecord(rec Record) error {
	_, err := d.db.Exec(IREC, rec.Run, rec.Source, rec.Output, rec.Stamp, rec.Status, rec.Detail)
	return err
}

func (d *DBL) Begin() error {
	_, err := d.db.Exec(`BEGIN TRANSACTION`)
	return err
}

func (d *DBL) Commit() error {
	_, err := d.db.Exec(`COMMIT`)
	return err
}

func (d *DBL) Close() error {
	return d.db.Close()
}

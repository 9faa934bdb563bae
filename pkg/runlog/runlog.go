package runlog

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConverted Status = "converted"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Record is one conversion attempt. Appended, never mutated.
type Record struct {
	Run    string
	Source string
	Output string
	Stamp  time.Time
	Status Status
	Detail string
}

// Logger appends one line per attempt to a text log shared across runs,
// optionally mirroring each record into a run database. One Logger per
// run; opened once, closed on all exit paths.
type Logger struct {
	f   *os.File
	db  *DBL
	run string
}

// NewLogger opens (or creates) the log in append mode and writes the run
// header. db may be nil.
func NewLogger(fn string, db *DBL) (*Logger, error) {
	f, err := os.OpenFile(fn, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &Logger{f: f, db: db, run: uuid.NewString()}
	now := time.Now()
	if _, err = fmt.Fprintf(f, "--- Conversion run %s on %s ---\n",
		l.run, now.Format("2006-01-02 15:04:05")); err != nil {
		f.Close()
		return nil, err
	}
	if db != nil {
		// one transaction spans the whole run
		if err = db.Begin(); err == nil {
			err = db.WriteRun(l.run, now)
		}
		if err != nil {
			f.Close()
			db.Close()
			return nil, err
		}
	}
	return l, nil
}

func (l *Logger) Run() string {
	return l.run
}

func (l *Logger) Log(rec Record) error {
	rec.Run = l.run
	if rec.Stamp.IsZero() {
		rec.Stamp = time.Now()
	}
	_, err := fmt.Fprintf(l.f, "%s\t%s\t%s\t%s\t%s\n",
		rec.Stamp.Format(time.RFC3339), rec.Status, rec.Source, rec.Output, rec.Detail)
	if err != nil {
		return err
	}
	if l.db != nil {
		return l.db.WriteRecord(rec)
	}
	return nil
}

func (l *Logger) Close() error {
	fmt.Fprintln(l.f)
	err := l.f.Close()
	if l.db != nil {
		if derr := l.db.Commit(); err == nil {
			err = derr
		}
		if derr := l.db.Close(); err == nil {
			err = derr
		}
	}
	return err
}

package runlog

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerAppends(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "conversion_log.txt")

	l, err := NewLogger(fn, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, l.Run())
	require.NoError(t, l.Log(Record{Source: "a.kmz", Output: "a.tif", Status: StatusConverted}))
	require.NoError(t, l.Log(Record{Source: "b.kmz", Status: StatusFailed, Detail: "no KML document"}))
	require.NoError(t, l.Close())

	// second run appends, never truncates
	l2, err := NewLogger(fn, nil)
	require.NoError(t, err)
	assert.NotEqual(t, l.Run(), l2.Run())
	require.NoError(t, l2.Log(Record{Source: "a.kmz", Output: "a.tif", Status: StatusSkipped, Detail: "output exists"}))
	require.NoError(t, l2.Close())

	dat, err := os.ReadFile(fn)
	require.NoError(t, err)
	lines := strings.Split(string(dat), "\n")

	var headers, records int
	for _, ln := range lines {
		switch {
		case strings.HasPrefix(ln, "--- Conversion run "):
			headers++
		case strings.Contains(ln, "\t"):
			records++
		}
	}
	assert.Equal(t, 2, headers)
	assert.Equal(t, 3, records)
	assert.Contains(t, string(dat), "converted\ta.kmz\ta.tif")
	assert.Contains(t, string(dat), "failed\tb.kmz\t\tno KML document")
	assert.Contains(t, string(dat), "skipped\ta.kmz")
}

func TestLoggerStamps(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "log.txt")
	l, err := NewLogger(fn, nil)
	require.NoError(t, err)
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, l.Log(Record{Source: "a.kmz", Status: StatusConverted, Stamp: stamp}))
	require.NoError(t, l.Close())

	dat, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.Contains(t, string(dat), "2024-03-01T12:00:00Z\tconverted")
}

func TestRunDB(t *testing.T) {
	dir := t.TempDir()
	dbfn := filepath.Join(dir, "runs.db")

	db, err := NewRunDB(dbfn)
	require.NoError(t, err)

	l, err := NewLogger(filepath.Join(dir, "log.txt"), db)
	require.NoError(t, err)
	run := l.Run()
	require.NoError(t, l.Log(Record{Source: "a.kmz", Output: "a.tif", Status: StatusConverted}))
	require.NoError(t, l.Log(Record{Source: "b.kmz", Status: StatusFailed, Detail: "boom"}))
	require.NoError(t, l.Close())

	raw, err := sql.Open("sqlite", dbfn)
	require.NoError(t, err)
	defer raw.Close()

	var n int
	require.NoError(t, raw.QueryRow(`select count(*) from runs where id = $1`, run).Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, raw.QueryRow(`select count(*) from conversions where run = $1`, run).Scan(&n))
	assert.Equal(t, 2, n)

	var status, detail string
	require.NoError(t, raw.QueryRow(
		`select status, detail from conversions where source = 'b.kmz'`).Scan(&status, &detail))
	assert.Equal(t, "failed", status)
	assert.Equal(t, "boom", detail)
}

func TestRunDBUncommitted(t *testing.T) {
	dir := t.TempDir()
	dbfn := filepath.Join(dir, "runs.db")

	db, err := NewRunDB(dbfn)
	require.NoError(t, err)
	l, err := NewLogger(filepath.Join(dir, "log.txt"), db)
	require.NoError(t, err)
	require.NoError(t, l.Log(Record{Source: "a.kmz", Status: StatusConverted}))

	// dropping the connection without Close rolls the whole run back
	require.NoError(t, db.Close())
	assert.Error(t, l.Close())

	raw, err := sql.Open("sqlite", dbfn)
	require.NoError(t, err)
	defer raw.Close()
	var n int
	require.NoError(t, raw.QueryRow(`select count(*) from runs`).Scan(&n))
	assert.Equal(t, 0, n)
	require.NoError(t, raw.QueryRow(`select count(*) from conversions`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestLoggerDBFailure(t *testing.T) {
	dir := t.TempDir()
	db, err := NewRunDB(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewLogger(filepath.Join(dir, "log.txt"), db)
	assert.Error(t, err)
}

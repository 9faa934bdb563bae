package conv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"kmz2geotiff/pkg/geotiff"
	"kmz2geotiff/pkg/kmlindex"
	"kmz2geotiff/pkg/kmz"
	"kmz2geotiff/pkg/overlay"
	"kmz2geotiff/pkg/runlog"
)

// Converter drives one sequential batch. No shared mutable state between
// files beyond the append-only log.
type Converter struct {
	Writer geotiff.Writer
	Log    *runlog.Logger
	Outdir string
	Force  bool
}

type Result struct {
	Converted []string
	Skipped   []string
	Failed    []string
	Entries   []kmlindex.Entry
}

// Collect expands the arguments into the list of KMZ files to process.
// Directory arguments contribute their *.kmz entries (case-insensitive);
// files with other extensions are ignored.
func Collect(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			files = append(files, arg)
			continue
		}
		ents, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".kmz") {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run processes the files in order. Per-file failures are logged and do
// not abort the batch.
func (c *Converter) Run(files []string) Result {
	var res Result
	for _, fn := range files {
		base := stem(fn)
		outfn, entry, err := c.convert(fn)
		switch {
		case err == nil && outfn == "":
			res.Skipped = append(res.Skipped, base)
			c.record(runlog.StatusSkipped, fn, filepath.Join(c.Outdir, base+".tif"), "output exists")
		case err == nil:
			res.Converted = append(res.Converted, base)
			res.Entries = append(res.Entries, *entry)
			c.record(runlog.StatusConverted, fn, outfn, "")
		default:
			res.Failed = append(res.Failed, base)
			c.record(runlog.StatusFailed, fn, "", err.Error())
			fmt.Fprintf(os.Stderr, "*** %s: %v\n", fn, err)
		}
	}
	sort.Strings(res.Converted)
	sort.Strings(res.Skipped)
	sort.Strings(res.Failed)
	return res
}

// convert handles one KMZ. An empty output name with a nil error means the
// output already existed and was left alone.
func (c *Converter) convert(fn string) (string, *kmlindex.Entry, error) {
	outfn := filepath.Join(c.Outdir, stem(fn)+".tif")
	if !c.Force {
		if _, err := os.Stat(outfn); err == nil {
			return "", nil, nil
		}
	}

	if !kmz.IsKMZ(fn) {
		return "", nil, fmt.Errorf("not a zip archive")
	}

	a, err := kmz.Open(fn)
	if err != nil {
		return "", nil, err
	}
	defer a.Close()

	g, err := overlay.Parse(a.KML())
	if err != nil {
		return "", nil, err
	}

	tmpdir, err := os.MkdirTemp("", ".kmz2gtiff")
	if err != nil {
		return "", nil, err
	}
	defer os.RemoveAll(tmpdir)

	img, err := a.ExtractImage(g.Icon, tmpdir)
	if err != nil {
		return "", nil, err
	}

	if g.Rotated() {
		err = c.Writer.WarpQuad(img, g.Corners(), outfn)
	} else {
		err = c.Writer.Write(img, g.Box, outfn)
	}
	if err != nil {
		return "", nil, err
	}

	entry := &kmlindex.Entry{
		Source:  fn,
		Output:  outfn,
		Box:     g.Box,
		Corners: g.Corners(),
		Stamp:   time.Now(),
	}
	return outfn, entry, nil
}

func (c *Converter) record(status runlog.Status, src, out, detail string) {
	if c.Log == nil {
		return
	}
	err := c.Log.Log(runlog.Record{Source: src, Output: out, Status: status, Detail: detail})
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** log: %v\n", err)
	}
}

func stem(fn string) string {
	outfn := filepath.Base(fn)
	ext := filepath.Ext(outfn)
	if len(ext) < len(outfn) {
		outfn = outfn[0 : len(outfn)-len(ext)]
	}
	return outfn
}

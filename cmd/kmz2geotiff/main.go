package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/yookoala/realpath"

	"kmz2geotiff/pkg/conv"
	"kmz2geotiff/pkg/geotiff"
	"kmz2geotiff/pkg/kmlindex"
	"kmz2geotiff/pkg/kmz"
	"kmz2geotiff/pkg/options"
	"kmz2geotiff/pkg/overlay"
	"kmz2geotiff/pkg/runlog"
)

var GitCommit = "local"
var GitTag = "0.0.0"

func getVersion() string {
	return fmt.Sprintf("%s %s, commit: %s", filepath.Base(os.Args[0]), GitTag, GitCommit)
}

func main() {
	args := options.ParseCLI(getVersion)
	if len(args) == 0 {
		args = []string{"."}
	}

	files, err := conv.Collect(args)
	if err != nil {
		log.Fatalf("kmz2geotiff: %+v\n", err)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "No KMZ files found in:", strings.Join(args, " "))
		os.Exit(1)
	}

	if options.Config.Dump {
		dump(files)
		os.Exit(0)
	}

	if err = os.MkdirAll(options.Config.Outdir, 0755); err != nil {
		log.Fatalf("kmz2geotiff: %+v\n", err)
	}

	var db *runlog.DBL
	if options.Config.Sql != "" {
		if db, err = runlog.NewRunDB(options.Config.Sql); err != nil {
			log.Fatalf("kmz2geotiff: %+v\n", err)
		}
	}
	logger, err := runlog.NewLogger(filepath.Join(options.Config.Outdir, options.Config.LogFile), db)
	if err != nil {
		log.Fatalf("kmz2geotiff: %+v\n", err)
	}

	c := &conv.Converter{
		Writer: geotiff.NewGDAL(geotiff.Options{Quality: options.Config.Quality}),
		Log:    logger,
		Outdir: options.Config.Outdir,
		Force:  options.Config.Force,
	}
	res := c.Run(files)

	if len(res.Converted) > 0 {
		fmt.Printf("%-9.9s : %s\n", "Converted", strings.Join(res.Converted, ", "))
	}
	if len(res.Skipped) > 0 {
		fmt.Printf("%-9.9s : %s\n", "Skipped", strings.Join(res.Skipped, ", "))
	}
	if len(res.Failed) > 0 {
		fmt.Printf("%-9.9s : %s\n", "Failed", strings.Join(res.Failed, ", "))
	}
	show_output(options.Config.Outdir)

	if options.Config.Index && len(res.Entries) > 0 {
		outfn := kmlindex.GenIndexName(options.Config.Outdir, options.Config.Kml)
		err = kmlindex.Generate(res.Entries, outfn, options.Config.Dms, options.Config.Gradset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "*** index: %v\n", err)
		} else {
			show_output(outfn)
		}
	}

	// Close commits the run database; os.Exit skips defers
	if err = logger.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "*** log: %v\n", err)
	}

	if len(res.Converted) == 0 && len(res.Failed) > 0 {
		os.Exit(1)
	}
}

func dump(files []string) {
	for _, fn := range files {
		a, err := kmz.Open(fn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "*** %s: %v\n", fn, err)
			continue
		}
		g, err := overlay.Parse(a.KML())
		a.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "*** %s: %v\n", fn, err)
			continue
		}
		fmt.Printf("%-9.9s : %s\n", "Source", fn)
		fmt.Printf("%-9.9s : %s\n", "Image", g.Icon)
		fmt.Printf("%-9.9s : %s\n", "NW Corner",
			kmlindex.PositionFormat(g.Box.North, g.Box.West, options.Config.Dms))
		fmt.Printf("%-9.9s : %s\n", "SE Corner",
			kmlindex.PositionFormat(g.Box.South, g.Box.East, options.Config.Dms))
		if g.Rotated() {
			fmt.Printf("%-9.9s : %s\n", "Rotated", "yes (GCP warp)")
		}
		fmt.Println()
	}
}

func show_output(outfn string) {
	if outfn != "" {
		rp, err := realpath.Realpath(outfn)
		if err != nil || rp == "" {
			rp = outfn
		}
		fmt.Printf("%-9.9s : %s\n", "Output", rp)
	}
}

package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"kmz2geotiff/pkg/geotiff"
	"kmz2geotiff/pkg/kmlindex"
	"kmz2geotiff/pkg/kmz"
	"kmz2geotiff/pkg/overlay"
)

var GitCommit = "local"
var GitTag = "0.0.0"

var dms bool

func getVersion() string {
	return fmt.Sprintf("%s %s, commit: %s", filepath.Base(os.Args[0]), GitTag, GitCommit)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s [options] file.kmz ...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, getVersion())
	}

	defs := os.Getenv("KMZ2GEOTIFF_OPTS")
	dms = strings.Contains(defs, "-dms")
	flag.BoolVar(&dms, "dms", dms, "Show positions as DD:MM:SS.s (vice decimal degrees)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	for _, fn := range files {
		if err := info(fn); err != nil {
			log.Printf("%s: %+v\n", fn, err)
		}
		fmt.Println()
	}
}

func info(fn string) error {
	a, err := kmz.Open(fn)
	if err != nil {
		return err
	}
	defer a.Close()

	g, err := overlay.Parse(a.KML())
	if err != nil {
		return err
	}

	fmt.Printf("%-9.9s : %s\n", "Source", fn)
	fmt.Printf("%-9.9s : %s\n", "Document", a.KMLName)
	fmt.Printf("%-9.9s : %s\n", "Image", g.Icon)
	fmt.Printf("%-9.9s : %s\n", "NW Corner", kmlindex.PositionFormat(g.Box.North, g.Box.West, dms))
	fmt.Printf("%-9.9s : %s\n", "SE Corner", kmlindex.PositionFormat(g.Box.South, g.Box.East, dms))

	tmpdir, err := os.MkdirTemp("", ".kmzinfo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpdir)
	img, err := a.ExtractImage(g.Icon, tmpdir)
	if err != nil {
		return err
	}
	dat, err := os.ReadFile(img)
	if err != nil {
		return err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(dat))
	if err != nil {
		fmt.Printf("%-9.9s : %s\n", "Raster", "unrecognised by stdlib decoders")
		return nil
	}
	fmt.Printf("%-9.9s : %s %dx%d\n", "Raster", format, cfg.Width, cfg.Height)

	if g.Rotated() {
		fmt.Printf("%-9.9s : %s\n", "Transform", "rotated overlay, GCP warp required")
		return nil
	}
	gt, err := geotiff.NewGeoTransform(g.Box, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	fmt.Printf("%-9.9s : [%g, %g, %g, %g, %g, %g]\n", "Transform",
		gt[0], gt[1], gt[2], gt[3], gt[4], gt[5])
	return nil
}

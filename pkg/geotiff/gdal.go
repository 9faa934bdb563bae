package geotiff

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/airbusgeo/godal"

	"kmz2geotiff/pkg/overlay"
)

var register sync.Once

// GDAL writes GeoTIFFs through the godal binding. Satisfies Writer.
type GDAL struct {
	opts Options
}

func NewGDAL(opts Options) *GDAL {
	register.Do(godal.RegisterAll)
	return &GDAL{opts: opts}
}

func (g *GDAL) Write(src string, box overlay.BoundingBox, dst string) error {
	ds, err := godal.Open(src)
	if err != nil {
		return &UnsupportedImageFormatError{Path: src, Err: err}
	}
	defer ds.Close()

	out, err := ds.Translate(dst, translate_switches(box, g.opts.Quality))
	if err != nil {
		return &WriteError{Path: dst, Err: err}
	}
	return out.Close()
}

func (g *GDAL) WarpQuad(src string, quad []overlay.Corner, dst string) error {
	ds, err := godal.Open(src)
	if err != nil {
		return &UnsupportedImageFormatError{Path: src, Err: err}
	}
	defer ds.Close()

	st := ds.Structure()
	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".gcps.tif")
	defer os.Remove(tmp)
	pinned, err := ds.Translate(tmp, gcp_switches(quad, st.SizeX, st.SizeY))
	if err != nil {
		return &WriteError{Path: dst, Err: err}
	}
	defer pinned.Close()

	out, err := pinned.Warp(dst, warp_switches(g.opts.Quality))
	if err != nil {
		return &WriteError{Path: dst, Err: err}
	}
	return out.Close()
}

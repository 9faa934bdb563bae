package geotiff

import (
	"fmt"
	"strconv"

	"kmz2geotiff/pkg/overlay"
)

// GeoTransform is the GDAL-ordered affine mapping from pixel (col,row) to
// geographic (lon,lat): origin lon, pixel width, row rotation, origin lat,
// column rotation, pixel height.
type GeoTransform [6]float64

// NewGeoTransform derives the transform for an axis-aligned overlay.
// Pixel height is negative: raster rows grow downward, latitude decreases.
func NewGeoTransform(b overlay.BoundingBox, width, height int) (GeoTransform, error) {
	if width <= 0 || height <= 0 {
		return GeoTransform{}, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if err := b.Validate(); err != nil {
		return GeoTransform{}, err
	}
	pw := (b.East - b.West) / float64(width)
	ph := -(b.North - b.South) / float64(height)
	return GeoTransform{b.West, pw, 0, b.North, 0, ph}, nil
}

func (gt GeoTransform) PixelWidth() float64  { return gt[1] }
func (gt GeoTransform) PixelHeight() float64 { return gt[5] }

// Origin is the geographic position of the top-left pixel corner.
func (gt GeoTransform) Origin() (lon, lat float64) {
	return gt[0], gt[3]
}

type UnsupportedImageFormatError struct {
	Path string
	Err  error
}

func (e *UnsupportedImageFormatError) Error() string {
	return fmt.Sprintf("%s: unsupported image format: %v", e.Path, e.Err)
}

func (e *UnsupportedImageFormatError) Unwrap() error { return e.Err }

type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: write failed: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer is the seam over the raster library; the batch driver only sees
// this interface.
type Writer interface {
	// Write emits dst as a GeoTIFF of src georeferenced by the
	// axis-aligned bounding box.
	Write(src string, box overlay.BoundingBox, dst string) error
	// WarpQuad emits dst from src georeferenced by four arbitrary corners
	// (SW, SE, NE, NW), for rotated overlays.
	WarpQuad(src string, quad []overlay.Corner, dst string) error
}

// Options tune the GeoTIFF creation options.
type Options struct {
	Quality int // JPEG quality, 1-100
}

const DefaultQuality = 50

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func creation_opts(quality int) []string {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return []string{
		"-co", "TILED=YES",
		"-co", "COMPRESS=JPEG",
		"-co", fmt.Sprintf("JPEG_QUALITY=%d", quality),
		"-co", "BIGTIFF=IF_SAFER",
		"-co", "BLOCKXSIZE=512",
		"-co", "BLOCKYSIZE=512",
	}
}

// translate_switches georeference by upper-left / lower-right corners; GDAL
// derives the same affine transform NewGeoTransform computes.
func translate_switches(b overlay.BoundingBox, quality int) []string {
	sw := []string{
		"-of", "GTiff",
		"-a_srs", "EPSG:4326",
		"-a_ullr", ftoa(b.West), ftoa(b.North), ftoa(b.East), ftoa(b.South),
	}
	return append(sw, creation_opts(quality)...)
}

// gcp_switches pin the four image corners to the quad corners. Pixel rows
// count from the top, so the SW corner maps to (0, height).
func gcp_switches(quad []overlay.Corner, width, height int) []string {
	px := [][2]int{
		{0, height},
		{width, height},
		{width, 0},
		{0, 0},
	}
	sw := []string{"-of", "GTiff", "-a_srs", "EPSG:4326"}
	for j, c := range quad {
		sw = append(sw, "-gcp",
			strconv.Itoa(px[j][0]), strconv.Itoa(px[j][1]),
			ftoa(c.Lon), ftoa(c.Lat))
	}
	return sw
}

func warp_switches(quality int) []string {
	sw := []string{"-t_srs", "EPSG:4326", "-tps"}
	return append(sw, creation_opts(quality)...)
}

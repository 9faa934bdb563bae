package kmlindex

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mazznoer/colorgrad"
	kml "github.com/twpayne/go-kml"
	"github.com/twpayne/go-kml/icon"
	kmz "github.com/twpayne/go-kmz"

	"kmz2geotiff/pkg/overlay"
)

// Entry is one converted overlay to appear in the index document.
type Entry struct {
	Source  string
	Output  string
	Box     overlay.BoundingBox
	Corners []overlay.Corner
	Stamp   time.Time
}

// GenIndexName returns the index path in the output directory, extension
// per the askml flag.
func GenIndexName(outdir string, askml bool) string {
	ext := ".kmz"
	if askml {
		ext = ".kml"
	}
	return filepath.Join(outdir, "index"+ext)
}

func get_gradient(gradset string) colorgrad.Gradient {
	switch gradset {
	case "rdgn":
		return colorgrad.RdYlGn()
	case "yor":
		return colorgrad.YlOrRd()
	default:
		return colorgrad.Reds()
	}
}

func entry_colour(grad colorgrad.Gradient, j, n int) color.RGBA {
	t := 0.5
	if n > 1 {
		t = float64(j) / float64(n-1)
	}
	r, g, b, _ := grad.At(t).RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xa0}
}

func balloon_style() *kml.CompoundElement {
	return kml.BalloonStyle(kml.BgColor(color.RGBA{R: 0xde, G: 0xde, B: 0xde, A: 0x40}),
		kml.Text(`<b><font size="+2">$[name]</font></b><br/><br/>$[description]<br/>`))
}

func shared_styles(grad colorgrad.Gradient, n int) []kml.Element {
	els := []kml.Element{}
	for j := 0; j < n; j++ {
		c := entry_colour(grad, j, n)
		el := kml.SharedStyle(
			fmt.Sprintf("styleOvl%03d", j),
			kml.LineStyle(
				kml.Width(3.0),
				kml.Color(c),
			),
			kml.PolyStyle(
				kml.Color(color.RGBA{R: c.R, G: c.G, B: c.B, A: 0x30}),
			),
		).Add(balloon_style())
		els = append(els, el)
	}
	return els
}

func describe(e Entry, dms bool) string {
	var sb strings.Builder
	sb.WriteString(`<table style="border="1px" silver; border="1" silver; rules="all";;">`)
	sb.WriteString(fmt.Sprintf("<tr><td><b>%s</b></td><td>%s</td></tr>", "Source", filepath.Base(e.Source)))
	sb.WriteString(fmt.Sprintf("<tr><td><b>%s</b></td><td>%s</td></tr>", "Output", filepath.Base(e.Output)))
	sb.WriteString(fmt.Sprintf("<tr><td><b>%s</b></td><td>%s</td></tr>", "NW Corner",
		PositionFormat(e.Box.North, e.Box.West, dms)))
	sb.WriteString(fmt.Sprintf("<tr><td><b>%s</b></td><td>%s</td></tr>", "SE Corner",
		PositionFormat(e.Box.South, e.Box.East, dms)))
	sb.WriteString(fmt.Sprintf("<tr><td><b>%s</b></td><td>%s</td></tr>", "Converted",
		e.Stamp.Format("2006-01-02T15:04:05MST")))
	sb.WriteString("</table>")
	return sb.String()
}

func add_footprint(e Entry, j int, dms bool) kml.Element {
	var points []kml.Coordinate
	for _, c := range e.Corners {
		points = append(points, kml.Coordinate{Lon: c.Lon, Lat: c.Lat})
	}
	points = append(points, points[0])

	pm := kml.Placemark(
		kml.Name(filepath.Base(e.Output)),
		kml.Description(describe(e, dms)),
		kml.TimeStamp(kml.When(e.Stamp)),
		kml.StyleURL(fmt.Sprintf("#styleOvl%03d", j)),
	)
	pm.Add(
		kml.Polygon(
			kml.Tessellate(true),
			kml.OuterBoundaryIs(
				kml.LinearRing(
					kml.Coordinates(points...),
				),
			),
		),
	)
	return pm
}

func add_centre_pin(e Entry, dms bool) kml.Element {
	clat, clon := e.Box.Center()
	return kml.Placemark(
		kml.Name(filepath.Base(e.Source)),
		kml.Description(describe(e, dms)),
		kml.Point(
			kml.Coordinates(kml.Coordinate{Lon: clon, Lat: clat}),
		),
		kml.Style(
			kml.IconStyle(
				kml.Scale(0.5),
				kml.Icon(
					kml.Href(icon.PaletteHref(4, 29)),
				),
			),
		),
	)
}

// Generate writes an index document with one footprint polygon and one
// centre pin per entry, colour graded across the batch. A ".kml" suffix
// selects plain KML, anything else gets the KMZ container.
func Generate(entries []Entry, outfn string, dms bool, gradset string) error {
	grad := get_gradient(gradset)
	d := kml.Folder(kml.Name("Converted overlays")).Add(kml.Open(true))
	d.Add(shared_styles(grad, len(entries))...)
	for j, e := range entries {
		d.Add(add_footprint(e, j, dms))
		d.Add(add_centre_pin(e, dms))
	}

	w, err := os.Create(outfn)
	if err != nil {
		return err
	}
	defer w.Close()

	if strings.HasSuffix(outfn, ".kml") {
		k := kml.KML(d)
		return k.WriteIndent(w, "", "  ")
	}
	z := kmz.NewKMZ(d)
	return z.WriteIndent(w, "", "  ")
}

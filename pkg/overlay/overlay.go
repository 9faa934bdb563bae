package overlay

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BoundingBox is the geographic extent of a ground overlay, WGS84 degrees.
type BoundingBox struct {
	North float64
	South float64
	East  float64
	West  float64
}

// Corner is one overlay corner, WGS84 degrees.
type Corner struct {
	Lat float64
	Lon float64
}

// GroundOverlay is the validated parse result for one KML ground overlay.
// Box is always populated; Quad holds the original gx:LatLonQuad corners
// (SW, SE, NE, NW) when the source document used one.
type GroundOverlay struct {
	Name     string
	Icon     string
	Rotation float64
	Box      BoundingBox
	Quad     []Corner
}

type MalformedOverlayError struct {
	Reason string
}

func (e *MalformedOverlayError) Error() string {
	return "malformed overlay: " + e.Reason
}

type BoundsInvertedError struct {
	Box BoundingBox
}

func (e *BoundsInvertedError) Error() string {
	return fmt.Sprintf("inverted bounds: north %v south %v east %v west %v",
		e.Box.North, e.Box.South, e.Box.East, e.Box.West)
}

func (b BoundingBox) Validate() error {
	if b.North <= b.South || b.East <= b.West {
		return &BoundsInvertedError{Box: b}
	}
	return nil
}

func (b BoundingBox) Center() (float64, float64) {
	return (b.North + b.South) / 2, (b.East + b.West) / 2
}

// Rotated reports whether the overlay cannot be expressed as an
// axis-aligned box with the computed affine transform.
func (g *GroundOverlay) Rotated() bool {
	return g.Quad != nil || g.Rotation != 0
}

// Corners returns the overlay corners in SW, SE, NE, NW order. For a plain
// LatLonBox with a rotation element, the box corners are rotated
// counter-clockwise about the box centre, as Earth renders them.
func (g *GroundOverlay) Corners() []Corner {
	if g.Quad != nil {
		return g.Quad
	}
	b := g.Box
	cn := []Corner{
		{Lat: b.South, Lon: b.West},
		{Lat: b.South, Lon: b.East},
		{Lat: b.North, Lon: b.East},
		{Lat: b.North, Lon: b.West},
	}
	if g.Rotation == 0 {
		return cn
	}
	clat, clon := b.Center()
	sin, cos := math.Sincos(g.Rotation * math.Pi / 180.0)
	for j, c := range cn {
		dlon := c.Lon - clon
		dlat := c.Lat - clat
		cn[j].Lon = clon + dlon*cos - dlat*sin
		cn[j].Lat = clat + dlon*sin + dlat*cos
	}
	return cn
}

type latlonbox struct {
	North    *float64 `xml:"north"`
	South    *float64 `xml:"south"`
	East     *float64 `xml:"east"`
	West     *float64 `xml:"west"`
	Rotation float64  `xml:"rotation"`
}

type latlonquad struct {
	Coordinates string `xml:"coordinates"`
}

type groundoverlay struct {
	Name string `xml:"name"`
	Icon struct {
		Href string `xml:"href"`
	} `xml:"Icon"`
	Box  *latlonbox  `xml:"LatLonBox"`
	Quad *latlonquad `xml:"LatLonQuad"`
}

// Parse extracts the first GroundOverlay from a KML document. Pure; no side
// effects. Missing or non-numeric bound tags yield MalformedOverlayError,
// out of order bounds yield BoundsInvertedError.
func Parse(dat []byte) (*GroundOverlay, error) {
	go_, err := find_ground_overlay(dat)
	if err != nil {
		return nil, &MalformedOverlayError{Reason: err.Error()}
	}
	if go_ == nil {
		return nil, &MalformedOverlayError{Reason: "no GroundOverlay element"}
	}

	g := &GroundOverlay{Name: go_.Name, Icon: strings.TrimSpace(go_.Icon.Href)}
	if g.Icon == "" {
		return nil, &MalformedOverlayError{Reason: "GroundOverlay has no Icon href"}
	}

	switch {
	case go_.Box != nil:
		if err := box_bounds(go_.Box, g); err != nil {
			return nil, err
		}
	case go_.Quad != nil:
		if err := quad_bounds(go_.Quad, g); err != nil {
			return nil, err
		}
	default:
		return nil, &MalformedOverlayError{Reason: "no LatLonBox or LatLonQuad"}
	}

	if err := g.Box.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func find_ground_overlay(dat []byte) (*groundoverlay, error) {
	buf := bytes.NewBuffer(dat)
	dec := xml.NewDecoder(buf)
	for {
		t, _ := dec.Token()
		if t == nil {
			break
		}
		switch se := t.(type) {
		case xml.StartElement:
			if se.Name.Local == "GroundOverlay" {
				var o groundoverlay
				if err := dec.DecodeElement(&o, &se); err != nil {
					return nil, err
				}
				return &o, nil
			}
		}
	}
	return nil, nil
}

func box_bounds(lb *latlonbox, g *GroundOverlay) error {
	for _, t := range []struct {
		v *float64
		n string
	}{
		{lb.North, "north"},
		{lb.South, "south"},
		{lb.East, "east"},
		{lb.West, "west"},
	} {
		if t.v == nil {
			return &MalformedOverlayError{Reason: "LatLonBox missing " + t.n}
		}
	}
	g.Box = BoundingBox{North: *lb.North, South: *lb.South, East: *lb.East, West: *lb.West}
	g.Rotation = lb.Rotation
	return nil
}

// KML orders LatLonQuad coordinates counter-clockwise from the lower-left
// image corner: SW, SE, NE, NW.
func quad_bounds(lq *latlonquad, g *GroundOverlay) error {
	st := strings.Trim(lq.Coordinates, "\n\r\t ")
	var cn []Corner
	for _, val := range strings.Fields(st) {
		coords := strings.Split(val, ",")
		if len(coords) < 2 {
			return &MalformedOverlayError{Reason: "LatLonQuad coordinate lacks lon,lat: " + val}
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		if err != nil {
			return &MalformedOverlayError{Reason: "LatLonQuad longitude not numeric: " + coords[0]}
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if err != nil {
			return &MalformedOverlayError{Reason: "LatLonQuad latitude not numeric: " + coords[1]}
		}
		cn = append(cn, Corner{Lat: lat, Lon: lon})
	}
	if len(cn) != 4 {
		return &MalformedOverlayError{Reason: fmt.Sprintf("LatLonQuad has %d points, want 4", len(cn))}
	}

	// envelope over all four corners; a quad rotated past 90 degrees has
	// its nominal SW corner anywhere
	b := BoundingBox{North: cn[0].Lat, South: cn[0].Lat, East: cn[0].Lon, West: cn[0].Lon}
	for _, c := range cn[1:] {
		b.North = math.Max(b.North, c.Lat)
		b.South = math.Min(b.South, c.Lat)
		b.East = math.Max(b.East, c.Lon)
		b.West = math.Min(b.West, c.Lon)
	}
	g.Box = b
	if !axis_aligned(cn) {
		g.Quad = cn
	}
	return nil
}

const alignEps = 1e-9

// axis_aligned holds only when the corners already sit in SW, SE, NE, NW
// box positions. A flipped quad is axis-parallel but keeps its corners and
// takes the warp path.
func axis_aligned(cn []Corner) bool {
	return math.Abs(cn[0].Lat-cn[1].Lat) < alignEps &&
		math.Abs(cn[2].Lat-cn[3].Lat) < alignEps &&
		math.Abs(cn[0].Lon-cn[3].Lon) < alignEps &&
		math.Abs(cn[1].Lon-cn[2].Lon) < alignEps &&
		cn[0].Lat < cn[2].Lat &&
		cn[0].Lon < cn[1].Lon
}

package kmz

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var zipMagic = []byte("PK\003\004")

// IsKMZ sniffs the zip magic rather than trusting the file extension.
func IsKMZ(fn string) bool {
	r, err := os.Open(fn)
	if err != nil {
		return false
	}
	defer r.Close()
	hdr := make([]byte, 4)
	if _, err = io.ReadFull(r, hdr); err != nil {
		return false
	}
	return bytes.Equal(hdr, zipMagic)
}

// Archive is an opened KMZ. The zip stays open until Close so the overlay
// image can be extracted after the KML has been parsed.
type Archive struct {
	Path    string
	KMLName string
	zr      *zip.ReadCloser
	kml     []byte
}

// Open reads the KMZ and loads its KML document: doc.kml if present, else
// the first *.kml entry.
func Open(fn string) (*Archive, error) {
	zr, err := zip.OpenReader(fn)
	if err != nil {
		return nil, err
	}
	a := &Archive{Path: fn, zr: zr}

	var first *zip.File
	for _, f := range zr.File {
		if !strings.EqualFold(filepath.Ext(f.Name), ".kml") {
			continue
		}
		if strings.EqualFold(f.Name, "doc.kml") {
			first = f
			break
		}
		if first == nil {
			first = f
		}
	}
	if first == nil {
		zr.Close()
		return nil, fmt.Errorf("%s: no KML document in archive", fn)
	}

	a.kml, err = read_entry(first)
	if err != nil {
		zr.Close()
		return nil, err
	}
	a.KMLName = first.Name
	return a, nil
}

func (a *Archive) KML() []byte {
	return a.kml
}

// ExtractImage writes the overlay image named by the KML Icon href into
// dir and returns its path, for the raster library to open.
func (a *Archive) ExtractImage(href, dir string) (string, error) {
	name := clean_href(href)
	if name == "" {
		return "", fmt.Errorf("%s: unusable image href %q", a.Path, href)
	}

	var entry *zip.File
	for _, f := range a.zr.File {
		if path.Clean(f.Name) == name || strings.EqualFold(path.Clean(f.Name), name) {
			entry = f
			break
		}
	}
	if entry == nil {
		return "", fmt.Errorf("%s: image %q not in archive", a.Path, href)
	}

	dat, err := read_entry(entry)
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, filepath.Base(name))
	if err = os.WriteFile(out, dat, 0644); err != nil {
		return "", err
	}
	return out, nil
}

func (a *Archive) Close() error {
	return a.zr.Close()
}

func read_entry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Hrefs come from assorted generators: backslashes, leading "./", even
// absolute-ish paths. Anything escaping the archive root is rejected.
func clean_href(href string) string {
	name := strings.ReplaceAll(href, "\\", "/")
	name = path.Clean(strings.TrimPrefix(name, "/"))
	if name == "." || name == ".." || strings.HasPrefix(name, "../") {
		return ""
	}
	return name
}

package conv

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kmz2geotiff/pkg/overlay"
	"kmz2geotiff/pkg/runlog"
)

// mockWriter stands in for the GDAL boundary.
type mockWriter struct {
	writes int
	warps  int
	err    error
}

func (m *mockWriter) Write(src string, box overlay.BoundingBox, dst string) error {
	if m.err != nil {
		return m.err
	}
	m.writes++
	return os.WriteFile(dst, []byte("tif"), 0644)
}

func (m *mockWriter) WarpQuad(src string, quad []overlay.Corner, dst string) error {
	if m.err != nil {
		return m.err
	}
	m.warps++
	return os.WriteFile(dst, []byte("tif"), 0644)
}

const boxKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <GroundOverlay>
    <Icon><href>overlay.png</href></Icon>
    <LatLonBox><north>10</north><south>0</south><east>10</east><west>0</west></LatLonBox>
  </GroundOverlay>
</kml>`

const badKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <GroundOverlay>
    <Icon><href>overlay.png</href></Icon>
    <LatLonBox><north>10</north><south>0</south><east>10</east></LatLonBox>
  </GroundOverlay>
</kml>`

const quadKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2" xmlns:gx="http://www.google.com/kml/ext/2.2">
  <GroundOverlay>
    <Icon><href>overlay.png</href></Icon>
    <gx:LatLonQuad><coordinates>1,0 11,1 10,11 0,10</coordinates></gx:LatLonQuad>
  </GroundOverlay>
</kml>`

func write_kmz(t *testing.T, fn, kmldoc string) {
	t.Helper()
	w, err := os.Create(fn)
	require.NoError(t, err)
	defer w.Close()
	zw := zip.NewWriter(w)
	f, err := zw.Create("doc.kml")
	require.NoError(t, err)
	_, err = f.Write([]byte(kmldoc))
	require.NoError(t, err)
	f, err = zw.Create("overlay.png")
	require.NoError(t, err)
	_, err = f.Write([]byte("\x89PNG fake payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func new_converter(t *testing.T, w *mockWriter) (*Converter, string) {
	t.Helper()
	outdir := t.TempDir()
	l, err := runlog.NewLogger(filepath.Join(outdir, "conversion_log.txt"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return &Converter{Writer: w, Log: l, Outdir: outdir}, outdir
}

func TestCollect(t *testing.T) {
	indir := t.TempDir()
	write_kmz(t, filepath.Join(indir, "b.kmz"), boxKML)
	write_kmz(t, filepath.Join(indir, "a.KMZ"), boxKML)
	require.NoError(t, os.WriteFile(filepath.Join(indir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(indir, "sub.kmz"), 0755))

	files, err := Collect([]string{indir})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(indir, "a.KMZ"), files[0])
	assert.Equal(t, filepath.Join(indir, "b.kmz"), files[1])

	t.Run("explicit file", func(t *testing.T) {
		files, err := Collect([]string{filepath.Join(indir, "b.kmz")})
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("missing arg", func(t *testing.T) {
		_, err := Collect([]string{filepath.Join(indir, "absent")})
		assert.Error(t, err)
	})
}

func TestRunMixedBatch(t *testing.T) {
	indir := t.TempDir()
	write_kmz(t, filepath.Join(indir, "good.kmz"), boxKML)
	write_kmz(t, filepath.Join(indir, "noband.kmz"), badKML)
	require.NoError(t, os.WriteFile(filepath.Join(indir, "plain.kmz"), []byte("just text"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(indir, "corrupt.kmz"), []byte("PK\003\004junk"), 0644))

	w := &mockWriter{}
	c, outdir := new_converter(t, w)

	files, err := Collect([]string{indir})
	require.NoError(t, err)
	res := c.Run(files)

	assert.Equal(t, []string{"good"}, res.Converted)
	assert.Equal(t, []string{"corrupt", "noband", "plain"}, res.Failed)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, 1, w.writes)
	assert.FileExists(t, filepath.Join(outdir, "good.tif"))

	require.Len(t, res.Entries, 1)
	assert.Equal(t, overlay.BoundingBox{North: 10, South: 0, East: 10, West: 0}, res.Entries[0].Box)

	dat, err := os.ReadFile(filepath.Join(outdir, "conversion_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(dat), "converted\t"+filepath.Join(indir, "good.kmz"))
	assert.Contains(t, string(dat), "failed\t"+filepath.Join(indir, "noband.kmz"))
	assert.Contains(t, string(dat), "failed\t"+filepath.Join(indir, "plain.kmz"))
}

func TestRunSkipsExisting(t *testing.T) {
	indir := t.TempDir()
	write_kmz(t, filepath.Join(indir, "good.kmz"), boxKML)

	w := &mockWriter{}
	c, _ := new_converter(t, w)
	files, err := Collect([]string{indir})
	require.NoError(t, err)

	res := c.Run(files)
	assert.Equal(t, []string{"good"}, res.Converted)

	res = c.Run(files)
	assert.Empty(t, res.Converted)
	assert.Equal(t, []string{"good"}, res.Skipped)
	assert.Equal(t, 1, w.writes)

	c.Force = true
	res = c.Run(files)
	assert.Equal(t, []string{"good"}, res.Converted)
	assert.Equal(t, 2, w.writes)
}

func TestRunRotatedQuadWarps(t *testing.T) {
	indir := t.TempDir()
	write_kmz(t, filepath.Join(indir, "rot.kmz"), quadKML)

	w := &mockWriter{}
	c, _ := new_converter(t, w)
	files, err := Collect([]string{indir})
	require.NoError(t, err)

	res := c.Run(files)
	assert.Equal(t, []string{"rot"}, res.Converted)
	assert.Equal(t, 0, w.writes)
	assert.Equal(t, 1, w.warps)
	require.Len(t, res.Entries, 1)
	assert.Len(t, res.Entries[0].Corners, 4)
}

func TestRunWriterFailure(t *testing.T) {
	indir := t.TempDir()
	write_kmz(t, filepath.Join(indir, "good.kmz"), boxKML)
	write_kmz(t, filepath.Join(indir, "other.kmz"), boxKML)

	w := &mockWriter{err: errors.New("disk full")}
	c, outdir := new_converter(t, w)
	files, err := Collect([]string{indir})
	require.NoError(t, err)

	res := c.Run(files)
	assert.Empty(t, res.Converted)
	assert.Equal(t, []string{"good", "other"}, res.Failed)

	dat, err := os.ReadFile(filepath.Join(outdir, "conversion_log.txt"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(dat), "disk full"))
}

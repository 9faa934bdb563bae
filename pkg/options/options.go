package options

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Options struct {
	Outdir  string
	LogFile string
	Sql     string
	Index   bool
	Kml     bool
	Dms     bool
	Force   bool
	Dump    bool
	Quality int
	Gradset string
}

var Config = Options{
	Outdir:  "Converted GeoTIFFs",
	LogFile: "conversion_log.txt",
	Quality: 50,
}

func Usage() {
	flag.Usage()
}

// ParseCLI seeds defaults from $KMZ2GEOTIFF_OPTS, then parses command line
// flags over them, returning the positional arguments.
func ParseCLI(gv func() string) []string {
	app := filepath.Base(os.Args[0])

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s [options] [directory|file.kmz ...]\n", app)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintln(os.Stderr, gv())
	}

	defs := os.Getenv("KMZ2GEOTIFF_OPTS")
	_parts := strings.Split(defs, " ")
	var parts []string
	for _, p := range _parts {
		if p != "" {
			parts = append(parts, p)
		}
	}

	envflags := flag.NewFlagSet("$KMZ2GEOTIFF_OPTS", flag.ExitOnError)
	kml := envflags.Bool("kml", false, "kml")
	dms := envflags.Bool("dms", false, "dms")
	index := envflags.Bool("index", false, "index")
	grad := envflags.String("gradient", "", "gradient")
	quality := envflags.Int("quality", Config.Quality, "quality")
	envflags.Parse(parts)
	Config.Kml = *kml
	Config.Dms = *dms
	Config.Index = *index
	Config.Gradset = *grad
	Config.Quality = *quality

	flag.StringVar(&Config.Outdir, "outdir", Config.Outdir, "Output directory for generated GeoTIFFs")
	flag.StringVar(&Config.LogFile, "logfile", Config.LogFile, "Conversion log file name (in output directory)")
	flag.StringVar(&Config.Sql, "sql", "", "Optional sqlite run database file")
	flag.BoolVar(&Config.Index, "index", Config.Index, "Generate footprint index KML/KMZ")
	flag.BoolVar(&Config.Kml, "kml", Config.Kml, "Generate index as KML (vice default KMZ)")
	flag.BoolVar(&Config.Dms, "dms", Config.Dms, "Show positions as DD:MM:SS.s (vice decimal degrees)")
	flag.BoolVar(&Config.Force, "force", false, "Overwrite existing outputs")
	flag.BoolVar(&Config.Dump, "dump", false, "Dump overlay metadata and exit")
	flag.IntVar(&Config.Quality, "quality", Config.Quality, "JPEG compression quality for output tiles")
	flag.StringVar(&Config.Gradset, "gradient", Config.Gradset, "Index colour gradient [red,rdgn,yor]")

	flag.Parse()
	return flag.Args()
}

package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ligustah/collate/pkg/raster"
)

func runFormats(args []string) int {
	fs := flag.NewFlagSet("formats", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: collate formats

Print the built-in output format table and whether this build can encode
each format. Unsupported formats downgrade to the lossless fallback at
export time.`)
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMIME\tEXT\tQUALITY\tMAX DIM\tMAX PIXELS\tENCODER")
	for _, name := range raster.Formats() {
		f, _ := raster.LookupFormat(name)

		quality := "-"
		if f.Quality > 0 {
			quality = fmt.Sprintf("%d", f.Quality)
		}
		status := "ok"
		if probed := raster.Probe(name, nil); probed.Name != f.Name {
			status = "falls back to " + probed.Name
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			f.Name, f.MIME, f.Ext, quality, f.MaxDim, f.MaxPixels, status)
	}
	w.Flush()
	return ExitSuccess
}

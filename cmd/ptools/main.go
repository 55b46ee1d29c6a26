// Command ptools reads the column chunks of parquet files with stored column
// readers.
//
// The scan command decodes one column of a row group and prints its values,
// optionally restricted to a range of rows, along with the levels and the
// statistics collected by the reader. The columns command lists the leaf
// columns of a file with their levels.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"
)

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Tooling for parquet stored column readers.").UsageWriter(os.Stdout)
	addScanCommand(app)
	addColumnsCommand(app)
	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func exitWithErr(err error) {
	perrorf("error: %s", err)
	os.Exit(1)
}

func perrorf(format string, args ...interface{}) {
	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}
	_, _ = fmt.Fprintf(os.Stderr, format, args...)
}

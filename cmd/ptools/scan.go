package main

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/bits-and-blooms/bitset"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/segmentio/parquet-stored"
	"github.com/segmentio/parquet-stored/chunk"
	"github.com/segmentio/parquet-stored/internal/debug"
)

// scanCommand prints the values of a column chunk.
type scanCommand struct {
	file      string
	column    string
	rowGroup  int
	batch     int
	skip      int
	limit     int
	dict      bool
	levels    bool
	stats     bool
	checksums bool
	debug     bool
}

func addScanCommand(app *kingpin.Application) {
	cmd := &scanCommand{}
	scan := app.Command("scan", "Read a column chunk and print its values.")
	scan.Arg("file", "Parquet file to read.").Required().ExistingFileVar(&cmd.file)
	scan.Flag("column", "Dotted path of the leaf column to read.").Short('c').Required().StringVar(&cmd.column)
	scan.Flag("row-group", "Index of the row group to read.").Default("0").IntVar(&cmd.rowGroup)
	scan.Flag("batch", "Number of rows read per call.").Default("1024").IntVar(&cmd.batch)
	scan.Flag("skip", "Number of leading rows excluded from the scan.").Default("0").IntVar(&cmd.skip)
	scan.Flag("limit", "Maximum number of rows selected after the skipped ones, 0 selects all.").Default("0").IntVar(&cmd.limit)
	scan.Flag("dict", "Print dictionary codes instead of values.").BoolVar(&cmd.dict)
	scan.Flag("needs-levels", "Print the levels of the rows read.").BoolVar(&cmd.levels)
	scan.Flag("stats", "Print the statistics of the reader.").BoolVar(&cmd.stats)
	scan.Flag("verify-checksums", "Verify the checksums of the pages.").BoolVar(&cmd.checksums)
	scan.Flag("debug", "Display debugging logs.").BoolVar(&cmd.debug)
	scan.Action(func(*kingpin.ParseContext) error {
		if err := cmd.run(os.Stdout, os.Stderr); err != nil {
			exitWithErr(err)
		}
		return nil
	})
}

func (cmd *scanCommand) run(stdout, stderr io.Writer) error {
	if cmd.batch <= 0 {
		return errors.Errorf("invalid batch size: %d", cmd.batch)
	}
	debug.Toggle(cmd.debug)
	logger := log.With(debug.Logger(stderr), "scan", uuid.NewString())

	f, err := os.Open(cmd.file)
	if err != nil {
		return errors.Wrap(err, "opening parquet file")
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "reading file info")
	}
	file, err := chunk.OpenFile(f, info.Size())
	if err != nil {
		return err
	}

	column := file.Lookup(strings.Split(cmd.column, ".")...)
	if column == nil || !column.Leaf() {
		return errors.Errorf("%s: no leaf column named %q", cmd.file, cmd.column)
	}
	repeated := column.Field().MaxRepetitionLevel > 0

	ctx := new(stored.ReadContext)
	if cmd.skip > 0 || cmd.limit > 0 {
		ctx.Filter = rowRange(file.NumRows(cmd.rowGroup), cmd.skip, cmd.limit)
	}

	contentType := stored.Value
	if cmd.dict {
		contentType = stored.DictCode
	}

	metrics := stored.NewMetrics(prometheus.NewRegistry())
	r, err := column.NewReader(cmd.rowGroup, ctx,
		stored.Logger(logger),
		stored.WithMetrics(metrics),
		chunk.VerifyChecksums(cmd.checksums),
	)
	if err != nil {
		return err
	}
	if cmd.levels {
		if err := r.SetNeedsLevels(true); err != nil {
			return err
		}
	}

	b, err := column.NewBuilder(memory.DefaultAllocator, contentType)
	if err != nil {
		return err
	}
	defer b.Release()

	values := newTable(stdout, "index", "value")
	levels := newTable(stdout, "level", "definition", "repetition")
	index, numLevels, numRows := 0, 0, 0

	for {
		n, err := r.ReadRecords(cmd.batch, contentType, b)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "reading column %s", column.Name())
		}
		numRows += n

		arr := b.NewArray()
		for i := 0; i < arr.Len(); i++ {
			row := index + i
			if ctx.Filter == nil || repeated || ctx.Filter.Test(uint(row)) {
				values.Append([]string{strconv.Itoa(row), arr.ValueStr(i)})
			}
		}
		index += arr.Len()
		arr.Release()

		if cmd.levels {
			def, rep, n := r.GetLevels()
			for i := 0; i < n; i++ {
				repetition := ""
				if rep != nil {
					repetition = strconv.Itoa(int(rep[i]))
				}
				levels.Append([]string{strconv.Itoa(numLevels), strconv.Itoa(int(def[i])), repetition})
				numLevels++
			}
			r.Reset()
		}
		level.Debug(logger).Log("msg", "read batch", "rows", n)
	}

	values.Render()
	if cmd.levels {
		levels.Render()
	}
	if cmd.stats {
		printStats(stdout, r.Stats())
	}
	level.Info(logger).Log("msg", "scan complete", "column", column.Name(), "rows", numRows)
	return nil
}

// rowRange returns a filter selecting limit rows after the first skip rows of
// a row group.
func rowRange(numRows int64, skip, limit int) *bitset.BitSet {
	filter := bitset.New(uint(numRows))
	end := numRows
	if limit > 0 && int64(skip+limit) < end {
		end = int64(skip + limit)
	}
	if int64(skip) < end {
		filter.FlipRange(uint(skip), uint(end))
	}
	return filter
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	return table
}

func printStats(w io.Writer, stats stored.Stats) {
	table := newTable(w, "stat", "value")
	table.AppendBulk([][]string{
		{"column read time", stats.ColumnReadTime.String()},
		{"page read time", stats.PageReadTime.String()},
		{"level decode time", stats.LevelDecodeTime.String()},
		{"value decode time", stats.ValueDecodeTime.String()},
		{"pages loaded", strconv.FormatInt(stats.PagesLoaded, 10)},
		{"pages skipped", strconv.FormatInt(stats.PagesSkipped, 10)},
		{"rows read", strconv.FormatInt(stats.RowsRead, 10)},
		{"rows skipped", strconv.FormatInt(stats.RowsSkipped, 10)},
		{"rows replayed", strconv.FormatInt(stats.RowsReplayed, 10)},
	})
	table.Render()
}

package main

import (
	"io"
	"os"
	"strconv"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/segmentio/parquet-stored/chunk"
)

// columnsCommand lists the leaf columns of a file.
type columnsCommand struct {
	file string
}

func addColumnsCommand(app *kingpin.Application) {
	cmd := &columnsCommand{}
	columns := app.Command("columns", "List the leaf columns of a parquet file with their levels.")
	columns.Arg("file", "Parquet file to read.").Required().ExistingFileVar(&cmd.file)
	columns.Action(func(*kingpin.ParseContext) error {
		if err := cmd.run(os.Stdout); err != nil {
			exitWithErr(err)
		}
		return nil
	})
}

func (cmd *columnsCommand) run(stdout io.Writer) error {
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

	table := newTable(stdout, "column", "type", "R", "D", "A")
	var walk func(*chunk.Column)
	walk = func(c *chunk.Column) {
		if !c.Leaf() {
			for _, child := range c.Columns() {
				walk(child)
			}
			return
		}
		field := c.Field()
		table.Append([]string{
			field.Name,
			c.Type().String(),
			strconv.Itoa(int(field.MaxRepetitionLevel)),
			strconv.Itoa(int(field.MaxDefinitionLevel)),
			strconv.Itoa(int(field.RepeatedAncestorDefLevel)),
		})
	}
	walk(file.Root())
	table.Render()
	return nil
}

package chunk

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go/format"
	"github.com/pkg/errors"

	"github.com/segmentio/parquet-stored"
)

// Column represents a column in a parquet file.
//
// Methods of Column values are safe to call concurrently from multiple
// goroutines.
type Column struct {
	file    *File
	schema  *format.SchemaElement
	columns []*Column
	chunks  []*format.ColumnChunk
	field   stored.Field
}

// Name returns the column name.
func (c *Column) Name() string { return c.schema.Name }

// Leaf returns true if c is a leaf column.
func (c *Column) Leaf() bool { return len(c.columns) == 0 }

// Columns returns the list of child columns.
//
// The method returns the same slice across multiple calls, the program must
// treat it as a read-only value.
func (c *Column) Columns() []*Column { return c.columns }

// Column returns the child column matching the given name.
func (c *Column) Column(name string) *Column {
	for _, child := range c.columns {
		if child.Name() == name {
			return child
		}
	}
	return nil
}

// Field returns the levels of c.
func (c *Column) Field() *stored.Field {
	f := c.field
	return &f
}

// Type returns the physical type of the column. The returned value is
// unspecified if c is not a leaf column.
func (c *Column) Type() format.Type {
	if c.schema.Type == nil {
		return format.Type(-1)
	}
	return *c.schema.Type
}

func (c *Column) typeLength() int {
	if c.schema.TypeLength == nil {
		return 0
	}
	return int(*c.schema.TypeLength)
}

func (c *Column) repetitionType() format.FieldRepetitionType {
	if c.schema.RepetitionType == nil {
		return format.Required
	}
	return *c.schema.RepetitionType
}

// Chunk returns the metadata of the column chunk of c in the given row group.
func (c *Column) Chunk(rowGroup int) (*format.ColumnMetaData, error) {
	if !c.Leaf() {
		return nil, errors.Errorf("column %s is not a leaf column", c.Name())
	}
	if rowGroup < 0 || rowGroup >= len(c.chunks) {
		return nil, errors.Errorf("row group %d out of range [0:%d]", rowGroup, len(c.chunks))
	}
	return &c.chunks[rowGroup].MetaData, nil
}

// NewCodec returns a codec reading the pages of c in the given row group.
func (c *Column) NewCodec(rowGroup int, options ...CodecOption) (*Codec, error) {
	metadata, err := c.Chunk(rowGroup)
	if err != nil {
		return nil, err
	}
	return NewCodec(c.file, metadata, &c.field, c.typeLength(), options...)
}

// NewReader returns a stored column reader of c in the given row group. The
// options may be codec or reader options.
func (c *Column) NewReader(rowGroup int, ctx *stored.ReadContext, options ...interface{}) (stored.Reader, error) {
	var codecOptions []CodecOption
	var readerOptions []stored.ReaderOption

	for _, opt := range options {
		switch o := opt.(type) {
		case CodecOption:
			codecOptions = append(codecOptions, o)
		case stored.ReaderOption:
			readerOptions = append(readerOptions, o)
		default:
			return nil, errors.Errorf("invalid column reader option of type %T", opt)
		}
	}

	codec, err := c.NewCodec(rowGroup, codecOptions...)
	if err != nil {
		return nil, errors.Wrapf(err, "column %s", c.Name())
	}
	return stored.NewReader(c.Field(), codec, ctx, readerOptions...)
}

// DataType returns the arrow type that readers of c append for the given
// content type.
func (c *Column) DataType(contentType stored.ContentType) (arrow.DataType, error) {
	if contentType == stored.DictCode {
		return arrow.PrimitiveTypes.Int32, nil
	}
	switch c.Type() {
	case format.Boolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case format.Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case format.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case format.Float:
		return arrow.PrimitiveTypes.Float32, nil
	case format.Double:
		return arrow.PrimitiveTypes.Float64, nil
	case format.ByteArray:
		if c.schema.LogicalType != nil && c.schema.LogicalType.UTF8 != nil {
			return arrow.BinaryTypes.String, nil
		}
		return arrow.BinaryTypes.Binary, nil
	case format.FixedLenByteArray:
		return &arrow.FixedSizeBinaryType{ByteWidth: c.typeLength()}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedEncoding, "column %s of type %s", c.Name(), c.Type())
	}
}

// NewBuilder returns an arrow builder accepting the values that readers of c
// append for the given content type.
func (c *Column) NewBuilder(mem memory.Allocator, contentType stored.ContentType) (array.Builder, error) {
	dataType, err := c.DataType(contentType)
	if err != nil {
		return nil, err
	}
	return array.NewBuilder(mem, dataType), nil
}

// String returns a human-readable string representation of the column.
func (c *Column) String() string {
	switch {
	case !c.Leaf():
		return fmt.Sprintf("%s{%s,R=%d,D=%d}",
			c.Name(),
			c.repetitionType(),
			c.field.MaxRepetitionLevel,
			c.field.MaxDefinitionLevel)

	case c.Type() == format.FixedLenByteArray:
		return fmt.Sprintf("%s{%s(%d),%s,R=%d,D=%d}",
			c.Name(),
			c.Type(),
			c.typeLength(),
			c.repetitionType(),
			c.field.MaxRepetitionLevel,
			c.field.MaxDefinitionLevel)

	default:
		return fmt.Sprintf("%s{%s,%s,R=%d,D=%d}",
			c.Name(),
			c.Type(),
			c.repetitionType(),
			c.field.MaxRepetitionLevel,
			c.field.MaxDefinitionLevel)
	}
}

func openColumns(file *File) (*Column, error) {
	cl := columnLoader{}

	c, err := cl.open(file, nil)
	if err != nil {
		return nil, err
	}

	// Extra entries in the row group columns would indicate dangling data
	// pages in the file.
	for index, rowGroup := range file.metadata.RowGroups {
		if cl.rowGroupColumnIndex != len(rowGroup.Columns) {
			return nil, errors.Errorf("row group at index %d contains %d columns but %d were referenced by the column schemas",
				index, len(rowGroup.Columns), cl.rowGroupColumnIndex)
		}
	}
	return c, nil
}

type columnLoader struct {
	schemaIndex         int
	rowGroupColumnIndex int
}

func (cl *columnLoader) open(file *File, parent *Column) (*Column, error) {
	c := &Column{
		file:   file,
		schema: &file.metadata.Schema[cl.schemaIndex],
	}
	cl.schemaIndex++

	// The root element carries no repetition type and adds no level.
	if parent != nil {
		c.field = parent.field
		switch c.repetitionType() {
		case format.Optional:
			c.field.MaxDefinitionLevel++
		case format.Repeated:
			c.field.MaxRepetitionLevel++
			c.field.MaxDefinitionLevel++
			c.field.RepeatedAncestorDefLevel = c.field.MaxDefinitionLevel
		}
		c.field.Name = c.schema.Name
		if !parent.isRoot() {
			c.field.Name = parent.field.Name + "." + c.schema.Name
		}
	}

	numChildren := int(c.schema.NumChildren)
	if numChildren == 0 {
		c.chunks = make([]*format.ColumnChunk, 0, len(file.metadata.RowGroups))
		for index := range file.metadata.RowGroups {
			rowGroup := &file.metadata.RowGroups[index]
			if cl.rowGroupColumnIndex >= len(rowGroup.Columns) {
				return nil, errors.Errorf("row group at index %d does not have enough columns", index)
			}
			c.chunks = append(c.chunks, &rowGroup.Columns[cl.rowGroupColumnIndex])
		}
		cl.rowGroupColumnIndex++
		return c, nil
	}

	c.columns = make([]*Column, numChildren)
	for i := range c.columns {
		if cl.schemaIndex >= len(file.metadata.Schema) {
			return nil, errors.Errorf("column %q has more children than there are schemas in the file: %d > %d",
				c.schema.Name, cl.schemaIndex+1, len(file.metadata.Schema))
		}

		var err error
		c.columns[i], err = cl.open(file, c)
		if err != nil {
			return nil, errors.Wrap(err, c.schema.Name)
		}
	}
	return c, nil
}

func (c *Column) isRoot() bool { return c.field.Name == "" }

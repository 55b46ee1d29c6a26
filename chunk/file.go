package chunk

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/parquet-go/parquet-go/format"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/thrift"
)

var (
	ErrMissingRootColumn = errors.New("parquet file is missing a root column")
)

// File represents a parquet file opened to read its column chunks.
type File struct {
	metadata format.FileMetaData
	protocol thrift.CompactProtocol
	reader   io.ReaderAt
	size     int64
	buffer   [8]byte
	root     *Column
}

// OpenFile opens a parquet file from the content between offset 0 and the given
// size in r.
//
// Only the parquet magic bytes and footer are read, column chunks are left
// untouched; successfully opening a file does not validate its pages.
func OpenFile(r io.ReaderAt, size int64) (*File, error) {
	f := &File{
		reader: r,
		size:   size,
	}
	if size < 12 {
		return nil, errors.Errorf("parquet file of %d bytes is too short", size)
	}

	if _, err := r.ReadAt(f.buffer[:4], 0); err != nil {
		return nil, errors.Wrap(err, "reading magic header of parquet file")
	}
	if string(f.buffer[:4]) != "PAR1" {
		return nil, errors.Errorf("invalid magic header of parquet file: %q", f.buffer[:4])
	}

	if _, err := r.ReadAt(f.buffer[:8], size-8); err != nil {
		return nil, errors.Wrap(err, "reading magic footer of parquet file")
	}
	if string(f.buffer[4:8]) != "PAR1" {
		return nil, errors.Errorf("invalid magic footer of parquet file: %q", f.buffer[4:8])
	}

	footerSize := int64(binary.LittleEndian.Uint32(f.buffer[:4]))
	if footerSize > size-12 {
		return nil, errors.Errorf("parquet footer of %d bytes overflows file of %d bytes", footerSize, size)
	}
	footer := make([]byte, footerSize)
	if _, err := r.ReadAt(footer, size-(footerSize+8)); err != nil {
		return nil, errors.Wrap(err, "reading parquet file footer")
	}

	if err := thrift.NewDecoder(f.protocol.NewReader(bytes.NewReader(footer))).Decode(&f.metadata); err != nil {
		return nil, errors.Wrap(err, "reading parquet file metadata")
	}
	if len(f.metadata.Schema) == 0 {
		return nil, ErrMissingRootColumn
	}

	root, err := openColumns(f)
	if err != nil {
		return nil, errors.Wrap(err, "opening parquet file columns")
	}
	f.root = root
	return f, nil
}

// Root returns the root column of f.
func (f *File) Root() *Column { return f.root }

// Metadata returns the metadata decoded from the footer of f.
func (f *File) Metadata() *format.FileMetaData { return &f.metadata }

// NumRowGroups returns the number of row groups in f.
func (f *File) NumRowGroups() int { return len(f.metadata.RowGroups) }

// NumRows returns the number of rows in the given row group.
func (f *File) NumRows(rowGroup int) int64 {
	if rowGroup < 0 || rowGroup >= len(f.metadata.RowGroups) {
		return 0
	}
	return f.metadata.RowGroups[rowGroup].NumRows
}

// Lookup returns the column at the given path from the root, or nil if the
// path does not exist.
func (f *File) Lookup(path ...string) *Column {
	c := f.root
	for _, name := range path {
		if c = c.Column(name); c == nil {
			return nil
		}
	}
	return c
}

// Size returns the size of f (in bytes).
func (f *File) Size() int64 { return f.size }

// ReadAt reads bytes into b from f at the given offset.
//
// The method satisfies the io.ReaderAt interface.
func (f *File) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 || off >= f.size {
		return 0, io.EOF
	}

	if limit := f.size - off; limit < int64(len(b)) {
		n, err := f.reader.ReadAt(b[:limit], off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}

	return f.reader.ReadAt(b, off)
}

var (
	_ io.ReaderAt = (*File)(nil)
)

// Package gzip implements the GZIP parquet compression codec.
package gzip

import (
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/parquet-go/parquet-go/format"

	"github.com/segmentio/parquet-stored/compress"
)

type Codec struct {
	r compress.Decompressor
}

func (c *Codec) String() string {
	return "GZIP"
}

func (c *Codec) CompressionCodec() format.CompressionCodec {
	return format.Gzip
}

func (c *Codec) Decode(dst, src []byte) ([]byte, error) {
	return c.r.Decode(dst, src, func(r io.Reader) (compress.Reader, error) {
		z, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return reader{z}, nil
	})
}

type reader struct{ *gzip.Reader }

func (r reader) Reset(rr io.Reader) error {
	if rr == nil {
		// Pass it an empty reader, which is a zero-size value implementing the
		// flate.Reader interface to avoid the construction of a bufio.Reader in
		// the call to Reset.
		rr = devNull{}
	}
	return r.Reader.Reset(rr)
}

type devNull struct{}

func (devNull) ReadByte() (byte, error)  { return 0, io.EOF }
func (devNull) Read([]byte) (int, error) { return 0, io.EOF }

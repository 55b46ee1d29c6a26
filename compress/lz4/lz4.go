// Package lz4 implements the LZ4_RAW parquet compression codec.
package lz4

import (
	"github.com/parquet-go/parquet-go/format"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// maxRatio bounds the compression ratio of lz4 blocks; a block that does not
// fit in a buffer this many times its size is corrupted.
const maxRatio = 256

type Codec struct {
}

func (c *Codec) String() string {
	return "LZ4_RAW"
}

func (c *Codec) CompressionCodec() format.CompressionCodec {
	return format.Lz4Raw
}

// Decode decodes the lz4 block in src. Blocks do not record their
// decompressed size, so the capacity of dst is used as a first guess and
// grown until the block fits.
func (c *Codec) Decode(dst, src []byte) ([]byte, error) {
	size := cap(dst)
	if size < 3*len(src) {
		size = 3 * len(src)
	}
	if size == 0 {
		size = 64
	}
	for {
		if cap(dst) < size {
			dst = make([]byte, size)
		}
		n, err := lz4.UncompressBlock(src, dst[:size])
		if err == nil {
			return dst[:n], nil
		}
		if !errors.Is(err, lz4.ErrInvalidSourceShortBuffer) || size >= maxRatio*len(src) {
			return dst[:0], err
		}
		size *= 2
	}
}
